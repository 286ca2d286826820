package kg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aashirjaved/biokg/pkg/kg/metrics"
)

// OutcomeStatus classifies what happened to a single triple during a batch.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome is the per-triple result of a batch run.
type Outcome struct {
	Triple     RawTriple
	Status     OutcomeStatus
	Reason     string
	Err        error
	Normalized *NormalizedTriple
}

// Ingestor runs the normalizer then the upserter over raw triples, isolating
// per-triple failures so one malformed triple never aborts a batch. Because
// upserts are idempotent, re-running the same input is always safe.
type Ingestor struct {
	normalizer *Normalizer
	upserter   *Upserter
	logger     *logrus.Logger

	retries      int
	retryBackoff time.Duration
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithRetries sets the per-triple retry budget and initial backoff for
// transient store failures. Backoff doubles per attempt.
func WithRetries(n int, backoff time.Duration) IngestorOption {
	return func(i *Ingestor) {
		i.retries = n
		i.retryBackoff = backoff
	}
}

// WithIngestorLogger replaces the default JSON logger.
func WithIngestorLogger(l *logrus.Logger) IngestorOption {
	return func(i *Ingestor) { i.logger = l }
}

// NewIngestor creates a batch driver over a normalizer and a store.
func NewIngestor(normalizer *Normalizer, store Store, opts ...IngestorOption) *Ingestor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ing := &Ingestor{
		normalizer:   normalizer,
		upserter:     NewUpserter(store, logger),
		logger:       logger,
		retries:      3,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Run processes the triples sequentially and returns one outcome per triple
// processed. Invalid triples are skipped, unmapped predicates are stored
// under the unknown label, and a store that stays unavailable after the retry
// budget aborts the batch: the error is returned together with the outcomes
// collected so far. Cancellation is honored between triples; each triple's
// upsert is a self-contained unit, so a cancelled run leaves no partial
// multi-entity writes behind.
func (i *Ingestor) Run(ctx context.Context, triples []RawTriple) ([]Outcome, error) {
	runID := uuid.New().String()
	log := i.logger.WithFields(logrus.Fields{"run_id": runID, "triple_count": len(triples)})
	log.Info("Starting ingestion batch")

	outcomes := make([]Outcome, 0, len(triples))
	for _, t := range triples {
		select {
		case <-ctx.Done():
			log.WithField("processed", len(outcomes)).Warn("Ingestion cancelled")
			return outcomes, ctx.Err()
		default:
		}

		outcome := i.ingestOne(ctx, t)
		outcomes = append(outcomes, outcome)

		if outcome.Err != nil && IsStoreUnavailable(outcome.Err) {
			log.WithError(outcome.Err).Error("Graph store unavailable, aborting batch")
			return outcomes, errors.Wrap(outcome.Err, "ingestion aborted")
		}
	}

	log.WithField("processed", len(outcomes)).Info("Ingestion batch completed")
	return outcomes, nil
}

// Stream is the channel-based variant of Run for pipelined ingestion. It
// consumes triples until the input closes or the context is cancelled, and
// closes the returned channel when done. A store outage ends the stream early
// with a final failed outcome.
func (i *Ingestor) Stream(ctx context.Context, triples <-chan RawTriple) <-chan Outcome {
	out := make(chan Outcome)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-triples:
				if !ok {
					return
				}
				outcome := i.ingestOne(ctx, t)
				select {
				case out <- outcome:
				case <-ctx.Done():
					return
				}
				if outcome.Err != nil && IsStoreUnavailable(outcome.Err) {
					return
				}
			}
		}
	}()
	return out
}

func (i *Ingestor) ingestOne(ctx context.Context, t RawTriple) Outcome {
	start := time.Now()
	record := func(status OutcomeStatus) {
		metrics.IngestOutcomes.WithLabelValues(string(status)).Inc()
		metrics.IngestDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	}

	normalized, err := i.normalizer.Normalize(t)
	if err != nil {
		if IsInvalidTriple(err) {
			i.logger.WithError(err).WithField("doc_id", t.Provenance.DocumentID).
				Warn("Skipping invalid triple")
			record(StatusSkipped)
			return Outcome{Triple: t, Status: StatusSkipped, Reason: err.Error(), Err: err}
		}
		record(StatusFailed)
		return Outcome{Triple: t, Status: StatusFailed, Err: err}
	}

	metrics.TriplesNormalized.WithLabelValues(normalized.Predicate).Inc()
	if normalized.Predicate == PredicateUnknown {
		metrics.UnmappedPredicates.Inc()
	}

	if err := i.upsertWithRetry(ctx, normalized); err != nil {
		if IsInvalidTriple(err) {
			record(StatusSkipped)
			return Outcome{Triple: t, Status: StatusSkipped, Reason: err.Error(), Err: err, Normalized: &normalized}
		}
		record(StatusFailed)
		return Outcome{Triple: t, Status: StatusFailed, Err: err, Normalized: &normalized}
	}

	record(StatusSuccess)
	return Outcome{Triple: t, Status: StatusSuccess, Normalized: &normalized}
}

// upsertWithRetry retries transient store failures with exponential backoff.
// The upsert is idempotent, so a retry after a half-applied attempt is safe.
func (i *Ingestor) upsertWithRetry(ctx context.Context, t NormalizedTriple) error {
	backoff := i.retryBackoff
	var err error
	for attempt := 0; attempt <= i.retries; attempt++ {
		if attempt > 0 {
			i.logger.WithFields(logrus.Fields{
				"attempt":  attempt,
				"relation": t.RelationKey().String(),
			}).Warn("Retrying upsert after transient store failure")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = i.upserter.Upsert(ctx, t)
		if err == nil || !IsStoreUnavailable(err) {
			return err
		}
	}
	return err
}

// Successes counts successful outcomes, a convenience for callers reporting
// batch results.
func Successes(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}
