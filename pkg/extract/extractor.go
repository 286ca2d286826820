package extract

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/aashirjaved/biokg/pkg/kg"
)

// Extractor turns one document's text into raw triples. The output is
// untrusted free form; the normalizer always canonicalizes it downstream.
type Extractor interface {
	Extract(ctx context.Context, docID, text string) ([]kg.RawTriple, error)
}

// Few-shot prompt carried over from the original extraction pipeline. The
// example plus the explicit empty-array rule makes the model far less likely
// to return prose instead of JSON.
const extractionPrompt = `You are an expert biomedical researcher. Your task is to extract relationships from a scientific abstract in the form of (Subject, Relation, Object) triples.

Follow these rules:
1. Extract facts related to APOE4, amyloid-beta, Alzheimer's Disease, and associated pathologies.
2. The output must be a valid JSON array of objects.
3. If you cannot find any relevant triples in the abstract, you MUST return an empty JSON array: [].

Here is an example:
---
Abstract: "The APOE4 allele is the strongest genetic risk factor for Alzheimer's disease (AD). It impairs the clearance of amyloid-beta from the brain."
Output:
[
    {"subject": "APOE4 allele", "relation": "is strongest genetic risk factor for", "object": "Alzheimer's disease"},
    {"subject": "APOE4 allele", "relation": "impairs", "object": "clearance of amyloid-beta"}
]
---

Now, extract the triples from the following abstract:

Abstract: "%s"
Output:
`

// maxAbstractTokens bounds the abstract portion of the prompt.
const maxAbstractTokens = 3000

// LLMExtractor calls a chat-completion endpoint with a few-shot prompt and
// parses the JSON array it returns. Responses that are not valid JSON are
// retried; after the retry budget the document yields no triples rather than
// an error, matching the pipeline's never-abort posture.
type LLMExtractor struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// LLMOption configures an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithModel overrides the completion model.
func WithModel(model string) LLMOption {
	return func(e *LLMExtractor) { e.model = model }
}

// WithRetryPolicy overrides the invalid-response retry budget.
func WithRetryPolicy(retries int, delay time.Duration) LLMOption {
	return func(e *LLMExtractor) {
		e.maxRetries = retries
		e.retryDelay = delay
	}
}

// NewLLMExtractor wraps an OpenAI-compatible client.
func NewLLMExtractor(client *openai.Client, opts ...LLMOption) *LLMExtractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	e := &LLMExtractor{
		client:     client,
		model:      openai.GPT3Dot5Turbo,
		maxRetries: 3,
		retryDelay: 5 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, docID, text string) ([]kg.RawTriple, error) {
	text = truncateTokens(text, e.model, maxAbstractTokens)
	prompt := strings.Replace(extractionPrompt, "%s", text, 1)

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0,
		})
		if err == nil && len(resp.Choices) == 0 {
			err = errors.New("completion response has no choices")
		}
		if err != nil {
			lastErr = err
			e.logger.WithError(err).WithFields(logrus.Fields{
				"doc_id":  docID,
				"attempt": attempt,
			}).Warn("Triple extraction call failed")
		} else {
			triples, parseErr := ParseTriples(resp.Choices[0].Message.Content, docID, text)
			if parseErr == nil {
				return triples, nil
			}
			lastErr = parseErr
			e.logger.WithError(parseErr).WithFields(logrus.Fields{
				"doc_id":  docID,
				"attempt": attempt,
			}).Warn("Extractor returned invalid JSON")
		}

		if attempt < e.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}
	}

	e.logger.WithError(lastErr).WithField("doc_id", docID).
		Error("All extraction attempts failed, skipping document")
	return nil, nil
}

// ParseTriples parses an LLM response into raw triples. It tolerates
// markdown code fences around the JSON. Triples with no subject and no
// object are dropped here; partial ones pass through for the normalizer to
// judge.
func ParseTriples(content, docID, snippet string) ([]kg.RawTriple, error) {
	content = stripCodeFence(content)

	parsed := gjson.Parse(content)
	if !parsed.IsArray() {
		return nil, errors.Errorf("expected JSON array, got %q", firstRunes(content, 60))
	}

	var triples []kg.RawTriple
	parsed.ForEach(func(_, v gjson.Result) bool {
		t := kg.RawTriple{
			Subject:   v.Get("subject").String(),
			Predicate: v.Get("relation").String(),
			Object:    v.Get("object").String(),
			Provenance: kg.Provenance{
				DocumentID: docID,
				Snippet:    snippet,
			},
		}
		if conf := v.Get("confidence"); conf.Exists() {
			t.Provenance.Confidence = conf.Float()
		}
		if t.Subject != "" || t.Object != "" {
			triples = append(triples, t)
		}
		return true
	})
	return triples, nil
}

func stripCodeFence(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	return strings.TrimSpace(content)
}

// truncateTokens clips text to a token budget using the model's encoding,
// falling back to a rune cut when the encoding is unknown.
func truncateTokens(text, model string, budget int) string {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if r := []rune(text); len(r) > budget*4 {
			return string(r[:budget*4])
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}

func firstRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
