package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aashirjaved/biokg/pkg/extract"
	"github.com/aashirjaved/biokg/pkg/kg"
	"github.com/aashirjaved/biokg/pkg/kg/storage"
	"github.com/aashirjaved/biokg/pkg/pubmed"
	"github.com/aashirjaved/biokg/services"
)

var (
	envFile    = flag.String("env", ".env", "Path to environment file")
	query      = flag.String("query", "(APOE4[Title/Abstract] AND amyloid[Title/Abstract])", "PubMed search query")
	maxResults = flag.Int("max", 30, "Maximum number of abstracts to fetch")
	corpusFile = flag.String("corpus", "", "Read abstracts from a file (one per line) instead of PubMed")
	storeKind  = flag.String("store", "auto", "Graph store backend: neo4j, memory, or auto")
	snapshot   = flag.String("snapshot", "knowledge_graph.json", "Output path for the JSON graph snapshot")
	topN       = flag.Int("top", 10, "Number of entities in the degree-centrality report")
	logLevel   = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

// minAbstractLength filters out fragments too short to carry a relation.
const minAbstractLength = 100

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Could not load env file %s: %v", *envFile, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	abstracts, err := loadAbstracts(ctx, logger)
	if err != nil {
		logger.Fatalf("Failed to load abstracts: %v", err)
	}
	if len(abstracts) == 0 {
		logger.Fatal("No abstracts to process")
	}
	logger.Infof("Processing %d abstracts...", len(abstracts))

	extractor := pickExtractor(logger)
	triples := extractTriples(ctx, logger, extractor, abstracts)
	logger.Infof("Extracted %d raw triples", len(triples))

	memStore := storage.NewMemoryStore()
	var store kg.Store = memStore
	var neoStore *storage.Neo4jStore

	if useNeo4j(logger) {
		neoStore, err = storage.NewNeo4jStore(
			os.Getenv("NEO4J_URI"), os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
		if err != nil {
			logger.Fatalf("Failed to create Neo4j store: %v", err)
		}
		defer neoStore.Close()
		if err := neoStore.Ping(ctx); err != nil {
			logger.Fatalf("Neo4j unreachable: %v", err)
		}
		store = neoStore
		logger.Info("Using Neo4j graph store")
	} else {
		logger.Info("Using in-memory graph store")
	}

	aliases := kg.NewAliasTable()
	warmAliases(ctx, logger, aliases)

	normalizer := kg.NewNormalizer(aliases, kg.DefaultVocabulary(), kg.WithNormalizerLogger(logger))
	ingestor := kg.NewIngestor(normalizer, store, kg.WithIngestorLogger(logger))

	outcomes, err := ingestor.Run(ctx, triples)
	if err != nil {
		logger.Fatalf("Ingestion aborted: %v", err)
	}
	reportOutcomes(logger, outcomes)

	snap, err := takeSnapshot(ctx, neoStore, memStore)
	if err != nil {
		logger.Errorf("Failed to read graph snapshot: %v", err)
		return
	}

	if *snapshot != "" {
		if err := storage.NewSnapshotStore(*snapshot).Store(ctx, snap); err != nil {
			logger.Errorf("Failed to write snapshot: %v", err)
		} else {
			logger.Infof("Graph snapshot saved to %s", *snapshot)
		}
	}

	logger.Infof("Graph contains %d entities and %d relations", len(snap.Entities), len(snap.Relations))
	printDegreeReport(snap)
}

// loadAbstracts reads the corpus file when given, otherwise queries PubMed.
func loadAbstracts(ctx context.Context, logger *logrus.Logger) ([]pubmed.Abstract, error) {
	if *corpusFile != "" {
		return readCorpus(*corpusFile)
	}

	client := pubmed.NewClient(os.Getenv("ENTREZ_EMAIL"))
	logger.Infof("Searching PubMed for: %s", *query)
	return client.SearchAndFetch(ctx, *query, *maxResults)
}

func readCorpus(path string) ([]pubmed.Abstract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var abstracts []pubmed.Abstract
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := pubmed.CleanText(scanner.Text())
		if text == "" {
			continue
		}
		abstracts = append(abstracts, pubmed.Abstract{
			PMID: fmt.Sprintf("corpus-%d", line),
			Text: text,
		})
	}
	return abstracts, scanner.Err()
}

func pickExtractor(logger *logrus.Logger) extract.Extractor {
	if services.HasOpenAICredentials() {
		logger.Info("Using LLM triple extractor")
		return extract.NewLLMExtractor(services.DefaultOpenAIClient(),
			extract.WithModel(services.ExtractionModel()))
	}
	logger.Info("OPENAI_API_KEY not set, using heuristic triple extractor")
	return extract.NewHeuristicExtractor()
}

func extractTriples(ctx context.Context, logger *logrus.Logger, extractor extract.Extractor, abstracts []pubmed.Abstract) []kg.RawTriple {
	var triples []kg.RawTriple
	for _, a := range abstracts {
		if len(a.Text) < minAbstractLength {
			continue
		}
		extracted, err := extractor.Extract(ctx, a.PMID, a.Text)
		if err != nil {
			logger.Errorf("Extraction failed for %s: %v", a.PMID, err)
			continue
		}
		triples = append(triples, extracted...)
	}
	return triples
}

func useNeo4j(logger *logrus.Logger) bool {
	switch *storeKind {
	case "neo4j":
		if os.Getenv("NEO4J_URI") == "" {
			logger.Fatal("NEO4J_URI must be set for -store=neo4j")
		}
		return true
	case "memory":
		return false
	case "auto":
		return os.Getenv("NEO4J_URI") != ""
	default:
		logger.Fatalf("Unknown store backend: %s", *storeKind)
		return false
	}
}

// warmAliases seeds the alias table from a previous snapshot so re-runs
// resolve surface forms to the entities already in the graph.
func warmAliases(ctx context.Context, logger *logrus.Logger, aliases *kg.AliasTable) {
	if *snapshot == "" {
		return
	}
	snap, err := storage.NewSnapshotStore(*snapshot).Load(ctx)
	if err != nil {
		return // first run, nothing to warm from
	}
	storage.WarmAliasTable(aliases, snap)
	logger.Infof("Warmed alias table with %d entities from previous snapshot", len(snap.Entities))
}

func takeSnapshot(ctx context.Context, neoStore *storage.Neo4jStore, memStore *storage.MemoryStore) (kg.GraphSnapshot, error) {
	if neoStore != nil {
		return neoStore.Snapshot(ctx)
	}
	return memStore.Snapshot(), nil
}

func reportOutcomes(logger *logrus.Logger, outcomes []kg.Outcome) {
	var skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case kg.StatusSkipped:
			skipped++
		case kg.StatusFailed:
			failed++
		}
	}
	logger.Infof("Ingested %d triples (%d skipped, %d failed)",
		kg.Successes(outcomes), skipped, failed)
}

func printDegreeReport(snap kg.GraphSnapshot) {
	ranked := kg.TopByDegree(snap, *topN)
	if len(ranked) == 0 {
		return
	}
	fmt.Println("\nMost connected entities:")
	for i, r := range ranked {
		fmt.Printf("%2d. %-40s %-10s %.3f\n", i+1, r.Key.Name, r.Key.Type, r.Score)
	}
}
