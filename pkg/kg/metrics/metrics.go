package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Normalizer metrics
	TriplesNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_triples_normalized_total",
			Help: "Number of raw triples normalized, by canonical predicate",
		},
		[]string{"predicate"},
	)

	UnmappedPredicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kg_unmapped_predicates_total",
			Help: "Number of predicates that fell back to the unknown label",
		},
	)

	// Ingestion metrics
	IngestOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_ingest_outcomes_total",
			Help: "Per-triple ingestion outcomes",
		},
		[]string{"status"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "kg_ingest_duration_seconds",
			Help: "Time spent normalizing and upserting a single triple",
		},
		[]string{"status"},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "kg_store_operation_duration_seconds",
			Help: "Latency of graph store operations",
		},
		[]string{"backend", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_store_errors_total",
			Help: "Graph store operation failures",
		},
		[]string{"backend", "operation"},
	)

	// Graph size gauges
	GraphNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kg_graph_nodes_total",
			Help: "Nodes in the graph, by entity type",
		},
		[]string{"entity_type"},
	)

	GraphEdges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kg_graph_edges_total",
			Help: "Edges in the graph, by predicate",
		},
		[]string{"predicate"},
	)
)
