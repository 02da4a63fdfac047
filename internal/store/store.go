// Package store persists documents, atomic facts, and derived KPI state
// behind a narrow interface. All mutation of fact/metric/golden state
// goes through these contracts; nothing else writes to the tables.
package store

import (
	"context"
	"time"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// Store defines the persistence interface for the fact and KPI pipeline.
type Store interface {
	// Documents and logical tables
	CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	FindDocumentByHash(ctx context.Context, dealID, contentHash string) (*model.Document, error)
	CreateTable(ctx context.Context, tbl model.LogicalTable) (*model.LogicalTable, error)

	// Atomic facts. InsertFacts commits the batch in one transaction and
	// silently drops rows with neither period nor value, returning the
	// count actually written.
	InsertFacts(ctx context.Context, tableID string, facts []model.CandidateFact) (int, error)
	FactsByLabel(ctx context.Context, dealID, label string) ([]model.LabeledFact, error)
	LabelsWithFacts(ctx context.Context, dealID string, limit int) ([]model.LabelCount, error)

	// Memo chunks (plain text retention; embeddings live elsewhere)
	InsertChunks(ctx context.Context, documentID string, chunks []string) (int, error)

	// KPI state
	UpsertMetric(ctx context.Context, name, description string) (string, error)
	InsertMetricValue(ctx context.Context, mv model.MetricValue) (*model.MetricValue, error)
	InsertLineage(ctx context.Context, metricValueID string, factIDs []string) error
	InsertGoldenFact(ctx context.Context, metricValueID string, status model.GoldenStatus, ttlUntil time.Time) (*model.GoldenFact, error)

	// Reads for external consumption
	GoldenFacts(ctx context.Context, dealID string, names []string) ([]model.GoldenSnapshot, error)
	Lineage(ctx context.Context, dealID string, names []string) (map[string][]model.LineageFact, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
