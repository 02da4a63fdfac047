package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealfacts-cli/internal/db"
	"github.com/sells-group/dealfacts-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	deal_id      TEXT NOT NULL,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	version      TEXT,
	content_hash TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (deal_id, content_hash)
);

CREATE TABLE IF NOT EXISTS logical_tables (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	name        TEXT NOT NULL,
	sheet       TEXT,
	note        TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS atomic_facts (
	id         TEXT PRIMARY KEY,
	table_id   TEXT NOT NULL REFERENCES logical_tables(id),
	row_idx    INTEGER NOT NULL,
	col_idx    INTEGER NOT NULL,
	label      TEXT NOT NULL,
	period     TEXT,
	value      DOUBLE PRECISION,
	unit       TEXT,
	currency   TEXT,
	source_ref TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS memo_chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	seq         INTEGER NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS canonical_metrics (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metric_values (
	id         TEXT PRIMARY KEY,
	metric_id  TEXT NOT NULL REFERENCES canonical_metrics(id),
	deal_id    TEXT NOT NULL,
	as_of      TEXT NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	unit       TEXT,
	formula    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lineage_edges (
	id              TEXT PRIMARY KEY,
	metric_value_id TEXT NOT NULL REFERENCES metric_values(id),
	fact_id         TEXT NOT NULL REFERENCES atomic_facts(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS golden_facts (
	id              TEXT PRIMARY KEY,
	metric_value_id TEXT NOT NULL REFERENCES metric_values(id),
	status          TEXT NOT NULL DEFAULT 'draft',
	ttl_until       TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_deal ON documents(deal_id);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_table ON atomic_facts(table_id);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_label_period ON atomic_facts(label, period DESC);
CREATE INDEX IF NOT EXISTS idx_metric_values_deal ON metric_values(deal_id);
CREATE INDEX IF NOT EXISTS idx_lineage_edges_value ON lineage_edges(metric_value_id);
CREATE INDEX IF NOT EXISTS idx_golden_facts_value ON golden_facts(metric_value_id);
CREATE INDEX IF NOT EXISTS idx_golden_facts_ttl ON golden_facts(ttl_until);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, deal_id, name, kind, version, content_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.DealID, doc.Name, string(doc.Kind), doc.Version, doc.ContentHash, doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert document %s", doc.Name)
	}
	return &doc, nil
}

func (s *PostgresStore) FindDocumentByHash(ctx context.Context, dealID, contentHash string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, deal_id, name, kind, version, content_hash, created_at
		 FROM documents WHERE deal_id = $1 AND content_hash = $2`,
		dealID, contentHash,
	).Scan(&d.ID, &d.DealID, &d.Name, &d.Kind, &d.Version, &d.ContentHash, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find document by hash")
	}
	return &d, nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, tbl model.LogicalTable) (*model.LogicalTable, error) {
	tbl.ID = uuid.New().String()
	tbl.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO logical_tables (id, document_id, name, sheet, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tbl.ID, tbl.DocumentID, tbl.Name, tbl.Sheet, tbl.Note, tbl.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert logical table %s", tbl.Name)
	}
	return &tbl, nil
}

// factColumns is the COPY column order for atomic fact batches.
var factColumns = []string{"id", "table_id", "row_idx", "col_idx", "label", "period", "value", "unit", "currency", "source_ref", "created_at"}

func (s *PostgresStore) InsertFacts(ctx context.Context, tableID string, facts []model.CandidateFact) (int, error) {
	if len(facts) == 0 {
		return 0, eris.New("postgres: empty fact batch")
	}

	now := time.Now().UTC()
	var rows [][]any
	for _, f := range facts {
		if !f.Persistable() {
			continue
		}
		rows = append(rows, []any{
			uuid.New().String(), tableID, f.Row, f.Col, f.Label,
			f.Period, f.Value, f.Unit, f.Currency, f.SourceRef, now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin fact batch")
	}
	defer tx.Rollback(ctx)

	n, err := db.CopyInto(ctx, tx, "atomic_facts", factColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy fact batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit fact batch")
	}
	return int(n), nil
}

func (s *PostgresStore) FactsByLabel(ctx context.Context, dealID, label string) ([]model.LabeledFact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.period, f.value, f.unit
		 FROM atomic_facts f
		 JOIN logical_tables t ON f.table_id = t.id
		 JOIN documents d ON t.document_id = d.id
		 WHERE d.deal_id = $1 AND f.label = $2 AND f.period IS NOT NULL
		 ORDER BY f.period DESC`,
		dealID, label,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: facts by label %s", label)
	}
	defer rows.Close()

	var facts []model.LabeledFact
	for rows.Next() {
		var f model.LabeledFact
		if err := rows.Scan(&f.ID, &f.Period, &f.Value, &f.Unit); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: facts by label iterate")
}

func (s *PostgresStore) LabelsWithFacts(ctx context.Context, dealID string, limit int) ([]model.LabelCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT f.label, COUNT(*) AS n
		 FROM atomic_facts f
		 JOIN logical_tables t ON f.table_id = t.id
		 JOIN documents d ON t.document_id = d.id
		 WHERE d.deal_id = $1 AND f.period IS NOT NULL
		 GROUP BY f.label
		 ORDER BY n DESC, f.label
		 LIMIT $2`,
		dealID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: labels with facts")
	}
	defer rows.Close()

	var counts []model.LabelCount
	for rows.Next() {
		var lc model.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label count")
		}
		counts = append(counts, lc)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: labels with facts iterate")
}

func (s *PostgresStore) InsertChunks(ctx context.Context, documentID string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(chunks))
	for i, c := range chunks {
		rows = append(rows, []any{uuid.New().String(), documentID, i, c, now})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin chunk batch")
	}
	defer tx.Rollback(ctx)

	n, err := db.CopyInto(ctx, tx, "memo_chunks", []string{"id", "document_id", "seq", "content", "created_at"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy chunk batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit chunk batch")
	}
	return int(n), nil
}

// UpsertMetric atomically inserts the metric if absent and returns its
// id either way. Description extends on conflict but the name is the
// stable key.
func (s *PostgresStore) UpsertMetric(ctx context.Context, name, description string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO canonical_metrics (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		 RETURNING id`,
		uuid.New().String(), name, description, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert metric %s", name)
	}
	return id, nil
}

func (s *PostgresStore) InsertMetricValue(ctx context.Context, mv model.MetricValue) (*model.MetricValue, error) {
	mv.ID = uuid.New().String()
	mv.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO metric_values (id, metric_id, deal_id, as_of, value, unit, formula, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		mv.ID, mv.MetricID, mv.DealID, mv.AsOf, mv.Value, mv.Unit, mv.Formula, mv.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert metric value")
	}
	return &mv, nil
}

func (s *PostgresStore) InsertLineage(ctx context.Context, metricValueID string, factIDs []string) error {
	if len(factIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(factIDs))
	for _, fid := range factIDs {
		rows = append(rows, []any{uuid.New().String(), metricValueID, fid, now})
	}
	if _, err := db.CopyInto(ctx, s.pool, "lineage_edges", []string{"id", "metric_value_id", "fact_id", "created_at"}, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert lineage for %s", metricValueID)
	}
	return nil
}

func (s *PostgresStore) InsertGoldenFact(ctx context.Context, metricValueID string, status model.GoldenStatus, ttlUntil time.Time) (*model.GoldenFact, error) {
	gf := model.GoldenFact{
		ID:            uuid.New().String(),
		MetricValueID: metricValueID,
		Status:        status,
		TTLUntil:      ttlUntil,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO golden_facts (id, metric_value_id, status, ttl_until, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		gf.ID, gf.MetricValueID, string(gf.Status), gf.TTLUntil, gf.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert golden fact for %s", metricValueID)
	}
	return &gf, nil
}

// GoldenFacts returns approved, unexpired snapshots. Expiry is enforced
// here at read time; the status column is never swept.
func (s *PostgresStore) GoldenFacts(ctx context.Context, dealID string, names []string) ([]model.GoldenSnapshot, error) {
	query := `SELECT m.name, v.value, v.unit, v.as_of, v.formula, g.ttl_until
	          FROM golden_facts g
	          JOIN metric_values v ON g.metric_value_id = v.id
	          JOIN canonical_metrics m ON v.metric_id = m.id
	          WHERE v.deal_id = $1 AND g.status = 'approved' AND g.ttl_until > now()`
	args := []any{dealID}
	if len(names) > 0 {
		query += ` AND m.name = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY m.name, v.as_of DESC, g.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: golden facts")
	}
	defer rows.Close()

	var snaps []model.GoldenSnapshot
	for rows.Next() {
		var gs model.GoldenSnapshot
		if err := rows.Scan(&gs.MetricName, &gs.Value, &gs.Unit, &gs.AsOf, &gs.Formula, &gs.TTLUntil); err != nil {
			return nil, eris.Wrap(err, "postgres: scan golden fact")
		}
		snaps = append(snaps, gs)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: golden facts iterate")
}

func (s *PostgresStore) Lineage(ctx context.Context, dealID string, names []string) (map[string][]model.LineageFact, error) {
	query := `SELECT m.name, t.name, f.source_ref, f.label, f.period, f.value, f.unit
	          FROM metric_values v
	          JOIN canonical_metrics m ON v.metric_id = m.id
	          JOIN lineage_edges e ON e.metric_value_id = v.id
	          JOIN atomic_facts f ON e.fact_id = f.id
	          JOIN logical_tables t ON f.table_id = t.id
	          WHERE v.deal_id = $1`
	args := []any{dealID}
	if len(names) > 0 {
		query += ` AND m.name = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY m.name, f.period DESC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lineage")
	}
	defer rows.Close()

	lineage := make(map[string][]model.LineageFact)
	for rows.Next() {
		var name string
		var lf model.LineageFact
		if err := rows.Scan(&name, &lf.TableName, &lf.SourceRef, &lf.Label, &lf.Period, &lf.Value, &lf.Unit); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lineage fact")
		}
		lineage[name] = append(lineage[name], lf)
	}
	return lineage, eris.Wrap(rows.Err(), "postgres: lineage iterate")
}

var _ Store = (*PostgresStore)(nil)
