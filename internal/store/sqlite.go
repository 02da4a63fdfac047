package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local use
// and tests where a Postgres instance is unavailable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	deal_id      TEXT NOT NULL,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	version      TEXT,
	content_hash TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	UNIQUE (deal_id, content_hash)
);

CREATE TABLE IF NOT EXISTS logical_tables (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	name        TEXT NOT NULL,
	sheet       TEXT,
	note        TEXT,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS atomic_facts (
	id         TEXT PRIMARY KEY,
	table_id   TEXT NOT NULL REFERENCES logical_tables(id),
	row_idx    INTEGER NOT NULL,
	col_idx    INTEGER NOT NULL,
	label      TEXT NOT NULL,
	period     TEXT,
	value      REAL,
	unit       TEXT,
	currency   TEXT,
	source_ref TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS memo_chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	seq         INTEGER NOT NULL,
	content     TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS canonical_metrics (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metric_values (
	id         TEXT PRIMARY KEY,
	metric_id  TEXT NOT NULL REFERENCES canonical_metrics(id),
	deal_id    TEXT NOT NULL,
	as_of      TEXT NOT NULL,
	value      REAL NOT NULL,
	unit       TEXT,
	formula    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lineage_edges (
	id              TEXT PRIMARY KEY,
	metric_value_id TEXT NOT NULL REFERENCES metric_values(id),
	fact_id         TEXT NOT NULL REFERENCES atomic_facts(id),
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS golden_facts (
	id              TEXT PRIMARY KEY,
	metric_value_id TEXT NOT NULL REFERENCES metric_values(id),
	status          TEXT NOT NULL DEFAULT 'draft',
	ttl_until       DATETIME NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_deal ON documents(deal_id);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_table ON atomic_facts(table_id);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_label_period ON atomic_facts(label, period DESC);
CREATE INDEX IF NOT EXISTS idx_metric_values_deal ON metric_values(deal_id);
CREATE INDEX IF NOT EXISTS idx_lineage_edges_value ON lineage_edges(metric_value_id);
CREATE INDEX IF NOT EXISTS idx_golden_facts_value ON golden_facts(metric_value_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, deal_id, name, kind, version, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DealID, doc.Name, string(doc.Kind), doc.Version, doc.ContentHash, doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert document %s", doc.Name)
	}
	return &doc, nil
}

func (s *SQLiteStore) FindDocumentByHash(ctx context.Context, dealID, contentHash string) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, deal_id, name, kind, version, content_hash, created_at
		 FROM documents WHERE deal_id = ? AND content_hash = ?`,
		dealID, contentHash,
	).Scan(&d.ID, &d.DealID, &d.Name, &d.Kind, &d.Version, &d.ContentHash, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find document by hash")
	}
	return &d, nil
}

func (s *SQLiteStore) CreateTable(ctx context.Context, tbl model.LogicalTable) (*model.LogicalTable, error) {
	tbl.ID = uuid.New().String()
	tbl.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logical_tables (id, document_id, name, sheet, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tbl.ID, tbl.DocumentID, tbl.Name, tbl.Sheet, tbl.Note, tbl.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert logical table %s", tbl.Name)
	}
	return &tbl, nil
}

func (s *SQLiteStore) InsertFacts(ctx context.Context, tableID string, facts []model.CandidateFact) (int, error) {
	if len(facts) == 0 {
		return 0, eris.New("sqlite: empty fact batch")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin fact batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO atomic_facts (id, table_id, row_idx, col_idx, label, period, value, unit, currency, source_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare fact insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	written := 0
	for _, f := range facts {
		if !f.Persistable() {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), tableID, f.Row, f.Col, f.Label,
			f.Period, f.Value, f.Unit, f.Currency, f.SourceRef, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert fact %s", f.SourceRef)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit fact batch")
	}
	return written, nil
}

func (s *SQLiteStore) FactsByLabel(ctx context.Context, dealID, label string) ([]model.LabeledFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.period, f.value, f.unit
		 FROM atomic_facts f
		 JOIN logical_tables t ON f.table_id = t.id
		 JOIN documents d ON t.document_id = d.id
		 WHERE d.deal_id = ? AND f.label = ? AND f.period IS NOT NULL
		 ORDER BY f.period DESC`,
		dealID, label,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: facts by label %s", label)
	}
	defer rows.Close()

	var facts []model.LabeledFact
	for rows.Next() {
		var f model.LabeledFact
		if err := rows.Scan(&f.ID, &f.Period, &f.Value, &f.Unit); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: facts by label iterate")
}

func (s *SQLiteStore) LabelsWithFacts(ctx context.Context, dealID string, limit int) ([]model.LabelCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.label, COUNT(*) AS n
		 FROM atomic_facts f
		 JOIN logical_tables t ON f.table_id = t.id
		 JOIN documents d ON t.document_id = d.id
		 WHERE d.deal_id = ? AND f.period IS NOT NULL
		 GROUP BY f.label
		 ORDER BY n DESC, f.label
		 LIMIT ?`,
		dealID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: labels with facts")
	}
	defer rows.Close()

	var counts []model.LabelCount
	for rows.Next() {
		var lc model.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label count")
		}
		counts = append(counts, lc)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: labels with facts iterate")
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, documentID string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin chunk batch")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memo_chunks (id, document_id, seq, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), documentID, i, c, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert chunk %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit chunk batch")
	}
	return len(chunks), nil
}

func (s *SQLiteStore) UpsertMetric(ctx context.Context, name, description string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO canonical_metrics (id, name, description, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET description = excluded.description
		 RETURNING id`,
		uuid.New().String(), name, description, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert metric %s", name)
	}
	return id, nil
}

func (s *SQLiteStore) InsertMetricValue(ctx context.Context, mv model.MetricValue) (*model.MetricValue, error) {
	mv.ID = uuid.New().String()
	mv.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metric_values (id, metric_id, deal_id, as_of, value, unit, formula, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.MetricID, mv.DealID, mv.AsOf, mv.Value, mv.Unit, mv.Formula, mv.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert metric value")
	}
	return &mv, nil
}

func (s *SQLiteStore) InsertLineage(ctx context.Context, metricValueID string, factIDs []string) error {
	if len(factIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin lineage batch")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, fid := range factIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lineage_edges (id, metric_value_id, fact_id, created_at) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), metricValueID, fid, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert lineage edge for %s", metricValueID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit lineage batch")
}

func (s *SQLiteStore) InsertGoldenFact(ctx context.Context, metricValueID string, status model.GoldenStatus, ttlUntil time.Time) (*model.GoldenFact, error) {
	gf := model.GoldenFact{
		ID:            uuid.New().String(),
		MetricValueID: metricValueID,
		Status:        status,
		TTLUntil:      ttlUntil.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO golden_facts (id, metric_value_id, status, ttl_until, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		gf.ID, gf.MetricValueID, string(gf.Status), gf.TTLUntil, gf.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert golden fact for %s", metricValueID)
	}
	return &gf, nil
}

func (s *SQLiteStore) GoldenFacts(ctx context.Context, dealID string, names []string) ([]model.GoldenSnapshot, error) {
	query := `SELECT m.name, v.value, v.unit, v.as_of, v.formula, g.ttl_until
	          FROM golden_facts g
	          JOIN metric_values v ON g.metric_value_id = v.id
	          JOIN canonical_metrics m ON v.metric_id = m.id
	          WHERE v.deal_id = ? AND g.status = 'approved' AND g.ttl_until > ?`
	args := []any{dealID, time.Now().UTC()}
	if len(names) > 0 {
		query += ` AND m.name IN (` + placeholders(len(names)) + `)`
		for _, n := range names {
			args = append(args, n)
		}
	}
	query += ` ORDER BY m.name, v.as_of DESC, g.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: golden facts")
	}
	defer rows.Close()

	var snaps []model.GoldenSnapshot
	for rows.Next() {
		var gs model.GoldenSnapshot
		if err := rows.Scan(&gs.MetricName, &gs.Value, &gs.Unit, &gs.AsOf, &gs.Formula, &gs.TTLUntil); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan golden fact")
		}
		snaps = append(snaps, gs)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: golden facts iterate")
}

func (s *SQLiteStore) Lineage(ctx context.Context, dealID string, names []string) (map[string][]model.LineageFact, error) {
	query := `SELECT m.name, t.name, f.source_ref, f.label, f.period, f.value, f.unit
	          FROM metric_values v
	          JOIN canonical_metrics m ON v.metric_id = m.id
	          JOIN lineage_edges e ON e.metric_value_id = v.id
	          JOIN atomic_facts f ON e.fact_id = f.id
	          JOIN logical_tables t ON f.table_id = t.id
	          WHERE v.deal_id = ?`
	args := []any{dealID}
	if len(names) > 0 {
		query += ` AND m.name IN (` + placeholders(len(names)) + `)`
		for _, n := range names {
			args = append(args, n)
		}
	}
	query += ` ORDER BY m.name, f.period DESC NULLS LAST`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lineage")
	}
	defer rows.Close()

	lineage := make(map[string][]model.LineageFact)
	for rows.Next() {
		var name string
		var lf model.LineageFact
		if err := rows.Scan(&name, &lf.TableName, &lf.SourceRef, &lf.Label, &lf.Period, &lf.Value, &lf.Unit); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lineage fact")
		}
		lineage[name] = append(lineage[name], lf)
	}
	return lineage, eris.Wrap(rows.Err(), "sqlite: lineage iterate")
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ Store = (*SQLiteStore)(nil)
