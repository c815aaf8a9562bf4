package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.Policy
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, retry: resilience.DefaultPolicy("sqlite")}, nil
}

// SetRetry replaces the retry policy for transient write failures.
func (s *SQLiteStore) SetRetry(p resilience.Policy) {
	p.Name = "sqlite"
	s.retry = p
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL,
	original_name     TEXT NOT NULL,
	storage_path      TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	platform          TEXT NOT NULL,
	report_type       TEXT NOT NULL,
	ingestion_context TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	row_count         INTEGER NOT NULL DEFAULT 0,
	stored_rows       INTEGER NOT NULL DEFAULT 0,
	validation_result TEXT,
	error             TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	processed_at      DATETIME
);

CREATE TABLE IF NOT EXISTS unified_metrics (
	id             TEXT PRIMARY KEY,
	workspace_id   TEXT NOT NULL,
	upload_id      TEXT NOT NULL REFERENCES uploads(id),
	row_number     INTEGER NOT NULL,
	date           TEXT NOT NULL,
	platform       TEXT NOT NULL,
	granularity    TEXT NOT NULL,
	metric_context TEXT NOT NULL,
	metrics        TEXT NOT NULL,
	dimensions     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS executive_snapshots (
	workspace_id TEXT NOT NULL,
	date         TEXT NOT NULL,
	revenue      REAL NOT NULL DEFAULT 0,
	ads_revenue  REAL NOT NULL DEFAULT 0,
	spend        REAL NOT NULL DEFAULT 0,
	orders       REAL NOT NULL DEFAULT 0,
	impressions  REAL NOT NULL DEFAULT 0,
	clicks       REAL NOT NULL DEFAULT 0,
	roas         REAL,
	cvr          REAL,
	ctr          REAL,
	aov          REAL,
	confidence   TEXT NOT NULL,
	fact_count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (workspace_id, date)
);

CREATE TABLE IF NOT EXISTS channel_snapshots (
	workspace_id TEXT NOT NULL,
	date         TEXT NOT NULL,
	platform     TEXT NOT NULL,
	revenue      REAL NOT NULL DEFAULT 0,
	ads_revenue  REAL NOT NULL DEFAULT 0,
	spend        REAL NOT NULL DEFAULT 0,
	orders       REAL NOT NULL DEFAULT 0,
	impressions  REAL NOT NULL DEFAULT 0,
	clicks       REAL NOT NULL DEFAULT 0,
	roas         REAL,
	cvr          REAL,
	ctr          REAL,
	aov          REAL,
	confidence   TEXT NOT NULL,
	fact_count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (workspace_id, date, platform)
);

CREATE INDEX IF NOT EXISTS idx_uploads_workspace ON uploads(workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_unified_metrics_workspace_date ON unified_metrics(workspace_id, date);
CREATE INDEX IF NOT EXISTS idx_unified_metrics_upload ON unified_metrics(upload_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUpload(ctx context.Context, u *model.Upload) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Status == "" {
		u.Status = model.UploadStatusPending
	}

	ctxJSON, err := json.Marshal(u.Context)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ingestion context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, workspace_id, original_name, storage_path, file_type, platform, report_type, ingestion_context, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.WorkspaceID, u.OriginalName, u.StoragePath, string(u.FileType),
		string(u.Platform), string(u.ReportType), string(ctxJSON), string(u.Status), u.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert upload")
	}
	return nil
}

const uploadSelect = `SELECT id, workspace_id, original_name, storage_path, file_type, platform, report_type,
	ingestion_context, status, row_count, stored_rows, validation_result, error, created_at, processed_at FROM uploads`

func (s *SQLiteStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	row := s.db.QueryRowContext(ctx, uploadSelect+` WHERE id = ?`, id)
	u, err := scanUpload(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: upload %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get upload %s", id)
	}
	return u, nil
}

func (s *SQLiteStore) ListUploads(ctx context.Context, workspaceID string, limit int) ([]model.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		uploadSelect+` WHERE workspace_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list uploads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan upload")
		}
		out = append(out, *u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate uploads")
}

func (s *SQLiteStore) UpdateUpload(ctx context.Context, id string, upd model.UploadUpdate) error {
	validation, err := marshalNullable(upd.Validation)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation")
	}
	return resilience.Do(ctx, s.retry, "update_upload", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE uploads SET status = ?, row_count = ?, stored_rows = ?, validation_result = ?, error = ?, processed_at = ? WHERE id = ?`,
			string(upd.Status), upd.RowCount, upd.StoredRows, validation, nullString(upd.Error), upd.ProcessedAt, id,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update upload %s", id)
		}
		return checkRowsAffected(res, "upload", id)
	})
}

func (s *SQLiteStore) InsertFacts(ctx context.Context, facts []model.UnifiedMetricFact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	rows, err := factRows(facts, func(t time.Time) any { return day(t).Format(dateLayout) }, jsonText)
	if err != nil {
		return 0, err
	}

	return resilience.DoVal(ctx, s.retry, "insert_facts", func(ctx context.Context) (int64, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: begin insert facts")
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO unified_metrics (`+strings.Join(factColumns, ", ")+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare insert facts")
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r...); err != nil {
				return 0, eris.Wrap(err, "sqlite: insert fact")
			}
		}
		if err := tx.Commit(); err != nil {
			return 0, eris.Wrap(err, "sqlite: commit insert facts")
		}
		return int64(len(rows)), nil
	})
}

func (s *SQLiteStore) DeleteFactsByUpload(ctx context.Context, uploadID string) (int64, error) {
	return resilience.DoVal(ctx, s.retry, "delete_facts_by_upload", func(ctx context.Context) (int64, error) {
		res, err := s.db.ExecContext(ctx, `DELETE FROM unified_metrics WHERE upload_id = ?`, uploadID)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: delete facts for upload %s", uploadID)
		}
		n, err := res.RowsAffected()
		return n, eris.Wrap(err, "sqlite: rows affected")
	})
}

func (s *SQLiteStore) ListFacts(ctx context.Context, filter FactFilter) ([]model.UnifiedMetricFact, error) {
	query := `SELECT ` + strings.Join(factColumns, ", ") + ` FROM unified_metrics WHERE workspace_id = ?`
	args := []any{filter.WorkspaceID}
	if filter.UploadID != "" {
		query += ` AND upload_id = ?`
		args = append(args, filter.UploadID)
	}
	if !filter.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, day(filter.Start).Format(dateLayout))
	}
	if !filter.End.IsZero() {
		query += ` AND date <= ?`
		args = append(args, day(filter.End).Format(dateLayout))
	}
	query += ` ORDER BY date, platform, upload_id, row_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.UnifiedMetricFact
	for rows.Next() {
		var f model.UnifiedMetricFact
		var date, ctxJSON, metricsJSON, dimsJSON string
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.UploadID, &f.RowNumber, &date, &f.Platform,
			&f.Granularity, &ctxJSON, &metricsJSON, &dimsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		if f.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse fact date %q", date)
		}
		if err := unmarshalFactJSON(&f, []byte(ctxJSON), []byte(metricsJSON), []byte(dimsJSON)); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate facts")
}

func (s *SQLiteStore) SaveSnapshots(ctx context.Context, scope SnapshotScope, exec []model.ExecutiveSnapshot, channel []model.ChannelSnapshot) error {
	return resilience.Do(ctx, s.retry, "save_snapshots", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin save snapshots")
		}
		defer tx.Rollback() //nolint:errcheck

		for _, table := range []string{"executive_snapshots", "channel_snapshots"} {
			q := `DELETE FROM ` + table + ` WHERE workspace_id = ?`
			args := []any{scope.WorkspaceID}
			if scope.Date != nil {
				q += ` AND date = ?`
				args = append(args, day(*scope.Date).Format(dateLayout))
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return eris.Wrapf(err, "sqlite: clear %s", table)
			}
		}

		for _, e := range exec {
			args := append([]any{e.WorkspaceID, day(e.Date).Format(dateLayout)}, metricValues(e.SnapshotMetrics)...)
			if _, err := tx.ExecContext(ctx, sqliteUpsert("executive_snapshots", []string{"workspace_id", "date"}), args...); err != nil {
				return eris.Wrap(err, "sqlite: upsert executive snapshot")
			}
		}
		for _, c := range channel {
			args := append([]any{c.WorkspaceID, day(c.Date).Format(dateLayout), string(c.Platform)}, metricValues(c.SnapshotMetrics)...)
			if _, err := tx.ExecContext(ctx, sqliteUpsert("channel_snapshots", []string{"workspace_id", "date", "platform"}), args...); err != nil {
				return eris.Wrap(err, "sqlite: upsert channel snapshot")
			}
		}

		return eris.Wrap(tx.Commit(), "sqlite: commit snapshots")
	})
}

// sqliteUpsert builds INSERT ... ON CONFLICT (keys) DO UPDATE for a snapshot table.
func sqliteUpsert(table string, keys []string) string {
	cols := append(append([]string{}, keys...), snapshotMetricColumns...)
	sets := make([]string, len(snapshotMetricColumns))
	for i, c := range snapshotMetricColumns {
		sets[i] = c + " = excluded." + c
	}
	return `INSERT INTO ` + table + ` (` + strings.Join(cols, ", ") + `) VALUES (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + `) ON CONFLICT (` +
		strings.Join(keys, ", ") + `) DO UPDATE SET ` + strings.Join(sets, ", ")
}

func (s *SQLiteStore) ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, date, `+strings.Join(snapshotMetricColumns, ", ")+`
		 FROM executive_snapshots WHERE workspace_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		workspaceID, day(start).Format(dateLayout), day(end).Format(dateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list executive snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExecutiveSnapshot
	for rows.Next() {
		var e model.ExecutiveSnapshot
		var date string
		dest := append([]any{&e.WorkspaceID, &date}, metricDest(&e.SnapshotMetrics)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan executive snapshot")
		}
		if e.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate executive snapshots")
}

func (s *SQLiteStore) ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, date, platform, `+strings.Join(snapshotMetricColumns, ", ")+`
		 FROM channel_snapshots WHERE workspace_id = ? AND date >= ? AND date <= ? ORDER BY date, platform`,
		workspaceID, day(start).Format(dateLayout), day(end).Format(dateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list channel snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ChannelSnapshot
	for rows.Next() {
		var c model.ChannelSnapshot
		var date string
		dest := append([]any{&c.WorkspaceID, &date, &c.Platform}, metricDest(&c.SnapshotMetrics)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan channel snapshot")
		}
		if c.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate channel snapshots")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUpload(row scannable) (*model.Upload, error) {
	var u model.Upload
	var ctxJSON string
	var validation, errMsg sql.NullString
	var processedAt sql.NullTime

	if err := row.Scan(&u.ID, &u.WorkspaceID, &u.OriginalName, &u.StoragePath, &u.FileType, &u.Platform,
		&u.ReportType, &ctxJSON, &u.Status, &u.RowCount, &u.StoredRows, &validation, &errMsg,
		&u.CreatedAt, &processedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ctxJSON), &u.Context); err != nil {
		return nil, eris.Wrap(err, "unmarshal ingestion context")
	}
	if validation.Valid {
		u.Validation = &model.ValidationResult{}
		if err := json.Unmarshal([]byte(validation.String), u.Validation); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation result")
		}
	}
	u.Error = errMsg.String
	if processedAt.Valid {
		t := processedAt.Time
		u.ProcessedAt = &t
	}
	return &u, nil
}

// metricDest returns scan destinations matching snapshotMetricColumns.
func metricDest(m *model.SnapshotMetrics) []any {
	return []any{
		&m.Revenue, &m.AdsRevenue, &m.Spend, &m.Orders, &m.Impressions, &m.Clicks,
		&m.ROAS, &m.CVR, &m.CTR, &m.AOV, &m.Confidence, &m.FactCount,
	}
}

func marshalNullable(v *model.ValidationResult) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonText(b []byte) any { return string(b) }
