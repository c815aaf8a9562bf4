package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/db"
	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.Policy
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Hot-path statements, prepared by name on each new pool connection.
const (
	stmtGetUpload         = "get_upload"
	stmtDeleteUploadFacts = "delete_upload_facts"
)

var preparedStatements = map[string]string{
	stmtGetUpload:         pgUploadSelect + ` WHERE id = $1`,
	stmtDeleteUploadFacts: `DELETE FROM unified_metrics WHERE upload_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn, retry: resilience.DefaultPolicy("postgres")}
}

// SetRetry replaces the retry policy for transient write failures.
func (s *PostgresStore) SetRetry(p resilience.Policy) {
	p.Name = "postgres"
	s.retry = p
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL,
	original_name     TEXT NOT NULL,
	storage_path      TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	platform          TEXT NOT NULL,
	report_type       TEXT NOT NULL,
	ingestion_context JSONB NOT NULL,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	row_count         INTEGER NOT NULL DEFAULT 0,
	stored_rows       INTEGER NOT NULL DEFAULT 0,
	validation_result JSONB,
	error             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS unified_metrics (
	id             TEXT PRIMARY KEY,
	workspace_id   TEXT NOT NULL,
	upload_id      TEXT NOT NULL REFERENCES uploads(id),
	row_number     INTEGER NOT NULL,
	date           DATE NOT NULL,
	platform       TEXT NOT NULL,
	granularity    TEXT NOT NULL,
	metric_context JSONB NOT NULL,
	metrics        JSONB NOT NULL,
	dimensions     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS executive_snapshots (
	workspace_id TEXT NOT NULL,
	date         DATE NOT NULL,
	revenue      DOUBLE PRECISION NOT NULL DEFAULT 0,
	ads_revenue  DOUBLE PRECISION NOT NULL DEFAULT 0,
	spend        DOUBLE PRECISION NOT NULL DEFAULT 0,
	orders       DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions  DOUBLE PRECISION NOT NULL DEFAULT 0,
	clicks       DOUBLE PRECISION NOT NULL DEFAULT 0,
	roas         DOUBLE PRECISION,
	cvr          DOUBLE PRECISION,
	ctr          DOUBLE PRECISION,
	aov          DOUBLE PRECISION,
	confidence   TEXT NOT NULL,
	fact_count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (workspace_id, date)
);

CREATE TABLE IF NOT EXISTS channel_snapshots (
	workspace_id TEXT NOT NULL,
	date         DATE NOT NULL,
	platform     TEXT NOT NULL,
	revenue      DOUBLE PRECISION NOT NULL DEFAULT 0,
	ads_revenue  DOUBLE PRECISION NOT NULL DEFAULT 0,
	spend        DOUBLE PRECISION NOT NULL DEFAULT 0,
	orders       DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions  DOUBLE PRECISION NOT NULL DEFAULT 0,
	clicks       DOUBLE PRECISION NOT NULL DEFAULT 0,
	roas         DOUBLE PRECISION,
	cvr          DOUBLE PRECISION,
	ctr          DOUBLE PRECISION,
	aov          DOUBLE PRECISION,
	confidence   TEXT NOT NULL,
	fact_count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (workspace_id, date, platform)
);

CREATE INDEX IF NOT EXISTS idx_uploads_workspace ON uploads(workspace_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_unified_metrics_workspace_date ON unified_metrics(workspace_id, date);
CREATE INDEX IF NOT EXISTS idx_unified_metrics_upload ON unified_metrics(upload_id);
`

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

func (s *PostgresStore) CreateUpload(ctx context.Context, u *model.Upload) error {
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
		return eris.Wrap(err, "postgres: marshal ingestion context")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO uploads (id, workspace_id, original_name, storage_path, file_type, platform, report_type, ingestion_context, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.WorkspaceID, u.OriginalName, u.StoragePath, string(u.FileType),
		string(u.Platform), string(u.ReportType), ctxJSON, string(u.Status), u.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert upload")
	}
	return nil
}

const pgUploadSelect = `SELECT id, workspace_id, original_name, storage_path, file_type, platform, report_type, ingestion_context, status, row_count, stored_rows, validation_result, error, created_at, processed_at FROM uploads`

func (s *PostgresStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	u, err := scanPgUpload(s.pool.QueryRow(ctx, stmtGetUpload, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: upload %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get upload %s", id)
	}
	return u, nil
}

func (s *PostgresStore) ListUploads(ctx context.Context, workspaceID string, limit int) ([]model.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		pgUploadSelect+` WHERE workspace_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list uploads")
	}
	defer rows.Close()

	var out []model.Upload
	for rows.Next() {
		u, err := scanPgUpload(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan upload")
		}
		out = append(out, *u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate uploads")
}

func (s *PostgresStore) UpdateUpload(ctx context.Context, id string, upd model.UploadUpdate) error {
	var validation []byte
	if upd.Validation != nil {
		var err error
		if validation, err = json.Marshal(upd.Validation); err != nil {
			return eris.Wrap(err, "postgres: marshal validation")
		}
	}

	return resilience.Do(ctx, s.retry, "update_upload", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE uploads SET status = $1, row_count = $2, stored_rows = $3, validation_result = $4, error = $5, processed_at = $6 WHERE id = $7`,
			string(upd.Status), upd.RowCount, upd.StoredRows, validation, nullString(upd.Error), upd.ProcessedAt, id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update upload %s", id)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "upload %s", id)
		}
		return nil
	})
}

func (s *PostgresStore) InsertFacts(ctx context.Context, facts []model.UnifiedMetricFact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	rows, err := factRows(facts, func(t time.Time) any { return day(t) }, func(b []byte) any { return b })
	if err != nil {
		return 0, err
	}
	return resilience.DoVal(ctx, s.retry, "insert_facts", func(ctx context.Context) (int64, error) {
		return db.CopyFrom(ctx, s.pool, "unified_metrics", factColumns, rows)
	})
}

func (s *PostgresStore) DeleteFactsByUpload(ctx context.Context, uploadID string) (int64, error) {
	return resilience.DoVal(ctx, s.retry, "delete_facts_by_upload", func(ctx context.Context) (int64, error) {
		tag, err := s.pool.Exec(ctx, stmtDeleteUploadFacts, uploadID)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: delete facts for upload %s", uploadID)
		}
		return tag.RowsAffected(), nil
	})
}

func (s *PostgresStore) ListFacts(ctx context.Context, filter FactFilter) ([]model.UnifiedMetricFact, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + strings.Join(factColumns, ", ") + ` FROM unified_metrics WHERE workspace_id = $1`)
	args := []any{filter.WorkspaceID}
	if filter.UploadID != "" {
		args = append(args, filter.UploadID)
		fmt.Fprintf(&b, ` AND upload_id = $%d`, len(args))
	}
	if !filter.Start.IsZero() {
		args = append(args, day(filter.Start))
		fmt.Fprintf(&b, ` AND date >= $%d`, len(args))
	}
	if !filter.End.IsZero() {
		args = append(args, day(filter.End))
		fmt.Fprintf(&b, ` AND date <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY date, platform, upload_id, row_number`)

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	var out []model.UnifiedMetricFact
	for rows.Next() {
		var f model.UnifiedMetricFact
		var platform, granularity string
		var ctxJSON, metricsJSON, dimsJSON []byte
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.UploadID, &f.RowNumber, &f.Date, &platform,
			&granularity, &ctxJSON, &metricsJSON, &dimsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		f.Platform, f.Granularity = model.Platform(platform), model.Granularity(granularity)
		f.Date = day(f.Date)
		if err := unmarshalFactJSON(&f, ctxJSON, metricsJSON, dimsJSON); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate facts")
}

var (
	execUpsert = db.UpsertConfig{
		Table:        "executive_snapshots",
		Columns:      append([]string{"workspace_id", "date"}, snapshotMetricColumns...),
		ConflictKeys: []string{"workspace_id", "date"},
	}
	channelUpsert = db.UpsertConfig{
		Table:        "channel_snapshots",
		Columns:      append([]string{"workspace_id", "date", "platform"}, snapshotMetricColumns...),
		ConflictKeys: []string{"workspace_id", "date", "platform"},
	}
)

func (s *PostgresStore) SaveSnapshots(ctx context.Context, scope SnapshotScope, exec []model.ExecutiveSnapshot, channel []model.ChannelSnapshot) error {
	execRows := make([][]any, len(exec))
	for i, e := range exec {
		execRows[i] = append([]any{e.WorkspaceID, day(e.Date)}, metricValues(e.SnapshotMetrics)...)
	}
	channelRows := make([][]any, len(channel))
	for i, c := range channel {
		channelRows[i] = append([]any{c.WorkspaceID, day(c.Date), string(c.Platform)}, metricValues(c.SnapshotMetrics)...)
	}

	return resilience.Do(ctx, s.retry, "save_snapshots", func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return eris.Wrap(err, "postgres: begin save snapshots")
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		for _, table := range []string{"executive_snapshots", "channel_snapshots"} {
			q := `DELETE FROM ` + table + ` WHERE workspace_id = $1`
			args := []any{scope.WorkspaceID}
			if scope.Date != nil {
				q += ` AND date = $2`
				args = append(args, day(*scope.Date))
			}
			if _, err := tx.Exec(ctx, q, args...); err != nil {
				return eris.Wrapf(err, "postgres: clear %s", table)
			}
		}

		if _, err := db.BulkUpsertTx(ctx, tx, execUpsert, execRows); err != nil {
			return err
		}
		if _, err := db.BulkUpsertTx(ctx, tx, channelUpsert, channelRows); err != nil {
			return err
		}
		return eris.Wrap(tx.Commit(ctx), "postgres: commit snapshots")
	})
}

func (s *PostgresStore) ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT workspace_id, date, `+strings.Join(snapshotMetricColumns, ", ")+`
		 FROM executive_snapshots WHERE workspace_id = $1 AND date >= $2 AND date <= $3 ORDER BY date`,
		workspaceID, day(start), day(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executive snapshots")
	}
	defer rows.Close()

	var out []model.ExecutiveSnapshot
	for rows.Next() {
		var e model.ExecutiveSnapshot
		var confidence string
		dest := append([]any{&e.WorkspaceID, &e.Date}, pgMetricDest(&e.SnapshotMetrics, &confidence)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan executive snapshot")
		}
		e.Confidence = model.ParseConfidence(confidence)
		e.Date = day(e.Date)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate executive snapshots")
}

func (s *PostgresStore) ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT workspace_id, date, platform, `+strings.Join(snapshotMetricColumns, ", ")+`
		 FROM channel_snapshots WHERE workspace_id = $1 AND date >= $2 AND date <= $3 ORDER BY date, platform`,
		workspaceID, day(start), day(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list channel snapshots")
	}
	defer rows.Close()

	var out []model.ChannelSnapshot
	for rows.Next() {
		var c model.ChannelSnapshot
		var platform, confidence string
		dest := append([]any{&c.WorkspaceID, &c.Date, &platform}, pgMetricDest(&c.SnapshotMetrics, &confidence)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan channel snapshot")
		}
		c.Platform = model.Platform(platform)
		c.Confidence = model.ParseConfidence(confidence)
		c.Date = day(c.Date)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate channel snapshots")
}

func pgMetricDest(m *model.SnapshotMetrics, confidence *string) []any {
	return []any{
		&m.Revenue, &m.AdsRevenue, &m.Spend, &m.Orders, &m.Impressions, &m.Clicks,
		&m.ROAS, &m.CVR, &m.CTR, &m.AOV, confidence, &m.FactCount,
	}
}

func scanPgUpload(row pgx.Row) (*model.Upload, error) {
	var u model.Upload
	var fileType, platform, reportType, status string
	var ctxJSON, validation []byte
	var errMsg *string

	if err := row.Scan(&u.ID, &u.WorkspaceID, &u.OriginalName, &u.StoragePath, &fileType, &platform,
		&reportType, &ctxJSON, &status, &u.RowCount, &u.StoredRows, &validation, &errMsg,
		&u.CreatedAt, &u.ProcessedAt); err != nil {
		return nil, err
	}
	u.FileType = model.FileType(fileType)
	u.Platform = model.Platform(platform)
	u.ReportType = model.ReportType(reportType)
	u.Status = model.UploadStatus(status)
	if err := json.Unmarshal(ctxJSON, &u.Context); err != nil {
		return nil, eris.Wrap(err, "unmarshal ingestion context")
	}
	if len(validation) > 0 {
		u.Validation = &model.ValidationResult{}
		if err := json.Unmarshal(validation, u.Validation); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation result")
		}
	}
	if errMsg != nil {
		u.Error = *errMsg
	}
	return &u, nil
}
