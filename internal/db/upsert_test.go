package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotCfg = UpsertConfig{
	Table:        "executive_snapshots",
	Columns:      []string{"workspace_id", "date", "revenue", "confidence"},
	ConflictKeys: []string{"workspace_id", "date"},
}

func TestBulkUpsertTx_EmptyRows(t *testing.T) {
	n, err := BulkUpsertTx(context.TODO(), nil, snapshotCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsertTx_NoColumns(t *testing.T) {
	_, err := BulkUpsertTx(context.TODO(), nil, UpsertConfig{
		Table:        "executive_snapshots",
		ConflictKeys: []string{"workspace_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsertTx_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsertTx(context.TODO(), nil, UpsertConfig{
		Table:   "executive_snapshots",
		Columns: []string{"workspace_id", "date"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsertTx_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_executive_snapshots"}, snapshotCfg.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	rows := [][]any{{"ws", "2024-01-01", 10.0, "high"}, {"ws", "2024-01-02", 20.0, "low"}}
	n, err := BulkUpsertTx(ctx, tx, snapshotCfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertTx_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_executive_snapshots"}, snapshotCfg.Columns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	_, err = BulkUpsertTx(ctx, tx, snapshotCfg, [][]any{{"ws", "2024-01-01", 1.0, "high"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp table for executive_snapshots")
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(snapshotCfg, tempTableName(snapshotCfg.Table))
	assert.Equal(t,
		`INSERT INTO "executive_snapshots" ("workspace_id", "date", "revenue", "confidence") `+
			`SELECT "workspace_id", "date", "revenue", "confidence" FROM "_tmp_upsert_executive_snapshots" `+
			`ON CONFLICT ("workspace_id", "date") DO UPDATE SET "revenue" = EXCLUDED."revenue", "confidence" = EXCLUDED."confidence"`,
		got)

	keysOnly := UpsertConfig{Table: "t", Columns: []string{"a"}, ConflictKeys: []string{"a"}}
	assert.Contains(t, upsertSQL(keysOnly, "tmp"), "DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"analytics.executive_snapshots", `"analytics"."executive_snapshots"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
