package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "notice_statuses",
		Columns:      []string{"property_id", "milestone_type", "completed", "updated_at"},
		ConflictKeys: []string{"property_id", "milestone_type"},
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, statusUpsert(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "notice_statuses",
		ConflictKeys: []string{"property_id"},
	}, [][]any{{"p", "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "notice_statuses",
		Columns: []string{"property_id", "completed"},
	}, [][]any{{"p", true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cfg := statusUpsert()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_notice_statuses" \(LIKE "notice_statuses"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_notice_statuses"}, cfg.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "notice_statuses" .* ON CONFLICT \("property_id", "milestone_type"\) DO UPDATE SET "completed" = EXCLUDED."completed", "updated_at" = EXCLUDED."updated_at"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"p1", "deposit-received", true, nil},
		{"p1", "loan-application", true, nil},
	}
	n, err := BulkUpsert(context.Background(), mock, cfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cfg := statusUpsert()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_notice_statuses"}, cfg.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, cfg, [][]any{{"p1", "deposit-received", true, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into temp table for notice_statuses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	_, err = BulkUpsert(context.Background(), mock, statusUpsert(), [][]any{{"p1", "x", true, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestUpsertConfig_InsertSQL(t *testing.T) {
	t.Run("explicit update columns", func(t *testing.T) {
		cfg := statusUpsert()
		cfg.UpdateCols = []string{"completed"}
		assert.Equal(t,
			`INSERT INTO "notice_statuses" ("property_id", "milestone_type", "completed", "updated_at") `+
				`SELECT "property_id", "milestone_type", "completed", "updated_at" FROM "_tmp_upsert_notice_statuses" `+
				`ON CONFLICT ("property_id", "milestone_type") DO UPDATE SET "completed" = EXCLUDED."completed"`,
			cfg.insertSQL())
	})

	t.Run("keys only", func(t *testing.T) {
		cfg := UpsertConfig{Table: "app.tags", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
		assert.Equal(t,
			`INSERT INTO "app"."tags" ("id") SELECT "id" FROM "_tmp_upsert_app_tags" ON CONFLICT ("id") DO NOTHING`,
			cfg.insertSQL())
	})
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"deals", `"deals"`},
		{"dealdesk.notice_statuses", `"dealdesk"."notice_statuses"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"property_id", "milestone_type"`, quoteAndJoin([]string{"property_id", "milestone_type"}))
}
