package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	breakdown  TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS notice_statuses (
	property_id    TEXT NOT NULL,
	milestone_type TEXT NOT NULL,
	completed      INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (property_id, milestone_type)
);

CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDeal(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	assignID(&deal)
	data, err := encodeDeal(deal)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deals (id, name, data, breakdown, created_at, updated_at) VALUES (?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, data = excluded.data,
		 breakdown = NULL, updated_at = excluded.updated_at`,
		deal.ID, deal.Name, string(data), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save deal %s", deal.ID)
	}
	return &deal, nil
}

func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM deals WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: deal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", id)
	}
	return decodeDeal(id, []byte(data))
}

func (s *SQLiteStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	sched := d.Schedule()
	return &sched, nil
}

func (s *SQLiteStore) ListDealIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM deals ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deals")
	}
	defer rows.Close() //nolint:errcheck

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deal id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list deals iterate")
}

func (s *SQLiteStore) SaveBreakdown(ctx context.Context, dealID string, b model.Breakdown) error {
	data, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE deals SET breakdown = ? WHERE id = ?`, string(data), dealID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save breakdown %s", dealID)
	}
	return checkRowsAffected(res, "deal", dealID)
}

func (s *SQLiteStore) GetBreakdown(ctx context.Context, dealID string) (*model.Breakdown, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT breakdown FROM deals WHERE id = ?`, dealID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: breakdown %s", dealID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get breakdown %s", dealID)
	}
	return decodeBreakdown(dealID, []byte(data.String))
}

func (s *SQLiteStore) ListStatuses(ctx context.Context, propertyIDs []string) ([]model.NoticeStatus, error) {
	out := []model.NoticeStatus{}
	if len(propertyIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(propertyIDs)), ", ")
	args := make([]any, len(propertyIDs))
	for i, id := range propertyIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT property_id, milestone_type, completed, updated_at FROM notice_statuses
		 WHERE property_id IN (`+placeholders+`) ORDER BY property_id, milestone_type`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notice statuses")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var st model.NoticeStatus
		var typ string
		if err := rows.Scan(&st.PropertyID, &typ, &st.Completed, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notice status")
		}
		st.Type = model.MilestoneType(typ)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list notice statuses iterate")
}

func (s *SQLiteStore) UpsertNoticeStatus(ctx context.Context, status model.NoticeStatus) error {
	return s.UpsertNoticeStatuses(ctx, []model.NoticeStatus{status})
}

func (s *SQLiteStore) UpsertNoticeStatuses(ctx context.Context, statuses []model.NoticeStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	for _, st := range statuses {
		if err := validateStatus(st); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin notice status tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, st := range dedupeStatuses(statuses) {
		updated := st.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notice_statuses (property_id, milestone_type, completed, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (property_id, milestone_type) DO UPDATE SET
			 completed = excluded.completed, updated_at = excluded.updated_at`,
			st.PropertyID, string(st.Type), st.Completed, updated.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert notice status %s/%s", st.PropertyID, st.Type)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit notice statuses")
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
