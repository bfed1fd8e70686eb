package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/db"
	"github.com/sells-group/dealdesk/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	zap.L().Debug("postgres: pool ready", zap.Int32("max_conns", maxConns), zap.Int32("min_conns", minConns))
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	breakdown  JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notice_statuses (
	property_id    TEXT NOT NULL,
	milestone_type TEXT NOT NULL,
	completed      BOOLEAN NOT NULL DEFAULT false,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (property_id, milestone_type)
);

CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
`

var noticeStatusUpsert = db.UpsertConfig{
	Table:        "notice_statuses",
	Columns:      []string{"property_id", "milestone_type", "completed", "updated_at"},
	ConflictKeys: []string{"property_id", "milestone_type"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
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

func (s *PostgresStore) SaveDeal(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	assignID(&deal)
	data, err := encodeDeal(deal)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deals (id, name, data, breakdown, created_at, updated_at) VALUES ($1, $2, $3, NULL, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data,
		 breakdown = NULL, updated_at = EXCLUDED.updated_at`,
		deal.ID, deal.Name, data, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save deal %s", deal.ID)
	}
	return &deal, nil
}

func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM deals WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: deal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", id)
	}
	return decodeDeal(id, data)
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	sched := d.Schedule()
	return &sched, nil
}

func (s *PostgresStore) ListDealIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM deals ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deals")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list deals iterate")
}

func (s *PostgresStore) SaveBreakdown(ctx context.Context, dealID string, b model.Breakdown) error {
	data, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE deals SET breakdown = $1 WHERE id = $2`, data, dealID)
	if err != nil {
		return eris.Wrapf(err, "postgres: save breakdown %s", dealID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: deal %s", dealID)
	}
	return nil
}

func (s *PostgresStore) GetBreakdown(ctx context.Context, dealID string) (*model.Breakdown, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT breakdown FROM deals WHERE id = $1`, dealID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && data == nil) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: breakdown %s", dealID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get breakdown %s", dealID)
	}
	return decodeBreakdown(dealID, data)
}

func (s *PostgresStore) ListStatuses(ctx context.Context, propertyIDs []string) ([]model.NoticeStatus, error) {
	out := []model.NoticeStatus{}
	if len(propertyIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT property_id, milestone_type, completed, updated_at FROM notice_statuses
		 WHERE property_id = ANY($1) ORDER BY property_id, milestone_type`,
		propertyIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notice statuses")
	}
	defer rows.Close()

	for rows.Next() {
		var st model.NoticeStatus
		var typ string
		if err := rows.Scan(&st.PropertyID, &typ, &st.Completed, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notice status")
		}
		st.Type = model.MilestoneType(typ)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list notice statuses iterate")
}

func (s *PostgresStore) UpsertNoticeStatus(ctx context.Context, status model.NoticeStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	updated := status.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notice_statuses (property_id, milestone_type, completed, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (property_id, milestone_type) DO UPDATE SET
		 completed = EXCLUDED.completed, updated_at = EXCLUDED.updated_at`,
		status.PropertyID, string(status.Type), status.Completed, updated,
	)
	return eris.Wrapf(err, "postgres: upsert notice status %s/%s", status.PropertyID, status.Type)
}

// UpsertNoticeStatuses writes a batch through COPY. Duplicate keys in the
// batch collapse to the last entry.
func (s *PostgresStore) UpsertNoticeStatuses(ctx context.Context, statuses []model.NoticeStatus) error {
	switch len(statuses) {
	case 0:
		return nil
	case 1:
		return s.UpsertNoticeStatus(ctx, statuses[0])
	}

	now := time.Now().UTC()
	deduped := dedupeStatuses(statuses)
	rows := make([][]any, 0, len(deduped))
	for _, st := range deduped {
		if err := validateStatus(st); err != nil {
			return err
		}
		updated := st.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		rows = append(rows, []any{st.PropertyID, string(st.Type), st.Completed, updated})
	}

	n, err := db.BulkUpsert(ctx, s.pool, noticeStatusUpsert, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert notice statuses")
	}
	zap.L().Debug("postgres: notice statuses upserted", zap.Int64("rows", n))
	return nil
}
