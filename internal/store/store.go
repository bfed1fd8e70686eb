package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

// ErrNotFound is returned when a deal or cached breakdown does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for deals and milestone notices.
type Store interface {
	// Deals
	SaveDeal(ctx context.Context, deal model.Deal) (*model.Deal, error)
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListDealIDs(ctx context.Context) ([]string, error)

	// Breakdown cache. Saving a deal clears its cached breakdown.
	SaveBreakdown(ctx context.Context, dealID string, b model.Breakdown) error
	GetBreakdown(ctx context.Context, dealID string) (*model.Breakdown, error)

	// Notice statuses, keyed by (property id, milestone type). Writes are
	// last-write-wins.
	ListStatuses(ctx context.Context, propertyIDs []string) ([]model.NoticeStatus, error)
	UpsertNoticeStatus(ctx context.Context, status model.NoticeStatus) error
	UpsertNoticeStatuses(ctx context.Context, statuses []model.NoticeStatus) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// PoolConfig holds optional Postgres pool sizing.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// assignID gives a new deal a random id.
func assignID(d *model.Deal) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
}

func encodeDeal(d model.Deal) ([]byte, error) {
	b, err := json.Marshal(d)
	return b, eris.Wrapf(err, "store: marshal deal %s", d.ID)
}

func decodeDeal(id string, data []byte) (*model.Deal, error) {
	var d model.Deal
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal deal %s", id)
	}
	d.ID = id
	return &d, nil
}

func decodeBreakdown(id string, data []byte) (*model.Breakdown, error) {
	var b model.Breakdown
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal breakdown %s", id)
	}
	return &b, nil
}

// dedupeStatuses keeps the last status per key, in first-seen key order.
func dedupeStatuses(statuses []model.NoticeStatus) []model.NoticeStatus {
	idx := make(map[model.NoticeKey]int, len(statuses))
	out := make([]model.NoticeStatus, 0, len(statuses))
	for _, s := range statuses {
		if i, ok := idx[s.NoticeKey]; ok {
			out[i] = s
			continue
		}
		idx[s.NoticeKey] = len(out)
		out = append(out, s)
	}
	return out
}

func validateStatus(s model.NoticeStatus) error {
	if s.PropertyID == "" {
		return eris.New("store: notice status: empty property id")
	}
	if !s.Type.Valid() {
		return eris.Errorf("store: notice status: unknown milestone type %q", s.Type)
	}
	return nil
}
