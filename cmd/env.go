package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/closing"
	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/desk"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
)

// deskEnv holds the wired service and the resources it owns.
type deskEnv struct {
	Store store.Store
	Desk  *desk.Desk
}

// Close releases the store.
func (e *deskEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoff, c.Retry.MaxBackoff)
}

// initStore opens the configured backend, retrying transient connection
// failures.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	rc := retryConfig(c)
	rc.OnRetry = resilience.RetryLogger("store.open")

	return resilience.DoVal(ctx, rc, func(ctx context.Context) (store.Store, error) {
		switch c.Store.Driver {
		case "sqlite":
			return store.NewSQLite(c.Store.SQLitePath)
		case "postgres":
			return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: c.Store.MaxConns,
				MinConns: c.Store.MinConns,
			})
		default:
			return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
		}
	})
}

// loadSchedule reads the configured fee schedule, falling back to the
// built-in one.
func loadSchedule(c *config.Config) (closing.FeeSchedule, error) {
	if c.Fees.SchedulePath == "" {
		return closing.DefaultSchedule(), nil
	}
	fs, err := closing.LoadSchedule(c.Fees.SchedulePath)
	if err != nil {
		return closing.FeeSchedule{}, err
	}
	zap.L().Info("loaded fee schedule", zap.String("path", c.Fees.SchedulePath))
	return *fs, nil
}

// initDesk validates config for mode, opens and migrates the store, and
// builds the service.
func initDesk(ctx context.Context, c *config.Config, mode string) (*deskEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	fees, err := loadSchedule(c)
	if err != nil {
		return nil, err
	}
	loc, err := c.Notice.Location()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	d := desk.New(st, closing.NewCalculator(fees),
		desk.WithClock(desk.SystemClock(loc)),
		desk.WithConcurrency(c.Service.MaxConcurrentFetches),
		desk.WithRetry(retryConfig(c)),
	)
	return &deskEnv{Store: st, Desk: d}, nil
}
