// Package monitoring sends digests of overdue and upcoming milestones to a
// webhook, once on demand or periodically in the background.
package monitoring

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/notice"
)

// NoticeSource classifies outstanding milestones. *desk.Desk satisfies it.
type NoticeSource interface {
	Notices(ctx context.Context, ids []string) (notice.Result, error)
	Today() civil.Date
}

// Checker runs periodic notice checks in the background.
type Checker struct {
	source  NoticeSource
	alerter *Alerter
	cfg     config.AlertConfig

	lastSent string
}

// NewChecker creates a background notice checker.
func NewChecker(source NoticeSource, alerter *Alerter, cfg config.AlertConfig) *Checker {
	return &Checker{
		source:  source,
		alerter: alerter,
		cfg:     cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting notice checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("notice checker stopped")
			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				log.Error("monitoring: notice check failed", zap.Error(err))
			}
		}
	}
}

// Check classifies every deal and sends a digest when it differs from the
// last one sent. It reports whether a digest went out.
func (c *Checker) Check(ctx context.Context) (bool, error) {
	if !c.alerter.Enabled() {
		return false, nil
	}

	res, err := c.source.Notices(ctx, nil)
	if err != nil {
		return false, err
	}

	d, ok := c.alerter.Evaluate(res, c.source.Today())
	if !ok {
		c.lastSent = ""
		zap.L().Debug("monitoring: no outstanding milestones")
		return false, nil
	}

	fp := d.Fingerprint()
	if fp == c.lastSent {
		zap.L().Debug("monitoring: digest unchanged, not resending")
		return false, nil
	}

	if err := c.alerter.Send(ctx, d); err != nil {
		return false, err
	}
	c.lastSent = fp
	return true, nil
}
