package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/notice"
)

// Digest is the webhook payload summarising outstanding milestones.
type Digest struct {
	Today     string        `json:"today"`
	Severity  string        `json:"severity"`
	Message   string        `json:"message"`
	Overdue   []notice.Item `json:"overdue"`
	Upcoming  []notice.Item `json:"upcoming"`
	Timestamp time.Time     `json:"timestamp"`
}

// Fingerprint identifies the milestones in a digest so an unchanged digest
// is not re-sent.
func (d Digest) Fingerprint() string {
	var b strings.Builder
	for _, group := range [][]notice.Item{d.Overdue, d.Upcoming} {
		for _, it := range group {
			fmt.Fprintf(&b, "%s|%s|%s|%s;", it.PropertyID, it.Type, it.Due, it.Status)
		}
	}
	return b.String()
}

// Alerter turns classified notices into a digest and posts it to a webhook.
type Alerter struct {
	cfg    config.AlertConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given alert config.
func NewAlerter(cfg config.AlertConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool { return a.cfg.WebhookURL != "" }

// Evaluate builds a digest from res. ok is false when there is nothing to
// report.
func (a *Alerter) Evaluate(res notice.Result, today civil.Date) (d Digest, ok bool) {
	upcoming := res.Upcoming
	if a.cfg.OverdueOnly {
		upcoming = []notice.Item{}
	}
	if len(res.Overdue) == 0 && len(upcoming) == 0 {
		return Digest{}, false
	}

	severity := "info"
	if len(res.Overdue) > 0 {
		severity = "high"
	}

	return Digest{
		Today:    today.String(),
		Severity: severity,
		Message: fmt.Sprintf("%d overdue and %d upcoming milestone(s) as of %s",
			len(res.Overdue), len(upcoming), today),
		Overdue:   res.Overdue,
		Upcoming:  upcoming,
		Timestamp: time.Now().UTC(),
	}, true
}

// Send posts the digest to the configured webhook. It is a no-op without one.
func (a *Alerter) Send(ctx context.Context, d Digest) error {
	if !a.Enabled() {
		return nil
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal digest")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}

	zap.L().Info("monitoring: digest sent",
		zap.String("severity", d.Severity),
		zap.Int("overdue", len(d.Overdue)),
		zap.Int("upcoming", len(d.Upcoming)),
	)
	return nil
}
