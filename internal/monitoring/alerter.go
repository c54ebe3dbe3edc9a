package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertWorkerErrors   AlertType = "worker_errors"
	AlertStaleRun       AlertType = "stale_run"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// repeatAfter suppresses re-sending an alert type that is still firing.
const repeatAfter = 6 * time.Hour

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached. It is not
// safe for concurrent use.
type Alerter struct {
	cfg      config.MonitoringConfig
	client   *http.Client
	lastSent map[AlertType]time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		lastSent: make(map[AlertType]time.Time),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Check run failure rate.
	if snap.RunsTotal >= a.cfg.MinRuns && snap.RunsTotal > 0 && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d runs in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, snap.RunsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate":  snap.FailRate,
				"threshold":     a.cfg.FailureRateThreshold,
				"failed":        snap.RunsFailed,
				"runs":          snap.RunsTotal,
				"filing_errors": snap.FilingErrors,
				"trusts_failed": snap.TrustsFailed,
			},
			Timestamp: now,
		})
	}

	// Worker errors are panics or rollup failures, never expected.
	if snap.WorkerErrors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertWorkerErrors,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d extraction or rollup task(s) failed in last %dh",
				snap.WorkerErrors, snap.LookbackHours,
			),
			Details: map[string]any{
				"worker_errors": snap.WorkerErrors,
				"runs":          snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	// Check for a missed schedule.
	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		switch {
		case snap.LastRunID == "":
			alerts = append(alerts, Alert{
				Type:      AlertStaleRun,
				Severity:  "medium",
				Message:   "No runs have been recorded",
				Timestamp: now,
			})
		case now.Sub(snap.LastRunFinished) > limit:
			age := now.Sub(snap.LastRunFinished).Round(time.Hour)
			alerts = append(alerts, Alert{
				Type:     AlertStaleRun,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Last run finished %s ago, more than %dh",
					age, a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"last_run_id":       snap.LastRunID,
					"last_run_finished": snap.LastRunFinished,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL, skipping any
// type already delivered within repeatAfter of the alert's timestamp.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if last, ok := a.lastSent[alert.Type]; ok && alert.Timestamp.Sub(last) < repeatAfter {
			continue
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		a.lastSent[alert.Type] = alert.Timestamp
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
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
	return nil
}
