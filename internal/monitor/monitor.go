// Package monitor polls a running bridge and raises alerts.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mt5_bridge/internal/notify"
)

// ErrTooManyErrors stops Run after consecutive failed checks.
var ErrTooManyErrors = errors.New("too many consecutive errors")

type Thresholds struct {
	MaxResponseTime      time.Duration
	MinBalance           float64
	MaxPositions         int
	MaxConsecutiveErrors int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxResponseTime:      5 * time.Second,
		MinBalance:           100,
		MaxPositions:         10,
		MaxConsecutiveErrors: 5,
	}
}

// Checks holds the account and position probes. A nil value means the probe
// failed and the matching *Error field says why.
type Checks struct {
	AccountBalance *float64 `json:"account_balance,omitempty"`
	AccountEquity  *float64 `json:"account_equity,omitempty"`
	AccountMargin  *float64 `json:"account_margin,omitempty"`
	AccountError   string   `json:"account_check,omitempty"`
	OpenPositions  *int     `json:"open_positions,omitempty"`
	PositionsError string   `json:"positions_check,omitempty"`
}

// Report is the result of one check.
type Report struct {
	Status       string        `json:"status"`
	MT5Connected bool          `json:"mt5_connected"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
	Error        string        `json:"error,omitempty"`
	Checks       Checks        `json:"checks"`
}

// MarshalJSON writes ResponseTime in seconds.
func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	return json.Marshal(struct {
		report
		ResponseTime float64 `json:"response_time"`
	}{report(r), r.ResponseTime.Seconds()})
}

func (r Report) Healthy() bool {
	return r.Status == "healthy"
}

type Monitor struct {
	baseURL    string
	token      string
	client     *http.Client
	thresholds Thresholds
	notifier   notify.Notifier
	logger     *slog.Logger
}

// New creates a monitor for the bridge at baseURL. token, if set, is sent as
// a bearer token to the protected endpoints.
func New(baseURL, token string, thresholds Thresholds, notifier notify.Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
		thresholds: thresholds,
		notifier:   notifier,
		logger:     logger,
	}
}

type healthBody struct {
	Status       string `json:"status"`
	MT5Connected bool   `json:"mt5_connected"`
	Error        string `json:"error"`
}

type accountBody struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
	Margin  float64 `json:"margin"`
}

type positionsBody struct {
	Positions []json.RawMessage `json:"positions"`
}

// Check probes /health, /account and /positions concurrently.
func (m *Monitor) Check(ctx context.Context) Report {
	report := Report{Status: "unhealthy", Timestamp: time.Now()}

	// Each probe records its own failure in the report and returns nil, so one
	// failing endpoint never cancels the others.
	var g errgroup.Group

	g.Go(func() error {
		var body healthBody
		start := time.Now()
		status, err := m.get(ctx, "/health", &body)
		report.ResponseTime = time.Since(start)

		switch {
		case err != nil:
			report.Error = err.Error()
		case status != http.StatusOK:
			report.Error = fmt.Sprintf("HTTP %d", status)
			if body.Error != "" {
				report.Error += ": " + body.Error
			}
			report.MT5Connected = body.MT5Connected
		default:
			report.Status = body.Status
			report.MT5Connected = body.MT5Connected
		}
		return nil
	})

	g.Go(func() error {
		var body accountBody
		status, err := m.get(ctx, "/account", &body)
		switch {
		case err != nil:
			report.Checks.AccountError = "error: " + err.Error()
		case status != http.StatusOK:
			report.Checks.AccountError = "failed"
		default:
			report.Checks.AccountBalance = &body.Balance
			report.Checks.AccountEquity = &body.Equity
			report.Checks.AccountMargin = &body.Margin
		}
		return nil
	})

	g.Go(func() error {
		var body positionsBody
		status, err := m.get(ctx, "/positions", &body)
		switch {
		case err != nil:
			report.Checks.PositionsError = "error: " + err.Error()
		case status != http.StatusOK:
			report.Checks.PositionsError = "failed"
		default:
			n := len(body.Positions)
			report.Checks.OpenPositions = &n
		}
		return nil
	})

	_ = g.Wait()

	return report
}

// Alerts lists the threshold breaches in r.
func (m *Monitor) Alerts(r Report) []string {
	var alerts []string

	if !r.Healthy() {
		alerts = append(alerts, "MT5 Bridge service is unhealthy")
	}
	if r.ResponseTime > m.thresholds.MaxResponseTime {
		alerts = append(alerts, fmt.Sprintf("Slow response time: %.2fs", r.ResponseTime.Seconds()))
	}
	if b := r.Checks.AccountBalance; b != nil && *b < m.thresholds.MinBalance {
		alerts = append(alerts, fmt.Sprintf("Low account balance: %.2f", *b))
	}
	if n := r.Checks.OpenPositions; n != nil && *n > m.thresholds.MaxPositions {
		alerts = append(alerts, fmt.Sprintf("Too many open positions: %d", *n))
	}

	return alerts
}

// Run checks every interval until ctx is done or too many consecutive
// checks fail.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info("🚀 Starting monitoring loop", slog.Duration("interval", interval), slog.String("bridge", m.baseURL))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	errorCount := 0
	for {
		report := m.Check(ctx)

		if report.Healthy() {
			m.logger.Info("✅ System health: OK", slog.Duration("response_time", report.ResponseTime))
			errorCount = 0
		} else {
			errorCount++
			m.logger.Error("❌ System health: FAILED",
				slog.String("error", report.Error),
				slog.Int("consecutive", errorCount))
		}

		for _, alert := range m.Alerts(report) {
			m.logger.Warn("🚨 ALERT", slog.String("message", alert))
			m.notifier.Send("🚨 " + alert)
		}

		if errorCount >= m.thresholds.MaxConsecutiveErrors {
			m.logger.Error("Too many consecutive errors, stopping monitoring", slog.Int("errors", errorCount))
			return fmt.Errorf("%w: %d", ErrTooManyErrors, errorCount)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode == http.StatusOK {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}

	return resp.StatusCode, nil
}
