// Package notification delivers operational alerts (feed loss, Redis
// circuit trips, failed checkpoints) to external channels.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. Used when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, alert Alert) error {
	slog.Warn("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher sends alerts asynchronously and suppresses repeats of the same
// title within the cooldown.
type Dispatcher struct {
	notifier Notifier
	cooldown time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewDispatcher wraps n. A zero cooldown disables suppression.
func NewDispatcher(n Notifier, cooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		cooldown: cooldown,
		timeout:  10 * time.Second,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify queues alert for delivery. It never blocks on the backend and
// reports whether the alert was sent rather than suppressed.
func (d *Dispatcher) Notify(alert Alert) bool {
	d.mu.Lock()
	now := d.now()
	if last, ok := d.lastSent[alert.Title]; ok && d.cooldown > 0 && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		return false
	}
	d.lastSent[alert.Title] = now
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Send(ctx, alert); err != nil {
			slog.Warn("alert delivery failed", "title", alert.Title, "error", err)
		}
	}()
	return true
}

// Wait blocks until queued alerts have been delivered.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// FromConfig builds the notifier for the configured channels: a webhook, a
// Telegram chat, both, or logging only when neither is set.
func FromConfig(webhookURL, telegramToken, telegramChat string) Notifier {
	var m Multi
	if webhookURL != "" {
		m = append(m, NewWebhookNotifier(webhookURL))
	}
	if telegramToken != "" && telegramChat != "" {
		m = append(m, NewTelegramNotifier(telegramToken, telegramChat))
	}
	switch len(m) {
	case 0:
		return LogNotifier{}
	case 1:
		return m[0]
	}
	return m
}
