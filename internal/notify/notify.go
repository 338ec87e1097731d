// Package notify delivers alert notifications to Telegram, webhooks and the console.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/config"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// Notifier sends a notification to its destinations.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Entity    string
	Title     string
	Message   string
	Severity  models.AlertSeverity
	Metadata  *models.AlertMetadata
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationStock      NotificationType = "stock_alert"
	NotificationPolitician NotificationType = "politician_alert"
	NotificationError      NotificationType = "error"
	NotificationInfo       NotificationType = "info"
)

// MultiNotifier fans a notification out to every enabled channel.
type MultiNotifier struct {
	channels []NotificationChannel
	mu       sync.RWMutex
	log      zerolog.Logger
}

var _ Notifier = (*MultiNotifier)(nil)

// NewMultiNotifier creates a MultiNotifier with the webhook channel from cfg.
// The Telegram channel needs a bot client and is added with AddChannel.
func NewMultiNotifier(cfg *config.NotificationConfig, log zerolog.Logger) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		log:      log.With().Str("component", "notify").Logger(),
	}

	if cfg != nil && cfg.Enabled && cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	var names []string
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Send sends a notification to all enabled channels. It succeeds when at
// least one channel delivered; partial failures are logged.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	delivered := 0
	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			mn.log.Warn().Err(err).Str("channel", ch.Name()).Str("entity", n.Entity).Msg("Notification channel failed")
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			continue
		}
		delivered++
	}

	if delivered > 0 {
		return nil
	}
	if len(errs) == 0 {
		return errors.NewDeliveryError("all", errors.ErrNotConfigured)
	}
	return errors.NewDeliveryError("all", fmt.Errorf("%s", strings.Join(errs, "; ")))
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"entity":    n.Entity,
		"title":     n.Title,
		"message":   n.Message,
		"severity":  n.Severity,
		"metadata":  n.Metadata,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewDeliveryError(w.Name(), fmt.Errorf("marshaling webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.NewDeliveryError(w.Name(), fmt.Errorf("creating webhook request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StockSentinel/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.NewDeliveryError(w.Name(), fmt.Errorf("sending webhook: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewDeliveryError(w.Name(), fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	return nil
}
