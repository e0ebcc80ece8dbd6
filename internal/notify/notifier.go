// Package notify sends best-effort push notifications about interesting detections.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"camwatch/internal/logger"
)

// Placeholders substituted in the notification URL template.
const (
	TitlePlaceholder = "<PTITLE>"
	TextPlaceholder  = "<PTEXT>"
)

// Notifier issues a GET against a URL template such as
// https://www.notifymydevice.com/push?ApiKey=KEY&PushTitle=<PTITLE>&PushText=<PTEXT>.
type Notifier struct {
	template        string
	includeMediaURL bool
	httpClient      *http.Client
	logger          *logger.Logger

	mu   sync.Mutex
	sent map[string]struct{}
}

// Config holds notifier configuration.
type Config struct {
	URLTemplate     string
	IncludeMediaURL bool
	Timeout         time.Duration
}

// NewNotifier creates a Notifier. An empty template disables notifications.
func NewNotifier(cfg Config, logger *logger.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		template:        cfg.URLTemplate,
		includeMediaURL: cfg.IncludeMediaURL,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
		sent:            make(map[string]struct{}),
	}
}

// Enabled reports whether a URL template is configured.
func (n *Notifier) Enabled() bool {
	return n.template != ""
}

// BuildMessage returns the title and text of a notification.
func BuildMessage(camera string, labels []string, mediaURL string, includeMediaURL bool) (title, text string) {
	title = camera
	text = strings.Join(labels, ", ")
	if includeMediaURL && mediaURL != "" {
		text += ": " + mediaURL
	}
	return title, text
}

// URL substitutes the percent-encoded title and text into the template.
func (n *Notifier) URL(title, text string) string {
	return strings.NewReplacer(
		TitlePlaceholder, escape(title),
		TextPlaceholder, escape(text),
	).Replace(n.template)
}

// escape percent-encodes s for any position in a URL. Spaces become %20 and
// reserved characters, '/' included, are escaped.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Notify sends at most one notification per key (the still filename) for the
// lifetime of the process. It returns true when the request succeeded; failures
// are logged and never returned to the caller.
func (n *Notifier) Notify(ctx context.Context, key, camera string, labels []string, mediaURL string) bool {
	if !n.Enabled() || len(labels) == 0 {
		return false
	}

	n.mu.Lock()
	if _, done := n.sent[key]; done {
		n.mu.Unlock()
		n.logger.Info("Notification for %s already sent, skipping", key)
		return false
	}
	n.sent[key] = struct{}{}
	n.mu.Unlock()

	title, text := BuildMessage(camera, labels, mediaURL, n.includeMediaURL)
	if err := n.send(ctx, n.URL(title, text)); err != nil {
		n.logger.Error("Notification for %s failed: %v", key, err)
		return false
	}

	n.logger.Info("Notification sent for %s: %s", key, text)
	return true
}

func (n *Notifier) send(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
