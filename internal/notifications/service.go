package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaforge/internal/config"
	"mediaforge/internal/identity"
)

const userAgent = "Mediaforge-Go/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyAssetComplete(ctx context.Context, identityToken, baseName string) error
	NotifyAssetFailed(ctx context.Context, identityToken string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		sendErrors:     cfg.Notifications.Errors,
		sendCompletion: cfg.Notifications.Completion,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	sendErrors     bool
	sendCompletion bool
}

func (n *ntfyService) NotifyAssetComplete(ctx context.Context, identityToken, baseName string) error {
	if !n.sendCompletion {
		return nil
	}
	data := payload{
		title:   "Mediaforge - Asset Processed",
		message: fmt.Sprintf("All stages complete: %s (%s)", strings.TrimSpace(baseName), identity.Short(identityToken)),
		tags:    []string{"mediaforge", "asset", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAssetFailed(ctx context.Context, identityToken string, err error) error {
	if !n.sendErrors {
		return nil
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Mediaforge - Error",
		message:  fmt.Sprintf("Asset %s failed: %s", identity.Short(identityToken), detail),
		tags:     []string{"mediaforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Mediaforge - Test",
		message:  "Notification system test",
		tags:     []string{"mediaforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAssetComplete(context.Context, string, string) error { return nil }
func (noopService) NotifyAssetFailed(context.Context, string, error) error    { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
