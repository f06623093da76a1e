package describer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaforge/internal/fileutil"
	"mediaforge/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second

	namingPrompt = "Provide a concise, descriptive filename (5-10 words) for this media on the " +
		"first line, suitable as the base of a web filename. Then, after a blank line, write a " +
		"detailed paragraph describing the media for use as alternative text."
)

// Config captures the runtime settings required to talk to the Gemini API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	RetryAttempts  int
}

// Result is the outcome of a successful naming request.
type Result struct {
	BaseName        string
	DescriptionPath string
}

// Client wraps the Gemini generateContent API for media naming and
// description.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a describer client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			RetryAttempts:  cfg.RetryAttempts,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          time.Sleep,
	}
	if cfg.RetryAttempts > 0 {
		client.retryMaxAttempts = cfg.RetryAttempts
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Describe uploads the media inline, asks the model for a short name plus a
// long-form description, sanitizes the name, and writes the description
// artifact to <outputDir>/<baseName>.md.
func (c *Client) Describe(ctx context.Context, sourcePath, outputDir string) (Result, error) {
	var empty Result
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "naming", "describe", "api key required", nil)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "naming", "read source", sourcePath, err)
	}

	payload := generateContentRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: mimeTypeFor(sourcePath),
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
				{Text: namingPrompt},
			},
		}},
	}

	text, err := c.generateWithRetry(ctx, payload)
	if err != nil {
		return empty, err
	}

	name, description := splitResponse(text)
	baseName := Sanitize(name)
	if baseName == "" || strings.HasPrefix(baseName, "error-") {
		return empty, services.Wrap(services.ErrExternalTool, "naming", "describe",
			fmt.Sprintf("model returned unusable name %q", name), nil)
	}

	descriptionPath := filepath.Join(outputDir, baseName+".md")
	if err := fileutil.WriteFileAtomic(descriptionPath, []byte(description+"\n"), 0o644); err != nil {
		return empty, services.Wrap(services.ErrTransient, "naming", "write description", descriptionPath, err)
	}

	return Result{BaseName: baseName, DescriptionPath: descriptionPath}, nil
}

// WriteErrorArtifact records why naming failed as the description artifact
// for baseName, so pages generated under a fallback name still have something
// to reference. It returns the artifact path.
func WriteErrorArtifact(outputDir, baseName string, cause error) (string, error) {
	stub := fmt.Sprintf("Description unavailable for this media: %v\n", cause)
	path := filepath.Join(outputDir, baseName+".md")
	if err := fileutil.WriteFileAtomic(path, []byte(stub), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// HealthCheck verifies that the API is reachable and the key is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("describer health: api key required")
	}
	endpoint := fmt.Sprintf("%s/models/%s?key=%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("describer health: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("describer health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("describer health: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) generateWithRetry(ctx context.Context, payload generateContentRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		text, err := c.generate(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.retryMaxAttempts {
			break
		}
		delay := c.retryBaseDelay << (attempt - 1)
		if delay > c.retryMaxDelay {
			delay = c.retryMaxDelay
		}
		select {
		case <-ctx.Done():
			return "", services.Wrap(services.ErrTimeout, "naming", "describe", "canceled", ctx.Err())
		default:
			c.sleeper(delay)
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "naming", "describe", "", lastErr)
}

func (c *Client) generate(ctx context.Context, payload generateContentRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	text := parsed.text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response content")
	}
	return text, nil
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// splitResponse separates the first line (name candidate) from the remaining
// description text. Responses without a body reuse the name line as the
// description.
func splitResponse(text string) (name, description string) {
	trimmed := strings.TrimSpace(text)
	line, rest, found := strings.Cut(trimmed, "\n")
	name = strings.TrimSpace(line)
	if !found || strings.TrimSpace(rest) == "" {
		return name, name
	}
	return name, strings.TrimSpace(rest)
}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".flv":  "video/x-flv",
}

func mimeTypeFor(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("describer request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateContentResponse) text() string {
	var b strings.Builder
	for _, candidate := range r.Candidates {
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return b.String()
}
