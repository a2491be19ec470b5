package acquisition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/version"
)

const (
	// DefaultTimeout bounds one update check including retries
	DefaultTimeout = 30 * time.Second

	updateCheckPath    = "updateCheck"
	reportDownloadPath = "reportStatus/download"

	maxResponseSize = 1 << 20
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the overall update check timeout
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.timeout = d
		}
	}
}

// WithBackOff sets the retry policy used for transient failures
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(client *Client) {
		client.newBackOff = newBackOff
	}
}

// Client talks to the update distribution server
type Client struct {
	host       codepush.RemoteHost
	httpClient *http.Client
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

// New creates a Client. Remote packages it returns download and install through host.
func New(host codepush.RemoteHost, opts ...Option) *Client {
	c := &Client{
		host:       host,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     500 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, 3)
}

// CheckForUpdate asks the server whether an update applies to local and classifies the answer.
// local is nil when the binary's own bundle is running.
func (c *Client) CheckForUpdate(ctx context.Context, cfg codepush.Configuration, local *codepush.LocalPackage) (codepush.UpdateCheckResult, error) {
	endpoint, err := updateCheckURL(cfg, local)
	if err != nil {
		return codepush.UpdateCheckResult{}, fmt.Errorf("%w: %w", codepush.ErrUpdateCheckFailed, err)
	}

	body, err := c.fetch(ctx, endpoint)
	if err != nil {
		return codepush.UpdateCheckResult{}, err
	}

	resp, err := parseResponse(body)
	if err != nil {
		return codepush.UpdateCheckResult{}, err
	}

	return c.classify(ctx, cfg, local, resp)
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		body    []byte
		lastErr error
	)
	operation := func() error {
		b, err := c.get(ctx, endpoint)
		if err != nil {
			lastErr = err
			log.Debugf("update check attempt failed: %v", err)
			return err
		}
		body = b
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	if err == nil {
		return body, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	if ctx.Err() != nil && !errors.Is(lastErr, ctx.Err()) {
		return nil, fmt.Errorf("%w: %w (last attempt: %v)", codepush.ErrUpdateCheckFailed, ctx.Err(), lastErr)
	}
	return nil, fmt.Errorf("%w: %w", codepush.ErrUpdateCheckFailed, lastErr)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ReportDownload records a successful download with the server
func (c *Client) ReportDownload(ctx context.Context, cfg codepush.Configuration, pkg codepush.Package) error {
	payload, err := json.Marshal(downloadReport{
		ClientUniqueID: cfg.ClientUniqueID,
		DeploymentKey:  pkg.DeploymentKey,
		Label:          pkg.Label,
	})
	if err != nil {
		return fmt.Errorf("marshal download report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := strings.TrimRight(cfg.ServerURL, "/") + "/" + reportDownloadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post download report: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("failed to close response body: %v", err)
		}
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download report rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Reporter binds the configuration the package was checked with to ReportDownload
func (c *Client) Reporter(cfg codepush.Configuration) codepush.StatusReporter {
	return &boundReporter{client: c, cfg: cfg}
}

type boundReporter struct {
	client *Client
	cfg    codepush.Configuration
}

func (r *boundReporter) ReportDownload(ctx context.Context, pkg codepush.Package) error {
	return r.client.ReportDownload(ctx, r.cfg, pkg)
}

type downloadReport struct {
	ClientUniqueID string `json:"clientUniqueId"`
	DeploymentKey  string `json:"deploymentKey"`
	Label          string `json:"label"`
}
