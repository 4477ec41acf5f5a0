package gdx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/data-power-io/gdxgrab/internal/metrics"
)

// DefaultTimeout bounds every request to the archive host.
const DefaultTimeout = 60 * time.Second

// FetcherConfig controls the HTTP transport.
type FetcherConfig struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables limiting
	UserAgent string
}

// Fetcher performs rate-limited GETs against the archive host.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	metrics   *metrics.RunMetrics
	logger    *zap.Logger
}

func NewFetcher(cfg FetcherConfig, m *metrics.RunMetrics, logger *zap.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: cfg.UserAgent,
		metrics:   m,
		logger:    logger,
	}
}

// Get returns the full response body of url.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.fetch(ctx, url, "page", &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Download streams url into dest. The body goes to a hidden temp file in the
// same directory and is renamed over dest once complete, so dest is never
// observed half written and an interrupted transfer never looks like a data file.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	out, err := os.CreateTemp(filepath.Dir(dest), partialPattern)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	tmp := out.Name()

	n, err := f.fetch(ctx, url, "file", out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", ErrFilesystem, cerr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return n, nil
}

func (f *Fetcher) fetch(ctx context.Context, url, kind string, w io.Writer) (int64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	timer := metrics.NewTimer()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordRequest(kind, "error", 0, timer.Duration())
		return 0, fmt.Errorf("%w: GET %s: %w", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.metrics.RecordRequest(kind, strconv.Itoa(resp.StatusCode), 0, timer.Duration())
		return 0, networkf("GET %s: unexpected status %s", url, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	f.metrics.RecordRequest(kind, "ok", n, timer.Duration())
	if err != nil {
		return n, fmt.Errorf("%w: reading %s: %v", ErrNetwork, url, err)
	}

	f.logger.Debug("Fetched", zap.String("url", url), zap.Int64("bytes", n))
	return n, nil
}
