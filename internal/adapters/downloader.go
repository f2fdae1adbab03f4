// Package adapters fetches respondent answer files from outside the process.
package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
	"github.com/ZanzyTHEbar/quizstat/internal/resilience"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultRatePerSecond = 5.0
	DefaultMaxAttempts   = 3

	// maxFileSize bounds a single respondent file.
	maxFileSize = 1 << 20
	userAgent   = "quizstat/1.0"
)

// RemoteFilename is the name of respondent n's file on the answer host.
func RemoteFilename(n int) string {
	return fmt.Sprintf("a%d.txt", n)
}

// DownloaderConfig configures a Downloader. Zero values take defaults, except
// BaseURL which is required.
type DownloaderConfig struct {
	BaseURL       string
	Respondents   int
	Timeout       time.Duration
	RatePerSecond float64
	MaxAttempts   int
	// RetryDelay is the first backoff delay; later ones grow from it.
	RetryDelay time.Duration
}

// Failure is one respondent file that could not be fetched or copied.
type Failure struct {
	Respondent int    `json:"respondent"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
}

// Result lists what a batch wrote and what it could not.
type Result struct {
	Written  []string  `json:"written"`
	Failures []Failure `json:"failures"`
}

// Downloader fetches <base>/a{i}.txt into <dir>/answers_respondent_{i}.txt.
// Requests are paced by a token bucket, retried on transient failures and cut
// off by a circuit breaker once the host keeps failing.
type Downloader struct {
	base        string
	respondents int
	timeout     time.Duration

	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *monitoring.Logger
}

// NewDownloader validates cfg and builds a downloader with its own transport.
func NewDownloader(cfg DownloaderConfig, logger *monitoring.Logger) (*Downloader, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.NewValidationError("download base URL is required", "field", "base_url")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, errors.NewValidationError("download base URL must be http or https: "+base, "field", "base_url")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = monitoring.Discard()
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.MaxDelay = cfg.Timeout
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4

	return &Downloader{
		base:        base,
		respondents: cfg.Respondents,
		timeout:     cfg.Timeout,
		client:      &http.Client{Transport: transport},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  cfg.Timeout,
		}),
		retry:  retry,
		logger: logger,
	}, nil
}

// Download fetches respondents 1..n into dir. Per-file failures are collected
// in the result; only bad arguments, an unusable dir or ctx ending fail the call.
func (d *Downloader) Download(ctx context.Context, dir string, n int) (*Result, error) {
	if n <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("respondent count must be positive, got %d", n), "respondents", n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternalError("create data directory "+dir, err)
	}

	res := &Result{Written: []string{}, Failures: []Failure{}}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return res, errors.NewTimeoutError("download cancelled", err)
		}

		url := d.base + "/" + RemoteFilename(i)
		body, err := d.fetch(ctx, url)
		if err == nil {
			dst := filepath.Join(dir, collate.RespondentFilename(i))
			if err = os.WriteFile(dst, body, 0o644); err == nil {
				res.Written = append(res.Written, dst)
				continue
			}
			err = errors.NewInternalError("write "+dst, err)
		}
		res.Failures = append(res.Failures, Failure{Respondent: i, Source: url, Reason: err.Error()})
	}

	d.logger.SystemLogger("download_complete", fmt.Sprintf("%d written, %d failed", len(res.Written), len(res.Failures)))
	return res, nil
}

// Prepare downloads the configured respondent count into dataDir. It fails
// only when nothing at all could be fetched.
func (d *Downloader) Prepare(ctx context.Context, dataDir string) error {
	res, err := d.Download(ctx, dataDir, d.respondents)
	if err != nil {
		return err
	}
	if len(res.Written) == 0 {
		reason := "no files"
		if len(res.Failures) > 0 {
			reason = res.Failures[0].Reason
		}
		return errors.NewNetworkError(fmt.Sprintf("no respondent files downloaded from %s (first failure: %s)", d.base, reason), nil)
	}
	return nil
}

// Close releases idle connections held by the downloader's transport.
func (d *Downloader) Close() {
	d.client.CloseIdleConnections()
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	attempt := 0
	err := resilience.RetryWithConfig(ctx, d.retry, func() error {
		attempt++
		start := time.Now()
		// Only transient failures count against the breaker; a missing file
		// says nothing about the host's health.
		var permanent error
		err := d.breaker.Call(func() error {
			b, err := d.get(ctx, url)
			if err != nil && !errors.IsRetryableError(err) {
				permanent = err
				return nil
			}
			body = b
			return err
		})
		if permanent != nil {
			err = permanent
		}
		d.logger.DownloadLogger(url, attempt, time.Since(start), err)
		return err
	})
	return body, err
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTimeoutError("waiting for download slot", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewValidationError("invalid download URL "+url, "url", url)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.ToAppError(err)
	}
	defer errors.SafeClose(resp.Body, "download response body")

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.NewNotFoundError(url, nil)
	case resilience.RetryableHTTPStatus(resp.StatusCode):
		return nil, errors.NewNetworkError(fmt.Sprintf("%s returned %s", url, resp.Status), nil)
	default:
		return nil, errors.NewFormatError(url, "unexpected response status "+resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, errors.ToAppError(err)
	}
	if len(body) > maxFileSize {
		return nil, errors.NewFormatError(url, fmt.Sprintf("file exceeds %d bytes", maxFileSize), nil)
	}
	return body, nil
}

// CopyLocal mirrors Download for files already on disk: src/a{i}.txt is copied
// to dst/answers_respondent_{i}.txt for i in 1..n.
func CopyLocal(src, dst string, n int) (*Result, error) {
	if n <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("respondent count must be positive, got %d", n), "respondents", n)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.NewNotFoundError(src, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("source is not a directory: "+src, "path", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, errors.NewInternalError("create data directory "+dst, err)
	}

	res := &Result{Written: []string{}, Failures: []Failure{}}
	for i := 1; i <= n; i++ {
		from := filepath.Join(src, RemoteFilename(i))
		to := filepath.Join(dst, collate.RespondentFilename(i))
		if err := copyFile(from, to); err != nil {
			res.Failures = append(res.Failures, Failure{Respondent: i, Source: from, Reason: err.Error()})
			continue
		}
		res.Written = append(res.Written, to)
	}
	return res, nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(from, err)
		}
		return errors.NewFormatError(from, "cannot open file", err)
	}
	defer errors.SafeClose(in, from)

	out, err := os.Create(to)
	if err != nil {
		return errors.NewInternalError("create "+to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.NewInternalError("copy "+from, err)
	}
	if err := out.Close(); err != nil {
		return errors.NewInternalError("close "+to, err)
	}
	return nil
}
