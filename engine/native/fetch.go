package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/profile"
)

const (
	maxManifestBytes = 8 << 20
	maxSegmentBytes  = 64 << 20
)

// request is one outbound GET.
type request struct {
	url string
	// rng is an inclusive byte range, nil for the whole resource.
	rng *[2]int64
}

type response struct {
	body    []byte
	status  int
	header  http.Header
	elapsed time.Duration
}

// permanentError is a failure another attempt cannot fix.
type permanentError struct{ error }

func (p permanentError) Unwrap() error { return p.error }

// fetcher performs GETs with the profile's retry policy.
type fetcher struct {
	client  *http.Client
	cfg     func() profile.BufferConfig
	onRetry func(attempt int, next time.Time, cause *engine.ErrorInfo)
}

// fetch retries failed requests, and responses rejected by validate, with exponential backoff.
// Each failure is reported as kind; when every attempt failed the result is a
// FatalEngineError wrapping the last failure. Permanent failures are returned at once.
func (f *fetcher) fetch(ctx context.Context, req request, kind engine.ErrorKind, validate func([]byte) error) (response, error) {
	cfg := f.cfg()
	attempts := max(cfg.MaxRetryAttempts, 1)
	limit := int64(maxSegmentBytes)
	if kind == engine.ManifestLoadFailed {
		limit = maxManifestBytes
	}

	var cause *engine.ErrorInfo
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := f.do(ctx, req, limit)
		if err == nil && validate != nil {
			err = validate(resp.body)
		}
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}

		cause = engine.Wrap(kind, err, "fetch "+redact(req.url))
		if errors.As(err, new(permanentError)) {
			return response{}, cause
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Backoff(attempt)
		next := time.Now().Add(delay)
		log.Warnf("%s, retry %d/%d in %s", cause, attempt, attempts-1, delay)
		if f.onRetry != nil {
			f.onRetry(attempt, next, cause)
		}

		if err := sleep(ctx, delay); err != nil {
			return response{}, err
		}
	}

	return response{}, engine.Wrap(engine.FatalEngineError, cause, fmt.Sprintf("giving up after %d attempts", attempts))
}

func (f *fetcher) do(ctx context.Context, r request, limit int64) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return response{}, err
	}
	switch req.URL.Scheme {
	case "http", "https", "file":
	default:
		return response{}, permanentError{fmt.Errorf("unsupported scheme %q", req.URL.Scheme)}
	}
	if r.rng != nil {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.rng[0], r.rng[1]))
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if req.URL.Scheme == "file" {
			return response{}, permanentError{err}
		}
		return response{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}

	return response{
		body:    body,
		status:  resp.StatusCode,
		header:  resp.Header,
		elapsed: time.Since(start),
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// resolve resolves ref against base. Unparseable input returns ref unchanged.
func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// locate turns a bare path into a file URL. Other addresses are returned unchanged.
func locate(address string) string {
	if u, err := url.Parse(address); err == nil && u.Scheme != "" {
		return address
	}
	abs, err := filepath.Abs(address)
	if err != nil {
		return address
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// redact drops the query string, which often carries tokens.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
