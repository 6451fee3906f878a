package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/ayane-dev/musubi/internal/circuitbreaker"
	"github.com/ayane-dev/musubi/internal/config"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/storage"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

const maxRedirectHops = 10

// HTTPSession implements Fetcher over net/http with per-domain rate
// limiting and circuit breaking, bounded global concurrency, retry with
// linear backoff, an optional Redis snapshot cache, and an optional
// headless strategy for hosts that only render behind JavaScript.
type HTTPSession struct {
	cfg      *config.Config
	logger   logger.Logger
	client   *http.Client
	bare     *http.Client // redirects disabled, for chain resolution
	cache    *storage.Cache
	headless *HeadlessFetcher
	observer Observer

	sem      chan struct{}
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*circuitbreaker.CircuitBreaker
	jsHosts  map[string]bool
}

// Option configures optional session collaborators.
type Option func(*HTTPSession)

// WithCache attaches a snapshot cache consulted before every page fetch.
func WithCache(c *storage.Cache) Option {
	return func(s *HTTPSession) { s.cache = c }
}

// WithHeadless attaches a headless browser strategy for the configured hosts.
func WithHeadless(h *HeadlessFetcher) Option {
	return func(s *HTTPSession) { s.headless = h }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *HTTPSession) { s.observer = o }
}

// NewHTTPSession builds a session from config.
func NewHTTPSession(cfg *config.Config, log logger.Logger, opts ...Option) *HTTPSession {
	s := &HTTPSession{
		cfg:    cfg,
		logger: log,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		bare: &http.Client{
			Timeout: cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
		jsHosts:  make(map[string]bool),
	}
	for domain, rps := range cfg.DomainRateLimit {
		s.limiters[domain] = rate.NewLimiter(rate.Limit(rps), 1)
	}
	for _, h := range cfg.HeadlessHosts {
		s.jsHosts[h] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSession) FetchHTML(ctx context.Context, url string) (*goquery.Document, error) {
	status, body, err := s.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &StatusError{URL: url, Code: status}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html from %s: %w", url, err)
	}
	return doc, nil
}

func (s *HTTPSession) FetchJSON(ctx context.Context, url string, out any) error {
	status, body, err := s.fetchBody(ctx, url)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &StatusError{URL: url, Code: status}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("failed to decode json from %s: %w", url, err)
	}
	return nil
}

func (s *HTTPSession) Head(ctx context.Context, url string) (int, error) {
	status := 0
	err := s.withLimits(ctx, url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		status = resp.StatusCode
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	s.observeFetch(url, status, false)
	return status, nil
}

func (s *HTTPSession) ResolveRedirect(ctx context.Context, url string) (string, error) {
	current := url
	for hop := 0; hop < maxRedirectHops; hop++ {
		var location string
		var status int
		err := s.withLimits(ctx, current, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", s.cfg.UserAgent)
			resp, err := s.bare.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			status = resp.StatusCode
			location = resp.Header.Get("Location")
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("resolve redirect %s: %w", current, err)
		}
		if status < 300 || status >= 400 || location == "" {
			return current, nil
		}
		next, err := resolveLocation(current, location)
		if err != nil {
			return "", err
		}
		current = next
	}
	return "", fmt.Errorf("resolve redirect %s: more than %d hops", url, maxRedirectHops)
}

func (s *HTTPSession) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := s.withLimits(ctx, url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return &StatusError{URL: url, Code: resp.StatusCode}
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return data, nil
}

// fetchBody is the shared GET path: cache, rate limits, circuit breaker and
// retries, headless fallback for JS-walled hosts.
func (s *HTTPSession) fetchBody(ctx context.Context, url string) (int, string, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx, url)
		if err != nil {
			s.logger.Warn("Snapshot cache read failed for %s: %v", url, err)
		} else if snap != nil {
			s.observeFetch(url, snap.StatusCode, true)
			return snap.StatusCode, snap.Body, nil
		}
	}

	start := time.Now()
	var status int
	var body string
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		err := s.withLimits(ctx, url, func() error {
			var err error
			status, body, err = s.fetchOnce(ctx, url)
			return err
		})
		if err == nil && status < 500 {
			lastErr = nil
			break
		}
		if err == nil {
			err = &StatusError{URL: url, Code: status}
		}
		lastErr = err
		if circuitbreaker.IsOpenError(err) || ctx.Err() != nil {
			break
		}
		if attempt < s.cfg.RetryAttempts {
			s.logger.Warn("Fetch attempt %d/%d failed for %s: %v", attempt, s.cfg.RetryAttempts, url, err)
			select {
			case <-time.After(s.cfg.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return 0, "", ctx.Err()
			}
		}
	}
	if s.observer != nil {
		s.observer.ObserveFetchDuration(registrableDomain(url), time.Since(start))
	}
	if lastErr != nil {
		return 0, "", fmt.Errorf("fetch %s: %w", url, lastErr)
	}

	s.observeFetch(url, status, false)
	if s.cache != nil {
		if _, err := s.cache.Save(ctx, url, status, body); err != nil {
			s.logger.Warn("Snapshot cache write failed for %s: %v", url, err)
		}
	}
	return status, body, nil
}

func (s *HTTPSession) fetchOnce(ctx context.Context, url string) (int, string, error) {
	if s.headless != nil && s.needsHeadless(url) {
		return s.headless.Fetch(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return 0, "", err
	}
	return resp.StatusCode, buf.String(), nil
}

// withLimits serializes a call behind the global concurrency gate, the
// per-domain rate limiter and the per-domain circuit breaker.
func (s *HTTPSession) withLimits(ctx context.Context, url string, fn func() error) error {
	domain := registrableDomain(url)

	if limiter := s.limiterFor(domain); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	cb := s.breakerFor(domain)
	err := cb.Execute(fn)
	if s.observer != nil {
		s.observer.UpdateCircuitBreakerState(domain, int(cb.GetState()))
	}
	return err
}

func (s *HTTPSession) limiterFor(domain string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiters[domain]
}

func (s *HTTPSession) breakerFor(domain string) *circuitbreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[domain]
	if !ok {
		cb = circuitbreaker.New(s.cfg.CircuitBreakerThreshold, s.cfg.CircuitBreakerTimeout)
		s.breakers[domain] = cb
	}
	return cb
}

// BreakerStats exposes circuit breaker snapshots for diagnostics endpoints.
func (s *HTTPSession) BreakerStats() map[string]map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[string]map[string]interface{}, len(s.breakers))
	for domain, cb := range s.breakers {
		stats[domain] = cb.GetStats()
	}
	return stats
}

func (s *HTTPSession) needsHeadless(url string) bool {
	toks, err := urlkit.Tokenize(url)
	if err != nil {
		return false
	}
	return s.jsHosts[toks.Domain] || s.jsHosts[toks.Host]
}

func (s *HTTPSession) observeFetch(url string, status int, fromCache bool) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveFetch(registrableDomain(url), status, fromCache)
}

func registrableDomain(url string) string {
	toks, err := urlkit.Tokenize(url)
	if err != nil {
		return "invalid"
	}
	return toks.Domain
}

func resolveLocation(base, location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location, nil
	}
	toks, err := urlkit.Tokenize(base)
	if err != nil {
		return "", fmt.Errorf("cannot resolve relative redirect %q against %q", location, base)
	}
	if strings.HasPrefix(location, "/") {
		return toks.Scheme + "://" + toks.Host + location, nil
	}
	return toks.Scheme + "://" + toks.Host + "/" + location, nil
}
