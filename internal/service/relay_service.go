package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"compliance-navigator-be/internal/config"
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/proxy"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// RelayResult is an upstream response passed through to the browser.
type RelayResult struct {
	Status      int
	ContentType string
	Body        []byte
	Cached      bool
}

type IRelayService interface {
	// Fetch retrieves target on behalf of client (usually the caller IP).
	Fetch(ctx context.Context, target, client string) (*RelayResult, error)
}

type relayService struct {
	cfg      config.RelayConfig
	http     *http.Client
	policy   *egressPolicy
	cache    *cache.Cache
	limiters *cache.Cache
	group    singleflight.Group
	logger   logger.ILogger
}

func NewRelayService(cfg config.RelayConfig, log logger.ILogger) IRelayService {
	policy := newEgressPolicy(cfg.AllowedHosts)
	return &relayService{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: policy},
		policy:   policy,
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL/2+time.Second),
		limiters: cache.New(10*time.Minute, 10*time.Minute),
		logger:   log,
	}
}

func (s *relayService) Fetch(ctx context.Context, target, client string) (*RelayResult, error) {
	u, err := s.validate(target)
	if err != nil {
		return nil, err
	}
	if !s.limiter(client).Allow() {
		return nil, ErrRateLimited
	}

	key := u.String()
	if x, found := s.cache.Get(key); found {
		res := *x.(*RelayResult)
		res.Cached = true
		return &res, nil
	}

	// Concurrent requests for the same document share one upstream fetch.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*RelayResult)
	if res.Status >= 200 && res.Status <= 299 && s.cfg.CacheTTL > 0 {
		s.cache.Set(key, res, cache.DefaultExpiration)
	}
	return res, nil
}

func (s *relayService) validate(target string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return nil, ErrInvalidRelayURL
	}
	if err := s.policy.check(u); err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			s.logger.Warn("Relay", "Blocked host", map[string]interface{}{"host": u.Hostname()})
		}
		return nil, err
	}
	return u, nil
}

func (s *relayService) limiter(client string) *rate.Limiter {
	if x, found := s.limiters.Get(client); found {
		return x.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(s.cfg.RatePerSec), s.cfg.Burst)
	// Add loses the race to a concurrent caller instead of replacing its limiter.
	if err := s.limiters.Add(client, l, cache.DefaultExpiration); err != nil {
		if x, found := s.limiters.Get(client); found {
			return x.(*rate.Limiter)
		}
	}
	return l
}

func (s *relayService) fetch(ctx context.Context, target string) (*RelayResult, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("User-Agent", "compliance-navigator-relay/1.0")

	resp, err := s.http.Do(req)
	if errors.Is(err, ErrHostNotAllowed) {
		s.logger.Warn("Relay", "Blocked upstream hop", map[string]interface{}{"url": target, "error": err.Error()})
		return nil, fmt.Errorf("%w (via %s)", ErrHostNotAllowed, target)
	}
	if err != nil {
		s.logger.Error("Relay", "Upstream request failed", map[string]interface{}{"url": target, "error": err})
		return nil, &proxy.FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, &proxy.FetchError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > s.cfg.MaxBytes {
		return &RelayResult{
			Status:      http.StatusRequestEntityTooLarge,
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(fmt.Sprintf("Upstream document exceeds %d bytes", s.cfg.MaxBytes)),
		}, nil
	}

	res := &RelayResult{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.ContentType = "text/plain; charset=utf-8"
		res.Body = []byte(fmt.Sprintf("Upstream returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	s.logger.Info("Relay", "Fetched upstream", map[string]interface{}{
		"url":         target,
		"status":      resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}
