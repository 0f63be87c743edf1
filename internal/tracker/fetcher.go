package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"

	"github.com/KuuCi/discord-postplant/internal/valorant"
)

// Terminal fetch outcomes. Rate-limit and availability errors are only
// returned once the bounded attempt budget is exhausted.
var (
	ErrNotFound     = errors.New("no recent match for account")
	ErrRateLimited  = errors.New("match provider rate limit exhausted")
	ErrUnavailable  = errors.New("match provider unavailable")
	ErrModeExcluded = errors.New("match mode excluded by policy")
)

// attemptsPerCall bounds the request burst of one Fetch call. The cycle's
// MaxAttempts budget spans every call for the same account.
const attemptsPerCall = 2

// MatchSource retrieves the most recent match for an account
type MatchSource interface {
	LastMatch(ctx context.Context, region, name, tag string) (*valorant.Match, error)
}

// FetcherConfig tunes retrieval behavior
type FetcherConfig struct {
	// SettleWait delays the first request of a resolution cycle so the
	// provider's data can catch up with the match that just ended.
	SettleWait time.Duration
	// MaxAttempts bounds requests per account within one cycle.
	MaxAttempts int
	// InitialBackoff seeds the exponential retry interval.
	InitialBackoff time.Duration
	// MaxBackoff caps the retry interval.
	MaxBackoff time.Duration
	// CompetitiveOnly rejects matches played outside Competitive mode.
	CompetitiveOnly bool
}

// Fetcher retrieves match records with settle delay, bounded retry and
// rate-limit handling. Per-cycle state lives in a Cycle.
type Fetcher struct {
	source MatchSource
	clock  quartz.Clock
	cfg    FetcherConfig
}

// NewFetcher creates a fetcher over the given match source
func NewFetcher(source MatchSource, clock quartz.Clock, cfg FetcherConfig) *Fetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Fetcher{source: source, clock: clock, cfg: cfg}
}

type fetchResult struct {
	match *valorant.Match
	err   error
}

// Cycle memoizes fetches for one resolution cycle so a squad never fetches
// the same account twice, and so the attempt budget spans the whole cycle.
// A Cycle is used from a single resolution goroutine and is not safe for
// concurrent use.
type Cycle struct {
	f        *Fetcher
	settled  bool
	results  map[string]fetchResult
	attempts map[string]int
	lastErr  map[string]error
	backoffs map[string]*backoff.ExponentialBackOff
}

// NewCycle starts a resolution cycle
func (f *Fetcher) NewCycle() *Cycle {
	return &Cycle{
		f:        f,
		results:  make(map[string]fetchResult),
		attempts: make(map[string]int),
		lastErr:  make(map[string]error),
		backoffs: make(map[string]*backoff.ExponentialBackOff),
	}
}

// Fetch retrieves the most recent match for an account. Terminal outcomes
// (success, ErrNotFound, ErrModeExcluded) are memoized; transient failures
// (ErrRateLimited, ErrUnavailable) may be retried by calling Fetch again,
// still bounded by the cycle's attempt budget.
func (c *Cycle) Fetch(ctx context.Context, region, name, tag string) (*valorant.Match, error) {
	if !c.settled {
		c.settled = true
		if c.f.cfg.SettleWait > 0 {
			slog.Debug("Waiting for match data to settle", "wait", c.f.cfg.SettleWait)
			if err := c.f.sleep(ctx, c.f.cfg.SettleWait); err != nil {
				return nil, err
			}
		}
	}

	key := name + "#" + tag
	if r, ok := c.results[key]; ok {
		return r.match, r.err
	}

	bo := c.backoffs[key]
	if bo == nil {
		bo = backoff.NewExponentialBackOff()
		bo.InitialInterval = c.f.cfg.InitialBackoff
		bo.MaxInterval = c.f.cfg.MaxBackoff
		bo.MaxElapsedTime = 0
		bo.Reset()
		c.backoffs[key] = bo
	}

	// A single call makes a short burst of attempts; the remainder of the
	// cycle budget is left for the resolver's spaced re-try.
	calls := 0
	for c.attempts[key] < c.f.cfg.MaxAttempts && calls < attemptsPerCall {
		c.attempts[key]++
		calls++

		match, err := c.f.source.LastMatch(ctx, region, name, tag)
		if err == nil {
			if c.f.cfg.CompetitiveOnly && !match.IsCompetitive() {
				err := fmt.Errorf("%s %q: %w", key, match.Metadata.Mode, ErrModeExcluded)
				c.results[key] = fetchResult{err: err}
				return nil, err
			}
			c.results[key] = fetchResult{match: match}
			return match, nil
		}

		transient, wait := c.f.classify(err, bo)
		if transient == nil {
			err := fmt.Errorf("%s: %w", key, ErrNotFound)
			c.results[key] = fetchResult{err: err}
			return nil, err
		}

		c.lastErr[key] = transient
		if c.attempts[key] >= c.f.cfg.MaxAttempts || calls >= attemptsPerCall {
			break
		}

		slog.Debug("Retrying fetch", "account", key, "attempt", c.attempts[key], "wait", wait, "error", err)
		if err := c.f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	lastErr := c.lastErr[key]
	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return nil, fmt.Errorf("%s: %w", key, lastErr)
}

// classify maps a source error to a transient sentinel and a retry wait.
// A nil sentinel means the error is terminal not-found.
func (f *Fetcher) classify(err error, bo *backoff.ExponentialBackOff) (error, time.Duration) {
	if errors.Is(err, valorant.ErrNoMatches) {
		return nil, 0
	}

	var apiErr *valorant.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return nil, 0
		case apiErr.StatusCode == http.StatusTooManyRequests:
			wait := bo.NextBackOff()
			if apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
			return ErrRateLimited, wait
		}
	}

	// Transport failures and 5xx responses retry on the plain schedule.
	return ErrUnavailable, bo.NextBackOff()
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := f.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
