package tracker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/KuuCi/discord-postplant/internal/valorant"
)

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{
		SettleWait:      0,
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
		CompetitiveOnly: true,
	}
}

func TestFetcherMemoizesPerCycle(t *testing.T) {
	t.Parallel()
	source := newFakeSource()
	source.script("A", "NA1", sourceResponse{match: compMatch("M1", redPlayer("A", "NA1"))})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	cycle := f.NewCycle()

	m1, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.NoError(t, err)
	m2, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.NoError(t, err)

	require.Equal(t, m1, m2)
	require.Equal(t, 1, source.callCount("A", "NA1"))
}

func TestFetcherNotFoundIsTerminal(t *testing.T) {
	t.Parallel()
	source := newFakeSource()
	source.script("A", "NA1", sourceResponse{err: &valorant.APIError{StatusCode: http.StatusNotFound}})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	cycle := f.NewCycle()

	_, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, source.callCount("A", "NA1"))

	// Memoized: a re-try does not spend another attempt.
	_, err = cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, source.callCount("A", "NA1"))
}

func TestFetcherEmptyHistoryIsNotFound(t *testing.T) {
	t.Parallel()
	source := newFakeSource()
	source.script("A", "NA1", sourceResponse{err: valorant.ErrNoMatches})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	_, err := f.NewCycle().Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetcherRetriesRateLimitWithinBudget(t *testing.T) {
	t.Parallel()
	rateLimited := sourceResponse{err: &valorant.APIError{StatusCode: http.StatusTooManyRequests}}
	source := newFakeSource()
	source.script("A", "NA1",
		rateLimited,
		rateLimited,
		sourceResponse{match: compMatch("M1", redPlayer("A", "NA1"))},
	)

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	cycle := f.NewCycle()

	// The first call's burst is rate limited both times.
	_, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 2, source.callCount("A", "NA1"))

	// The spaced re-try succeeds on the remaining budget.
	match, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.NoError(t, err)
	require.Equal(t, "M1", match.Metadata.MatchID)
	require.Equal(t, 3, source.callCount("A", "NA1"))
}

func TestFetcherHonorsRetryAfterHint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := newFakeSource()
	source.script("A", "NA1",
		sourceResponse{err: &valorant.APIError{
			StatusCode: http.StatusTooManyRequests,
			RetryAfter: 7 * time.Second,
		}},
		sourceResponse{match: compMatch("M1", redPlayer("A", "NA1"))},
	)

	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTimer()
	defer trap.Close()

	f := NewFetcher(source, clock, testFetcherConfig())
	cycle := f.NewCycle()

	done := make(chan fetchResult, 1)
	go func() {
		m, err := cycle.Fetch(ctx, "na", "A", "NA1")
		done <- fetchResult{m, err}
	}()

	// The provider's hint is larger than the backoff interval and wins.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	require.Equal(t, 7*time.Second, call.Duration)

	clock.Advance(7 * time.Second).MustWait(ctx)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, "M1", res.match.Metadata.MatchID)
	require.Equal(t, 2, source.callCount("A", "NA1"))
}

func TestFetcherSettleWaitOncePerCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := newFakeSource()
	match := compMatch("M1", redPlayer("A", "NA1"), redPlayer("B", "NA2"))
	source.script("A", "NA1", sourceResponse{match: match})
	source.script("B", "NA2", sourceResponse{match: match})

	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTimer()
	defer trap.Close()

	cfg := testFetcherConfig()
	cfg.SettleWait = time.Minute
	f := NewFetcher(source, clock, cfg)
	cycle := f.NewCycle()

	done := make(chan error, 1)
	go func() {
		_, err := cycle.Fetch(ctx, "na", "A", "NA1")
		done <- err
	}()

	// The first fetch of the cycle sleeps the full settle wait.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	require.Equal(t, time.Minute, call.Duration)
	clock.Advance(time.Minute).MustWait(ctx)
	require.NoError(t, <-done)

	// The second account in the same cycle fetches without sleeping; a
	// new settle timer here would hang on the trap.
	m, err := cycle.Fetch(ctx, "na", "B", "NA2")
	require.NoError(t, err)
	require.Equal(t, "M1", m.Metadata.MatchID)
	require.Equal(t, 1, source.callCount("B", "NA2"))
}

func TestFetcherAttemptBudgetSpansCycle(t *testing.T) {
	t.Parallel()
	source := newFakeSource()
	source.script("A", "NA1",
		sourceResponse{err: &valorant.APIError{StatusCode: http.StatusTooManyRequests}})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	cycle := f.NewCycle()

	_, err := cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 2, source.callCount("A", "NA1"))

	// The re-try spends the last budgeted attempt.
	_, err = cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 3, source.callCount("A", "NA1"))

	// Further calls in the same cycle issue no requests at all.
	_, err = cycle.Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 3, source.callCount("A", "NA1"))

	// A new cycle gets a fresh budget.
	_, err = f.NewCycle().Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 5, source.callCount("A", "NA1"))
}

func TestFetcherServerErrorsYieldUnavailable(t *testing.T) {
	t.Parallel()
	source := newFakeSource()
	source.script("A", "NA1",
		sourceResponse{err: &valorant.APIError{StatusCode: http.StatusInternalServerError}})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	_, err := f.NewCycle().Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 2, source.callCount("A", "NA1"))
}

func TestFetcherCompetitiveOnlyPolicy(t *testing.T) {
	t.Parallel()
	unrated := compMatch("M1", redPlayer("A", "NA1"))
	unrated.Metadata.Mode = "Unrated"

	source := newFakeSource()
	source.script("A", "NA1", sourceResponse{match: unrated})

	f := NewFetcher(source, quartz.NewReal(), testFetcherConfig())
	_, err := f.NewCycle().Fetch(context.Background(), "na", "A", "NA1")
	require.ErrorIs(t, err, ErrModeExcluded)
	require.Equal(t, 1, source.callCount("A", "NA1"))

	// With the policy disabled the same match passes through.
	cfg := testFetcherConfig()
	cfg.CompetitiveOnly = false
	f = NewFetcher(source, quartz.NewReal(), cfg)
	match, err := f.NewCycle().Fetch(context.Background(), "na", "A", "NA1")
	require.NoError(t, err)
	require.Equal(t, "Unrated", match.Metadata.Mode)
}
