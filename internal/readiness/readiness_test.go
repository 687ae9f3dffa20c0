package readiness

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type fakeProbe struct {
	clock *fakeClock
	cost  time.Duration
	calls int
	fn    func(call int) (Response, error)
}

func (p *fakeProbe) Get(_ context.Context, _ string, _ bool) (Response, error) {
	p.calls++
	if p.clock != nil {
		p.clock.now = p.clock.now.Add(p.cost)
	}
	return p.fn(p.calls)
}

func newTestPoller(probe Probe, clock Clock) *Poller {
	return NewPoller(probe, clock, zap.NewNop().Sugar())
}

func TestPoll_NoWaitRequested_ReturnsReadyWithoutProbing(t *testing.T) {
	t.Parallel()

	probe := &fakeProbe{fn: func(int) (Response, error) { t.Fatal("probe must not be called"); return Response{}, nil }}
	clock := newFakeClock()

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL: "http://site.test",
		Timeout:   10 * time.Second,
		Interval:  time.Second,
	})

	require.True(t, out.Ready())
	require.Equal(t, "", out.Body)
	require.Equal(t, 0, probe.calls)
	require.Empty(t, clock.sleeps)
}

func TestPoll_ContentMatchOnFirstAttempt(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &fakeProbe{fn: func(int) (Response, error) {
		return Response{StatusCode: http.StatusOK, Body: "OK-123"}, nil
	}}

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL:      "http://site.test",
		ContentPattern: regexp.MustCompile(`\d+`),
		Timeout:        30 * time.Second,
		Interval:       5 * time.Second,
	})

	require.True(t, out.Ready())
	require.Equal(t, "OK-123", out.Body)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, 1, probe.calls)
	require.Empty(t, clock.sleeps)
}

func TestPoll_ReachableWithoutPattern(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &fakeProbe{fn: func(call int) (Response, error) {
		if call < 3 {
			return Response{}, errors.New("dial tcp: connection refused")
		}
		return Response{StatusCode: http.StatusOK, Body: "<html>"}, nil
	}}

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL:        "http://site.test",
		RequireReachable: true,
		Timeout:          time.Minute,
		Interval:         5 * time.Second,
	})

	require.True(t, out.Ready())
	require.Equal(t, "<html>", out.Body)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.sleeps)
}

func TestPoll_AlwaysNon200_BoundedAttempts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		timeout  time.Duration
		interval time.Duration
	}{
		{10 * time.Second, 3 * time.Second},
		{9 * time.Second, 3 * time.Second},
		{5 * time.Second, 10 * time.Second},
		{300 * time.Second, 5 * time.Second},
	}

	for _, tc := range cases {
		clock := newFakeClock()
		probe := &fakeProbe{fn: func(int) (Response, error) {
			return Response{StatusCode: http.StatusServiceUnavailable}, nil
		}}

		out := newTestPoller(probe, clock).Poll(context.Background(), Config{
			TargetURL:        "http://site.test",
			RequireReachable: true,
			Timeout:          tc.timeout,
			Interval:         tc.interval,
		})

		bound := int(tc.timeout/tc.interval) + 1
		require.Equal(t, StateTimedOut, out.State)
		require.LessOrEqual(t, probe.calls, bound, "timeout=%s interval=%s", tc.timeout, tc.interval)
		require.Equal(t, probe.calls, out.Attempts)
		require.Contains(t, out.Reason, "URL not accessible")
		require.LessOrEqual(t, out.Elapsed, tc.timeout)
	}
}

func TestPoll_NeverSleepsPastDeadline(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &fakeProbe{clock: clock, cost: 2 * time.Second, fn: func(int) (Response, error) {
		return Response{}, errors.New("i/o timeout")
	}}

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL:        "http://site.test",
		RequireReachable: true,
		Timeout:          10 * time.Second,
		Interval:         5 * time.Second,
	})

	require.Equal(t, StateTimedOut, out.State)
	// 0s: attempt (2s) sleep 5 -> 7s: attempt (9s) sleep 1 -> 10s stop.
	require.Equal(t, 2, probe.calls)
	require.Equal(t, []time.Duration{5 * time.Second, time.Second}, clock.sleeps)
	require.Equal(t, 10*time.Second, out.Elapsed)
	require.Contains(t, out.Reason, "i/o timeout")
}

func TestPoll_ContentNeverMatches_ReasonMentionsPattern(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &fakeProbe{fn: func(int) (Response, error) {
		return Response{StatusCode: http.StatusOK, Body: "deploying..."}, nil
	}}

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL:      "http://site.test",
		ContentPattern: regexp.MustCompile(`version: \d+`),
		Timeout:        20 * time.Second,
		Interval:       5 * time.Second,
	})

	require.Equal(t, StateTimedOut, out.State)
	// 0s, 5s, 10s, 15s; the sleep after the fourth lands on the deadline.
	require.Equal(t, 4, probe.calls)
	require.Equal(t, "Timeout after 20s: Content matching 'version: \\d+' not found", out.Reason)
}

func TestPoll_PatternButNeverReachable_ReasonMentionsURL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &fakeProbe{fn: func(int) (Response, error) {
		return Response{StatusCode: http.StatusNotFound}, nil
	}}

	out := newTestPoller(probe, clock).Poll(context.Background(), Config{
		TargetURL:      "http://site.test",
		ContentPattern: regexp.MustCompile(`ready`),
		Timeout:        10 * time.Second,
		Interval:       5 * time.Second,
	})

	require.Equal(t, StateTimedOut, out.State)
	require.Contains(t, out.Reason, "URL not accessible")
	require.Contains(t, out.Reason, "HTTP 404")
}

func TestPoll_CanceledContextStopsWaiting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	clock := newFakeClock()
	probe := &fakeProbe{fn: func(int) (Response, error) {
		cancel()
		return Response{StatusCode: http.StatusBadGateway}, nil
	}}

	out := newTestPoller(probe, clock).Poll(ctx, Config{
		TargetURL:        "http://site.test",
		RequireReachable: true,
		Timeout:          time.Minute,
		Interval:         time.Second,
	})

	require.Equal(t, StateTimedOut, out.State)
	require.Equal(t, 1, probe.calls)
	require.Contains(t, out.Reason, context.Canceled.Error())
}

func TestConfig_Normalize(t *testing.T) {
	t.Parallel()

	cfg := Config{ContentPattern: regexp.MustCompile("x")}.Normalize()
	require.True(t, cfg.RequireReachable)
	require.False(t, Config{}.Normalize().Enabled())
}
