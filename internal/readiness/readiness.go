// Package readiness blocks until a target URL answers HTTP 200 and, when
// configured, its body matches a pattern, or until a deadline passes.
package readiness

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// DefaultAttemptTimeout bounds a single probe independently of the overall deadline.
const DefaultAttemptTimeout = 30 * time.Second

type State string

const (
	StateReady    State = "ready"
	StateTimedOut State = "timed_out"
)

type Config struct {
	TargetURL        string
	RequireReachable bool
	ContentPattern   *regexp.Regexp
	Timeout          time.Duration
	Interval         time.Duration
	SkipTLSVerify    bool
}

// Normalize returns a copy where a content pattern implies RequireReachable.
func (c Config) Normalize() Config {
	if c.ContentPattern != nil {
		c.RequireReachable = true
	}
	return c
}

// Enabled reports whether polling is needed at all.
func (c Config) Enabled() bool {
	return c.RequireReachable || c.ContentPattern != nil
}

// Outcome is the terminal result of one Poll call.
type Outcome struct {
	State    State
	Body     string
	Elapsed  time.Duration
	Reason   string
	Attempts int
}

func (o Outcome) Ready() bool { return o.State == StateReady }

type Poller struct {
	probe          Probe
	clock          Clock
	logger         *zap.SugaredLogger
	attemptTimeout time.Duration
}

func NewPoller(probe Probe, clock Clock, logger *zap.SugaredLogger) *Poller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{
		probe:          probe,
		clock:          clock,
		logger:         logger,
		attemptTimeout: DefaultAttemptTimeout,
	}
}

// Poll never returns transport or status errors; they are retried until the
// deadline and only then summarized in a StateTimedOut outcome.
func (p *Poller) Poll(ctx context.Context, cfg Config) Outcome {
	cfg = cfg.Normalize()
	if !cfg.Enabled() {
		return Outcome{State: StateReady}
	}

	pattern := ""
	if cfg.ContentPattern != nil {
		pattern = cfg.ContentPattern.String()
	}
	p.logger.Infow(
		"readiness_wait_started",
		"url", cfg.TargetURL,
		"content_pattern", pattern,
		"timeout", cfg.Timeout.String(),
		"interval", cfg.Interval.String(),
	)

	maxAttempts := 1
	if cfg.Interval > 0 {
		maxAttempts = int(cfg.Timeout/cfg.Interval) + 1
	}

	start := p.clock.Now()
	attempts := 0
	everReachable := false
	lastProblem := ""

	for attempts < maxAttempts {
		elapsed := p.clock.Now().Sub(start)
		if elapsed >= cfg.Timeout {
			break
		}
		attempts++

		p.logger.Infow(
			"readiness_attempt",
			"attempt", attempts,
			"elapsed", elapsed.Round(time.Second).String(),
		)

		body, ok, problem := p.attempt(ctx, cfg, cfg.Timeout-elapsed)
		if ok {
			p.logger.Infow("readiness_ready", "url", cfg.TargetURL, "attempts", attempts)
			return Outcome{
				State:    StateReady,
				Body:     body,
				Elapsed:  p.clock.Now().Sub(start),
				Attempts: attempts,
			}
		}
		if problem == problemNoMatch {
			everReachable = true
		}
		lastProblem = problem

		remaining := cfg.Timeout - p.clock.Now().Sub(start)
		if remaining <= 0 || attempts >= maxAttempts {
			break
		}
		if err := p.clock.Sleep(ctx, min(cfg.Interval, remaining)); err != nil {
			lastProblem = err.Error()
			break
		}
	}

	elapsed := p.clock.Now().Sub(start)
	reason := timeoutReason(elapsed, pattern, everReachable, lastProblem)
	p.logger.Errorw("readiness_timed_out", "url", cfg.TargetURL, "attempts", attempts, "reason", reason)

	return Outcome{
		State:    StateTimedOut,
		Elapsed:  elapsed,
		Reason:   reason,
		Attempts: attempts,
	}
}

const problemNoMatch = "content not yet matching"

func (p *Poller) attempt(ctx context.Context, cfg Config, remaining time.Duration) (string, bool, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, min(p.attemptTimeout, remaining))
	defer cancel()

	resp, err := p.probe.Get(attemptCtx, cfg.TargetURL, cfg.SkipTLSVerify)
	if err != nil {
		p.logger.Infow("readiness_request_failed", "url", cfg.TargetURL, "err", err.Error())
		return "", false, err.Error()
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Infow("readiness_unexpected_status", "url", cfg.TargetURL, "status", resp.StatusCode)
		return "", false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	if cfg.ContentPattern == nil {
		return resp.Body, true, ""
	}
	if cfg.ContentPattern.MatchString(resp.Body) {
		p.logger.Infow("readiness_content_matched", "url", cfg.TargetURL)
		return resp.Body, true, ""
	}
	p.logger.Infow("readiness_content_not_matched", "url", cfg.TargetURL)
	return "", false, problemNoMatch
}

func timeoutReason(elapsed time.Duration, pattern string, everReachable bool, lastProblem string) string {
	secs := int(elapsed.Round(time.Second) / time.Second)
	if pattern != "" && everReachable {
		return fmt.Sprintf("Timeout after %ds: Content matching '%s' not found", secs, pattern)
	}
	if lastProblem == "" || lastProblem == problemNoMatch {
		return fmt.Sprintf("Timeout after %ds: URL not accessible", secs)
	}
	return fmt.Sprintf("Timeout after %ds: URL not accessible (last error: %s)", secs, lastProblem)
}
