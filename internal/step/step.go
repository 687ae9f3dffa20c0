// Package step runs the whole CI step: optional readiness wait, one checker
// execution, step outputs, summary, history and verdict fan-out.
package step

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"linkcheck-step/config"
	"linkcheck-step/internal/actions"
	"linkcheck-step/internal/history"
	"linkcheck-step/internal/linkcheck"
	"linkcheck-step/internal/notify"
	"linkcheck-step/internal/readiness"
)

var (
	ErrNotReady    = errors.New("target not ready")
	ErrBrokenLinks = errors.New("broken links found")
)

// NotReadyError carries the readiness timeout reason as its message.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string        { return e.Reason }
func (e *NotReadyError) Is(target error) bool { return target == ErrNotReady }

// BrokenLinksError fails the step when fail-on-error is set.
type BrokenLinksError struct {
	Count int
}

func (e *BrokenLinksError) Error() string {
	return fmt.Sprintf("Link check failed with %d broken links", e.Count)
}

func (e *BrokenLinksError) Is(target error) bool { return target == ErrBrokenLinks }

const (
	OutputSuccess     = "success"
	OutputBrokenLinks = "broken-links-count"
	OutputReportPath  = "report-path"
)

// Locator resolves the checker executable.
type Locator interface {
	Locate() (string, error)
}

// Verdict is what one run decided. Check is zero when the target never
// became ready.
type Verdict struct {
	RunID   string
	Wait    readiness.Outcome
	Check   linkcheck.Result
	Success bool
}

type Step struct {
	cfg          *config.Config
	poller       *readiness.Poller
	orchestrator *linkcheck.Orchestrator
	locator      Locator
	reporter     *actions.Reporter
	store        *history.Store
	dispatcher   *notify.Dispatcher
	logger       *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

type NewStepParams struct {
	fx.In

	Config       *config.Config
	Poller       *readiness.Poller
	Orchestrator *linkcheck.Orchestrator
	Locator      Locator
	Reporter     *actions.Reporter
	Store        *history.Store     `optional:"true"`
	Dispatcher   *notify.Dispatcher `optional:"true"`
	Logger       *zap.SugaredLogger
}

func NewStep(p NewStepParams) *Step {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Step{
		cfg:          p.Config,
		poller:       p.Poller,
		orchestrator: p.Orchestrator,
		locator:      p.Locator,
		reporter:     p.Reporter,
		store:        p.Store,
		dispatcher:   p.Dispatcher,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Wait runs only the readiness phase. A disabled wait is immediately ready.
func (s *Step) Wait(ctx context.Context) (readiness.Outcome, error) {
	if err := s.cfg.RequireURL(); err != nil {
		return readiness.Outcome{}, err
	}
	wcfg, err := WaitConfig(s.cfg)
	if err != nil {
		return readiness.Outcome{}, err
	}
	if !wcfg.Enabled() {
		return s.poller.Poll(ctx, wcfg), nil
	}

	s.reporter.StartGroup("Waiting for URL to be ready")
	out := s.poller.Poll(ctx, wcfg)
	s.reporter.EndGroup()

	if !out.Ready() {
		return out, &NotReadyError{Reason: out.Reason}
	}
	s.logger.Infow("readiness_ok", "url", wcfg.TargetURL, "attempts", out.Attempts, "elapsed", out.Elapsed.String())
	return out, nil
}

// Run executes the step. The verdict is returned alongside ErrNotReady or
// ErrBrokenLinks so callers can still report it. Any failure is also emitted
// as an ::error:: workflow command.
func (s *Step) Run(ctx context.Context) (v Verdict, err error) {
	defer func() {
		switch {
		case err == nil:
		case errors.Is(err, ErrNotReady), errors.Is(err, ErrBrokenLinks):
			s.reporter.Error(err.Error())
		default:
			s.reporter.Error("Action failed: " + err.Error())
		}
	}()
	return s.run(ctx)
}

func (s *Step) run(ctx context.Context) (Verdict, error) {
	startedAt := s.now().UTC()
	v := Verdict{RunID: s.newID()}

	wait, err := s.Wait(ctx)
	v.Wait = wait
	if err != nil {
		if !errors.Is(err, ErrNotReady) {
			return v, err
		}
		s.setOutputs(false, 0, "")
		s.writeSummary(actions.Summary{URL: s.cfg.URL, NotReady: wait.Reason})
		s.finish(ctx, v, startedAt)
		return v, err
	}

	toolPath, err := s.locator.Locate()
	if err != nil {
		return v, err
	}

	res, err := s.orchestrator.WithTool(toolPath).Run(ctx, CheckConfig(s.cfg))
	if err != nil {
		return v, err
	}
	v.Check = res
	v.Success = res.Success()

	s.setOutputs(v.Success, res.BrokenLinks, res.ReportPath)
	s.writeSummary(actions.Summary{
		URL:         s.cfg.URL,
		Success:     v.Success,
		BrokenLinks: res.BrokenLinks,
		Output:      res.Output,
	})

	if v.Success {
		s.logger.Infow("linkcheck_passed", "url", s.cfg.URL)
		s.reporter.Notice("All links are valid!")
	} else {
		s.logger.Warnw("linkcheck_failed", "url", s.cfg.URL, "broken_links", res.BrokenLinks, "exit_code", res.ExitCode)
		s.reporter.Warning(fmt.Sprintf("Found %d broken links. See report for details.", res.BrokenLinks))
	}

	s.finish(ctx, v, startedAt)

	if !v.Success && s.cfg.FailOnError {
		return v, &BrokenLinksError{Count: res.BrokenLinks}
	}
	return v, nil
}

func (s *Step) setOutputs(success bool, broken int, reportPath string) {
	outputs := [][2]string{
		{OutputSuccess, strconv.FormatBool(success)},
		{OutputBrokenLinks, strconv.Itoa(broken)},
	}
	if reportPath != "" {
		outputs = append(outputs, [2]string{OutputReportPath, reportPath})
	}
	for _, o := range outputs {
		if err := s.reporter.SetOutput(o[0], o[1]); err != nil {
			s.logger.Warnw("set_output_failed", "name", o[0], "err", err)
		}
	}
}

func (s *Step) writeSummary(sum actions.Summary) {
	if err := s.reporter.WriteSummary(sum); err != nil {
		s.logger.Warnw("write_summary_failed", "err", err)
	}
}

// finish records and publishes the verdict. Neither can change it.
func (s *Step) finish(ctx context.Context, v Verdict, startedAt time.Time) {
	finishedAt := s.now().UTC()

	if s.store.Enabled() {
		err := s.store.Record(ctx, history.Run{
			ID:               v.RunID,
			TargetURL:        s.cfg.URL,
			Success:          v.Success,
			ExitCode:         v.Check.ExitCode,
			BrokenLinksCount: v.Check.BrokenLinks,
			ReportPath:       v.Check.ReportPath,
			Readiness:        readinessLabel(v.Wait),
			StartedAt:        startedAt,
			FinishedAt:       finishedAt,
		})
		if err != nil {
			s.logger.Warnw("history_record_failed", "run_id", v.RunID, "err", err)
		}
	}

	s.dispatcher.Publish(ctx, notify.VerdictEvent{
		RunID:            v.RunID,
		URL:              s.cfg.URL,
		Success:          v.Success,
		BrokenLinksCount: v.Check.BrokenLinks,
		ExitCode:         v.Check.ExitCode,
		ReportPath:       v.Check.ReportPath,
		Readiness:        readinessLabel(v.Wait),
		Reason:           v.Wait.Reason,
		FinishedAt:       finishedAt,
	})
}

func readinessLabel(o readiness.Outcome) string {
	if o.State == "" {
		return string(readiness.StateReady)
	}
	return string(o.State)
}
