package fx

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"linkcheck-step/config"
	"linkcheck-step/internal/actions"
	"linkcheck-step/internal/history"
	"linkcheck-step/internal/linkcheck"
	"linkcheck-step/internal/notify"
	"linkcheck-step/internal/readiness"
	"linkcheck-step/internal/step"
	"linkcheck-step/internal/toolcache"
)

// AsPublisher registers a constructor in the verdict_publishers group.
func AsPublisher(f any) fx.Option {
	return fx.Provide(
		fx.Annotate(
			f,
			fx.As(new(notify.Publisher)),
			fx.ResultTags(`group:"verdict_publishers"`),
		),
	)
}

// StepModule wires the readiness poller, the checker and the reporting
// adapters into a *step.Step.
var StepModule = fx.Options(
	fx.Provide(
		NewProbe,
		NewClock,
		readiness.NewPoller,
		NewProcessRunner,
		NewOrchestrator,
		NewLocator,
		func(l *toolcache.Locator) step.Locator { return l },
		NewReporter,
		step.NewStep,
	),
)

// HistoryModule provides the optional run history store (nil when disabled).
var HistoryModule = fx.Options(
	fx.Provide(history.NewStore),
)

// NotifyModule provides the verdict dispatcher and its publishers.
var NotifyModule = fx.Options(
	AsPublisher(notify.NewAMQPPublisher),
	AsPublisher(notify.NewRedisPublisher),
	fx.Provide(notify.NewDispatcher),
)

func NewProbe() readiness.Probe { return readiness.NewHTTPProbe() }

func NewClock() readiness.Clock { return readiness.SystemClock{} }

type NewProcessRunnerParams struct {
	fx.In

	Cfg *config.Config
}

func NewProcessRunner(p NewProcessRunnerParams) linkcheck.ProcessRunner {
	return linkcheck.NewExecRunner(p.Cfg.Workspace)
}

type NewOrchestratorParams struct {
	fx.In

	Cfg    *config.Config
	Runner linkcheck.ProcessRunner
	Logger *zap.SugaredLogger
}

// NewOrchestrator tees the checker's streams to the process stdout/stderr so
// the CI log shows muffet output live.
func NewOrchestrator(p NewOrchestratorParams) *linkcheck.Orchestrator {
	return linkcheck.NewOrchestrator(linkcheck.OrchestratorConfig{
		Runner:    p.Runner,
		ReportDir: linkcheck.ReportDir(p.Cfg.Workspace),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    p.Logger,
	})
}

type NewLocatorParams struct {
	fx.In

	Cfg    *config.Config
	Logger *zap.SugaredLogger
}

func NewLocator(p NewLocatorParams) *toolcache.Locator {
	return toolcache.NewLocator(toolcache.LocatorConfig{
		ExplicitPath: p.Cfg.MuffetPath,
		Logger:       p.Logger,
	})
}

func NewReporter(cfg *config.Config) *actions.Reporter {
	return actions.NewReporter(actions.ReporterConfig{
		OutputFile:  cfg.OutputFile,
		SummaryFile: cfg.SummaryFile,
		Stdout:      os.Stdout,
	})
}
