// Package linkcheck runs the muffet link checker once and turns its exit code
// and combined output into a Result.
package linkcheck

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ReportDirName  = ".linkcheck"
	ReportFileName = "muffet-report.txt"
)

// ReportDir is the fixed report location under a workspace root.
func ReportDir(workspace string) string {
	if strings.TrimSpace(workspace) == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ReportDirName)
}

type Result struct {
	ExitCode    int
	Output      string
	BrokenLinks int
	ReportPath  string
	Duration    time.Duration
}

// Success trusts the exit code; BrokenLinks is explanatory detail only.
func (r Result) Success() bool { return r.ExitCode == 0 }

type OrchestratorConfig struct {
	Runner     ProcessRunner
	ToolPath   string
	ReportDir  string
	Classifier Classifier
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *zap.SugaredLogger
}

type Orchestrator struct {
	runner    ProcessRunner
	toolPath  string
	reportDir string
	classify  Classifier
	stdout    io.Writer
	stderr    io.Writer
	logger    *zap.SugaredLogger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	classify := cfg.Classifier
	if classify == nil {
		classify = CountBrokenLinks
	}
	toolPath := strings.TrimSpace(cfg.ToolPath)
	if toolPath == "" {
		toolPath = "muffet"
	}
	reportDir := cfg.ReportDir
	if reportDir == "" {
		reportDir = ReportDir(".")
	}
	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Orchestrator{
		runner:    cfg.Runner,
		toolPath:  toolPath,
		reportDir: reportDir,
		classify:  classify,
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger,
	}
}

// WithTool returns a copy of o that launches the checker at path.
func (o *Orchestrator) WithTool(path string) *Orchestrator {
	cp := *o
	if path = strings.TrimSpace(path); path != "" {
		cp.toolPath = path
	}
	return &cp
}

// ToolPath is the executable the next Run launches.
func (o *Orchestrator) ToolPath() string { return o.toolPath }

// Run builds the arguments, executes the checker once, classifies the output
// and persists it. Broken links are a normal Result; the returned error is
// reserved for invalid config and report persistence failures.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	args := BuildArgs(cfg)
	o.logger.Infow(
		"linkcheck_configuration",
		"url", cfg.TargetURL,
		"tool", o.toolPath,
		"args", strings.Join(args, " "),
	)

	var combined combinedBuffer
	start := time.Now()
	o.logger.Infow("linkcheck_started", "url", cfg.TargetURL)

	exitCode, err := o.runner.Run(ctx, o.toolPath, args,
		io.MultiWriter(&combined, passThrough{o.stdout}),
		io.MultiWriter(&combined, passThrough{o.stderr}),
	)
	if err != nil {
		o.logger.Warnw("linkcheck_execution_error", "tool", o.toolPath, "err", err.Error())
		combined.appendText(fmt.Sprintf("muffet execution error: %s\n", err.Error()))
		exitCode = 1
	}

	output := combined.String()
	res := Result{
		ExitCode:    exitCode,
		Output:      output,
		BrokenLinks: o.classify(output),
		Duration:    time.Since(start),
	}

	o.logger.Infow(
		"linkcheck_finished",
		"url", cfg.TargetURL,
		"exit_code", res.ExitCode,
		"broken_links", res.BrokenLinks,
		"duration", res.Duration.Round(time.Millisecond).String(),
	)

	reportPath, werr := o.writeReport(output)
	if werr != nil {
		return res, werr
	}
	res.ReportPath = reportPath
	return res, nil
}

func (o *Orchestrator) writeReport(output string) (string, error) {
	if err := os.MkdirAll(o.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(o.reportDir, ReportFileName)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
