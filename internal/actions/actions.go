// Package actions talks to the CI runner: step outputs, workflow commands
// (notices, warnings, log groups) and the markdown step summary.
package actions

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ReporterConfig struct {
	// OutputFile is $GITHUB_OUTPUT; when empty outputs are printed as name=value.
	OutputFile string
	// SummaryFile is $GITHUB_STEP_SUMMARY; when empty the summary is skipped.
	SummaryFile string
	Stdout      io.Writer
}

type Reporter struct {
	outputFile  string
	summaryFile string
	out         io.Writer

	newDelimiter func() string
}

func NewReporter(cfg ReporterConfig) *Reporter {
	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		outputFile:   strings.TrimSpace(cfg.OutputFile),
		summaryFile:  strings.TrimSpace(cfg.SummaryFile),
		out:          out,
		newDelimiter: func() string { return "ghadelimiter_" + uuid.NewString() },
	}
}

// SetOutput records a step output. Multi-line values use the heredoc form.
func (r *Reporter) SetOutput(name, value string) error {
	if r.outputFile == "" {
		_, err := fmt.Fprintf(r.out, "%s=%s\n", name, value)
		return err
	}

	var line string
	if strings.ContainsAny(value, "\r\n") {
		delim := r.newDelimiter()
		line = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delim, value, delim)
	} else {
		line = fmt.Sprintf("%s=%s\n", name, value)
	}
	return appendFile(r.outputFile, line)
}

func (r *Reporter) Notice(msg string)  { r.command("notice", msg) }
func (r *Reporter) Warning(msg string) { r.command("warning", msg) }
func (r *Reporter) Error(msg string)   { r.command("error", msg) }

func (r *Reporter) StartGroup(title string) { r.command("group", title) }
func (r *Reporter) EndGroup()               { r.command("endgroup", "") }

func (r *Reporter) command(name, msg string) {
	_, _ = fmt.Fprintf(r.out, "::%s::%s\n", name, escapeData(msg))
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func appendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
