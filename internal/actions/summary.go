package actions

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/nao1215/markdown"
)

type Summary struct {
	URL         string
	Success     bool
	BrokenLinks int
	Output      string
	// NotReady holds the readiness timeout reason when the check never ran.
	NotReady string
}

// RenderSummary renders the "Link Check Results" markdown block.
func RenderSummary(s Summary) (string, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H2("Link Check Results")
	md.PlainText("")

	switch {
	case s.NotReady != "":
		md.PlainText("**Status:** :hourglass: URL never became ready")
	case s.Success:
		md.PlainText("**Status:** :white_check_mark: All links are valid!")
	default:
		md.PlainText("**Status:** :x: Found broken links")
	}
	md.PlainText("")
	md.PlainText("**URL:** " + s.URL)
	md.PlainText("")

	if s.NotReady != "" {
		md.Cautionf("%s", s.NotReady)
	} else if !s.Success {
		md.Table(markdown.TableSet{
			Header: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Broken Links", strconv.Itoa(s.BrokenLinks)},
			},
		})
		md.PlainText("")
		md.H3("Details")
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlight("text"), s.Output)
	}

	if err := md.Build(); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

// WriteSummary appends the rendered summary to $GITHUB_STEP_SUMMARY.
func (r *Reporter) WriteSummary(s Summary) error {
	if r.summaryFile == "" {
		return nil
	}
	body, err := RenderSummary(s)
	if err != nil {
		return err
	}
	return appendFile(r.summaryFile, body)
}
