// Package report renders execution outcomes for the terminal and hands the
// aggregated suite result to external report writers via a JSON summary
// file.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"grpcheck/internal/orchestrator"
	"grpcheck/pkg/logging"
)

// Console reports progress and results to a terminal. Case completions
// arrive concurrently from worker goroutines and are only counted; detailed
// failure output is deferred to batch end so parallel cases never interleave
// their diffs.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	jsonPath string

	spin  *spinner.Spinner
	done  int
	total int
}

// NewConsole creates a console reporter. When jsonPath is non-empty the
// aggregated suite result is additionally written there as JSON for
// external report-format writers.
func NewConsole(out io.Writer, verbose bool, jsonPath string) *Console {
	return &Console{out: out, verbose: verbose, jsonPath: jsonPath}
}

func (c *Console) RunStarted(total, workers int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = total
	fmt.Fprintf(c.out, "Running %d test(s) with %d worker(s)\n", total, workers)

	if !c.verbose {
		c.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		c.spin.Suffix = fmt.Sprintf(" 0/%d", total)
		c.spin.Start()
	}
}

func (c *Console) CaseFinished(outcome orchestrator.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done++
	if c.spin != nil {
		c.spin.Suffix = fmt.Sprintf(" %d/%d", c.done, c.total)
		return
	}
	fmt.Fprintf(c.out, "%s %s (%dms)\n", statusLabel(outcome.Status), outcome.Path, outcome.DurationMs())
}

func (c *Console) RunFinished(result *orchestrator.SuiteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.spin != nil {
		c.spin.Stop()
		c.spin = nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"RESULT", "TEST", "DURATION"})
	for _, o := range result.Outcomes {
		t.AppendRow(table.Row{statusLabel(o.Status), o.Path, fmt.Sprintf("%dms", o.DurationMs())})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d passed", result.Passed),
		fmt.Sprintf("%d failed, %d errored, %d skipped", result.Failed, result.Errored, result.Skipped),
		result.Duration().Round(time.Millisecond),
	})
	t.Render()

	// Failures are rendered together at batch end, in submission order.
	for _, f := range result.Failures() {
		fmt.Fprintf(c.out, "\n%s %s (%dms)\n", statusLabel(f.Status), f.Path, f.DurationMs())
		if f.Detail != "" {
			fmt.Fprintln(c.out, indent(f.Detail, "  "))
		}
	}

	if c.jsonPath != "" {
		if err := writeJSONSummary(c.jsonPath, result); err != nil {
			logging.Error("Reporter", err, "writing JSON summary to %s", c.jsonPath)
		}
	}
}

func statusLabel(s orchestrator.Status) string {
	switch s {
	case orchestrator.StatusPassed:
		return text.FgGreen.Sprint(string(s))
	case orchestrator.StatusFailed:
		return text.FgRed.Sprint(string(s))
	case orchestrator.StatusError:
		return text.FgHiRed.Sprint(string(s))
	default:
		return text.FgYellow.Sprint(string(s))
	}
}

func indent(s, prefix string) string {
	out := prefix
	for _, r := range s {
		out += string(r)
		if r == '\n' {
			out += prefix
		}
	}
	return out
}

func writeJSONSummary(path string, result *orchestrator.SuiteResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
