// Package reporting renders run results for people: progress and a summary on the
// console, and a per-run directory of result files.
package reporting

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Console prints a dot per finished test and a summary once the run finishes.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole creates a console reporter writing to out. Colors are enabled only when
// out is a terminal.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, color: isTerminal(out)}
}

// WithColor forces colored output on or off.
func (c *Console) WithColor(enabled bool) *Console {
	c.color = enabled
	return c
}

// Subscribe attaches the reporter to bus.
func (c *Console) Subscribe(bus *events.Bus) {
	bus.OnTestFinished(c.testFinished)
	bus.OnSuiteFinished(c.suiteFinished)
}

func (c *Console) testFinished(result *types.CompletedTest) error {
	mark := c.paint(text.Colors{text.FgGreen}, ".")
	if result.Failed() {
		mark = c.paint(text.Colors{text.FgRed}, "x")
	}
	_, err := fmt.Fprint(c.out, mark)
	return err
}

func (c *Console) suiteFinished(results []*types.CompletedTest, elapsed time.Duration) error {
	_, err := fmt.Fprintf(c.out, "\n%s", Render(results, elapsed, c.color))
	return err
}

func (c *Console) paint(colors text.Colors, s string) string {
	if !c.color || len(colors) == 0 {
		return s
	}
	return colors.Sprint(s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render formats the summary of a run: a table of every test with its duration,
// the details of each failure and the totals.
func Render(results []*types.CompletedTest, elapsed time.Duration, color bool) string {
	var buf bytes.Buffer
	paint := func(colors text.Colors, s string) string {
		if !color || len(colors) == 0 {
			return s
		}
		return colors.Sprint(s)
	}

	percentiles := Percentiles(results)

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle("Test Results")
	t.AppendHeader(table.Row{"Status", "Test", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	failed := 0
	for i, r := range results {
		status := paint(text.Colors{text.FgGreen}, "PASS")
		if r.Failed() {
			failed++
			status = paint(text.Colors{text.FgRed}, "FAIL")
		}
		t.AppendRow(table.Row{
			status,
			paint(text.Colors{text.FgBlue}, r.FullName()),
			paint(durationColors(r, percentiles[i]), formatDuration(r)),
		})
	}

	overall := "PASS"
	switch {
	case !color:
		t.SetStyle(table.StyleDefault)
	case failed > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	if failed > 0 {
		overall = "FAIL"
	}
	t.AppendFooter(table.Row{overall, fmt.Sprintf("%d tests", len(results)), elapsed.Truncate(time.Millisecond).String()})
	t.Render()

	for _, r := range results {
		if !r.Failed() {
			continue
		}
		fmt.Fprintf(&buf, "\nFailure in %s\nError: %s\n", r.FullName(), paint(text.Colors{text.FgRed}, r.Failure.Error()))
		var panicErr *failure.PanicError
		if errors.As(r.Failure, &panicErr) && len(panicErr.Stack) > 0 {
			fmt.Fprintf(&buf, "Stack:\n------\n%s\n", paint(text.Colors{text.FgRed}, string(panicErr.Stack)))
		}
	}

	fmt.Fprintf(&buf, "\nTotal time: %s\n", elapsed)
	fmt.Fprintf(&buf, "Total tests: %d (%d failed)\n", len(results), failed)
	return buf.String()
}

func formatDuration(r *types.CompletedTest) string {
	if !r.Executed {
		return "not run"
	}
	if r.Duration < time.Second {
		return fmt.Sprintf("%dms", r.Duration.Milliseconds())
	}
	return r.Duration.Truncate(time.Millisecond).String()
}

// durationColors marks the slowest tests red and the fastest green.
func durationColors(r *types.CompletedTest, percentile float64) text.Colors {
	if !r.Executed {
		return nil
	}
	switch {
	case percentile < 10:
		return text.Colors{text.FgRed}
	case percentile > 90:
		return text.Colors{text.FgGreen}
	case percentile < 30:
		return text.Colors{text.FgYellow}
	default:
		return nil
	}
}

// Percentiles ranks every executed test by duration: the share (in percent) of
// executed tests strictly slower than it, over the executed count plus one. Low
// values are the slowest tests. Tests that never ran get 100.
func Percentiles(results []*types.CompletedTest) []float64 {
	var durations []time.Duration
	for _, r := range results {
		if r.Executed {
			durations = append(durations, r.Duration)
		}
	}
	slices.Sort(durations)

	out := make([]float64, len(results))
	for i, r := range results {
		if !r.Executed {
			out[i] = 100
			continue
		}
		idx, _ := slices.BinarySearch(durations, r.Duration+1)
		slower := len(durations) - idx
		out[i] = float64(slower) / float64(len(durations)+1) * 100
	}
	return out
}
