package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

// Console implementa ports.Reporter y ports.StrategyReporter.
type Console struct {
	out   io.Writer
	table bool // false = resumen de una línea
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report imprime el run en el modo configurado.
func (c *Console) Report(_ context.Context, report domain.RunReport) error {
	if len(report.Results) == 0 {
		fmt.Fprintf(c.out, "[%s] no backend results\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(report)
	} else {
		c.printCompact(report)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(r domain.RunReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] run %s → %d steps from %s",
		time.Now().Format("15:04:05"), shortID(r.ID), r.Steps, r.Cutoff.Format("01-02 15:04"))

	if r.HasTruth() {
		for i, res := range r.Ranking {
			fmt.Fprintf(&sb, " | #%d %s mape=%.4f%%", i+1, res.Backend, 100*float64(res.Score()))
		}
	} else {
		for _, res := range r.Results {
			if !res.Failed() {
				fmt.Fprintf(&sb, " | %s last=%.4f", res.Backend, res.Path.Last().Value)
			}
		}
	}
	if n := len(domain.Failures(r.Results)); n > 0 {
		fmt.Fprintf(&sb, " | failed:%d", n)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime ranking (o resumen de paths si no hubo truth) y fallos.
func (c *Console) printFull(r domain.RunReport) {
	fmt.Fprintf(c.out, "\n[%s] run %s | window %d × %d fields, target %s, %d steps after %s\n",
		time.Now().Format("15:04:05"), r.ID, r.Spec.Size, len(r.Spec.Fields), r.Spec.Target,
		r.Steps, r.Cutoff.Format("2006-01-02 15:04"))

	if r.HasTruth() {
		c.printRanking(r)
	} else {
		c.printPaths(r)
	}
	c.printFailures(r)
}

func (c *Console) printRanking(r domain.RunReport) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Backend", "MAPE", "RMSE", "MAE", "Fit", "Forecast", "Last")

	for i, res := range r.Ranking {
		table.Append(
			fmt.Sprintf("%d", i+1),
			res.Backend,
			fmt.Sprintf("%.4f%%", 100*float64(res.Score())),
			fmt.Sprintf("%.4f", res.Evaluation.RMSE),
			fmt.Sprintf("%.4f", res.Evaluation.MAE),
			res.FitDuration.Round(time.Millisecond).String(),
			res.ForecastDuration.Round(time.Millisecond).String(),
			fmt.Sprintf("%.4f", res.Path.Last().Value),
		)
	}
	table.Render()

	if actual, err := r.Truth.Column(r.Spec.Target); err == nil && len(actual) > 0 {
		fmt.Fprintf(c.out, "  truth: %d points, last %.4f\n", len(actual), actual[len(actual)-1])
	}
	if best, ok := r.Best(); ok {
		fmt.Fprintf(c.out, "  >>> BEST: %s (MAPE %.4f%%)\n", best.Backend, 100*float64(best.Score()))
	}
}

func (c *Console) printPaths(r domain.RunReport) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Backend", "Steps", "First", "Last", "Min", "Max", "Fit", "Forecast")

	for _, res := range r.Results {
		if res.Failed() || res.Path.Len() == 0 {
			continue
		}
		values := res.Path.Values()
		table.Append(
			res.Backend,
			fmt.Sprintf("%d", res.Path.Len()),
			fmt.Sprintf("%.4f", values[0]),
			fmt.Sprintf("%.4f", values[len(values)-1]),
			fmt.Sprintf("%.4f", floats.Min(values)),
			fmt.Sprintf("%.4f", floats.Max(values)),
			res.FitDuration.Round(time.Millisecond).String(),
			res.ForecastDuration.Round(time.Millisecond).String(),
		)
	}
	table.Render()
	fmt.Fprintln(c.out, "  no ground truth: paths not scored")
}

func (c *Console) printFailures(r domain.RunReport) {
	failures := domain.Failures(r.Results)
	if len(failures) == 0 {
		fmt.Fprintln(c.out)
		return
	}
	fmt.Fprintf(c.out, "\n  FAILED (%d):\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(c.out, "  x %-14s %v\n", f.Backend, f.Err)
	}
	fmt.Fprintln(c.out)
}

// ReportStrategy imprime el resultado del backtest de estrategia.
func (c *Console) ReportStrategy(_ context.Context, r domain.StrategyReport) error {
	fmt.Fprintf(c.out, "\n=== STRATEGY BACKTEST | buy when predicted > current, %d step(s) ahead, stake %.0f ===\n",
		r.Lookahead, r.Stake)
	fmt.Fprintf(c.out, "  train %d windows | test %d windows (%s → %s)\n\n",
		r.TrainLen, r.TestLen, r.TestFrom.Format("2006-01-02 15:04"), r.TestTo.Format("2006-01-02 15:04"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Backend", "Trades", "Wins", "Hit%", "Total P&L", "MAE")
	var failed []domain.StrategyResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
			continue
		}
		mae := 0.0
		if len(res.AbsErrors) > 0 {
			mae = stat.Mean(res.AbsErrors, nil)
		}
		table.Append(
			res.Backend,
			fmt.Sprintf("%d", res.Trades),
			fmt.Sprintf("%d", res.Wins),
			fmt.Sprintf("%.1f%%", 100*res.HitRate()),
			fmt.Sprintf("%.4f", res.Total),
			fmt.Sprintf("%.4f", mae),
		)
	}
	table.Render()

	for _, f := range failed {
		fmt.Fprintf(c.out, "  x %-14s %v\n", f.Backend, f.Err)
	}
	fmt.Fprintln(c.out)
	return nil
}

// PrintHistory imprime el histórico de runs guardado.
func (c *Console) PrintHistory(history []ports.RunSummary) {
	if len(history) == 0 {
		fmt.Fprintln(c.out, "\n  No runs stored in the selected range.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Started", "Run", "Backend", "Steps", "Rank", "MAPE", "Error")
	for _, h := range history {
		rank, mape := "-", "-"
		if h.Rank > 0 {
			rank = fmt.Sprintf("%d", h.Rank)
		}
		if h.Scored {
			mape = fmt.Sprintf("%.4f%%", 100*float64(h.Score))
		}
		table.Append(
			h.StartedAt.Format("2006-01-02 15:04"),
			shortID(h.RunID),
			h.Backend,
			fmt.Sprintf("%d", h.Steps),
			rank,
			mape,
			truncate(h.Err, 40),
		)
	}
	table.Render()
}

// PrintPath imprime un forecast path guardado, punto por punto.
func (c *Console) PrintPath(runID string, path domain.ForecastPath) {
	if path.Len() == 0 {
		fmt.Fprintf(c.out, "\n  No path stored for run %s, backend %s.\n", shortID(runID), path.Backend)
		return
	}
	fmt.Fprintf(c.out, "\n=== PATH %s | run %s | %d points ===\n", path.Backend, shortID(runID), path.Len())

	table := tablewriter.NewWriter(c.out)
	table.Header("Step", "Time", "Value")
	for i, p := range path.Points {
		table.Append(
			fmt.Sprintf("%d", i+1),
			p.Time.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.4f", p.Value),
		)
	}
	table.Render()
}

// --- helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
