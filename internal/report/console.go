package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/utakatalp/rank-stability/internal/analysis"
	"github.com/utakatalp/rank-stability/internal/league"
)

// Console renders analysis results as plain-text tables.
type Console struct {
	out io.Writer
}

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintHistory prints one row per club with its position after every round,
// sorted by input order.
func (c *Console) PrintHistory(title string, h *league.RankHistory) error {
	fmt.Fprintf(c.out, "\n%s\n", title)

	header := []any{"Club"}
	for r := 1; r <= h.Rounds(); r++ {
		header = append(header, strconv.Itoa(r))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header(header...)
	for _, club := range h.Clubs() {
		positions, err := h.Positions(club)
		if err != nil {
			return err
		}
		row := []any{club}
		for _, pos := range positions {
			row = append(row, strconv.Itoa(pos))
		}
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintCurves prints correlation, p-value and distance per round.
func (c *Console) PrintCurves(title string, curves analysis.Curves) error {
	fmt.Fprintf(c.out, "\n%s\n", title)

	table := tablewriter.NewWriter(c.out)
	table.Header("Round", "Spearman", "p-value", "Tau distance")
	for i := range curves.Distance {
		if err := table.Append(
			strconv.Itoa(i+1),
			formatFloat(curves.Correlation[i], 4),
			formatFloat(curves.PValue[i], 4),
			formatFloat(curves.Distance[i], 4),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintTransitions prints the probability of moving from each row position to
// each column position.
func (c *Console) PrintTransitions(t *analysis.Transitions) error {
	fmt.Fprintf(c.out, "\nTransitions round %d -> round %d (%d seasons)\n", t.InitRound, t.FinalRound, t.Seasons)

	header := []any{"From \\ To"}
	for _, l := range t.Labels() {
		header = append(header, strconv.Itoa(l))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header(header...)
	for i, row := range t.Probabilities {
		cells := []any{strconv.Itoa(i + 1)}
		for _, p := range row {
			cells = append(cells, formatFloat(p, 2))
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintFit prints the fitted law and how well it matches the observed curve.
func (c *Console) PrintFit(w analysis.WindowFit) error {
	fmt.Fprintf(c.out, "\nPower law fit, rounds %d-%d: distance = b * round^a\n", w.From, w.To)

	stdA := math.Sqrt(w.Covariance[0][0])
	stdB := math.Sqrt(w.Covariance[1][1])

	table := tablewriter.NewWriter(c.out)
	table.Header("Parameter", "Value", "Std err")
	rows := [][]any{
		{"a", formatFloat(w.Law.A, 4), formatFloat(stdA, 4)},
		{"b", formatFloat(w.Law.B, 4), formatFloat(stdB, 4)},
		{"R²", formatFloat(w.RSquared, 4), ""},
		{"SSR", formatFloat(w.SSR, 6), ""},
		{"Observed AUC", formatFloat(w.ObservedArea, 4), ""},
		{"Fitted AUC", formatFloat(w.FittedArea, 4), ""},
	}
	for _, row := range rows {
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatFloat(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "INF"
	case math.IsInf(v, -1):
		return "-INF"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
