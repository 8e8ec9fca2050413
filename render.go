package neobench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCase = cases.Title(language.English)

// WriteText renders report as one table per size, followed by insights and
// failures.
func WriteText(w io.Writer, report Report) error {
	for i, size := range report.Sizes {
		if i > 0 {
			fmt.Fprintln(w)
		}

		err := writeSizeTable(w, size)
		if err != nil {
			return err
		}
	}

	if len(report.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed combinations (%d):\n", len(report.Failures))

		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Key, f.Error)
		}
	}

	return nil
}

func writeSizeTable(w io.Writer, size SizeReport) error {
	heading := fmt.Sprintf("%s (%dx%d)", titleCase.String(size.Size.Name), size.Size.Dim, size.Size.Dim)
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, strings.Repeat("=", len(heading)))

	if len(size.Rows) == 0 {
		fmt.Fprintln(w, "no results")

		return nil
	}

	hasBase := lo.ContainsBy(size.Rows, func(r ReportRow) bool { return r.Baseline && r.GFLOPS > 0 })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "#\tCombination\tGFLOPS\t±\tTime(s)\tCompile(s)\tvs O0\tNote\n")
	fmt.Fprint(tw, "-\t-----------\t------\t-\t-------\t----------\t-----\t----\n")

	for _, row := range size.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%.4f\t%.2f\t%s\t%s\n",
			row.Rank,
			row.Key,
			row.GFLOPS,
			fmtStdDev(row.StdDevGFLOPS),
			row.WallSeconds,
			row.CompileSeconds,
			fmtVsBaseline(row, hasBase),
			rowNote(row),
		)
	}

	err := tw.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	if size.Hidden > 0 {
		fmt.Fprintf(w, "(%d more not shown)\n", size.Hidden)
	}

	if size.Best != nil {
		fmt.Fprintf(w, "Best:  %s %.2f GFLOPS (%s %s)\n", size.Best.Key, size.Best.GFLOPS, fmtPct(size.Best.Pct), size.Best.Label)
		fmt.Fprintf(w, "Worst: %s %.2f GFLOPS (%s %s)\n", size.Worst.Key, size.Worst.GFLOPS, fmtPct(size.Worst.Pct), size.Worst.Label)
	}

	return nil
}

// WriteJSON writes report as indented JSON.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func fmtVsBaseline(row ReportRow, hasBase bool) string {
	if row.Baseline {
		return "base"
	}

	if !hasBase {
		return "N/A"
	}

	return fmtPct(row.VsBaseline)
}

func fmtStdDev(v float64) string {
	if v == 0 {
		return "-"
	}

	return fmt.Sprintf("%.2f", v)
}

func rowNote(row ReportRow) string {
	var notes []string

	if row.Discarded > 0 {
		notes = append(notes, fmt.Sprintf("%d discarded", row.Discarded))
	}

	if len(row.Degradations) > 0 {
		notes = append(notes, "degraded")
	}

	return strings.Join(notes, ", ")
}

func fmtPct(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}

	return fmt.Sprintf("%.1f%%", v)
}
