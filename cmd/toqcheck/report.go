package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dusk-indust/toqcheck/internal/consistency"
	"github.com/dusk-indust/toqcheck/internal/export"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

// printReport writes a human-readable run summary.
func printReport(w io.Writer, report *consistency.Report) {
	fmt.Fprintf(w, "baseline: %s\n", report.Baseline.Text)

	for _, run := range report.Runs {
		switch run.Status {
		case consistency.StatusMatched:
			fmt.Fprintf(w, "  ✓ %-16s matched\n", run.PlanKey)
		case consistency.StatusMismatched:
			fmt.Fprintf(w, "  ✗ %-16s mismatched  %q\n", run.PlanKey, run.RootAnswer.Text)
		case consistency.StatusErrored:
			fmt.Fprintf(w, "  ! %-16s errored     %s\n", run.PlanKey, run.Err)
		}
	}

	s := report.Summary
	verdict := "INCONSISTENT"
	if report.Consistent {
		verdict = "CONSISTENT"
	}
	fmt.Fprintf(w, "%s  plans=%d errored=%d unique=%d agreement=%.2f entropy=%.3f\n",
		verdict, s.NumRuns, s.NumErrored, s.NumUniqueAnswers, s.ModeFraction, s.Entropy)
}

// writeReport exports the full report as JSON to path, or stdout for "-".
func writeReport(path string, tree *toq.Tree, report *consistency.Report, question, model string) error {
	w := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return export.WriteReportJSON(w, tree, report, question, model)
}
