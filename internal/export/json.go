// Package export renders finished consistency runs for consumption outside
// the tool: machine-readable JSON and Mermaid diagrams.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/toqcheck/internal/consistency"
	"github.com/dusk-indust/toqcheck/internal/metrics"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

// ReportExport is the top-level JSON export structure.
type ReportExport struct {
	Question           string          `json:"question,omitempty"`
	Model              string          `json:"model,omitempty"`
	ExportedAt         string          `json:"exportedAt"`
	Baseline           string          `json:"baseline"`
	BaselineNormalized string          `json:"baselineNormalized"`
	Consistent         bool            `json:"consistent"`
	Summary            metrics.Summary `json:"summary"`
	Tree               json.RawMessage `json:"tree"`
	Runs               []RunExport     `json:"runs"`
}

// RunExport describes one plan's outcome.
type RunExport struct {
	PlanKey      string `json:"planKey"`
	PartitionKey string `json:"partitionKey"`
	Status       string `json:"status"`
	Answer       string `json:"answer,omitempty"`
	Normalized   string `json:"normalized,omitempty"`
	Removed      []int  `json:"removed,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ExportReport builds a ReportExport from a finished run.
func ExportReport(tree *toq.Tree, report *consistency.Report, question, model string) (*ReportExport, error) {
	treeJSON, err := toq.ToJSON(tree)
	if err != nil {
		return nil, fmt.Errorf("export: serialize tree: %w", err)
	}

	out := &ReportExport{
		Question:           question,
		Model:              model,
		ExportedAt:         time.Now().UTC().Format(time.RFC3339),
		Baseline:           report.Baseline.Text,
		BaselineNormalized: report.BaselineNormalized,
		Consistent:         report.Consistent,
		Summary:            report.Summary,
		Tree:               treeJSON,
	}

	for _, r := range report.Runs {
		removed := make([]int, 0, len(r.Removed))
		for _, id := range r.Removed {
			removed = append(removed, int(id))
		}
		out.Runs = append(out.Runs, RunExport{
			PlanKey:      r.PlanKey,
			PartitionKey: r.PartitionKey,
			Status:       string(r.Status),
			Answer:       r.RootAnswer.Text,
			Normalized:   r.Normalized,
			Removed:      removed,
			Error:        r.Err,
		})
	}
	return out, nil
}

// WriteReportJSON writes the indented JSON export of a run to w.
func WriteReportJSON(w io.Writer, tree *toq.Tree, report *consistency.Report, question, model string) error {
	out, err := ExportReport(tree, report, question, model)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("export: encode report: %w", err)
	}
	return nil
}
