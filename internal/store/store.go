// Package store persists consistency runs: the question tree, the per-plan
// results, and the summary verdict. Implementations: KuzuStore (persistent,
// requires CGO), MemStore (testing and CGO-free builds).
package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/toqcheck/internal/consistency"
	"github.com/dusk-indust/toqcheck/internal/toq"
	"github.com/google/uuid"
)

// Store is the interface for the run archive backend.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	SaveRun(ctx context.Context, run RunMeta) error
	SaveTree(ctx context.Context, runID string, tree *toq.Tree) error
	SavePlanResult(ctx context.Context, res PlanResult) error

	// Read operations.
	GetRun(ctx context.Context, id string) (*RunMeta, error)
	ListRuns(ctx context.Context, limit int) ([]RunMeta, error)
	GetPlanResults(ctx context.Context, runID string) ([]PlanResult, error)
	GetTree(ctx context.Context, runID string) (*toq.Tree, error)

	// Stats.
	Stats(ctx context.Context) (*ArchiveStats, error)
}

// RunMeta summarizes one archived consistency run.
type RunMeta struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Model        string    `json:"model"`
	Baseline     string    `json:"baseline"`
	Consistent   bool      `json:"consistent"`
	NumPlans     int       `json:"numPlans"`
	NumErrored   int       `json:"numErrored"`
	ModeAnswer   string    `json:"modeAnswer"`
	ModeFraction float64   `json:"modeFraction"`
	Entropy      float64   `json:"entropy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PlanResult is one plan's archived outcome within a run.
type PlanResult struct {
	RunID        string `json:"runId"`
	PlanKey      string `json:"planKey"`
	PartitionKey string `json:"partitionKey"`
	Status       string `json:"status"`
	Answer       string `json:"answer"`
	Normalized   string `json:"normalized"`
	Error        string `json:"error,omitempty"`
}

// ArchiveStats counts the archive's contents.
type ArchiveStats struct {
	RunCount  int `json:"runCount"`
	PlanCount int `json:"planCount"`
	NodeCount int `json:"nodeCount"`
}

// SaveReport archives a finished run: metadata, the evaluated tree, and every
// plan record. It returns the generated run id.
func SaveReport(ctx context.Context, s Store, tree *toq.Tree, report *consistency.Report, question, model string) (string, error) {
	runID := uuid.NewString()

	meta := RunMeta{
		ID:           runID,
		Question:     question,
		Model:        model,
		Baseline:     report.Baseline.Text,
		Consistent:   report.Consistent,
		NumPlans:     report.Summary.NumRuns,
		NumErrored:   report.Summary.NumErrored,
		ModeAnswer:   report.Summary.ModeAnswer,
		ModeFraction: report.Summary.ModeFraction,
		Entropy:      report.Summary.Entropy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SaveRun(ctx, meta); err != nil {
		return "", fmt.Errorf("store: save run: %w", err)
	}
	if err := s.SaveTree(ctx, runID, tree); err != nil {
		return "", fmt.Errorf("store: save tree: %w", err)
	}

	for _, r := range report.Runs {
		res := PlanResult{
			RunID:        runID,
			PlanKey:      r.PlanKey,
			PartitionKey: r.PartitionKey,
			Status:       string(r.Status),
			Answer:       r.RootAnswer.Text,
			Normalized:   r.Normalized,
			Error:        r.Err,
		}
		if err := s.SavePlanResult(ctx, res); err != nil {
			return "", fmt.Errorf("store: save plan %s: %w", r.PlanKey, err)
		}
	}
	return runID, nil
}
