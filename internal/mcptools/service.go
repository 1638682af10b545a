// Package mcptools exposes the consistency checker as MCP tools so agent
// clients can validate trees, enumerate collapse plans, and run checks
// through structured calls instead of shelling out.
package mcptools

import (
	"context"
	"fmt"

	"github.com/dusk-indust/toqcheck/internal/consistency"
	"github.com/dusk-indust/toqcheck/internal/llm"
	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/store"
	"github.com/dusk-indust/toqcheck/internal/toq"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ConsistencyService handles MCP tool calls. It wraps the model-facing
// capabilities and an optional run archive.
type ConsistencyService struct {
	answerer   qa.Answerer
	collapser  qa.Collapser
	decomposer qa.Decomposer
	normalizer qa.Normalizer
	archive    store.Store // nil disables archiving
	model      string      // recorded in archived runs
	defaults   consistency.Options
}

// ServiceConfig wires a ConsistencyService.
type ServiceConfig struct {
	Answerer   qa.Answerer
	Collapser  qa.Collapser
	Decomposer qa.Decomposer // nil disables check_question
	Normalizer qa.Normalizer // nil means exact comparison
	Archive    store.Store   // nil disables archiving
	Model      string
	Defaults   consistency.Options
}

// NewConsistencyService creates a ConsistencyService with the given wiring.
func NewConsistencyService(cfg ServiceConfig) *ConsistencyService {
	return &ConsistencyService{
		answerer:   cfg.Answerer,
		collapser:  cfg.Collapser,
		decomposer: cfg.Decomposer,
		normalizer: cfg.Normalizer,
		archive:    cfg.Archive,
		model:      cfg.Model,
		defaults:   cfg.Defaults,
	}
}

// --- MCP tool types ---

// CheckTreeInput is the input for the check_tree MCP tool.
type CheckTreeInput struct {
	TreeJSON         string `json:"treeJson" jsonschema:"the question tree as JSON (rootId plus nodes keyed by id)"`
	Context          string `json:"context,omitempty" jsonschema:"optional context passed to every model call"`
	MaxPlans         int    `json:"maxPlans,omitempty" jsonschema:"cap on enumerated collapse plans (0 = default)"`
	DedupePartitions bool   `json:"dedupePartitions,omitempty" jsonschema:"run only one plan per distinct component partition"`
	Strict           bool   `json:"strict,omitempty" jsonschema:"abort the run on the first plan failure"`
	OriginalQuestion string `json:"originalQuestion,omitempty" jsonschema:"known full collapse of the tree; overrides the model collapser"`
}

// CheckTreeOutput is the result of the check_tree MCP tool.
type CheckTreeOutput struct {
	Consistent   bool      `json:"consistent"`
	Baseline     string    `json:"baseline"`
	NumPlans     int       `json:"numPlans"`
	NumErrored   int       `json:"numErrored"`
	ModeAnswer   string    `json:"modeAnswer"`
	ModeFraction float64   `json:"modeFraction"`
	Entropy      float64   `json:"entropy"`
	Runs         []PlanRun `json:"runs"`
	RunID        string    `json:"runId,omitempty"`
}

// PlanRun is one plan's outcome in a check result.
type PlanRun struct {
	PlanKey string `json:"planKey"`
	Status  string `json:"status"`
	Answer  string `json:"answer,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckQuestionInput is the input for the check_question MCP tool.
type CheckQuestionInput struct {
	Question string `json:"question" jsonschema:"the question to decompose and check"`
	Context  string `json:"context,omitempty" jsonschema:"optional context passed to every model call"`
	Strict   bool   `json:"strict,omitempty" jsonschema:"abort the run on the first plan failure"`
}

// ValidateTreeInput is the input for the validate_tree MCP tool.
type ValidateTreeInput struct {
	TreeJSON string `json:"treeJson" jsonschema:"the question tree as JSON"`
}

// ValidateTreeOutput is the result of the validate_tree MCP tool.
type ValidateTreeOutput struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	NumNodes int    `json:"numNodes"`
	NumEdges int    `json:"numEdges"`
	RootID   int    `json:"rootId"`
	Leaves   []int  `json:"leaves"`
}

// EnumeratePlansInput is the input for the enumerate_plans MCP tool.
type EnumeratePlansInput struct {
	TreeJSON         string `json:"treeJson" jsonschema:"the question tree as JSON"`
	MaxPlans         int    `json:"maxPlans,omitempty" jsonschema:"cap on enumerated plans (0 = default)"`
	DedupePartitions bool   `json:"dedupePartitions,omitempty" jsonschema:"keep only one plan per distinct component partition"`
}

// EnumeratePlansOutput is the result of the enumerate_plans MCP tool.
type EnumeratePlansOutput struct {
	NumPlans int           `json:"numPlans"`
	Plans    []PlanSummary `json:"plans"`
}

// PlanSummary describes one collapse plan.
type PlanSummary struct {
	Key          string `json:"key"`
	PartitionKey string `json:"partitionKey"`
	CutEdges     []int  `json:"cutEdges"`
}

// --- Handlers ---

// CheckTree runs the consistency check on a tree provided as JSON.
func (s *ConsistencyService) CheckTree(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckTreeInput,
) (*mcp.CallToolResult, CheckTreeOutput, error) {
	tree, err := toq.FromJSON([]byte(input.TreeJSON))
	if err != nil {
		return nil, CheckTreeOutput{}, err
	}

	opts := s.runOptions(input.Context, input.Strict)
	opts.Plans.MaxPlans = input.MaxPlans
	if input.DedupePartitions {
		opts.Plans.DedupePartitions = true
	}
	if input.OriginalQuestion != "" {
		opts.Collapser = llm.KnownQuestionCollapser{
			Original: input.OriginalQuestion,
			TreeSize: len(tree.Nodes),
		}
	}

	report, err := consistency.Run(ctx, tree, opts)
	if err != nil {
		return nil, CheckTreeOutput{}, err
	}

	out := reportOutput(report)
	if s.archive != nil {
		question := input.OriginalQuestion
		if question == "" {
			question = tree.Nodes[tree.RootID].Text
		}
		runID, err := store.SaveReport(ctx, s.archive, tree, report, question, s.model)
		if err != nil {
			return nil, CheckTreeOutput{}, err
		}
		out.RunID = runID
	}
	return nil, out, nil
}

// CheckQuestion decomposes a raw question and runs the consistency check on
// the resulting tree.
func (s *ConsistencyService) CheckQuestion(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckQuestionInput,
) (*mcp.CallToolResult, CheckTreeOutput, error) {
	if s.decomposer == nil {
		return nil, CheckTreeOutput{}, fmt.Errorf("mcptools: no decomposer configured")
	}

	tree, err := s.decomposer.Decompose(ctx, input.Question, input.Context)
	if err != nil {
		return nil, CheckTreeOutput{}, err
	}

	opts := s.runOptions(input.Context, input.Strict)
	report, err := consistency.Run(ctx, tree, opts)
	if err != nil {
		return nil, CheckTreeOutput{}, err
	}

	out := reportOutput(report)
	if s.archive != nil {
		runID, err := store.SaveReport(ctx, s.archive, tree, report, input.Question, s.model)
		if err != nil {
			return nil, CheckTreeOutput{}, err
		}
		out.RunID = runID
	}
	return nil, out, nil
}

// ValidateTree parses and validates a tree without any model calls.
func (s *ConsistencyService) ValidateTree(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateTreeInput,
) (*mcp.CallToolResult, ValidateTreeOutput, error) {
	tree, err := toq.FromJSON([]byte(input.TreeJSON))
	if err != nil {
		return nil, ValidateTreeOutput{Valid: false, Error: err.Error()}, nil
	}

	leaves := tree.Leaves()
	out := ValidateTreeOutput{
		Valid:    true,
		NumNodes: len(tree.Nodes),
		NumEdges: len(tree.Nodes) - 1,
		RootID:   int(tree.RootID),
		Leaves:   make([]int, 0, len(leaves)),
	}
	for _, id := range leaves {
		out.Leaves = append(out.Leaves, int(id))
	}
	return nil, out, nil
}

// EnumeratePlans lists the collapse plans for a tree without executing them.
func (s *ConsistencyService) EnumeratePlans(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input EnumeratePlansInput,
) (*mcp.CallToolResult, EnumeratePlansOutput, error) {
	tree, err := toq.FromJSON([]byte(input.TreeJSON))
	if err != nil {
		return nil, EnumeratePlansOutput{}, err
	}

	plans, err := plan.Enumerate(tree, plan.Options{
		MaxPlans:         input.MaxPlans,
		DedupePartitions: input.DedupePartitions,
	})
	if err != nil {
		return nil, EnumeratePlansOutput{}, err
	}

	out := EnumeratePlansOutput{NumPlans: len(plans), Plans: make([]PlanSummary, 0, len(plans))}
	for _, p := range plans {
		cuts := make([]int, 0, len(p.CutEdges))
		for _, e := range p.CutEdges {
			cuts = append(cuts, int(e))
		}
		out.Plans = append(out.Plans, PlanSummary{
			Key:          p.Key(),
			PartitionKey: plan.PartitionKey(tree, p),
			CutEdges:     cuts,
		})
	}
	return nil, out, nil
}

// --- Helpers ---

// runOptions copies the service defaults with per-call overrides applied.
func (s *ConsistencyService) runOptions(contextText string, strict bool) consistency.Options {
	opts := s.defaults
	opts.Answerer = s.answerer
	opts.Collapser = s.collapser
	opts.Decomposer = s.decomposer
	opts.Normalizer = s.normalizer
	opts.Context = contextText
	if strict {
		opts.Strict = true
	}
	return opts
}

// reportOutput flattens a report into the tool result shape.
func reportOutput(report *consistency.Report) CheckTreeOutput {
	out := CheckTreeOutput{
		Consistent:   report.Consistent,
		Baseline:     report.Baseline.Text,
		NumPlans:     report.Summary.NumRuns,
		NumErrored:   report.Summary.NumErrored,
		ModeAnswer:   report.Summary.ModeAnswer,
		ModeFraction: report.Summary.ModeFraction,
		Entropy:      report.Summary.Entropy,
		Runs:         make([]PlanRun, 0, len(report.Runs)),
	}
	for _, r := range report.Runs {
		out.Runs = append(out.Runs, PlanRun{
			PlanKey: r.PlanKey,
			Status:  string(r.Status),
			Answer:  r.RootAnswer.Text,
			Error:   r.Err,
		})
	}
	return out
}
