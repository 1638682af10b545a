// Package consistency checks whether a model's root answer to a Tree of
// Questions stays stable when the tree's decomposition structure is
// collapsed. It evaluates the original tree for a baseline, re-evaluates the
// root under every enumerated collapse plan, and reports per-plan agreement.
package consistency

import (
	"context"
	"fmt"

	"github.com/dusk-indust/toqcheck/internal/cache"
	"github.com/dusk-indust/toqcheck/internal/eval"
	"github.com/dusk-indust/toqcheck/internal/metrics"
	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Status classifies one plan's outcome in the report.
type Status string

const (
	// StatusMatched means the plan's normalized root answer equals the
	// normalized baseline.
	StatusMatched Status = "matched"

	// StatusMismatched means the plan executed but its root answer differs
	// from the baseline.
	StatusMismatched Status = "mismatched"

	// StatusErrored means the plan failed to execute (collapse contract
	// violation, capability failure, or cancellation). Errored plans are
	// visible in the report but excluded from the consistency verdict.
	StatusErrored Status = "errored"
)

// Options configures a consistency run.
type Options struct {
	// Answerer resolves fully-instantiated questions. Required.
	Answerer qa.Answerer

	// Collapser folds multi-node components into single questions. Required
	// for trees with more than one node.
	Collapser qa.Collapser

	// Normalizer canonicalizes answers before comparison. Defaults to
	// qa.Identity.
	Normalizer qa.Normalizer

	// Decomposer turns a raw question into a tree. Used only by RunQuestion.
	Decomposer qa.Decomposer

	// Cache memoizes answers across the baseline and all plans. When nil
	// the run owns a fresh MemCache; pass an instance to share across runs.
	Cache cache.Cache

	// Context is an optional passage or hint handed to every capability
	// call and folded into cache keys.
	Context string

	// Plans configures plan enumeration (cap, filter, partition dedup).
	Plans plan.Options

	// PlanWorkers bounds how many plans execute concurrently. Values below
	// 2 execute plans sequentially.
	PlanWorkers int

	// EvalWorkers bounds intra-tree parallelism within each evaluation.
	EvalWorkers int

	// Strict aborts the whole run on the first capability failure instead
	// of recording an errored plan and continuing.
	Strict bool

	// OnProgress, when non-nil, receives per-plan lifecycle events. It may
	// be called from multiple goroutines.
	OnProgress func(Event)
}

func (o Options) normalizer() qa.Normalizer {
	if o.Normalizer != nil {
		return o.Normalizer
	}
	return qa.Identity()
}

// RunRecord is the outcome of executing one collapse plan.
type RunRecord struct {
	Plan         plan.Plan
	PlanKey      string
	PartitionKey string
	Status       Status
	RootAnswer   qa.Answer
	Normalized   string
	Removed      []toq.NodeID // nodes folded away by the plan
	Err          string       // set when Status == StatusErrored
}

// Report is the full result of a consistency run.
type Report struct {
	Baseline           qa.Answer
	BaselineNormalized string
	BaselineTrace      *eval.Trace
	Runs               []RunRecord
	Consistent         bool
	Summary            metrics.Summary
}

// Run evaluates tree for a baseline root answer, executes every enumerated
// collapse plan, and compares each plan's root answer against the baseline
// under the normalizer. Structural errors abort before any evaluation; a
// baseline failure aborts the run; per-plan failures are recorded as errored
// unless Options.Strict.
func Run(ctx context.Context, tree *toq.Tree, opts Options) (*Report, error) {
	if opts.Answerer == nil {
		return nil, fmt.Errorf("consistency: answerer is required")
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if opts.Collapser == nil && len(tree.Nodes) > 1 {
		return nil, fmt.Errorf("consistency: collapser is required for multi-node trees")
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemCache()
	}

	baseTrace, err := eval.Evaluate(ctx, tree, eval.Options{
		Answerer: opts.Answerer,
		Cache:    opts.Cache,
		Context:  opts.Context,
		Workers:  opts.EvalWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("consistency: baseline evaluation: %w", err)
	}
	baseline := baseTrace.Root(tree)

	plans, err := plan.Enumerate(tree, opts.Plans)
	if err != nil {
		return nil, err
	}

	runs, err := runPlans(ctx, tree, plans, opts)
	if err != nil {
		return nil, err
	}

	return buildReport(tree, baseline, baseTrace, runs, opts), nil
}

// RunQuestion decomposes a raw question with Options.Decomposer and runs the
// consistency check on the resulting tree.
func RunQuestion(ctx context.Context, question string, opts Options) (*Report, error) {
	if opts.Decomposer == nil {
		return nil, fmt.Errorf("consistency: decomposer is required")
	}
	tree, err := opts.Decomposer.Decompose(ctx, question, opts.Context)
	if err != nil {
		return nil, fmt.Errorf("consistency: decompose question: %w", err)
	}
	return Run(ctx, tree, opts)
}

// buildReport normalizes and compares each executed plan against the
// baseline and assembles the summary. Consistent is true iff every
// non-errored plan matched; errored plans stay visible for diagnosis.
func buildReport(tree *toq.Tree, baseline qa.Answer, baseTrace *eval.Trace, runs []RunRecord, opts Options) *Report {
	norm := opts.normalizer()
	baseNorm := norm.Normalize(baseline.Text)

	consistent := true
	outcomes := make([]metrics.Outcome, len(runs))
	for i := range runs {
		r := &runs[i]
		if r.Status != StatusErrored {
			r.Normalized = norm.Normalize(r.RootAnswer.Text)
			if r.Normalized == baseNorm {
				r.Status = StatusMatched
			} else {
				r.Status = StatusMismatched
				consistent = false
			}
		}
		outcomes[i] = metrics.Outcome{
			PlanKey:    r.PlanKey,
			Answer:     r.RootAnswer.Text,
			Normalized: r.Normalized,
			Errored:    r.Status == StatusErrored,
		}
	}

	return &Report{
		Baseline:           baseline,
		BaselineNormalized: baseNorm,
		BaselineTrace:      baseTrace,
		Runs:               runs,
		Consistent:         consistent,
		Summary:            metrics.Summarize(outcomes, true, 10, 3),
	}
}
