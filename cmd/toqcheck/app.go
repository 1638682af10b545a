package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dusk-indust/toqcheck/internal/breakset"
	"github.com/dusk-indust/toqcheck/internal/config"
	"github.com/dusk-indust/toqcheck/internal/consistency"
	"github.com/dusk-indust/toqcheck/internal/export"
	"github.com/dusk-indust/toqcheck/internal/llm"
	"github.com/dusk-indust/toqcheck/internal/mcptools"
	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/store"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

// app bundles the wired capabilities for one invocation.
type app struct {
	flags   cliFlags
	client  *llm.Client
	archive store.Store // nil when archiving is disabled
}

func newApp(ctx context.Context, cfg *config.ProjectConfig, flags cliFlags) (*app, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("API key required: set OPENAI_API_KEY (or apiKeyEnv in toqcheck.yml)")
	}

	client, err := llm.NewClient(llm.Config{
		Model:       flags.Model,
		APIKey:      apiKey,
		BaseURL:     flags.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	a := &app{flags: flags, client: client}

	if flags.StorePath != "" {
		archive, err := openArchive(flags.StorePath)
		if err != nil {
			return nil, fmt.Errorf("opening run archive: %w", err)
		}
		if err := archive.InitSchema(ctx); err != nil {
			archive.Close()
			return nil, fmt.Errorf("initializing run archive: %w", err)
		}
		a.archive = archive
	}
	return a, nil
}

func (a *app) Close() error {
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}

// runOptions assembles the check options. A non-nil collapser overrides the
// model-backed one.
func (a *app) runOptions(collapser qa.Collapser) consistency.Options {
	if collapser == nil {
		collapser = a.client
	}
	opts := consistency.Options{
		Answerer:    a.client,
		Collapser:   collapser,
		Decomposer:  a.client,
		Context:     a.flags.Context,
		PlanWorkers: a.flags.PlanWorkers,
		EvalWorkers: a.flags.EvalWorkers,
		Strict:      a.flags.Strict,
		Plans: plan.Options{
			MaxPlans:         a.flags.MaxPlans,
			DedupePartitions: a.flags.Dedupe,
		},
	}
	if a.flags.Normalize {
		opts.Normalizer = qa.Fold()
	}
	return opts
}

// withProgress attaches a live per-plan status feed to opts when -verbose.
// The returned func stops the feed and must be called after the run.
func (a *app) withProgress(opts *consistency.Options) func() {
	if !a.flags.Verbose {
		return func() {}
	}
	rep := consistency.NewReporter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range rep.Subscribe() {
			fmt.Fprintln(os.Stderr, consistency.FormatEvent(ev))
		}
	}()
	opts.OnProgress = rep.Emit
	return func() {
		rep.Close()
		<-done
	}
}

// checkTreeFile checks a tree loaded from a JSON file.
func (a *app) checkTreeFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tree: %w", err)
	}
	tree, err := toq.FromJSON(data)
	if err != nil {
		return err
	}

	question := a.flags.Original
	if question == "" {
		question = tree.Nodes[tree.RootID].Text
	}
	return a.checkTree(ctx, tree, question)
}

// checkQuestion decomposes a raw question with the model, then checks the
// resulting tree.
func (a *app) checkQuestion(ctx context.Context, question string) error {
	tree, err := a.client.Decompose(ctx, question, a.flags.Context)
	if err != nil {
		return err
	}
	fmt.Printf("decomposed into %d sub-questions\n", len(tree.Nodes))
	return a.checkTree(ctx, tree, question)
}

// checkTree runs one consistency check and emits every requested output.
func (a *app) checkTree(ctx context.Context, tree *toq.Tree, question string) error {
	if a.flags.Mermaid {
		fmt.Println(export.TreeMermaid(tree))
	}

	var collapser qa.Collapser
	if a.flags.Original != "" {
		collapser = llm.KnownQuestionCollapser{Original: a.flags.Original, TreeSize: len(tree.Nodes)}
	}

	opts := a.runOptions(collapser)
	stop := a.withProgress(&opts)
	report, err := consistency.Run(ctx, tree, opts)
	stop()
	if err != nil {
		return err
	}

	printReport(os.Stdout, report)

	if a.archive != nil {
		runID, err := store.SaveReport(ctx, a.archive, tree, report, question, a.flags.Model)
		if err != nil {
			return err
		}
		fmt.Printf("archived run %s\n", runID)
	}

	if a.flags.JSONOut != "" {
		if err := writeReport(a.flags.JSONOut, tree, report, question, a.flags.Model); err != nil {
			return err
		}
	}
	return nil
}

// checkDataset checks Break examples one by one and prints an aggregate
// verdict. Per-example failures are reported, not fatal.
func (a *app) checkDataset(ctx context.Context, path string) error {
	examples, err := breakset.LoadFile(path, breakset.Options{MaxExamples: a.flags.MaxExamples})
	if err != nil {
		return err
	}
	if len(examples) == 0 {
		return fmt.Errorf("no usable examples in %s", path)
	}

	consistent, checked := 0, 0
	for _, ex := range examples {
		if err := ctx.Err(); err != nil {
			return err
		}

		opts := a.runOptions(llm.KnownQuestionCollapser{
			Original: ex.Question,
			TreeSize: len(ex.Tree.Nodes),
		})
		stop := a.withProgress(&opts)
		report, err := consistency.Run(ctx, ex.Tree, opts)
		stop()
		if err != nil {
			fmt.Printf("  ! %-22s %v\n", ex.QuestionID, err)
			continue
		}

		checked++
		mark := "✗"
		if report.Consistent {
			consistent++
			mark = "✓"
		}
		fmt.Printf("  %s %-22s %-6s plans=%d errored=%d mode=%.2f  %s\n",
			mark, ex.QuestionID, ex.Structure, report.Summary.NumRuns,
			report.Summary.NumErrored, report.Summary.ModeFraction, ex.Question)

		if a.archive != nil {
			if _, err := store.SaveReport(ctx, a.archive, ex.Tree, report, ex.Question, a.flags.Model); err != nil {
				return err
			}
		}
	}

	if checked == 0 {
		return fmt.Errorf("all %d examples failed", len(examples))
	}
	fmt.Printf("\nconsistent on %d/%d examples (%.0f%%)\n",
		consistent, checked, 100*float64(consistent)/float64(checked))
	return nil
}

// serveStdio runs the MCP server on stdio for editor integration.
func (a *app) serveStdio(ctx context.Context) error {
	return mcptools.RunMCPServerStdio(ctx, a.service())
}

// serveHTTP runs the MCP server on an HTTP address.
func (a *app) serveHTTP(ctx context.Context, addr string) error {
	log.Printf("serving MCP tools on %s", addr)
	return mcptools.RunMCPServer(ctx, a.service(), addr)
}

func (a *app) service() *mcptools.ConsistencyService {
	var normalizer qa.Normalizer
	if a.flags.Normalize {
		normalizer = qa.Fold()
	}
	return mcptools.NewConsistencyService(mcptools.ServiceConfig{
		Answerer:   a.client,
		Collapser:  a.client,
		Decomposer: a.client,
		Normalizer: normalizer,
		Archive:    a.archive,
		Model:      a.flags.Model,
		Defaults: consistency.Options{
			PlanWorkers: a.flags.PlanWorkers,
			EvalWorkers: a.flags.EvalWorkers,
			Plans: plan.Options{
				MaxPlans:         a.flags.MaxPlans,
				DedupePartitions: a.flags.Dedupe,
			},
		},
	})
}
