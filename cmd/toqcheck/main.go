package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/toqcheck/internal/config"
	"github.com/joho/godotenv"
)

// CLI flags parsed from command line. File-level settings from toqcheck.yml
// become the flag defaults, so flags always win.
type cliFlags struct {
	TreePath    string
	Question    string
	DatasetPath string
	Original    string
	MaxExamples int
	Context     string
	Model       string
	BaseURL     string
	MaxPlans    int
	Dedupe      bool
	Strict      bool
	PlanWorkers int
	EvalWorkers int
	Normalize   bool
	JSONOut     string
	Mermaid     bool
	StorePath   string
	ServeMCP    bool
	MCPHTTPAddr string
	Verbose     bool
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

const defaultModel = "gpt-4o-mini"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// .env keeps API keys out of shell history; absence is fine.
	godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading toqcheck.yml: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	var flags cliFlags
	fs := flag.NewFlagSet("toqcheck", flag.ContinueOnError)
	fs.StringVar(&flags.TreePath, "tree", "", "path to a question tree JSON file to check")
	fs.StringVar(&flags.Question, "question", "", "raw question to decompose and check")
	fs.StringVar(&flags.DatasetPath, "break", "", "path to a Break QDMR-high-level CSV to check")
	fs.StringVar(&flags.Original, "original", "", "known full collapse of the tree (skips the model collapser)")
	fs.IntVar(&flags.MaxExamples, "max", 10, "cap on dataset examples to check")
	fs.StringVar(&flags.Context, "context", cfg.Context, "context passed to every model call")
	fs.StringVar(&flags.Model, "model", model, "model identifier for the chat completions backend")
	fs.StringVar(&flags.BaseURL, "base-url", cfg.BaseURL, "OpenAI-compatible API base URL")
	fs.IntVar(&flags.MaxPlans, "max-plans", cfg.MaxPlans, "cap on enumerated collapse plans (0 = no cap)")
	fs.BoolVar(&flags.Dedupe, "dedupe", cfg.DedupePartitions, "run only one plan per distinct component partition")
	fs.BoolVar(&flags.Strict, "strict", cfg.Strict, "abort the run on the first plan failure")
	fs.IntVar(&flags.PlanWorkers, "plan-workers", cfg.PlanWorkers, "plans executed concurrently")
	fs.IntVar(&flags.EvalWorkers, "eval-workers", cfg.EvalWorkers, "questions answered concurrently within one evaluation")
	fs.BoolVar(&flags.Normalize, "normalize", cfg.Normalize, "compare case-folded, trimmed answers")
	fs.StringVar(&flags.JSONOut, "json", "", "write the report as JSON to this path (\"-\" for stdout)")
	fs.BoolVar(&flags.Mermaid, "mermaid", false, "print a Mermaid diagram of the tree")
	fs.StringVar(&flags.StorePath, "store", cfg.StorePath, "archive runs in a database at this path")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.StringVar(&flags.MCPHTTPAddr, "mcp-http", "", "run as MCP server on this HTTP address")
	fs.BoolVar(&flags.Verbose, "verbose", cfg.Verbose, "print per-plan progress")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case flags.ServeMCP:
		return app.serveStdio(ctx)
	case flags.MCPHTTPAddr != "":
		return app.serveHTTP(ctx, flags.MCPHTTPAddr)
	case flags.TreePath != "":
		return app.checkTreeFile(ctx, flags.TreePath)
	case flags.Question != "":
		return app.checkQuestion(ctx, flags.Question)
	case flags.DatasetPath != "":
		return app.checkDataset(ctx, flags.DatasetPath)
	default:
		fs.Usage()
		return fmt.Errorf("one of -tree, -question, -break, -serve-mcp, or -mcp-http is required")
	}
}
