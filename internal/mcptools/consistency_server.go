package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewConsistencyMCPServer creates an MCP server with the 4 consistency tools
// registered: check_tree, check_question, validate_tree, and enumerate_plans.
func NewConsistencyMCPServer(svc *ConsistencyService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "toqcheck",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_tree",
		Description: "Run the answer-stability check on a question tree provided as JSON. Evaluates the baseline, re-evaluates the root under every collapse plan, and reports per-plan agreement.",
	}, svc.CheckTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_question",
		Description: "Decompose a raw question into a tree with the configured model, then run the answer-stability check on it.",
	}, svc.CheckQuestion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_tree",
		Description: "Parse and structurally validate a question tree without any model calls. Returns node and edge counts, the root, and the leaves.",
	}, svc.ValidateTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "enumerate_plans",
		Description: "List the collapse plans for a question tree without executing them. Each plan names its cut edges and the component partition it induces.",
	}, svc.EnumeratePlans)

	return server
}

// RunMCPServer starts an HTTP server exposing the consistency MCP tools.
func RunMCPServer(ctx context.Context, svc *ConsistencyService, addr string) error {
	server := NewConsistencyMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *ConsistencyService) error {
	return NewConsistencyMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
