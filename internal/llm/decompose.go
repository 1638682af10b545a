package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

const decomposeSystemPrompt = "You decompose a complex question into a tree of simpler sub-questions. " +
	"Reply with a single JSON object of the form " +
	`{"root_id": 2, "nodes": {"1": {"id": 1, "text": "..."}, "2": {"id": 2, "text": "... [A1] ...", "parent": 1}}}. ` +
	"Leaves have no parent-less children below them; exactly one node has no parent and is the root. " +
	"A placeholder [A<id>] may appear in a node's text only for that node's direct children. " +
	"No prose, no code fences, JSON only."

// decomposeMaxTokens is larger than the answer budget: a tree with a handful
// of nodes does not fit in 64 tokens.
const decomposeMaxTokens = 512

// Decompose asks the model for a question tree as JSON and parses it. The
// parsed tree is validated, so a malformed or structurally invalid reply
// surfaces as an error rather than a broken run.
func (c *Client) Decompose(ctx context.Context, question, contextText string) (*toq.Tree, error) {
	user := question
	if contextText != "" {
		user = "Context: " + contextText + "\n\n" + question
	}

	text, _, err := c.chat(ctx, decomposeSystemPrompt, user, decomposeMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("llm: decompose: %w", err)
	}

	tree, err := toq.FromJSON([]byte(extractJSON(StripThink(text))))
	if err != nil {
		return nil, fmt.Errorf("llm: decompose: %w", err)
	}
	return tree, nil
}

// extractJSON unwraps a fenced code block if the model added one despite the
// instructions, otherwise returns the text unchanged.
func extractJSON(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}
	afterFence := strings.Index(text[start:], "\n")
	if afterFence == -1 {
		return text
	}
	body := text[start+afterFence+1:]
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
