package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/toq"
)

const collapseSystemPrompt = "You merge a group of linked sub-questions into one natural question. " +
	"Reply with exactly one question and nothing else. " +
	"Keep every allowed placeholder token (like [A3]) verbatim, and never " +
	"introduce a placeholder that is not in the allowed list."

// Collapse renders the fragment's sub-questions and dependencies into a
// prompt and asks the model for one combined question. The caller enforces
// the placeholder contract on the result.
func (c *Client) Collapse(ctx context.Context, open toq.OpenToQ, contextText string) (string, error) {
	text, _, err := c.chat(ctx, collapseSystemPrompt, renderOpen(open, contextText), c.cfg.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("llm: collapse: %w", err)
	}
	return StripThink(text), nil
}

// renderOpen lays out the fragment for the model: member questions in id
// order, who feeds whom, and which external placeholders may survive.
func renderOpen(open toq.OpenToQ, contextText string) string {
	ids := make([]toq.NodeID, 0, len(open.Tree.Nodes))
	for id := range open.Tree.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	if contextText != "" {
		sb.WriteString("Context: ")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Sub-questions:\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "  Q%d: %s\n", id, open.Tree.Nodes[id].Text)
	}

	sb.WriteString("\nA token like [A3] in a question stands for the answer to Q3.\n")
	fmt.Fprintf(&sb, "The final question must resolve Q%d.\n", open.RootID)

	if len(open.Inputs) == 0 {
		sb.WriteString("Allowed placeholders: none. The merged question must be self-contained.\n")
	} else {
		allowed := make([]string, len(open.Inputs))
		for i, in := range open.Inputs {
			allowed[i] = toq.Placeholder(in)
		}
		fmt.Fprintf(&sb, "Allowed placeholders: %s. Keep them verbatim where their answers are needed.\n",
			strings.Join(allowed, ", "))
	}

	sb.WriteString("\nWrite the single merged question.")
	return sb.String()
}

// KnownQuestionCollapser is a non-model collapser for dataset examples where
// the full collapse is already known: the original dataset question. A closed
// fragment covering the whole tree collapses to it. Partial multi-node
// fragments are composed textually, inlining each internal member's question
// into its parent's placeholder slot while external-input placeholders stay
// verbatim. Single-node fragments keep their own text.
type KnownQuestionCollapser struct {
	Original string

	// TreeSize is the node count of the full tree. When zero, any closed
	// multi-node fragment is treated as the full collapse.
	TreeSize int
}

var _ qa.Collapser = KnownQuestionCollapser{}

func (k KnownQuestionCollapser) Collapse(_ context.Context, open toq.OpenToQ, _ string) (string, error) {
	n := len(open.Tree.Nodes)
	if n == 1 {
		return open.Tree.Nodes[open.RootID].Text, nil
	}
	if open.Closed() && (k.TreeSize == 0 || n == k.TreeSize) {
		return k.Original, nil
	}
	return composeOpen(open), nil
}

// composeOpen folds a multi-node fragment into one question by resolving
// internal placeholder references bottom-up: each member's composed text,
// trailing question mark stripped, replaces its placeholder in the parent.
// Inputs are not fragment members, so their placeholders survive untouched
// for the substituter to fill.
func composeOpen(open toq.OpenToQ) string {
	children := open.Tree.Children()
	var fold func(id toq.NodeID) string
	fold = func(id toq.NodeID) string {
		text := open.Tree.Nodes[id].Text
		for _, ch := range children[id] {
			inline := strings.TrimSpace(strings.TrimRight(fold(ch), "?"))
			text = strings.ReplaceAll(text, toq.Placeholder(ch), inline)
		}
		return text
	}
	return fold(open.RootID)
}
