// Package qa defines the capability contracts the consistency core consumes:
// answering, collapsing, normalizing, and decomposing. Implementations live
// outside the core (internal/llm, tests) and are injected at the entry point.
package qa

import (
	"context"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Answer is a resolved model answer for a fully-instantiated question.
type Answer struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Answerer answers a fully-instantiated question. The question never
// contains unresolved [A<id>] placeholders; contextText is an optional
// passage or hint forwarded unchanged from the run options.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string) (Answer, error)
}

// AnswererFunc adapts a function to the Answerer interface.
type AnswererFunc func(ctx context.Context, question, contextText string) (Answer, error)

func (f AnswererFunc) Answer(ctx context.Context, question, contextText string) (Answer, error) {
	return f(ctx, question, contextText)
}

// Collapser folds an OpenToQ fragment into a single question. The returned
// text may contain [A<id>] placeholders only for the fragment's declared
// external inputs, never for node ids already folded into the fragment.
type Collapser interface {
	Collapse(ctx context.Context, open toq.OpenToQ, contextText string) (string, error)
}

// CollapserFunc adapts a function to the Collapser interface.
type CollapserFunc func(ctx context.Context, open toq.OpenToQ, contextText string) (string, error)

func (f CollapserFunc) Collapse(ctx context.Context, open toq.OpenToQ, contextText string) (string, error) {
	return f(ctx, open, contextText)
}

// Decomposer turns a raw question into a validated Tree of Questions.
type Decomposer interface {
	Decompose(ctx context.Context, question, contextText string) (*toq.Tree, error)
}

// DecomposerFunc adapts a function to the Decomposer interface.
type DecomposerFunc func(ctx context.Context, question, contextText string) (*toq.Tree, error)

func (f DecomposerFunc) Decompose(ctx context.Context, question, contextText string) (*toq.Tree, error) {
	return f(ctx, question, contextText)
}

// Normalizer maps semantically equivalent answer texts to one canonical
// form before comparison.
type Normalizer interface {
	Normalize(text string) string
}

// NormalizerFunc adapts a function to the Normalizer interface.
type NormalizerFunc func(text string) string

func (f NormalizerFunc) Normalize(text string) string {
	return f(text)
}

// Identity returns the answer text unchanged. This is the default
// comparison semantics.
func Identity() Normalizer {
	return NormalizerFunc(func(text string) string { return text })
}

// Fold trims surrounding whitespace, collapses interior runs of whitespace,
// lowercases, and strips a trailing period. A pragmatic default for short
// factoid answers.
func Fold() Normalizer {
	return NormalizerFunc(func(text string) string {
		s := strings.ToLower(strings.TrimSpace(text))
		s = strings.TrimSuffix(s, ".")
		return strings.Join(strings.Fields(s), " ")
	})
}
