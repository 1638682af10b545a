package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dusk-indust/toqcheck/internal/plan"
	"github.com/dusk-indust/toqcheck/internal/toq"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an OpenAI-compatible chat completions endpoint that replies
// from a queue and records every request it sees.
type fakeBackend struct {
	mu       sync.Mutex
	replies  []string
	requests []openai.ChatCompletionRequest
	server   *httptest.Server
}

func newFakeBackend(t *testing.T, replies ...string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{replies: replies}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		b.mu.Lock()
		b.requests = append(b.requests, req)
		reply := ""
		if len(b.replies) > 0 {
			reply = b.replies[0]
			b.replies = b.replies[1:]
		}
		b.mu.Unlock()

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}},
			},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 5},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Model:   "test-model",
		APIKey:  "test-key",
		BaseURL: b.server.URL + "/v1",
	})
	require.NoError(t, err)
	return c
}

func (b *fakeBackend) lastRequest(t *testing.T) openai.ChatCompletionRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	return b.requests[len(b.requests)-1]
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	assert.ErrorContains(t, err, "model is required")

	_, err = NewClient(Config{Model: "m"})
	assert.ErrorContains(t, err, "api key is required")
}

func TestClient_Answer(t *testing.T) {
	backend := newFakeBackend(t, "<think>let me see</think>\nHarry Truman")
	client := backend.client(t)

	ans, err := client.Answer(context.Background(), "Who was President when WW2 ended?", "")
	require.NoError(t, err)

	assert.Equal(t, "Harry Truman", ans.Text)
	assert.Equal(t, "test-model", ans.Meta["model"])
	usage, ok := ans.Meta["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12, usage["prompt_tokens"])

	req := backend.lastRequest(t)
	assert.Equal(t, "test-model", req.Model)
	assert.Zero(t, req.Temperature)
	assert.Equal(t, 64, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "concise factual")
	assert.Equal(t, "Who was President when WW2 ended?", req.Messages[1].Content)
}

func TestClient_AnswerWithContext(t *testing.T) {
	backend := newFakeBackend(t, "1945")
	client := backend.client(t)

	_, err := client.Answer(context.Background(), "When did WW2 end?", "20th century history")
	require.NoError(t, err)

	req := backend.lastRequest(t)
	assert.Contains(t, req.Messages[1].Content, "Context: 20th century history")
	assert.Contains(t, req.Messages[1].Content, "When did WW2 end?")
}

func TestClient_Collapse(t *testing.T) {
	backend := newFakeBackend(t, "Who was President when WW2 ended?")
	client := backend.client(t)

	open := toq.OpenToQ{
		Tree: toq.New(
			toq.ChildNode(1, "When did WW2 end?", 2),
			toq.RootNode(2, "Who was President at time [A1]?"),
		),
		RootID: 2,
	}

	got, err := client.Collapse(context.Background(), open, "")
	require.NoError(t, err)
	assert.Equal(t, "Who was President when WW2 ended?", got)

	req := backend.lastRequest(t)
	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "Q1: When did WW2 end?")
	assert.Contains(t, prompt, "Q2: Who was President at time [A1]?")
	assert.Contains(t, prompt, "resolve Q2")
	assert.Contains(t, prompt, "Allowed placeholders: none")
}

func TestRenderOpen_ExternalInputs(t *testing.T) {
	open := toq.OpenToQ{
		Tree:   toq.New(toq.RootNode(2, "Who was President at time [A1]?")),
		RootID: 2,
		Inputs: []toq.NodeID{1},
	}

	prompt := renderOpen(open, "")
	assert.Contains(t, prompt, "Allowed placeholders: [A1]")
	assert.NotContains(t, prompt, "self-contained")
}

func TestClient_Decompose(t *testing.T) {
	backend := newFakeBackend(t, "```json\n"+
		`{"root_id": 2, "nodes": {"1": {"id": 1, "text": "When did WW2 end?"}, `+
		`"2": {"id": 2, "text": "Who was President at time [A1]?", "parent": 1}}}`+
		"\n```")
	client := backend.client(t)

	tree, err := client.Decompose(context.Background(), "Who was President when WW2 ended?", "")
	require.NoError(t, err)
	assert.Equal(t, toq.NodeID(2), tree.RootID)
	assert.Len(t, tree.Nodes, 2)
	assert.Equal(t, "When did WW2 end?", tree.Nodes[1].Text)
}

func TestClient_DecomposeRejectsInvalidTree(t *testing.T) {
	backend := newFakeBackend(t, `{"root_id": 1, "nodes": {"1": {"id": 1, "text": "Dangling [A7]?"}}}`)
	client := backend.client(t)

	_, err := client.Decompose(context.Background(), "anything", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, toq.ErrInvalidTree)
}

func TestKnownQuestionCollapser(t *testing.T) {
	collapser := KnownQuestionCollapser{Original: "Who was President when WW2 ended?"}
	two := toq.New(
		toq.ChildNode(1, "When did WW2 end?", 2),
		toq.RootNode(2, "Who was President at time [A1]?"),
	)

	tests := []struct {
		name string
		open toq.OpenToQ
		want string
	}{
		{
			name: "closed multi-node fragment yields the original question",
			open: toq.OpenToQ{Tree: two, RootID: 2},
			want: "Who was President when WW2 ended?",
		},
		{
			name: "closed leaf keeps its own text",
			open: toq.OpenToQ{Tree: toq.New(toq.RootNode(1, "When did WW2 end?")), RootID: 1},
			want: "When did WW2 end?",
		},
		{
			name: "open fragment keeps the root text with its placeholder",
			open: toq.OpenToQ{
				Tree:   toq.New(toq.RootNode(2, "Who was President at time [A1]?")),
				RootID: 2,
				Inputs: []toq.NodeID{1},
			},
			want: "Who was President at time [A1]?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collapser.Collapse(context.Background(), tt.open, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Partial multi-node fragments of three-step trees must compose textually:
// internal placeholders get inlined, external ones survive for substitution.
func TestKnownQuestionCollapser_ComposesPartialFragments(t *testing.T) {
	chain := toq.New(
		toq.ChildNode(1, "When did WW2 end?", 2),
		toq.ChildNode(2, "Who was President in [A1]?", 3),
		toq.RootNode(3, "Where was [A2] born?"),
	)
	fanin := toq.New(
		toq.ChildNode(1, "When was the Eiffel Tower built?", 3),
		toq.ChildNode(2, "When was Big Ben built?", 3),
		toq.RootNode(3, "Which is older of [A1] and [A2]?"),
	)

	tests := []struct {
		name     string
		tree     *toq.Tree
		original string
		cuts     []toq.NodeID
		root     toq.NodeID
		want     string
	}{
		{
			name:     "chain suffix keeps the external placeholder",
			tree:     chain,
			original: "Where was the President at the end of WW2 born?",
			cuts:     []toq.NodeID{1},
			root:     3,
			want:     "Where was who was President in [A1] born?",
		},
		{
			name:     "closed chain prefix composes instead of using the original",
			tree:     chain,
			original: "Where was the President at the end of WW2 born?",
			cuts:     []toq.NodeID{2},
			root:     2,
			want:     "Who was President in when did WW2 end?",
		},
		{
			name:     "full merge still yields the original question",
			tree:     chain,
			original: "Where was the President at the end of WW2 born?",
			root:     3,
			want:     "Where was the President at the end of WW2 born?",
		},
		{
			name:     "fan-in with one cut leaf inlines the other",
			tree:     fanin,
			original: "Which is older of the Eiffel Tower and Big Ben?",
			cuts:     []toq.NodeID{1},
			root:     3,
			want:     "Which is older of [A1] and when was Big Ben built?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, err := plan.ExtractOpen(tt.tree, plan.NewPlan(tt.cuts...), tt.root)
			require.NoError(t, err)

			collapser := KnownQuestionCollapser{Original: tt.original, TreeSize: len(tt.tree.Nodes)}
			got, err := collapser.Collapse(context.Background(), open, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripThink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Harry Truman", "Harry Truman"},
		{"<think>hmm\nmultiline</think>Harry Truman", "Harry Truman"},
		{"  <think>a</think> 1945 <think>b</think>  ", "1945"},
		{"<think>only thought</think>", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripThink(tt.in), "input %q", tt.in)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}
