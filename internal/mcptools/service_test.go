package mcptools

import (
	"context"
	"testing"

	"github.com/dusk-indust/toqcheck/internal/llm"
	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/dusk-indust/toqcheck/internal/store"
	"github.com/dusk-indust/toqcheck/internal/toq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ww2TreeJSON = `{
	"root_id": 2,
	"nodes": {
		"1": {"id": 1, "text": "When did WW2 end?", "parent": 2},
		"2": {"id": 2, "text": "Who was President at time [A1]?"}
	}
}`

// newTestService wires a service around a fixed answer table.
func newTestService(archive store.Store) *ConsistencyService {
	answers := map[string]string{
		"When did WW2 end?":                 "1945",
		"Who was President at time 1945?":   "Harry Truman",
		"Who was President when WW2 ended?": "Harry Truman",
	}
	answerer := qa.AnswererFunc(func(_ context.Context, question, _ string) (qa.Answer, error) {
		return qa.Answer{Text: answers[question]}, nil
	})
	decomposer := qa.DecomposerFunc(func(_ context.Context, question, _ string) (*toq.Tree, error) {
		return toq.FromJSON([]byte(ww2TreeJSON))
	})

	return NewConsistencyService(ServiceConfig{
		Answerer:   answerer,
		Collapser:  llm.KnownQuestionCollapser{Original: "Who was President when WW2 ended?"},
		Decomposer: decomposer,
		Normalizer: qa.Fold(),
		Archive:    archive,
		Model:      "test-model",
	})
}

func TestCheckTree(t *testing.T) {
	archive := store.NewMemStore()
	svc := newTestService(archive)

	_, out, err := svc.CheckTree(context.Background(), nil, CheckTreeInput{
		TreeJSON:         ww2TreeJSON,
		OriginalQuestion: "Who was President when WW2 ended?",
	})
	require.NoError(t, err)

	assert.True(t, out.Consistent)
	assert.Equal(t, "Harry Truman", out.Baseline)
	assert.Equal(t, 2, out.NumPlans)
	assert.Zero(t, out.NumErrored)
	require.Len(t, out.Runs, 2)
	assert.Equal(t, "cut{}", out.Runs[0].PlanKey)
	assert.Equal(t, "matched", out.Runs[0].Status)

	// The run was archived.
	require.NotEmpty(t, out.RunID)
	run, err := archive.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "Who was President when WW2 ended?", run.Question)
	assert.Equal(t, "test-model", run.Model)

	results, err := archive.GetPlanResults(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCheckTree_NoArchive(t *testing.T) {
	svc := newTestService(nil)

	_, out, err := svc.CheckTree(context.Background(), nil, CheckTreeInput{
		TreeJSON:         ww2TreeJSON,
		OriginalQuestion: "Who was President when WW2 ended?",
	})
	require.NoError(t, err)
	assert.True(t, out.Consistent)
	assert.Empty(t, out.RunID)
}

func TestCheckTree_InvalidJSON(t *testing.T) {
	svc := newTestService(nil)

	_, _, err := svc.CheckTree(context.Background(), nil, CheckTreeInput{TreeJSON: "{not json"})
	require.Error(t, err)
}

func TestCheckQuestion(t *testing.T) {
	archive := store.NewMemStore()
	svc := newTestService(archive)

	_, out, err := svc.CheckQuestion(context.Background(), nil, CheckQuestionInput{
		Question: "Who was President when WW2 ended?",
	})
	require.NoError(t, err)
	assert.True(t, out.Consistent)
	assert.Equal(t, "Harry Truman", out.Baseline)
	require.NotEmpty(t, out.RunID)

	tree, err := archive.GetTree(context.Background(), out.RunID)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Len(t, tree.Nodes, 2)
}

func TestCheckQuestion_NoDecomposer(t *testing.T) {
	svc := NewConsistencyService(ServiceConfig{
		Answerer: qa.AnswererFunc(func(_ context.Context, _, _ string) (qa.Answer, error) {
			return qa.Answer{Text: "x"}, nil
		}),
	})

	_, _, err := svc.CheckQuestion(context.Background(), nil, CheckQuestionInput{Question: "anything"})
	assert.ErrorContains(t, err, "no decomposer configured")
}

func TestValidateTree(t *testing.T) {
	svc := newTestService(nil)

	_, out, err := svc.ValidateTree(context.Background(), nil, ValidateTreeInput{TreeJSON: ww2TreeJSON})
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Equal(t, 2, out.NumNodes)
	assert.Equal(t, 1, out.NumEdges)
	assert.Equal(t, 2, out.RootID)
	assert.Equal(t, []int{1}, out.Leaves)
}

func TestValidateTree_Invalid(t *testing.T) {
	svc := newTestService(nil)

	// [A9] does not reference a direct child.
	_, out, err := svc.ValidateTree(context.Background(), nil, ValidateTreeInput{
		TreeJSON: `{"root_id": 1, "nodes": {"1": {"id": 1, "text": "What is [A9]?"}}}`,
	})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.NotEmpty(t, out.Error)
	assert.Zero(t, out.NumNodes)
}

func TestEnumeratePlans(t *testing.T) {
	svc := newTestService(nil)

	forkJSON := `{
		"root_id": 3,
		"nodes": {
			"1": {"id": 1, "text": "Q one?", "parent": 3},
			"2": {"id": 2, "text": "Q two?", "parent": 3},
			"3": {"id": 3, "text": "Compare [A1] and [A2]?"}
		}
	}`

	_, out, err := svc.EnumeratePlans(context.Background(), nil, EnumeratePlansInput{TreeJSON: forkJSON})
	require.NoError(t, err)

	assert.Equal(t, 4, out.NumPlans)
	keys := make([]string, len(out.Plans))
	for i, p := range out.Plans {
		keys[i] = p.Key
	}
	assert.Equal(t, []string{"cut{}", "cut{1}", "cut{2}", "cut{1,2}"}, keys)
	assert.Empty(t, out.Plans[0].CutEdges)
	assert.Equal(t, []int{1, 2}, out.Plans[3].CutEdges)
	assert.NotEmpty(t, out.Plans[0].PartitionKey)
}

func TestEnumeratePlans_MaxPlans(t *testing.T) {
	svc := newTestService(nil)

	_, out, err := svc.EnumeratePlans(context.Background(), nil, EnumeratePlansInput{
		TreeJSON: ww2TreeJSON,
		MaxPlans: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumPlans)
	assert.Equal(t, "cut{}", out.Plans[0].Key)
}
