package plan

import (
	"testing"

	"github.com/dusk-indust/toqcheck/internal/toq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOpen(t *testing.T) {
	tree := chainTree()

	t.Run("all merge has no inputs", func(t *testing.T) {
		open, err := ExtractOpen(tree, NewPlan(), 3)
		require.NoError(t, err)
		assert.Equal(t, toq.NodeID(3), open.RootID)
		assert.Len(t, open.Tree.Nodes, 3)
		assert.True(t, open.Closed())
	})

	t.Run("cut below exposes input", func(t *testing.T) {
		open, err := ExtractOpen(tree, NewPlan(1), 3)
		require.NoError(t, err)
		assert.Len(t, open.Tree.Nodes, 2)
		assert.Equal(t, []toq.NodeID{1}, open.Inputs)
		// The fragment root's parent pointer is dropped.
		assert.Nil(t, open.Tree.Nodes[3].Parent)
		require.NotNil(t, open.Tree.Nodes[2].Parent)
	})

	t.Run("cut leaf component", func(t *testing.T) {
		open, err := ExtractOpen(tree, NewPlan(2), 2)
		require.NoError(t, err)
		assert.Len(t, open.Tree.Nodes, 2)
		assert.True(t, open.Closed())
		assert.Nil(t, open.Tree.Nodes[2].Parent)
	})

	t.Run("not a component root", func(t *testing.T) {
		_, err := ExtractOpen(tree, NewPlan(), 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a component root")
	})
}

func TestApply_AllMerge(t *testing.T) {
	tree := forkTree()
	ct, err := Apply(tree, NewPlan(), map[toq.NodeID]string{3: "C(3)"})
	require.NoError(t, err)

	require.Len(t, ct.Tree.Nodes, 1)
	assert.Equal(t, "C(3)", ct.Tree.Nodes[3].Text)
	assert.Nil(t, ct.Tree.Nodes[3].Parent)
	assert.Equal(t, []toq.NodeID{1, 2}, ct.Removed)
	assert.Equal(t, []toq.NodeID{3}, ct.Roots)
}

func TestApply_PartialCut(t *testing.T) {
	tree := forkTree()
	// Cut above node 1: components {1} and {2,3}. The merged component's
	// collapsed question still references the external input [A1].
	ct, err := Apply(tree, NewPlan(1), map[toq.NodeID]string{3: "C(3) uses [A1]?"})
	require.NoError(t, err)

	require.Len(t, ct.Tree.Nodes, 2)
	assert.Equal(t, "Q1?", ct.Tree.Nodes[1].Text, "singleton passes through unchanged")
	assert.Equal(t, "C(3) uses [A1]?", ct.Tree.Nodes[3].Text)
	require.NotNil(t, ct.Tree.Nodes[1].Parent)
	assert.Equal(t, toq.NodeID(3), *ct.Tree.Nodes[1].Parent)
	assert.Equal(t, []toq.NodeID{2}, ct.Removed)
}

func TestApply_AllCut_ReproducesTree(t *testing.T) {
	tree := forkTree()
	// Every component is a singleton: no collapsed questions needed, and the
	// reduced tree is structurally identical to the original.
	ct, err := Apply(tree, NewPlan(1, 2), nil)
	require.NoError(t, err)

	require.Len(t, ct.Tree.Nodes, 3)
	for id, n := range tree.Nodes {
		assert.Equal(t, n.Text, ct.Tree.Nodes[id].Text)
	}
	assert.Empty(t, ct.Removed)
}

func TestApply_DeepChainParentRewiring(t *testing.T) {
	// Chain 1 -> 2 -> 3; cut only above 1. Component {2,3} contracts to 3,
	// so node 1's reduced parent must be rewired from 2 to 3.
	tree := chainTree()
	ct, err := Apply(tree, NewPlan(1), map[toq.NodeID]string{3: "C(23) uses [A1]?"})
	require.NoError(t, err)

	require.Len(t, ct.Tree.Nodes, 2)
	require.NotNil(t, ct.Tree.Nodes[1].Parent)
	assert.Equal(t, toq.NodeID(3), *ct.Tree.Nodes[1].Parent)
}

func TestApply_Errors(t *testing.T) {
	tree := forkTree()

	t.Run("missing collapsed question", func(t *testing.T) {
		_, err := Apply(tree, NewPlan(1), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing collapsed question for component root 3")
	})

	t.Run("root as cut edge", func(t *testing.T) {
		_, err := Apply(tree, NewPlan(3), map[toq.NodeID]string{3: "C(3)"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be a cut edge")
	})

	t.Run("unknown cut edge", func(t *testing.T) {
		_, err := Apply(tree, NewPlan(99), map[toq.NodeID]string{3: "C(3)"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node not in tree")
	})

	t.Run("collapsed text referencing folded node", func(t *testing.T) {
		// [A2] names a node folded into the component, so the reduced tree
		// cannot validate.
		_, err := Apply(tree, NewPlan(1), map[toq.NodeID]string{3: "C(3) uses [A2]?"})
		require.Error(t, err)
		assert.ErrorIs(t, err, toq.ErrInvalidTree)
	})
}
