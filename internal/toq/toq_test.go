package toq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoStepTree returns the canonical two-node tree used throughout the tests:
// a leaf question whose answer feeds the root question.
func twoStepTree() *Tree {
	return New(
		ChildNode(1, "When did WW2 end?", 2),
		RootNode(2, "Who was President at time [A1]?"),
	)
}

func TestValidate_OK(t *testing.T) {
	tree := twoStepTree()
	require.NoError(t, tree.Validate())
	assert.Equal(t, NodeID(2), tree.RootID)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		tree    *Tree
		wantMsg string
	}{
		{
			name:    "empty tree",
			tree:    &Tree{Nodes: map[NodeID]Node{}},
			wantMsg: "no nodes",
		},
		{
			name: "root id not in nodes",
			tree: &Tree{
				Nodes:  map[NodeID]Node{1: RootNode(1, "Q?")},
				RootID: 9,
			},
			wantMsg: "root id 9 not in nodes",
		},
		{
			name: "node key mismatch",
			tree: &Tree{
				Nodes:  map[NodeID]Node{1: RootNode(7, "Q?")},
				RootID: 1,
			},
			wantMsg: "node key 1 != node id 7",
		},
		{
			name: "missing parent",
			tree: New(
				RootNode(1, "Q?"),
				ChildNode(2, "Q2?", 5),
			),
			wantMsg: "missing parent 5",
		},
		{
			name: "self parent",
			tree: &Tree{
				Nodes: map[NodeID]Node{
					1: RootNode(1, "Q?"),
					2: ChildNode(2, "Q2?", 2),
				},
				RootID: 1,
			},
			wantMsg: "cannot be its own parent",
		},
		{
			name: "two roots",
			tree: &Tree{
				Nodes: map[NodeID]Node{
					1: RootNode(1, "Q?"),
					2: RootNode(2, "Q2?"),
				},
				RootID: 1,
			},
			wantMsg: "expected exactly 1 root",
		},
		{
			name: "disconnected two-cycle",
			tree: &Tree{
				Nodes: map[NodeID]Node{
					1: RootNode(1, "Q?"),
					2: ChildNode(2, "Q2?", 3),
					3: ChildNode(3, "Q3?", 2),
				},
				RootID: 1,
			},
			wantMsg: "unreachable",
		},
		{
			name: "placeholder references non-child",
			tree: New(
				ChildNode(1, "When did WW2 end?", 2),
				RootNode(2, "Who was President at time [A9]?"),
			),
			wantMsg: "references [A9]",
		},
		{
			name: "placeholder references grandchild",
			tree: New(
				ChildNode(1, "Leaf?", 2),
				ChildNode(2, "Mid uses [A1]?", 3),
				RootNode(3, "Root uses [A1]?"),
			),
			wantMsg: "node 3 references [A1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTree)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestChildrenAndLeaves(t *testing.T) {
	tree := New(
		ChildNode(1, "Q1?", 3),
		ChildNode(2, "Q2?", 3),
		RootNode(3, "Q3 uses [A1],[A2]?"),
	)
	require.NoError(t, tree.Validate())

	ch := tree.Children()
	assert.Equal(t, []NodeID{1, 2}, ch[3])
	assert.Empty(t, ch[1])
	assert.Empty(t, ch[2])

	assert.Equal(t, []NodeID{1, 2}, tree.Leaves())
}

func TestLeaves_SingleNode(t *testing.T) {
	tree := New(RootNode(1, "Only question?"))
	require.NoError(t, tree.Validate())
	assert.Equal(t, []NodeID{1}, tree.Leaves())
}

func TestRefs(t *testing.T) {
	tests := []struct {
		text string
		want []NodeID
	}{
		{"no placeholders here", nil},
		{"Who was President at time [A1]?", []NodeID{1}},
		{"Which is bigger, [A1] or [A2]?", []NodeID{1, 2}},
		{"[A3] then [A3] again", []NodeID{3}},
		{"[A12] double digits", []NodeID{12}},
		{"[Ax] is not a placeholder", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Refs(tt.text), "text %q", tt.text)
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "[A7]", Placeholder(7))
	assert.True(t, HasRefs("before [A7] after"))
	assert.False(t, HasRefs("plain"))
}
