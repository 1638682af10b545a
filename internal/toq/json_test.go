package toq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	raw := []byte(`{
		"root_id": 2,
		"nodes": {
			"1": {"id": 1, "text": "When did WW2 end?", "parent": 2},
			"2": {"id": 2, "text": "Who was President at time [A1]?", "parent": null}
		}
	}`)

	tree, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, NodeID(2), tree.RootID)
	require.Len(t, tree.Nodes, 2)
	require.NotNil(t, tree.Nodes[1].Parent)
	assert.Equal(t, NodeID(2), *tree.Nodes[1].Parent)
	assert.Nil(t, tree.Nodes[2].Parent)
}

func TestFromJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing nodes", `{"root_id": 1}`},
		{"bad id key", `{"root_id": 1, "nodes": {"x": {"id": 1, "text": "Q?", "parent": null}}}`},
		{"fails validation", `{"root_id": 5, "nodes": {"1": {"id": 1, "text": "Q?", "parent": null}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	tree := twoStepTree()
	data, err := ToJSON(tree)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, tree.RootID, back.RootID)
	assert.Equal(t, tree.Nodes[1].Text, back.Nodes[1].Text)
	assert.Equal(t, tree.Nodes[2].Text, back.Nodes[2].Text)
}
