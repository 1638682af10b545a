package toq

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// treeJSON is the wire form of a Tree. Node ids double as object keys, which
// JSON requires to be strings.
type treeJSON struct {
	RootID NodeID          `json:"root_id"`
	Nodes  map[string]Node `json:"nodes"`
}

// ToJSON serializes a Tree.
func ToJSON(t *Tree) ([]byte, error) {
	out := treeJSON{
		RootID: t.RootID,
		Nodes:  make(map[string]Node, len(t.Nodes)),
	}
	for id, n := range t.Nodes {
		out.Nodes[strconv.Itoa(int(id))] = n
	}
	return json.Marshal(out)
}

// FromJSON parses and validates a Tree. The node map keys must agree with
// the embedded node ids.
func FromJSON(data []byte) (*Tree, error) {
	var raw treeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("toq: parse tree JSON: %w", err)
	}
	if raw.Nodes == nil {
		return nil, fmt.Errorf("toq: tree JSON missing nodes")
	}

	t := &Tree{
		RootID: raw.RootID,
		Nodes:  make(map[NodeID]Node, len(raw.Nodes)),
	}
	for key, n := range raw.Nodes {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("toq: invalid node id key %q", key)
		}
		t.Nodes[NodeID(id)] = n
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
