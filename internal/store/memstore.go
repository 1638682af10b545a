package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu    sync.RWMutex
	runs  map[string]RunMeta
	plans map[string][]PlanResult // key: run id
	trees map[string]*toq.Tree    // key: run id
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:  make(map[string]RunMeta),
		plans: make(map[string][]PlanResult),
		trees: make(map[string]*toq.Tree),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// SaveRun stores run metadata keyed by id.
func (m *MemStore) SaveRun(_ context.Context, run RunMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

// SaveTree keeps a copy of the run's tree.
func (m *MemStore) SaveTree(_ context.Context, runID string, tree *toq.Tree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := make(map[toq.NodeID]toq.Node, len(tree.Nodes))
	for id, n := range tree.Nodes {
		nodes[id] = n
	}
	m.trees[runID] = &toq.Tree{Nodes: nodes, RootID: tree.RootID}
	return nil
}

// SavePlanResult appends one plan outcome to its run.
func (m *MemStore) SavePlanResult(_ context.Context, res PlanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[res.RunID] = append(m.plans[res.RunID], res)
	return nil
}

// GetRun returns the run with the given id, or nil if not found.
func (m *MemStore) GetRun(_ context.Context, id string) (*RunMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest first, up to limit. A limit <= 0 returns all.
func (m *MemStore) ListRuns(_ context.Context, limit int) ([]RunMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunMeta, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetPlanResults returns the run's plan outcomes in insertion order.
func (m *MemStore) GetPlanResults(_ context.Context, runID string) ([]PlanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.plans[runID]
	out := make([]PlanResult, len(src))
	copy(out, src)
	return out, nil
}

// GetTree returns a copy of the run's tree, or nil if not archived.
func (m *MemStore) GetTree(_ context.Context, runID string) (*toq.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.trees[runID]
	if !ok {
		return nil, nil
	}
	nodes := make(map[toq.NodeID]toq.Node, len(tree.Nodes))
	for id, n := range tree.Nodes {
		nodes[id] = n
	}
	return &toq.Tree{Nodes: nodes, RootID: tree.RootID}, nil
}

// Stats returns counts of archived runs, plans, and tree nodes.
func (m *MemStore) Stats(_ context.Context) (*ArchiveStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plans, nodes := 0, 0
	for _, ps := range m.plans {
		plans += len(ps)
	}
	for _, t := range m.trees {
		nodes += len(t.Nodes)
	}
	return &ArchiveStats{
		RunCount:  len(m.runs),
		PlanCount: plans,
		NodeCount: nodes,
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
