//go:build cgo

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/toqcheck/internal/toq"
	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the archive
// backend. It requires CGO because the go-kuzu driver wraps KuzuDB's C
// library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path, so archived runs survive across sessions. KuzuDB
// creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Run(
		id STRING,
		question STRING,
		model STRING,
		baseline STRING,
		consistent BOOLEAN,
		num_plans INT64,
		num_errored INT64,
		mode_answer STRING,
		mode_fraction DOUBLE,
		entropy DOUBLE,
		created_at STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS QNode(
		id STRING,
		run_id STRING,
		node_id INT64,
		text STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS PlanRun(
		id STRING,
		run_id STRING,
		plan_key STRING,
		partition_key STRING,
		status STRING,
		answer STRING,
		normalized STRING,
		error STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS CHILD_OF(FROM QNode TO QNode)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_PLAN(FROM Run TO PlanRun)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// SaveRun inserts a Run node.
func (s *KuzuStore) SaveRun(_ context.Context, run RunMeta) error {
	return s.exec(
		`CREATE (r:Run {
			id: $id,
			question: $question,
			model: $model,
			baseline: $baseline,
			consistent: $consistent,
			num_plans: $plans,
			num_errored: $errored,
			mode_answer: $mode,
			mode_fraction: $fraction,
			entropy: $entropy,
			created_at: $created
		})`,
		map[string]any{
			"id":         run.ID,
			"question":   run.Question,
			"model":      run.Model,
			"baseline":   run.Baseline,
			"consistent": run.Consistent,
			"plans":      int64(run.NumPlans),
			"errored":    int64(run.NumErrored),
			"mode":       run.ModeAnswer,
			"fraction":   run.ModeFraction,
			"entropy":    run.Entropy,
			"created":    run.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	)
}

// SaveTree inserts one QNode per tree node plus CHILD_OF edges toward each
// node's parent.
func (s *KuzuStore) SaveTree(_ context.Context, runID string, tree *toq.Tree) error {
	for id, node := range tree.Nodes {
		err := s.exec(
			"CREATE (n:QNode {id: $id, run_id: $run, node_id: $node, text: $text})",
			map[string]any{
				"id":   qnodeID(runID, id),
				"run":  runID,
				"node": int64(id),
				"text": node.Text,
			},
		)
		if err != nil {
			return err
		}
	}
	for id, node := range tree.Nodes {
		if node.Parent == nil {
			continue
		}
		err := s.exec(
			`MATCH (a:QNode {id: $src}), (b:QNode {id: $dst})
			 CREATE (a)-[:CHILD_OF]->(b)`,
			map[string]any{
				"src": qnodeID(runID, id),
				"dst": qnodeID(runID, *node.Parent),
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SavePlanResult inserts a PlanRun node and links it to its Run.
func (s *KuzuStore) SavePlanResult(_ context.Context, res PlanResult) error {
	err := s.exec(
		`CREATE (p:PlanRun {
			id: $id,
			run_id: $run,
			plan_key: $plan,
			partition_key: $partition,
			status: $status,
			answer: $answer,
			normalized: $normalized,
			error: $error
		})`,
		map[string]any{
			"id":         planRunID(res.RunID, res.PlanKey),
			"run":        res.RunID,
			"plan":       res.PlanKey,
			"partition":  res.PartitionKey,
			"status":     res.Status,
			"answer":     res.Answer,
			"normalized": res.Normalized,
			"error":      res.Error,
		},
	)
	if err != nil {
		return err
	}
	return s.exec(
		`MATCH (r:Run {id: $run}), (p:PlanRun {id: $id})
		 CREATE (r)-[:HAS_PLAN]->(p)`,
		map[string]any{
			"run": res.RunID,
			"id":  planRunID(res.RunID, res.PlanKey),
		},
	)
}

// ---------- Read operations ----------

const runColumns = `r.id, r.question, r.model, r.baseline, r.consistent,
	r.num_plans, r.num_errored, r.mode_answer, r.mode_fraction, r.entropy, r.created_at`

// GetRun retrieves a single Run by id, or returns nil if not found.
func (s *KuzuStore) GetRun(_ context.Context, id string) (*RunMeta, error) {
	rows, err := s.query(
		"MATCH (r:Run {id: $id}) RETURN "+runColumns,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToRun(rows[0]), nil
}

// ListRuns returns runs newest first, up to limit.
func (s *KuzuStore) ListRuns(_ context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(
		"MATCH (r:Run) RETURN "+runColumns+" ORDER BY r.created_at DESC LIMIT $lim",
		map[string]any{"lim": int64(limit)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]RunMeta, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToRun(r))
	}
	return out, nil
}

// GetPlanResults returns the run's plan outcomes ordered by plan key.
func (s *KuzuStore) GetPlanResults(_ context.Context, runID string) ([]PlanResult, error) {
	rows, err := s.query(
		`MATCH (p:PlanRun {run_id: $run})
		 RETURN p.run_id, p.plan_key, p.partition_key, p.status, p.answer, p.normalized, p.error
		 ORDER BY p.plan_key`,
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]PlanResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, PlanResult{
			RunID:        toString(r[0]),
			PlanKey:      toString(r[1]),
			PartitionKey: toString(r[2]),
			Status:       toString(r[3]),
			Answer:       toString(r[4]),
			Normalized:   toString(r[5]),
			Error:        toString(r[6]),
		})
	}
	return out, nil
}

// GetTree rebuilds the run's tree from its QNodes and CHILD_OF edges, or
// returns nil if the run archived no tree.
func (s *KuzuStore) GetTree(_ context.Context, runID string) (*toq.Tree, error) {
	nodeRows, err := s.query(
		"MATCH (n:QNode {run_id: $run}) RETURN n.node_id, n.text",
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	if len(nodeRows) == 0 {
		return nil, nil
	}

	edgeRows, err := s.query(
		`MATCH (a:QNode {run_id: $run})-[:CHILD_OF]->(b:QNode)
		 RETURN a.node_id, b.node_id`,
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	parents := make(map[toq.NodeID]toq.NodeID, len(edgeRows))
	for _, r := range edgeRows {
		parents[toq.NodeID(toInt(r[0]))] = toq.NodeID(toInt(r[1]))
	}

	nodes := make([]toq.Node, 0, len(nodeRows))
	for _, r := range nodeRows {
		id := toq.NodeID(toInt(r[0]))
		text := toString(r[1])
		if parent, ok := parents[id]; ok {
			nodes = append(nodes, toq.ChildNode(id, text, parent))
		} else {
			nodes = append(nodes, toq.RootNode(id, text))
		}
	}
	return toq.New(nodes...), nil
}

// Stats returns counts of all archive tables.
func (s *KuzuStore) Stats(_ context.Context) (*ArchiveStats, error) {
	runs, err := s.countTable("Run")
	if err != nil {
		return nil, err
	}
	plans, err := s.countTable("PlanRun")
	if err != nil {
		return nil, err
	}
	nodes, err := s.countTable("QNode")
	if err != nil {
		return nil, err
	}
	return &ArchiveStats{RunCount: runs, PlanCount: plans, NodeCount: nodes}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table)
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

func qnodeID(runID string, id toq.NodeID) string {
	return fmt.Sprintf("%s:%d", runID, id)
}

func planRunID(runID, planKey string) string {
	return runID + ":" + planKey
}

// rowToRun converts an 11-column result row into a RunMeta.
func rowToRun(r []any) *RunMeta {
	created, _ := time.Parse(time.RFC3339Nano, toString(r[10]))
	return &RunMeta{
		ID:           toString(r[0]),
		Question:     toString(r[1]),
		Model:        toString(r[2]),
		Baseline:     toString(r[3]),
		Consistent:   toBool(r[4]),
		NumPlans:     toInt(r[5]),
		NumErrored:   toInt(r[6]),
		ModeAnswer:   toString(r[7]),
		ModeFraction: toFloat64(r[8]),
		Entropy:      toFloat64(r[9]),
		CreatedAt:    created,
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
