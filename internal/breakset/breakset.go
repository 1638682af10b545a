// Package breakset loads HotpotQA decompositions from the Break
// (QDMR-high-level) dataset CSV and converts them into question trees.
// Break writes each decomposition as semicolon-separated "return ..." steps
// where #N references an earlier step's answer; naturalization turns a step
// into a question and #N into the [AN] placeholder convention.
package breakset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// Structure classifies the dependency shape of a decomposition.
type Structure string

const (
	// StructureTwoStep is a leaf feeding the root: step 2 references #1.
	StructureTwoStep Structure = "2step"

	// StructureChain is the sequential 3-step shape 1 -> 2 -> 3.
	StructureChain Structure = "chain"

	// StructureFanIn is the 3-step shape where the root consumes both
	// independent leaves.
	StructureFanIn Structure = "fanin"
)

// Example is one dataset row converted to a tree. Question is the original
// composite question, which is also the tree's known full collapse.
type Example struct {
	QuestionID string
	Question   string
	Tree       *toq.Tree
	Operators  []string
	Structure  Structure
}

// Options filters and bounds a load.
type Options struct {
	// MaxExamples caps the result. Zero means no cap.
	MaxExamples int

	// Operators, when non-nil, keeps only rows whose operator list matches
	// exactly. The well-formed 2-step bridge questions are
	// []string{"select", "project"}.
	Operators []string

	// Structures, when non-nil, keeps only the named shapes. Nil accepts
	// every supported shape.
	Structures []Structure
}

var (
	returnPrefixRe = regexp.MustCompile(`(?i)^return\s+`)
	stepRefRe      = regexp.MustCompile(`#(\d+)`)
)

// Naturalize converts a QDMR step into a question: the "return " prefix is
// dropped, #N becomes [AN], the first letter is capitalized, and a trailing
// "?" is ensured.
//
//	"return the president of France"  ->  "The president of France?"
//	"return who managed #1"           ->  "Who managed [A1]?"
func Naturalize(step string) string {
	s := strings.TrimSpace(step)
	s = returnPrefixRe.ReplaceAllString(s, "")
	s = stepRefRe.ReplaceAllString(s, "[A$1]")

	if r, size := utf8.DecodeRuneInString(s); size > 0 {
		s = string(unicode.ToUpper(r)) + s[size:]
	}
	if s != "" && !strings.HasSuffix(s, "?") {
		s += "?"
	}
	return s
}

// LoadFile opens path and delegates to Load.
func LoadFile(path string, opts Options) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("breakset: open dataset: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads a Break QDMR-high-level CSV and returns the HotpotQA rows whose
// decomposition matches a supported structure. Rows from other source
// datasets and unsupported shapes are skipped, not errors.
func Load(r io.Reader, opts Options) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("breakset: read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var examples []Example
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("breakset: read row: %w", err)
		}

		ex, ok, err := convertRow(row, cols, opts)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		examples = append(examples, ex)
		if opts.MaxExamples > 0 && len(examples) >= opts.MaxExamples {
			break
		}
	}
	return examples, nil
}

// rowColumns maps the needed header names to their positions.
type rowColumns struct {
	questionID, questionText, decomposition, operators int
}

func columnIndex(header []string) (rowColumns, error) {
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	cols := rowColumns{questionID: -1, questionText: -1, decomposition: -1, operators: -1}
	lookup := map[string]*int{
		"question_id":   &cols.questionID,
		"question_text": &cols.questionText,
		"decomposition": &cols.decomposition,
		"operators":     &cols.operators,
	}
	for name, dst := range lookup {
		i, ok := idx[name]
		if !ok {
			return cols, fmt.Errorf("breakset: dataset header missing column %q", name)
		}
		*dst = i
	}
	return cols, nil
}

func convertRow(row []string, cols rowColumns, opts Options) (Example, bool, error) {
	max := cols.questionID
	for _, c := range []int{cols.questionText, cols.decomposition, cols.operators} {
		if c > max {
			max = c
		}
	}
	if len(row) <= max {
		return Example{}, false, nil
	}

	id := row[cols.questionID]
	if !strings.HasPrefix(id, "HOTPOT") {
		return Example{}, false, nil
	}

	steps := splitSteps(row[cols.decomposition])
	structure, ok := classify(steps)
	if !ok || !opts.wantStructure(structure) {
		return Example{}, false, nil
	}

	ops := parseOperators(row[cols.operators])
	if opts.Operators != nil && !equalStrings(ops, opts.Operators) {
		return Example{}, false, nil
	}

	tree, err := buildTree(structure, steps)
	if err != nil {
		return Example{}, false, fmt.Errorf("breakset: row %s: %w", id, err)
	}

	return Example{
		QuestionID: id,
		Question:   row[cols.questionText],
		Tree:       tree,
		Operators:  ops,
		Structure:  structure,
	}, true, nil
}

func (o Options) wantStructure(s Structure) bool {
	if o.Structures == nil {
		return true
	}
	for _, want := range o.Structures {
		if want == s {
			return true
		}
	}
	return false
}

func splitSteps(decomposition string) []string {
	var steps []string
	for _, part := range strings.Split(decomposition, ";") {
		if s := strings.TrimSpace(part); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// stepRefs returns the set of step numbers a step references.
func stepRefs(step string) map[int]bool {
	refs := map[int]bool{}
	for _, m := range stepRefRe.FindAllStringSubmatch(step, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			refs[n] = true
		}
	}
	return refs
}

// classify recognizes the supported dependency shapes.
func classify(steps []string) (Structure, bool) {
	switch len(steps) {
	case 2:
		if stepRefs(steps[1])[1] {
			return StructureTwoStep, true
		}
	case 3:
		r1, r2, r3 := stepRefs(steps[0]), stepRefs(steps[1]), stepRefs(steps[2])
		if len(r1) != 0 {
			return "", false
		}
		if len(r2) == 1 && r2[1] && len(r3) == 1 && r3[2] {
			return StructureChain, true
		}
		if len(r2) == 0 && r3[1] && r3[2] {
			return StructureFanIn, true
		}
	}
	return "", false
}

func buildTree(structure Structure, steps []string) (*toq.Tree, error) {
	var tree *toq.Tree
	switch structure {
	case StructureTwoStep:
		tree = toq.New(
			toq.ChildNode(1, Naturalize(steps[0]), 2),
			toq.RootNode(2, Naturalize(steps[1])),
		)
	case StructureChain:
		tree = toq.New(
			toq.ChildNode(1, Naturalize(steps[0]), 2),
			toq.ChildNode(2, Naturalize(steps[1]), 3),
			toq.RootNode(3, Naturalize(steps[2])),
		)
	case StructureFanIn:
		tree = toq.New(
			toq.ChildNode(1, Naturalize(steps[0]), 3),
			toq.ChildNode(2, Naturalize(steps[1]), 3),
			toq.RootNode(3, Naturalize(steps[2])),
		)
	default:
		return nil, fmt.Errorf("unsupported structure %q", structure)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// parseOperators reads Break's operators field, a Python list literal such
// as "['select', 'project']".
func parseOperators(raw string) []string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	var ops []string
	for _, part := range strings.Split(s, ",") {
		op := strings.Trim(strings.TrimSpace(part), `'"`)
		if op != "" {
			ops = append(ops, op)
		}
	}
	return ops
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
