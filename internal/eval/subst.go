package eval

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// MissingSubstitutionError reports a placeholder in a template with no
// resolved value. This is an evaluation-order defect inside the engine, not
// a user error: by the time a node is rendered, every child answer must be
// available.
type MissingSubstitutionError struct {
	Ref      toq.NodeID
	Template string
}

func (e *MissingSubstitutionError) Error() string {
	return fmt.Sprintf("eval: no substitution for %s in template %q", toq.Placeholder(e.Ref), e.Template)
}

// Render replaces every [A<id>] placeholder in template with its value.
// Side-effect free. Returns *MissingSubstitutionError if any referenced id
// has no entry in values.
func Render(template string, values map[toq.NodeID]string) (string, error) {
	out := template
	for _, ref := range toq.Refs(template) {
		v, ok := values[ref]
		if !ok {
			return "", &MissingSubstitutionError{Ref: ref, Template: template}
		}
		out = strings.ReplaceAll(out, toq.Placeholder(ref), v)
	}
	return out, nil
}
