package consistency

import (
	"fmt"

	"github.com/dusk-indust/toqcheck/internal/toq"
)

// CollapseContractError reports a collapsing capability that returned a
// question still containing placeholders outside the OpenToQ's declared
// external inputs. The violation is attributed to the offending plan; the
// rest of the run proceeds.
type CollapseContractError struct {
	PlanKey string
	Root    toq.NodeID
	Refs    []toq.NodeID // placeholder ids that are not declared inputs
	Text    string
}

func (e *CollapseContractError) Error() string {
	return fmt.Sprintf("consistency: plan %s: collapser output for component %d references undeclared inputs %v: %q",
		e.PlanKey, e.Root, e.Refs, e.Text)
}
