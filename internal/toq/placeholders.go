package toq

import (
	"fmt"
	"regexp"
	"strconv"
)

// placeholderRe matches answer placeholders of the form [A<id>].
var placeholderRe = regexp.MustCompile(`\[A(\d+)\]`)

// Placeholder renders the placeholder token for a node id.
func Placeholder(id NodeID) string {
	return fmt.Sprintf("[A%d]", id)
}

// Refs returns the node ids referenced by [A<id>] placeholders in text, in
// order of first appearance, without duplicates.
func Refs(text string) []NodeID {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[NodeID]bool, len(matches))
	var refs []NodeID
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue // digits only by construction; overflow falls through
		}
		id := NodeID(n)
		if !seen[id] {
			seen[id] = true
			refs = append(refs, id)
		}
	}
	return refs
}

// HasRefs reports whether text contains any [A<id>] placeholder.
func HasRefs(text string) bool {
	return placeholderRe.MatchString(text)
}
