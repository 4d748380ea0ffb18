package docgen

import (
	"errors"
	"fmt"

	"github.com/sanjayganvkar/adfdoc/types"
)

// ErrMissingActivityName is returned when an activity record has no name; no
// ordering can be computed without a vertex identity.
var ErrMissingActivityName = errors.New("activity is missing its name")

// MissingRef records a dependsOn edge whose upstream name is not present in
// the scope's sibling list.
type MissingRef struct {
	Activity string `json:"activity"`
	Upstream string `json:"upstream"`
}

// Diagnostics collects the non-fatal findings of resolving one scope.
// Activities listed in Dropped were omitted from the resolved order because
// a cycle or a missing upstream reference kept their in-degree above zero.
type Diagnostics struct {
	Scope       string       `json:"scope"`
	MissingRefs []MissingRef `json:"missing_refs,omitempty"`
	Dropped     []string     `json:"dropped,omitempty"`
}

// Empty reports whether the scope resolved cleanly.
func (d Diagnostics) Empty() bool {
	return len(d.MissingRefs) == 0 && len(d.Dropped) == 0
}

// Resolve orders one scope's activities so every activity appears after all
// of its same-scope upstream dependencies. The ordering is Kahn's algorithm
// with a FIFO ready queue seeded in declaration order, which makes the result
// fully deterministic: among simultaneously ready activities, the one
// declared earlier in the input comes first.
//
// Activities caught in a cycle, or blocked behind a dependency on a name
// absent from the scope, are dropped from the result rather than reported as
// errors; they show up in the returned Diagnostics instead. The scope label
// is only used for diagnostics and error messages.
func Resolve(scope string, activities []types.Activity) ([]types.Activity, Diagnostics, error) {
	diags := Diagnostics{Scope: scope}

	byName := make(map[string]types.Activity, len(activities))
	inDegree := make(map[string]int, len(activities))
	for i, a := range activities {
		if a.Name == "" {
			return nil, diags, fmt.Errorf("%w: scope %q, position %d", ErrMissingActivityName, scope, i)
		}
		byName[a.Name] = a
		inDegree[a.Name] = 0
	}

	// Adjacency is keyed by upstream name and built in input order, so the
	// traversal below never depends on map iteration order.
	adjacent := make(map[string][]string, len(activities))
	for _, a := range activities {
		for _, dep := range a.DependsOn {
			if _, known := inDegree[dep.Activity]; !known {
				diags.MissingRefs = append(diags.MissingRefs, MissingRef{
					Activity: a.Name,
					Upstream: dep.Activity,
				})
			}
			adjacent[dep.Activity] = append(adjacent[dep.Activity], a.Name)
			inDegree[a.Name]++
		}
	}

	queue := make([]string, 0, len(activities))
	for _, a := range activities {
		if inDegree[a.Name] == 0 {
			queue = append(queue, a.Name)
		}
	}

	ordered := make([]types.Activity, 0, len(activities))
	emitted := make(map[string]bool, len(activities))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byName[name])
		emitted[name] = true
		for _, next := range adjacent[name] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) < len(activities) {
		for _, a := range activities {
			if !emitted[a.Name] {
				diags.Dropped = append(diags.Dropped, a.Name)
			}
		}
	}

	return ordered, diags, nil
}
