// Package depgraph implements the traversal used to order projects by their
// dependencies.
package depgraph

import "fmt"

// CycleError reports two projects that circularly depend on each other.
// From depends on To, and To (transitively) depends on From.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("projects %s and %s circularly depend on each other", e.From, e.To)
}

type mark uint8

const (
	unvisited mark = iota
	visiting
	done
)

type frame struct {
	name string
	next []string // edges not yet descended into
}

// Closure returns every node reachable from roots by following edges, roots
// included, each exactly once. A node always appears after all of the nodes
// it has an edge to. The order of roots seeds the traversal; ties between
// independent subtrees carry no further guarantee.
//
// Closure fails with a *CycleError if a cycle is reachable from roots.
func Closure(roots []string, edges func(name string) []string) ([]string, error) {
	marks := make(map[string]mark)
	var order []string
	var stack []frame

	for _, root := range roots {
		if marks[root] != unvisited {
			continue
		}
		marks[root] = visiting
		stack = append(stack, frame{name: root, next: edges(root)})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				marks[top.name] = done
				order = append(order, top.name)
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.next[0]
			top.next = top.next[1:]

			switch marks[dep] {
			case done:
			case visiting:
				return nil, &CycleError{From: top.name, To: dep}
			default:
				marks[dep] = visiting
				stack = append(stack, frame{name: dep, next: edges(dep)})
			}
		}
	}
	return order, nil
}
