package workflow

import (
	"fmt"
	"strings"

	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow/action"
)

// ValidationError collects every structural problem found in a graph.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow graph: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks that a graph can be run as planned:
//   - node ids are non-empty and unique
//   - every action is one of the known kinds
//   - every dependency names an existing node (and not the node itself)
//   - the dependency graph is acyclic
//   - execution_order lists each node exactly once, dependencies first
//
// The returned error is a *types.Error with code INVALID_GRAPH wrapping a
// *ValidationError.
func Validate(g *Graph) error {
	if g == nil {
		return types.NewError(types.ErrInvalidGraph, "graph is nil")
	}

	verr := &ValidationError{}
	idx := make(map[string]*Node, len(g.Nodes))

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			verr.add("node at index %d has empty id", i)
			continue
		}
		if _, dup := idx[n.ID]; dup {
			verr.add("duplicate node id %q", n.ID)
			continue
		}
		idx[n.ID] = n
		if !action.IsKnown(n.Action) {
			verr.add("node %q has unknown action %q", n.ID, n.Action)
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" || idx[n.ID] != n {
			continue
		}
		for _, dep := range n.DependsOn {
			if dep == n.ID {
				verr.add("node %q depends on itself", n.ID)
				continue
			}
			if _, ok := idx[dep]; !ok {
				verr.add("node %q depends on missing node %q", n.ID, dep)
			}
		}
	}

	if cycle := detectCycle(g.Nodes, idx); len(cycle) > 0 {
		verr.add("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	position := make(map[string]int, len(g.ExecutionOrder))
	for i, id := range g.ExecutionOrder {
		if _, ok := idx[id]; !ok {
			verr.add("execution_order references missing node %q", id)
			continue
		}
		if _, seen := position[id]; seen {
			verr.add("execution_order lists %q more than once", id)
			continue
		}
		position[id] = i
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" || idx[n.ID] != n {
			continue
		}
		pos, ok := position[n.ID]
		if !ok {
			verr.add("node %q is missing from execution_order", n.ID)
			continue
		}
		for _, dep := range n.DependsOn {
			if depPos, ok := position[dep]; ok && depPos > pos {
				verr.add("node %q runs before its dependency %q", n.ID, dep)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return types.NewError(types.ErrInvalidGraph, "workflow graph failed validation").
			WithCause(verr).
			WithHTTPStatus(400)
	}
	return nil
}

// detectCycle 使用 DFS 三色标记检测环，返回第一个环上的节点路径。
// 节点按声明顺序遍历，结果是确定的。
func detectCycle(nodes []Node, idx map[string]*Node) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(idx))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range idx[id].DependsOn {
			if _, ok := idx[dep]; !ok || dep == id {
				continue
			}
			switch color[dep] {
			case gray:
				for i, s := range stack {
					if s == dep {
						return append(append([]string(nil), stack[i:]...), dep)
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for i := range nodes {
		id := nodes[i].ID
		if _, ok := idx[id]; !ok || color[id] != white {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}
