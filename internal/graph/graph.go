// Package graph models unit dependencies as a weighted tree hanging off a
// synthetic root vertex.
//
// Vertices are plain names and edges are (parent, child, weight) triples held
// in flat maps, so no vertex references another object. Every query is a pure
// function over that adjacency data.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/relay/pkg/model"
)

// Root is the name of the synthetic root vertex. Unit names are never empty,
// so it cannot collide with a real vertex.
const Root = ""

// Node is one vertex to insert. An empty DependsOn attaches the vertex to Root
// with weight 0.
type Node struct {
	Name      string
	DependsOn string
	Weight    float64
}

// Tree is a validated dependency tree.
type Tree struct {
	order    []string            // vertices in insertion order, Root excluded
	parent   map[string]string   // child -> parent
	weight   map[string]float64  // child -> weight of its incoming edge
	children map[string][]string // parent -> children in insertion order
}

// Build constructs a Tree from nodes. It fails with a MISSING_DEPENDENCY
// config error when a node depends on a name that is not in nodes, and with a
// NOT_A_TREE config error when some vertex cannot be reached from Root.
func Build(nodes []Node) (*Tree, error) {
	t := &Tree{
		order:    make([]string, 0, len(nodes)),
		parent:   make(map[string]string, len(nodes)),
		weight:   make(map[string]float64, len(nodes)),
		children: make(map[string][]string),
	}

	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Name] = true
	}

	for _, n := range nodes {
		if n.DependsOn != Root && !known[n.DependsOn] {
			return nil, model.NewConfigError(model.ErrCodeMissingDependency, n.Name,
				"depends on %q, which does not exist", n.DependsOn)
		}
		t.order = append(t.order, n.Name)
		t.parent[n.Name] = n.DependsOn
		t.weight[n.Name] = n.Weight
		t.children[n.DependsOn] = append(t.children[n.DependsOn], n.Name)
	}

	if cycle := t.findCycle(); cycle != nil {
		return nil, model.NewConfigError(model.ErrCodeNotATree, cycle[0],
			"dependencies do not form a tree, cycle detected: %s", strings.Join(cycle, " -> "))
	}

	return t, nil
}

// findCycle returns one cycle among the vertices unreachable from Root, or
// nil when every vertex is reachable. Since each vertex has exactly one
// parent, an unreachable vertex always leads into a cycle.
func (t *Tree) findCycle() []string {
	reachable := make(map[string]bool, len(t.order))
	queue := []string{Root}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, c := range t.children[v] {
			if !reachable[c] {
				reachable[c] = true
				queue = append(queue, c)
			}
		}
	}

	for _, v := range t.order {
		if reachable[v] {
			continue
		}
		// Walk parents until a vertex repeats; the repeated suffix is the cycle.
		pos := make(map[string]int)
		var path []string
		cur := v
		for {
			if i, seen := pos[cur]; seen {
				cycle := append([]string{}, path[i:]...)
				// Report in dependency order: dependency first.
				for a, b := 0, len(cycle)-1; a < b; a, b = a+1, b-1 {
					cycle[a], cycle[b] = cycle[b], cycle[a]
				}
				return append(cycle, cycle[0])
			}
			pos[cur] = len(path)
			path = append(path, cur)
			cur = t.parent[cur]
		}
	}
	return nil
}

// Len returns the number of vertices, Root excluded.
func (t *Tree) Len() int {
	return len(t.order)
}

// Vertices returns all vertex names in insertion order, Root excluded.
func (t *Tree) Vertices() []string {
	return append([]string(nil), t.order...)
}

// Has reports whether name is a vertex of the tree.
func (t *Tree) Has(name string) bool {
	_, ok := t.parent[name]
	return ok
}

// Parent returns the parent of name. Top-level vertices return Root.
func (t *Tree) Parent(name string) (string, bool) {
	p, ok := t.parent[name]
	return p, ok
}

// Weight returns the weight of the edge leading into name.
func (t *Tree) Weight(name string) float64 {
	return t.weight[name]
}

// Children returns the direct children of name in insertion order.
func (t *Tree) Children(name string) []string {
	return append([]string(nil), t.children[name]...)
}

// Descendants returns every vertex transitively below name, breadth first.
func (t *Tree) Descendants(name string) []string {
	var out []string
	queue := append([]string(nil), t.children[name]...)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		out = append(out, v)
		queue = append(queue, t.children[v]...)
	}
	return out
}

// LongestPaths returns, for every vertex including Root, the weight of the
// heaviest path from that vertex down to any of its descendants. Leaves
// score 0.
func (t *Tree) LongestPaths() map[string]float64 {
	scores := make(map[string]float64, len(t.order)+1)

	// Post-order over an explicit stack keeps deep chains off the call stack.
	type frame struct {
		name     string
		expanded bool
	}
	stack := []frame{{name: Root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f.expanded {
			stack = append(stack, frame{name: f.name, expanded: true})
			for _, c := range t.children[f.name] {
				stack = append(stack, frame{name: c})
			}
			continue
		}
		best := 0.0
		for _, c := range t.children[f.name] {
			if d := t.weight[c] + scores[c]; d > best {
				best = d
			}
		}
		scores[f.name] = best
	}
	return scores
}

// Height returns the weight of the heaviest root-to-leaf path.
func (t *Tree) Height() float64 {
	return t.LongestPaths()[Root]
}

// String renders the tree as an indented outline, children sorted by name.
func (t *Tree) String() string {
	var sb strings.Builder
	var walk func(v string, indent int)
	walk = func(v string, indent int) {
		kids := t.Children(v)
		sort.Strings(kids)
		for _, c := range kids {
			fmt.Fprintf(&sb, "%s%s (+%g min)\n", strings.Repeat("  ", indent), c, t.weight[c])
			walk(c, indent+1)
		}
	}
	walk(Root, 0)
	return sb.String()
}
