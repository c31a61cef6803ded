// Package optimizer scores units so that, among units competing for a free
// execution slot, the one that unblocks the most future work starts first.
package optimizer

import (
	"github.com/me/relay/internal/graph"
)

// Strategy computes a priority score per unit from the dependency tree.
// Higher scores start first. Scores only break ties between units that are
// eligible to run at the same moment.
type Strategy interface {
	Name() string
	Optimize(tree *graph.Tree) map[string]float64
}

// MaxTotalDelay scores each unit by the total delay of its deepest dependency
// chain: the heaviest weighted path from the unit to any unit that depends on
// it, directly or transitively. Units nothing depends on score 0.
//
// Starting the longest chains first lets their post-completion delays overlap
// with other work instead of trailing at the end of the run.
type MaxTotalDelay struct{}

// Name returns the strategy identifier.
func (MaxTotalDelay) Name() string {
	return "max-total-delay"
}

// Optimize returns a score for every vertex of tree, Root excluded.
func (MaxTotalDelay) Optimize(tree *graph.Tree) map[string]float64 {
	paths := tree.LongestPaths()
	delete(paths, graph.Root)
	return paths
}

// Insertion keeps the order in which units were added by scoring every unit 0.
type Insertion struct{}

// Name returns the strategy identifier.
func (Insertion) Name() string {
	return "insertion"
}

// Optimize returns 0 for every vertex of tree.
func (Insertion) Optimize(tree *graph.Tree) map[string]float64 {
	scores := make(map[string]float64, tree.Len())
	for _, v := range tree.Vertices() {
		scores[v] = 0
	}
	return scores
}

// ByName returns the strategy registered under name, or false.
func ByName(name string) (Strategy, bool) {
	switch name {
	case "", MaxTotalDelay{}.Name():
		return MaxTotalDelay{}, true
	case Insertion{}.Name():
		return Insertion{}, true
	}
	return nil, false
}
