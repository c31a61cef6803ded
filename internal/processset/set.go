// Package processset owns the units of one run, their dependency tree and
// the status-filtered views the run loop polls.
package processset

import (
	"log/slog"
	"sort"

	"github.com/me/relay/internal/graph"
	"github.com/me/relay/internal/optimizer"
	"github.com/me/relay/internal/process"
	"github.com/me/relay/pkg/model"
)

// Set is an ordered collection of units keyed by name. Units are added before
// scheduling starts; afterwards only their status changes.
type Set struct {
	units  []*process.Wrapper
	byName map[string]*process.Wrapper
	tree   *graph.Tree
	logger *slog.Logger
}

// New creates an empty Set.
func New(logger *slog.Logger) *Set {
	return &Set{
		byName: make(map[string]*process.Wrapper),
		logger: logger.With("component", "process-set"),
	}
}

// Add registers w and announces it as queued. Adding a name twice is a
// configuration error.
func (s *Set) Add(w *process.Wrapper) error {
	if _, exists := s.byName[w.Name()]; exists {
		return model.NewConfigError(model.ErrCodeDuplicateUnit, w.Name(), "already added")
	}
	s.units = append(s.units, w)
	s.byName[w.Name()] = w
	s.tree = nil
	w.Announce()
	return nil
}

// Len returns the number of units.
func (s *Set) Len() int {
	return len(s.units)
}

// Unit returns the unit called name.
func (s *Set) Unit(name string) (*process.Wrapper, bool) {
	w, ok := s.byName[name]
	return w, ok
}

// All returns every unit in the current order.
func (s *Set) All() []*process.Wrapper {
	return append([]*process.Wrapper(nil), s.units...)
}

// Get returns the units currently in status, in the current order.
func (s *Set) Get(status model.Status) []*process.Wrapper {
	var out []*process.Wrapper
	for _, w := range s.units {
		if w.Status() == status {
			out = append(out, w)
		}
	}
	return out
}

// BuildTree validates the dependency structure and caches the resulting tree.
// It fails with MISSING_DEPENDENCY when a unit depends on an unknown name and
// with NOT_A_TREE on a cycle.
func (s *Set) BuildTree() (*graph.Tree, error) {
	if s.tree != nil {
		return s.tree, nil
	}
	nodes := make([]graph.Node, 0, len(s.units))
	for _, w := range s.units {
		nodes = append(nodes, graph.Node{Name: w.Name(), DependsOn: w.DependsOn(), Weight: w.DelayMinutes()})
	}
	tree, err := graph.Build(nodes)
	if err != nil {
		return nil, err
	}
	s.tree = tree
	s.logger.Debug("dependency tree built", "units", tree.Len(), "height_min", tree.Height())
	return tree, nil
}

// OptimizeOrder reorders the units by descending strategy score. Units with
// equal scores keep their relative order. It returns the scores.
func (s *Set) OptimizeOrder(strategy optimizer.Strategy) (map[string]float64, error) {
	tree, err := s.BuildTree()
	if err != nil {
		return nil, err
	}
	scores := strategy.Optimize(tree)
	sort.SliceStable(s.units, func(i, j int) bool {
		return scores[s.units[i].Name()] > scores[s.units[j].Name()]
	})
	s.logger.Debug("units ordered", "strategy", strategy.Name())
	return scores, nil
}

// CountByStatus returns the number of units per status. Every status is
// present in the map.
func (s *Set) CountByStatus() map[model.Status]int {
	counts := make(map[model.Status]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for _, w := range s.units {
		counts[w.Status()]++
	}
	return counts
}

// CountByResult returns the number of done units per result. Every result is
// present in the map.
func (s *Set) CountByResult() map[model.Result]int {
	counts := make(map[model.Result]int, len(model.Results))
	for _, r := range model.Results {
		counts[r] = 0
	}
	for _, w := range s.units {
		if r, ok := w.Result(); ok {
			counts[r]++
		}
	}
	return counts
}

// CascadeFailure finishes every transitive dependent of name as failed
// without starting its process, and returns the units it skipped. Units that
// are already done are left alone. The tree must have been built first.
func (s *Set) CascadeFailure(name string) ([]*process.Wrapper, error) {
	if s.tree == nil {
		return nil, model.NewConfigError(model.ErrCodeTreeNotBuilt, name, "cascade requested before the dependency tree was built")
	}
	if !s.tree.Has(name) {
		return nil, model.NewConfigError(model.ErrCodeInvalidUnit, name, "cascade requested for a unit that is not in the set")
	}
	var skipped []*process.Wrapper
	for _, d := range s.tree.Descendants(name) {
		w := s.byName[d]
		if w.Status() == model.StatusDone {
			continue
		}
		if err := w.Skip(name); err != nil {
			return skipped, err
		}
		skipped = append(skipped, w)
	}
	if len(skipped) > 0 {
		s.logger.Info("dependents skipped", "unit", name, "count", len(skipped))
	}
	return skipped, nil
}

// Height returns the total delay of the longest dependency chain, in minutes.
func (s *Set) Height() (float64, error) {
	tree, err := s.BuildTree()
	if err != nil {
		return 0, err
	}
	return tree.Height(), nil
}

// AllPassed reports whether every unit is done and passed. An empty set
// passes.
func (s *Set) AllPassed() bool {
	for _, w := range s.units {
		r, ok := w.Result()
		if !ok || !r.IsPassing() {
			return false
		}
	}
	return true
}
