package optimizer

import (
	"testing"

	"github.com/me/relay/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTree(t *testing.T) *graph.Tree {
	t.Helper()
	tree, err := graph.Build([]graph.Node{
		{Name: "A"},
		{Name: "B"},
		{Name: "C", DependsOn: "B", Weight: 3},
		{Name: "D", DependsOn: "B", Weight: 3},
		{Name: "E", DependsOn: "C", Weight: 10},
		{Name: "F"},
		{Name: "G", DependsOn: "F", Weight: 11},
		{Name: "H"},
		{Name: "I", DependsOn: "H", Weight: 4},
	})
	require.NoError(t, err)
	return tree
}

func TestMaxTotalDelay_Optimize(t *testing.T) {
	scores := MaxTotalDelay{}.Optimize(fixtureTree(t))

	assert.Equal(t, map[string]float64{
		"A": 0, "B": 13, "C": 10, "D": 0, "E": 0,
		"F": 11, "G": 0, "H": 4, "I": 0,
	}, scores)
	_, hasRoot := scores[graph.Root]
	assert.False(t, hasRoot)
}

func TestMaxTotalDelay_FractionalDelays(t *testing.T) {
	tree, err := graph.Build([]graph.Node{
		{Name: "a"},
		{Name: "b", DependsOn: "a", Weight: 0.5},
		{Name: "c", DependsOn: "b", Weight: 0.25},
		{Name: "d", DependsOn: "a", Weight: 0.6},
	})
	require.NoError(t, err)

	scores := MaxTotalDelay{}.Optimize(tree)
	assert.InDelta(t, 0.75, scores["a"], 1e-9)
	assert.InDelta(t, 0.25, scores["b"], 1e-9)
}

func TestInsertion_Optimize(t *testing.T) {
	scores := Insertion{}.Optimize(fixtureTree(t))
	assert.Len(t, scores, 9)
	for name, s := range scores {
		assert.Zero(t, s, name)
	}
}

func TestByName(t *testing.T) {
	s, ok := ByName("")
	require.True(t, ok)
	assert.Equal(t, "max-total-delay", s.Name())

	s, ok = ByName("insertion")
	require.True(t, ok)
	assert.Equal(t, "insertion", s.Name())

	_, ok = ByName("random")
	assert.False(t, ok)
}
