package apiflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	t.Parallel()

	t.Run("connects foreign keys to their providers", func(t *testing.T) {
		t.Parallel()

		graph, diagnostics, err := BuildGraph(newOrderSpec(t), nil)
		require.NoError(t, err)
		assert.Empty(t, diagnostics)

		edges := map[string]string{}
		for _, edge := range graph.Edges() {
			key := graph.Node(edge.Consumer).Key().String() + " " + edge.Parameter
			edges[key] = graph.Node(edge.Provider).Key().String()
		}

		assert.Equal(t, "GET /merchants", edges["GET /merchants/{merchantId} merchantId"])
		assert.Equal(t, "GET /merchants", edges["GET /merchants/{merchantId}/locations merchantId"])
		assert.Equal(t, "GET /merchants", edges["GET /orders merchantId"])
		assert.Equal(t, "GET /merchants", edges["POST /orders merchantId"])
		assert.Equal(t, "GET /merchants/{merchantId}/locations", edges["GET /orders locationId"])
	})

	t.Run("cached values short-circuit edges", func(t *testing.T) {
		t.Parallel()

		graph, _, err := BuildGraph(newOrderSpec(t), map[string]interface{}{
			"merchantId": "m-1",
		})
		require.NoError(t, err)

		for _, edge := range graph.Edges() {
			assert.NotEqual(t, "merchantId", edge.Parameter)
		}

		ordersIdx, ok := graph.NodeIndex(EndpointKey{Method: "GET", Path: "/orders"})
		require.True(t, ok)

		// merchantId is satisfied; only locationId remains unresolved.
		assert.Equal(t, 1, graph.UnresolvedCount(ordersIdx))
	})

	t.Run("nil spec is rejected", func(t *testing.T) {
		t.Parallel()

		_, _, err := BuildGraph(nil, nil)
		require.ErrorIs(t, err, ErrSpecRequired)
	})
}

func TestBuildGraph_BreaksCycles(t *testing.T) {
	t.Parallel()

	graph, diagnostics, err := BuildGraph(newCyclicSpec(t), nil)
	require.NoError(t, err)

	require.Len(t, diagnostics, 1)

	diag := diagnostics[0]
	assert.Equal(t, "GET /betas", diag.Consumer.String())
	assert.Equal(t, "GET /alphas", diag.Provider.String())
	assert.Equal(t, "alphaId", diag.Parameter)
	require.NotEmpty(t, diag.Cycle)
	assert.Equal(t, diag.Cycle[0], diag.Cycle[len(diag.Cycle)-1])

	// Exactly one edge survives; the graph is acyclic.
	edges := graph.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "betaId", edges[0].Parameter)

	assert.Contains(t, diag.String(), "dropped edge")
}

func TestBuildGraph_Deterministic(t *testing.T) {
	t.Parallel()

	spec := newOrderSpec(t)

	first, _, err := BuildGraph(spec, nil)
	require.NoError(t, err)

	second, _, err := BuildGraph(spec, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Edges(), second.Edges())
}
