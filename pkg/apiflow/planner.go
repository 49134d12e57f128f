package apiflow

import (
	"fmt"
	"sort"
)

// Plan restricts the graph to the subgraph reachable from target and
// topologically orders it into a concrete call sequence. Providers run
// strictly before their dependents; the target is always the last step.
//
// Eligible nodes are ordered by fewest unresolved required parameters,
// then lexical path, so identical inputs always produce the identical
// plan.
func Plan(graph *DependencyGraph, target EndpointKey) (*ExecutionPlan, error) {
	targetIdx, ok := graph.NodeIndex(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, target)
	}

	// Transitive closure of "needed before" from the target.
	reachable := map[int]bool{}
	queue := []int{targetIdx}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if reachable[node] {
			continue
		}

		reachable[node] = true

		for _, edge := range graph.Providers(node) {
			queue = append(queue, edge.Provider)
		}
	}

	if len(reachable) == 1 {
		return singleStepPlan(graph, targetIdx), nil
	}

	// provides maps each provider node to the parameter names its
	// dependents consume; dependents counts how many consumers wait on
	// each node so eligibility can ripple as steps are placed.
	remaining := map[int]int{}
	dependents := map[int][]int{}
	provides := map[int][]string{}

	for node := range reachable {
		edges := graph.Providers(node)
		remaining[node] = len(edges)

		for _, edge := range edges {
			dependents[edge.Provider] = append(dependents[edge.Provider], node)

			if !containsString(provides[edge.Provider], edge.Parameter) {
				provides[edge.Provider] = append(provides[edge.Provider], edge.Parameter)
			}
		}
	}

	level := map[int]int{}
	plan := &ExecutionPlan{Target: graph.Node(targetIdx).Key()}
	placed := 0

	for placed < len(reachable) {
		eligible := eligibleNodes(graph, remaining)
		if len(eligible) == 0 {
			// Cannot happen: the graph is acyclic by construction.
			return nil, &SpecError{
				Endpoint: graph.Node(targetIdx).Key(),
				Reason:   "dependency order could not be completed",
			}
		}

		for _, node := range eligible {
			endpoint := graph.Node(node)

			sort.Strings(provides[node])

			plan.Steps = append(plan.Steps, ExecutionStep{
				Endpoint:  endpoint,
				Provides:  provides[node],
				Level:     level[node],
				Paginated: endpoint.ResponseIsList && endpoint.Paginated(),
			})

			placed++

			delete(remaining, node)

			for _, dependent := range dependents[node] {
				remaining[dependent]--

				if level[node]+1 > level[dependent] {
					level[dependent] = level[node] + 1
				}
			}
		}
	}

	return plan, nil
}

func singleStepPlan(graph *DependencyGraph, targetIdx int) *ExecutionPlan {
	endpoint := graph.Node(targetIdx)

	return &ExecutionPlan{
		Target: endpoint.Key(),
		Steps: []ExecutionStep{{
			Endpoint:  endpoint,
			Paginated: endpoint.ResponseIsList && endpoint.Paginated(),
		}},
	}
}

// eligibleNodes returns all nodes whose providers have been placed,
// deterministically ordered.
func eligibleNodes(graph *DependencyGraph, remaining map[int]int) []int {
	var eligible []int

	for node, count := range remaining {
		if count == 0 {
			eligible = append(eligible, node)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]

		if graph.UnresolvedCount(a) != graph.UnresolvedCount(b) {
			return graph.UnresolvedCount(a) < graph.UnresolvedCount(b)
		}

		if graph.Node(a).Path != graph.Node(b).Path {
			return graph.Node(a).Path < graph.Node(b).Path
		}

		return graph.Node(a).Method < graph.Node(b).Method
	})

	return eligible
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
