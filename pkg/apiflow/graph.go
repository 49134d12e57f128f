package apiflow

// DependencyGraph holds endpoints as an arena indexed by (path, method)
// and dependency edges as index pairs pointing from consumer to
// provider. After construction the graph is guaranteed acyclic.
type DependencyGraph struct {
	spec  *Spec
	nodes []*Endpoint
	index map[EndpointKey]int
	edges []DependencyEdge

	// out[i] lists the indices into edges whose consumer is node i.
	out [][]int

	// unresolved[i] counts required parameters of node i that were not
	// satisfied by the context snapshot at build time. The planner uses
	// it for deterministic tie-breaking.
	unresolved []int
}

// BuildGraph classifies every required parameter of every endpoint and
// connects each foreign key to its top-ranked provider. Parameters that
// are already present in ctxSnapshot never generate edges: cached and
// user-supplied values short-circuit chained calls.
//
// Cycles are broken during construction: the offending edge is dropped
// (the parameter then requires manual input) and reported as a
// CycleBroken diagnostic. One bad edge never invalidates the graph.
func BuildGraph(spec *Spec, ctxSnapshot map[string]interface{}) (*DependencyGraph, []CycleBroken, error) {
	if spec == nil {
		return nil, nil, ErrSpecRequired
	}

	graph := &DependencyGraph{
		spec:       spec,
		nodes:      spec.Endpoints(),
		index:      make(map[EndpointKey]int, spec.Len()),
		out:        make([][]int, spec.Len()),
		unresolved: make([]int, spec.Len()),
	}

	for i, endpoint := range graph.nodes {
		graph.index[endpoint.Key()] = i
	}

	classifier := NewClassifier(spec)

	for consumer, endpoint := range graph.nodes {
		for _, param := range endpoint.RequiredParameters() {
			if _, cached := ctxSnapshot[param.Name]; cached {
				continue
			}

			graph.unresolved[consumer]++

			info := classifier.Classify(param.Name, param.Schema)
			if info.Kind != KindForeignKey || len(info.Candidates) == 0 {
				continue
			}

			provider := graph.index[info.Candidates[0].Key()]
			if provider == consumer {
				continue
			}

			graph.out[consumer] = append(graph.out[consumer], len(graph.edges))
			graph.edges = append(graph.edges, DependencyEdge{
				Consumer:  consumer,
				Provider:  provider,
				Parameter: param.Name,
			})
		}
	}

	diagnostics := graph.breakCycles()

	return graph, diagnostics, nil
}

// Node returns the endpoint at arena index i.
func (g *DependencyGraph) Node(i int) *Endpoint {
	return g.nodes[i]
}

// NodeIndex returns the arena index of the endpoint with the given key.
func (g *DependencyGraph) NodeIndex(key EndpointKey) (int, bool) {
	i, ok := g.index[key]

	return i, ok
}

// Edges returns the surviving dependency edges.
func (g *DependencyGraph) Edges() []DependencyEdge {
	var alive []DependencyEdge

	for _, edgeIdxs := range g.out {
		for _, ei := range edgeIdxs {
			alive = append(alive, g.edges[ei])
		}
	}

	return alive
}

// Providers returns the provider edges of the endpoint at index i.
func (g *DependencyGraph) Providers(i int) []DependencyEdge {
	edges := make([]DependencyEdge, 0, len(g.out[i]))
	for _, ei := range g.out[i] {
		edges = append(edges, g.edges[ei])
	}

	return edges
}

// UnresolvedCount returns the number of required parameters of node i
// that were unsatisfied at build time.
func (g *DependencyGraph) UnresolvedCount(i int) int {
	return g.unresolved[i]
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

// DFS colors for cycle detection.
const (
	colorUnvisited = iota
	colorInProgress
	colorDone
)

// breakCycles runs a depth-first traversal and drops every edge that
// closes a cycle, collecting one diagnostic per dropped edge.
func (g *DependencyGraph) breakCycles() []CycleBroken {
	var diagnostics []CycleBroken

	color := make([]int, len(g.nodes))
	stack := make([]int, 0, len(g.nodes))

	var visit func(node int)
	visit = func(node int) {
		color[node] = colorInProgress
		stack = append(stack, node)

		kept := g.out[node][:0]

		for _, ei := range g.out[node] {
			edge := g.edges[ei]

			switch color[edge.Provider] {
			case colorInProgress:
				// Back edge: record the cycle from the provider's stack
				// position through the current node, then drop it.
				diagnostics = append(diagnostics, g.cycleDiagnostic(edge, stack))

			case colorUnvisited:
				visit(edge.Provider)

				kept = append(kept, ei)

			default:
				kept = append(kept, ei)
			}
		}

		g.out[node] = kept

		stack = stack[:len(stack)-1]
		color[node] = colorDone
	}

	for node := range g.nodes {
		if color[node] == colorUnvisited {
			visit(node)
		}
	}

	return diagnostics
}

func (g *DependencyGraph) cycleDiagnostic(edge DependencyEdge, stack []int) CycleBroken {
	diag := CycleBroken{
		Consumer:  g.nodes[edge.Consumer].Key(),
		Provider:  g.nodes[edge.Provider].Key(),
		Parameter: edge.Parameter,
	}

	// The cycle is the stack from the provider onwards, closed by the
	// provider itself.
	start := 0

	for i, node := range stack {
		if node == edge.Provider {
			start = i

			break
		}
	}

	for _, node := range stack[start:] {
		diag.Cycle = append(diag.Cycle, g.nodes[node].Key())
	}

	diag.Cycle = append(diag.Cycle, g.nodes[edge.Provider].Key())

	return diag
}
