package apiflow

import (
	"fmt"
	"sort"
	"strings"
)

// Location identifies where a parameter is carried in a request.
type Location string

const (
	// LocationPath is a path template parameter.
	LocationPath Location = "path"

	// LocationQuery is a query string parameter.
	LocationQuery Location = "query"

	// LocationBody is a request body field.
	LocationBody Location = "body"
)

// Schema describes the declared shape of a parameter or body field.
type Schema struct {
	Type    string      `json:"type,omitempty"    yaml:"type,omitempty"`
	Format  string      `json:"format,omitempty"  yaml:"format,omitempty"`
	Enum    []string    `json:"enum,omitempty"    yaml:"enum,omitempty"`
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Pattern string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Parameter is a single declared input of an endpoint.
type Parameter struct {
	Name        string   `json:"name"                  yaml:"name"                  validate:"required"`
	Location    Location `json:"location"              yaml:"location"`
	Required    bool     `json:"required"              yaml:"required"`
	Schema      Schema   `json:"schema"                yaml:"schema"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Endpoint is one operation of the API specification. Endpoints are
// immutable once the owning Spec has been built.
type Endpoint struct {
	Path        string      `json:"path"                   yaml:"path"   validate:"required,startswith=/"`
	Method      string      `json:"method"                 yaml:"method" validate:"required"`
	Summary     string      `json:"summary,omitempty"      yaml:"summary,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"   yaml:"parameters,omitempty"`
	RequestBody *Schema     `json:"request_body,omitempty" yaml:"request_body,omitempty"`

	// Response hints: whether the endpoint returns a list, and the
	// shape of list items when known.
	ResponseIsList bool              `json:"response_is_list"          yaml:"response_is_list"`
	ItemProperties map[string]Schema `json:"item_properties,omitempty" yaml:"item_properties,omitempty"`
}

// Key returns the identity of the endpoint.
func (e *Endpoint) Key() EndpointKey {
	return EndpointKey{Path: e.Path, Method: strings.ToUpper(e.Method)}
}

// RequiredParameters returns the endpoint's required parameters in
// declaration order.
func (e *Endpoint) RequiredParameters() []Parameter {
	var required []Parameter

	for _, param := range e.Parameters {
		if param.Required {
			required = append(required, param)
		}
	}

	return required
}

// Parameter returns the declared parameter with the given name.
func (e *Endpoint) Parameter(name string) (Parameter, bool) {
	for _, param := range e.Parameters {
		if param.Name == name {
			return param, true
		}
	}

	return Parameter{}, false
}

// Paginated reports whether the endpoint declares any pagination
// parameters (page, pageSize, limit, offset and friends).
func (e *Endpoint) Paginated() bool {
	for _, param := range e.Parameters {
		if isPaginationToken(param.Name) {
			return true
		}
	}

	return false
}

// PathDepth returns the number of segments in the endpoint path.
func (e *Endpoint) PathDepth() int {
	return len(splitPath(e.Path))
}

// FinalStaticSegment returns the last path segment that is not a
// template placeholder, or "" when the path has none.
func (e *Endpoint) FinalStaticSegment() string {
	segments := splitPath(e.Path)
	for i := len(segments) - 1; i >= 0; i-- {
		if !strings.HasPrefix(segments[i], "{") {
			return segments[i]
		}
	}

	return ""
}

func splitPath(path string) []string {
	var segments []string

	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}

// EndpointKey identifies an endpoint by path and method.
type EndpointKey struct {
	Path   string `json:"path"   yaml:"path"`
	Method string `json:"method" yaml:"method"`
}

// String implements fmt.Stringer.
func (k EndpointKey) String() string {
	return k.Method + " " + k.Path
}

// Spec is the normalized API specification: the full set of endpoints
// an API exposes. It is loaded once and read-only afterwards.
type Spec struct {
	Title string

	endpoints []*Endpoint
	index     map[EndpointKey]int
}

// NewSpec builds a Spec from normalized endpoints. Endpoint identity
// (path, method) must be unique; duplicates are a SpecError.
func NewSpec(title string, endpoints []Endpoint) (*Spec, error) {
	spec := &Spec{
		Title: title,
		index: make(map[EndpointKey]int, len(endpoints)),
	}

	for i := range endpoints {
		endpoint := endpoints[i]
		endpoint.Method = strings.ToUpper(endpoint.Method)

		if err := validateEndpoint(&endpoint); err != nil {
			return nil, err
		}

		key := endpoint.Key()
		if _, exists := spec.index[key]; exists {
			return nil, &SpecError{Endpoint: key, Reason: "duplicate endpoint"}
		}

		spec.index[key] = len(spec.endpoints)
		spec.endpoints = append(spec.endpoints, &endpoint)
	}

	// Stable order regardless of input order: lexical by path, then method.
	sort.SliceStable(spec.endpoints, func(i, j int) bool {
		if spec.endpoints[i].Path != spec.endpoints[j].Path {
			return spec.endpoints[i].Path < spec.endpoints[j].Path
		}

		return spec.endpoints[i].Method < spec.endpoints[j].Method
	})

	for i, endpoint := range spec.endpoints {
		spec.index[endpoint.Key()] = i
	}

	return spec, nil
}

// Endpoints returns all endpoints in stable (path, method) order.
func (s *Spec) Endpoints() []*Endpoint {
	return s.endpoints
}

// Lookup returns the endpoint with the given path and method.
func (s *Spec) Lookup(path, method string) (*Endpoint, bool) {
	i, ok := s.index[EndpointKey{Path: path, Method: strings.ToUpper(method)}]
	if !ok {
		return nil, false
	}

	return s.endpoints[i], true
}

// Len returns the number of endpoints.
func (s *Spec) Len() int {
	return len(s.endpoints)
}

// ParameterKind is the classified role of a parameter.
type ParameterKind string

const (
	// KindForeignKey references a value some other endpoint returns.
	KindForeignKey ParameterKind = "foreign_key"

	// KindDate is a date or date-time parameter.
	KindDate ParameterKind = "date"

	// KindEnum is restricted to a declared value set.
	KindEnum ParameterKind = "enum"

	// KindPagination is a paging control parameter.
	KindPagination ParameterKind = "pagination"

	// KindFilter is a caller-supplied filter term.
	KindFilter ParameterKind = "filter"

	// KindFree has no recognized structure; the caller must supply it.
	KindFree ParameterKind = "free"
)

// ProviderCandidate is one endpoint that could supply a foreign key
// parameter, with the number of ranking signals it satisfies.
type ProviderCandidate struct {
	Endpoint *Endpoint `json:"-"       yaml:"-"`
	Signals  int       `json:"signals" yaml:"signals"`
}

// Key returns the candidate endpoint's identity.
func (c ProviderCandidate) Key() EndpointKey {
	return c.Endpoint.Key()
}

// ParameterInfo is the result of classifying a parameter.
type ParameterInfo struct {
	Name       string              `json:"name"                  yaml:"name"`
	Kind       ParameterKind       `json:"kind"                  yaml:"kind"`
	Confidence float64             `json:"confidence"            yaml:"confidence"`
	Candidates []ProviderCandidate `json:"candidates,omitempty"  yaml:"candidates,omitempty"`
	EnumValues []string            `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
}

// DependencyEdge records that Consumer cannot be safely called before
// Provider has supplied a value for Parameter. Endpoints are referenced
// by arena index within the owning DependencyGraph.
type DependencyEdge struct {
	Consumer  int    `json:"consumer"  yaml:"consumer"`
	Provider  int    `json:"provider"  yaml:"provider"`
	Parameter string `json:"parameter" yaml:"parameter"`
}

// CycleBroken is the diagnostic produced when the graph builder drops a
// dependency edge to restore acyclicity. The parameter it carried now
// requires manual input.
type CycleBroken struct {
	Consumer  EndpointKey   `json:"consumer"  yaml:"consumer"`
	Provider  EndpointKey   `json:"provider"  yaml:"provider"`
	Parameter string        `json:"parameter" yaml:"parameter"`
	Cycle     []EndpointKey `json:"cycle"     yaml:"cycle"`
}

// String implements fmt.Stringer.
func (c CycleBroken) String() string {
	parts := make([]string, len(c.Cycle))
	for i, key := range c.Cycle {
		parts[i] = key.String()
	}

	return fmt.Sprintf("dropped edge %s -> %s (via %q), cycle: %s",
		c.Consumer, c.Provider, c.Parameter, strings.Join(parts, " -> "))
}

// ExecutionStep is one call of an ExecutionPlan.
type ExecutionStep struct {
	Endpoint *Endpoint `json:"-"          yaml:"-"`

	// Provides lists the parameter names dependents need from this
	// step's response. Empty for the target step.
	Provides []string `json:"provides,omitempty" yaml:"provides,omitempty"`

	// Level is the step's depth in the dependency order. Steps sharing
	// a level have no dependency relation and may run concurrently.
	Level int `json:"level" yaml:"level"`

	// Paginated marks list responses that are fetched through the
	// pagination aggregator.
	Paginated bool `json:"paginated" yaml:"paginated"`
}

// Key returns the step endpoint's identity.
func (s ExecutionStep) Key() EndpointKey {
	return s.Endpoint.Key()
}

// ExecutionPlan is an ordered call sequence terminating in the target.
type ExecutionPlan struct {
	Target EndpointKey     `json:"target" yaml:"target"`
	Steps  []ExecutionStep `json:"steps"  yaml:"steps"`
}

// Levels groups the plan's steps by level, in ascending level order.
// Steps within one group are mutually independent.
func (p *ExecutionPlan) Levels() [][]ExecutionStep {
	var levels [][]ExecutionStep

	for _, step := range p.Steps {
		for step.Level >= len(levels) {
			levels = append(levels, nil)
		}

		levels[step.Level] = append(levels[step.Level], step)
	}

	return levels
}

// AggregatedResult is the concatenation of data entries across all
// fetched pages of a paginated call.
type AggregatedResult struct {
	Data  []interface{} `json:"data"  yaml:"data"`
	Pages int           `json:"pages" yaml:"pages"`
}

// CallResult is what the executor returns for a completed target call.
type CallResult struct {
	// Parameters is the fully resolved parameter map the target was
	// invoked with.
	Parameters map[string]interface{} `json:"parameters" yaml:"parameters"`

	// Body is the raw response body of the final call. Nil when the
	// call was page-aggregated.
	Body []byte `json:"body,omitempty" yaml:"body,omitempty"`

	// Aggregated holds the merged pages for paginated targets.
	Aggregated *AggregatedResult `json:"aggregated,omitempty" yaml:"aggregated,omitempty"`
}

// Logger is the logging interface the engine and transport accept.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, map[string]interface{}) {}
func (noopLogger) Info(string, map[string]interface{})  {}
func (noopLogger) Warn(string, map[string]interface{})  {}
func (noopLogger) Error(string, map[string]interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}
