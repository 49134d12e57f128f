package apiflow

import (
	"regexp"
	"sort"
	"strings"
)

// Pagination vocabulary. The first four are the canonical tokens; the
// rest cover spellings seen in the wild.
var paginationTokens = map[string]struct{}{
	"page":     {},
	"pagesize": {},
	"limit":    {},
	"offset":   {},
	"skip":     {},
	"per_page": {},
	"perpage":  {},
	"size":     {},
	"start":    {},
	"cursor":   {},
}

func isPaginationToken(name string) bool {
	_, ok := paginationTokens[strings.ToLower(name)]

	return ok
}

// Filter vocabulary: parameters the caller supplies or defaults; never
// resolved by chained calls.
var filterTokens = map[string]struct{}{
	"status":   {},
	"type":     {},
	"category": {},
	"search":   {},
	"query":    {},
	"filter":   {},
	"sort":     {},
}

// foreignKeyPattern matches <noun>Id / <noun>ID / <noun>_id / <noun>Ids
// and captures the noun.
var foreignKeyPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*?)_?[Ii][Dd]s?$`)

// bareKeyPattern matches parameter names that are an identifier with no
// noun to derive a provider from.
var bareKeyPattern = regexp.MustCompile(`^(?i)(id|ids|uuid)$`)

var dateSuffixes = []string{"Date", "At", "Time", "Utc", "DateTime"}

// Classifier infers parameter kinds and ranks candidate provider
// endpoints against a specification.
type Classifier struct {
	spec *Spec
}

// NewClassifier creates a classifier bound to a spec. A nil spec is
// allowed; classification then never yields provider candidates.
func NewClassifier(spec *Spec) *Classifier {
	return &Classifier{spec: spec}
}

// Classify determines the kind of a parameter from its name and schema.
// Rules apply in fixed precedence: pagination, date, enum, foreign key,
// filter, free. The first match wins.
func (c *Classifier) Classify(name string, schema Schema) ParameterInfo {
	info := ParameterInfo{Name: name, Kind: KindFree, Confidence: 0.5}

	switch {
	case isPaginationToken(name):
		info.Kind = KindPagination
		info.Confidence = 1.0

	case isDateParameter(name, schema):
		info.Kind = KindDate
		if schema.Format == "date" || schema.Format == "date-time" {
			info.Confidence = 1.0
		} else {
			info.Confidence = 0.75
		}

	case len(schema.Enum) > 0:
		info.Kind = KindEnum
		info.Confidence = 1.0
		info.EnumValues = append([]string(nil), schema.Enum...)

	case bareKeyPattern.MatchString(name):
		// "id" or "uuid" with no noun: a foreign key, but there is no
		// resource name to find a provider for.
		info.Kind = KindForeignKey
		info.Confidence = 0.5

	case foreignKeyPattern.MatchString(name):
		info.Kind = KindForeignKey
		noun := foreignKeyPattern.FindStringSubmatch(name)[1]
		info.Candidates = c.rankProviders(noun)
		info.Confidence = candidateConfidence(info.Candidates)

	case isFilterParameter(name):
		info.Kind = KindFilter
		info.Confidence = 0.8
	}

	return info
}

func isDateParameter(name string, schema Schema) bool {
	if schema.Format == "date" || schema.Format == "date-time" {
		return true
	}

	for _, suffix := range dateSuffixes {
		if strings.HasSuffix(name, suffix) && name != suffix {
			return true
		}
	}

	return false
}

func isFilterParameter(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := filterTokens[lower]; ok {
		return true
	}

	return strings.HasPrefix(lower, "filter") || strings.HasPrefix(lower, "search") ||
		strings.HasPrefix(lower, "query")
}

// rankProviders finds every endpoint whose final static path segment,
// singularized, matches the noun, and ranks them: path depth ascending,
// GET before other methods, endpoints with no required parameters of
// their own first. Ties break on lexical path then method, so the
// ranking is stable for identical inputs.
func (c *Classifier) rankProviders(noun string) []ProviderCandidate {
	if c.spec == nil {
		return nil
	}

	want := normalizeNoun(noun)

	var candidates []ProviderCandidate

	minDepth := -1

	for _, endpoint := range c.spec.Endpoints() {
		segment := endpoint.FinalStaticSegment()
		if segment == "" {
			continue
		}

		if normalizeNoun(singularize(segment)) != want {
			continue
		}

		candidates = append(candidates, ProviderCandidate{Endpoint: endpoint})

		if depth := endpoint.PathDepth(); minDepth < 0 || depth < minDepth {
			minDepth = depth
		}
	}

	for i := range candidates {
		endpoint := candidates[i].Endpoint

		signals := 0
		if endpoint.PathDepth() == minDepth {
			signals++
		}

		if endpoint.Method == "GET" {
			signals++
		}

		if len(endpoint.RequiredParameters()) == 0 {
			signals++
		}

		candidates[i].Signals = signals
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Endpoint, candidates[j].Endpoint

		if a.PathDepth() != b.PathDepth() {
			return a.PathDepth() < b.PathDepth()
		}

		aGet, bGet := a.Method == "GET", b.Method == "GET"
		if aGet != bGet {
			return aGet
		}

		aFree, bFree := len(a.RequiredParameters()) == 0, len(b.RequiredParameters()) == 0
		if aFree != bFree {
			return aFree
		}

		if a.Path != b.Path {
			return a.Path < b.Path
		}

		return a.Method < b.Method
	})

	return candidates
}

func candidateConfidence(candidates []ProviderCandidate) float64 {
	if len(candidates) == 0 {
		return 0.25
	}

	// Proportional to the ranking signals the top candidate holds.
	return 0.25 + 0.25*float64(candidates[0].Signals)
}

// normalizeNoun lowercases and strips separators so that
// "deliveryService" matches the path segment "delivery-services".
func normalizeNoun(noun string) string {
	noun = strings.ToLower(noun)
	noun = strings.ReplaceAll(noun, "-", "")
	noun = strings.ReplaceAll(noun, "_", "")

	return noun
}

// singularize reduces a resource path segment to its singular form.
// Intentionally simple; API resource names are regular enough.
func singularize(segment string) string {
	lower := strings.ToLower(segment)

	switch {
	case strings.HasSuffix(lower, "ies"):
		return lower[:len(lower)-3] + "y"
	case strings.HasSuffix(lower, "ses"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"),
		strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"):
		return lower[:len(lower)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return lower[:len(lower)-1]
	default:
		return lower
	}
}
