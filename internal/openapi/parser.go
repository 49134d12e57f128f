// Package openapi normalizes OpenAPI 3 documents into the engine's
// endpoint model.
package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// Parse loads an OpenAPI document from raw bytes (JSON or YAML) and
// normalizes it into a Spec. Reference resolution is handled by the
// loader; validation problems that do not prevent normalization are
// ignored.
func Parse(ctx context.Context, data []byte) (*apiflow.Spec, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}

	return normalize(doc)
}

// ParseFile loads an OpenAPI document from disk.
func ParseFile(ctx context.Context, path string) (*apiflow.Spec, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI file %s: %w", path, err)
	}

	return normalize(doc)
}

func normalize(doc *openapi3.T) (*apiflow.Spec, error) {
	title := ""
	if doc.Info != nil {
		title = doc.Info.Title
	}

	var endpoints []apiflow.Endpoint

	if doc.Paths != nil {
		for path, pathItem := range doc.Paths.Map() {
			for method, op := range pathItem.Operations() {
				if op == nil {
					continue
				}

				endpoint := buildEndpoint(path, strings.ToUpper(method), pathItem, op)
				endpoints = append(endpoints, endpoint)
			}
		}
	}

	// Map iteration order is random; NewSpec sorts, but sorting here
	// keeps validation errors deterministic too.
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}

		return endpoints[i].Method < endpoints[j].Method
	})

	return apiflow.NewSpec(title, endpoints)
}

func buildEndpoint(path, method string, pathItem *openapi3.PathItem, op *openapi3.Operation) apiflow.Endpoint {
	endpoint := apiflow.Endpoint{
		Path:    path,
		Method:  method,
		Summary: op.Summary,
	}

	// Path-level parameters apply to every operation underneath.
	for _, paramRef := range pathItem.Parameters {
		if param := buildParameter(paramRef); param != nil {
			endpoint.Parameters = append(endpoint.Parameters, *param)
		}
	}

	for _, paramRef := range op.Parameters {
		if param := buildParameter(paramRef); param != nil {
			endpoint.Parameters = append(endpoint.Parameters, *param)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		endpoint.Parameters = append(endpoint.Parameters, bodyParameters(op.RequestBody.Value)...)
	}

	applyResponseShape(&endpoint, op)

	return endpoint
}

func buildParameter(paramRef *openapi3.ParameterRef) *apiflow.Parameter {
	if paramRef == nil || paramRef.Value == nil {
		return nil
	}

	value := paramRef.Value

	var location apiflow.Location

	switch value.In {
	case openapi3.ParameterInPath:
		location = apiflow.LocationPath
	case openapi3.ParameterInQuery:
		location = apiflow.LocationQuery
	default:
		// Header and cookie parameters are transport concerns, not
		// resolvable inputs.
		return nil
	}

	param := &apiflow.Parameter{
		Name:        value.Name,
		Location:    location,
		Required:    value.Required,
		Description: value.Description,
		Schema:      buildSchema(value.Schema),
	}

	return param
}

// bodyParameters flattens the top-level properties of a JSON request
// body into body-located parameters.
func bodyParameters(body *openapi3.RequestBody) []apiflow.Parameter {
	mediaType := body.Content.Get("application/json")
	if mediaType == nil || mediaType.Schema == nil || mediaType.Schema.Value == nil {
		return nil
	}

	schema := mediaType.Schema.Value

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}

	sort.Strings(names)

	params := make([]apiflow.Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, apiflow.Parameter{
			Name:     name,
			Location: apiflow.LocationBody,
			Required: required[name] && body.Required,
			Schema:   buildSchema(schema.Properties[name]),
		})
	}

	return params
}

func buildSchema(schemaRef *openapi3.SchemaRef) apiflow.Schema {
	schema := apiflow.Schema{Type: "string"}

	if schemaRef == nil || schemaRef.Value == nil {
		return schema
	}

	value := schemaRef.Value

	if types := value.Type.Slice(); len(types) > 0 {
		schema.Type = types[0]
	}

	schema.Format = value.Format
	schema.Pattern = value.Pattern
	schema.Default = value.Default

	for _, enumValue := range value.Enum {
		schema.Enum = append(schema.Enum, fmt.Sprintf("%v", enumValue))
	}

	return schema
}

// applyResponseShape inspects the success response to decide whether
// the endpoint returns a collection and what its items look like.
func applyResponseShape(endpoint *apiflow.Endpoint, op *openapi3.Operation) {
	schema := successSchema(op)
	if schema == nil {
		return
	}

	items := listItemSchema(schema)
	if items == nil {
		return
	}

	endpoint.ResponseIsList = true
	endpoint.ItemProperties = make(map[string]apiflow.Schema, len(items.Properties))

	for name, propRef := range items.Properties {
		endpoint.ItemProperties[name] = buildSchema(propRef)
	}
}

func successSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.Responses == nil {
		return nil
	}

	for _, code := range []string{"200", "201"} {
		respRef := op.Responses.Value(code)
		if respRef == nil || respRef.Value == nil {
			continue
		}

		mediaType := respRef.Value.Content.Get("application/json")
		if mediaType == nil || mediaType.Schema == nil {
			continue
		}

		return mediaType.Schema.Value
	}

	return nil
}

// listItemSchema recognizes the two collection shapes the engine
// aggregates: a bare array, and an envelope whose data property is an
// array.
func listItemSchema(schema *openapi3.Schema) *openapi3.Schema {
	if schema == nil {
		return nil
	}

	if schema.Type.Is(openapi3.TypeArray) {
		if schema.Items != nil {
			return schema.Items.Value
		}

		return nil
	}

	if dataRef, ok := schema.Properties["data"]; ok && dataRef.Value != nil {
		if dataRef.Value.Type.Is(openapi3.TypeArray) && dataRef.Value.Items != nil {
			return dataRef.Value.Items.Value
		}
	}

	return nil
}
