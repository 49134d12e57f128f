package apiflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// newOrderSpec builds the order-service specification the package tests
// share: merchants provide merchantId, merchant locations provide
// locationId, and the order endpoints consume both.
func newOrderSpec(t *testing.T) *Spec {
	t.Helper()

	spec, err := NewSpec("Order Service", []Endpoint{
		{
			Path:    "/merchants",
			Method:  "GET",
			Summary: "List merchants",
			Parameters: []Parameter{
				{Name: "page", Location: LocationQuery, Schema: Schema{Type: "integer"}},
				{Name: "pageSize", Location: LocationQuery, Schema: Schema{Type: "integer"}},
			},
			ResponseIsList: true,
		},
		{
			Path:    "/merchants/{merchantId}",
			Method:  "GET",
			Summary: "Get a merchant",
			Parameters: []Parameter{
				{Name: "merchantId", Location: LocationPath, Required: true, Schema: Schema{Type: "string"}},
			},
		},
		{
			Path:    "/merchants/{merchantId}/locations",
			Method:  "GET",
			Summary: "List merchant locations",
			Parameters: []Parameter{
				{Name: "merchantId", Location: LocationPath, Required: true, Schema: Schema{Type: "string"}},
			},
			ResponseIsList: true,
		},
		{
			Path:    "/orders",
			Method:  "GET",
			Summary: "List orders",
			Parameters: []Parameter{
				{Name: "merchantId", Location: LocationQuery, Required: true, Schema: Schema{Type: "string"}},
				{Name: "locationId", Location: LocationQuery, Required: true, Schema: Schema{Type: "string"}},
				{Name: "status", Location: LocationQuery, Schema: Schema{
					Type: "string",
					Enum: []string{"pending", "shipped", "delivered"},
				}},
				{Name: "page", Location: LocationQuery, Schema: Schema{Type: "integer"}},
				{Name: "pageSize", Location: LocationQuery, Schema: Schema{Type: "integer"}},
			},
			ResponseIsList: true,
		},
		{
			Path:    "/orders",
			Method:  "POST",
			Summary: "Create an order",
			Parameters: []Parameter{
				{Name: "merchantId", Location: LocationBody, Required: true, Schema: Schema{Type: "string"}},
				{Name: "itemName", Location: LocationBody, Required: true, Schema: Schema{Type: "string"}},
			},
		},
	})
	require.NoError(t, err)

	return spec
}

// newCyclicSpec builds two endpoints that each require the other's key.
func newCyclicSpec(t *testing.T) *Spec {
	t.Helper()

	spec, err := NewSpec("Cyclic Service", []Endpoint{
		{
			Path:   "/alphas",
			Method: "GET",
			Parameters: []Parameter{
				{Name: "betaId", Location: LocationQuery, Required: true, Schema: Schema{Type: "string"}},
			},
			ResponseIsList: true,
		},
		{
			Path:   "/betas",
			Method: "GET",
			Parameters: []Parameter{
				{Name: "alphaId", Location: LocationQuery, Required: true, Schema: Schema{Type: "string"}},
			},
			ResponseIsList: true,
		},
	})
	require.NoError(t, err)

	return spec
}

// fakeSelector is a scripted Selector for executor tests.
type fakeSelector struct {
	selected        map[string]interface{}
	provided        map[string]interface{}
	selectCalls     int
	provideCalls    int
	rejectSelection bool
}

func (s *fakeSelector) SelectFromCandidates(_ context.Context, parameter string, _ []map[string]interface{}) (interface{}, error) {
	s.selectCalls++

	if s.rejectSelection {
		return nil, ErrSelectionRejected
	}

	if value, ok := s.selected[parameter]; ok {
		return value, nil
	}

	return nil, ErrValueNotFound
}

func (s *fakeSelector) ProvideValue(_ context.Context, parameter string) (interface{}, error) {
	s.provideCalls++

	if value, ok := s.provided[parameter]; ok {
		return value, nil
	}

	return nil, nil
}
