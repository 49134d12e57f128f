package apiflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAlwaysFails = errors.New("connection reset")

func paginatedEndpoint() *Endpoint {
	return &Endpoint{
		Path:   "/merchants",
		Method: "GET",
		Parameters: []Parameter{
			{Name: "page", Location: LocationQuery, Schema: Schema{Type: "integer"}},
			{Name: "pageSize", Location: LocationQuery, Schema: Schema{Type: "integer"}},
		},
		ResponseIsList: true,
	}
}

func TestFetchAllPages(t *testing.T) {
	t.Parallel()

	t.Run("follows hasNextPage until it reports false", func(t *testing.T) {
		t.Parallel()

		pages := map[int]string{
			1: `{"data":[{"id":"a"},{"id":"b"}],"hasNextPage":true}`,
			2: `{"data":[{"id":"c"}],"hasNextPage":false}`,
		}

		var calls int

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, params map[string]interface{}) (*Response, error) {
			calls++

			page, _ := params["page"].(int)

			return &Response{StatusCode: 200, Body: []byte(pages[page])}, nil
		})

		result, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Pages)
		assert.Len(t, result.Data, 3)
		assert.Equal(t, 2, calls)
	})

	t.Run("a short page ends iteration without a flag", func(t *testing.T) {
		t.Parallel()

		pages := map[int]string{
			1: `[{"id":"a"},{"id":"b"}]`,
			2: `[{"id":"c"}]`,
		}

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, params map[string]interface{}) (*Response, error) {
			page, _ := params["page"].(int)

			return &Response{StatusCode: 200, Body: []byte(pages[page])}, nil
		})

		result, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, &PaginationOptions{PageSize: 2})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Pages)
		assert.Len(t, result.Data, 3)
	})

	t.Run("an envelope without hasNextPage is the last page", func(t *testing.T) {
		t.Parallel()

		var calls int

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, _ map[string]interface{}) (*Response, error) {
			calls++

			return &Response{StatusCode: 200, Body: []byte(`{"data":[{"id":"a"},{"id":"b"}]}`)}, nil
		})

		result, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, &PaginationOptions{PageSize: 2, MaxPages: 5})
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, result.Pages)
		assert.Len(t, result.Data, 2)
	})

	t.Run("an empty page ends iteration", func(t *testing.T) {
		t.Parallel()

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, _ map[string]interface{}) (*Response, error) {
			return &Response{StatusCode: 200, Body: []byte(`{"data":[]}`)}, nil
		})

		result, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Pages)
		assert.Empty(t, result.Data)
	})

	t.Run("the safety cap is an error, not truncation", func(t *testing.T) {
		t.Parallel()

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, _ map[string]interface{}) (*Response, error) {
			return &Response{StatusCode: 200, Body: []byte(`{"data":[{"id":"a"}],"hasNextPage":true}`)}, nil
		})

		_, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, &PaginationOptions{MaxPages: 3})
		require.Error(t, err)
		assert.True(t, IsPaginationLimit(err))

		var limitErr *PaginationLimitError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, 3, limitErr.PagesFetched)
		assert.Equal(t, 3, limitErr.Limit)
	})

	t.Run("caller supplied paging values win", func(t *testing.T) {
		t.Parallel()

		var sawPage, sawSize interface{}

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, params map[string]interface{}) (*Response, error) {
			sawPage = params["page"]
			sawSize = params["pageSize"]

			return &Response{StatusCode: 200, Body: []byte(`{"data":[],"hasNextPage":false}`)}, nil
		})

		seeds := map[string]interface{}{"page": 4, "pageSize": 10}

		_, err := FetchAllPages(context.Background(), paginatedEndpoint(), seeds, invoke, nil)
		require.NoError(t, err)

		assert.Equal(t, 4, sawPage)
		assert.Equal(t, 10, sawSize)
	})

	t.Run("offset parameters advance by page size from zero", func(t *testing.T) {
		t.Parallel()

		endpoint := &Endpoint{
			Path:   "/merchants",
			Method: "GET",
			Parameters: []Parameter{
				{Name: "offset", Location: LocationQuery, Schema: Schema{Type: "integer"}},
				{Name: "limit", Location: LocationQuery, Schema: Schema{Type: "integer"}},
			},
			ResponseIsList: true,
		}

		pages := map[int]string{
			0: `[{"id":"a"},{"id":"b"}]`,
			2: `[{"id":"c"}]`,
		}

		var offsets []int

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, params map[string]interface{}) (*Response, error) {
			offset, _ := params["offset"].(int)
			offsets = append(offsets, offset)

			return &Response{StatusCode: 200, Body: []byte(pages[offset])}, nil
		})

		result, err := FetchAllPages(context.Background(), endpoint, nil, invoke, &PaginationOptions{PageSize: 2})
		require.NoError(t, err)

		assert.Equal(t, []int{0, 2}, offsets)
		assert.Equal(t, 2, result.Pages)
		assert.Len(t, result.Data, 3)
	})

	t.Run("no page parameter means a single fetch", func(t *testing.T) {
		t.Parallel()

		endpoint := &Endpoint{
			Path:           "/merchants",
			Method:         "GET",
			ResponseIsList: true,
		}

		var calls int

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, _ map[string]interface{}) (*Response, error) {
			calls++

			return &Response{StatusCode: 200, Body: []byte(`[{"id":"a"},{"id":"b"}]`)}, nil
		})

		result, err := FetchAllPages(context.Background(), endpoint, nil, invoke, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, result.Pages)
		assert.Len(t, result.Data, 2)
	})

	t.Run("invocation failures carry the endpoint identity", func(t *testing.T) {
		t.Parallel()

		invoke := InvokerFunc(func(_ context.Context, _ *Endpoint, _ map[string]interface{}) (*Response, error) {
			return nil, errAlwaysFails
		})

		_, err := FetchAllPages(context.Background(), paginatedEndpoint(), nil, invoke, nil)
		require.Error(t, err)
		assert.True(t, IsProviderFailure(err))
		assert.Contains(t, err.Error(), "GET /merchants")
	})
}

func TestPaginationParameterNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		params   []string
		wantPage string
		wantSize string
	}{
		{name: "canonical", params: []string{"page", "pageSize"}, wantPage: "page", wantSize: "pageSize"},
		{name: "limit offset", params: []string{"offset", "limit"}, wantPage: "offset", wantSize: "limit"},
		{name: "per_page", params: []string{"page", "per_page"}, wantPage: "page", wantSize: "per_page"},
		{name: "none", params: []string{"status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			endpoint := &Endpoint{Path: "/x", Method: "GET"}
			for _, name := range tt.params {
				endpoint.Parameters = append(endpoint.Parameters, Parameter{Name: name})
			}

			pageParam, sizeParam := paginationParameterNames(endpoint)
			assert.Equal(t, tt.wantPage, pageParam)
			assert.Equal(t, tt.wantSize, sizeParam)
		})
	}
}
