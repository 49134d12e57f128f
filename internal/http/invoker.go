package http

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// Invoker adapts a Client to the engine's Invoker interface. It places
// each resolved parameter where the endpoint declares it: substituted
// into the path template, appended to the query string, or collected
// into a JSON request body.
type Invoker struct {
	client *Client
}

// NewInvoker wraps a client for engine use.
func NewInvoker(client *Client) *Invoker {
	return &Invoker{client: client}
}

// Invoke implements apiflow.Invoker.
func (i *Invoker) Invoke(ctx context.Context, endpoint *apiflow.Endpoint, params map[string]interface{}) (*apiflow.Response, error) {
	req, err := buildRequest(endpoint, params)
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return &apiflow.Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// buildRequest assembles the concrete HTTP request for an endpoint and
// its resolved parameter values.
func buildRequest(endpoint *apiflow.Endpoint, params map[string]interface{}) (*Request, error) {
	path := endpoint.Path
	query := url.Values{}
	body := make(map[string]interface{})

	for name, value := range params {
		location := apiflow.LocationQuery
		if param, ok := endpoint.Parameter(name); ok {
			location = param.Location
		}

		switch location {
		case apiflow.LocationPath:
			placeholder := "{" + name + "}"
			if !strings.Contains(path, placeholder) {
				return nil, fmt.Errorf("path %q has no placeholder for parameter %q", endpoint.Path, name)
			}

			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprintf("%v", value)))

		case apiflow.LocationBody:
			body[name] = value

		case apiflow.LocationQuery:
			query.Set(name, fmt.Sprintf("%v", value))
		}
	}

	if remaining := unfilledPlaceholder(path); remaining != "" {
		return nil, fmt.Errorf("path parameter %q was not resolved for %q", remaining, endpoint.Path)
	}

	req := &Request{
		Method: endpoint.Method,
		Path:   path,
		Query:  query,
	}

	if len(body) > 0 {
		req.Body = body
	}

	return req, nil
}

func unfilledPlaceholder(path string) string {
	start := strings.Index(path, "{")
	if start < 0 {
		return ""
	}

	end := strings.Index(path[start:], "}")
	if end < 0 {
		return ""
	}

	return path[start+1 : start+end]
}
