package apiflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// PaginationOptions tunes the aggregator. Zero values take defaults.
type PaginationOptions struct {
	// Page is the first page to request. Defaults to 1.
	Page int

	// PageSize is the page size requested when the caller did not
	// supply one. Defaults to 50.
	PageSize int

	// MaxPages is the hard safety cap on pages fetched. Guards against
	// providers that never report termination. Defaults to 50.
	MaxPages int
}

func (o *PaginationOptions) withDefaults() PaginationOptions {
	opts := PaginationOptions{Page: 1, PageSize: constants.StandardPageSize, MaxPages: constants.MaxPages}

	if o != nil {
		if o.Page > 0 {
			opts.Page = o.Page
		}

		if o.PageSize > 0 {
			opts.PageSize = o.PageSize
		}

		if o.MaxPages > 0 {
			opts.MaxPages = o.MaxPages
		}
	}

	return opts
}

// pageEnvelope is the wire shape of one page. APIs without a data
// wrapper return a bare array instead; fetch handles both.
type pageEnvelope struct {
	Data        json.RawMessage `json:"data"`
	HasNextPage *bool           `json:"hasNextPage"`
}

// FetchAllPages repeatedly invokes a paginated endpoint and merges the
// data entries of every page. Termination: hasNextPage reports false or
// is absent from an envelope, a bare-array page comes back empty or
// short, or the safety cap is reached. The cap is an error, never
// silently truncated data.
//
// The loop is bounded, not recursive, so call count and memory stay
// predictable.
func FetchAllPages(ctx context.Context, endpoint *Endpoint, baseParams map[string]interface{}, invoke Invoker, opts *PaginationOptions) (*AggregatedResult, error) {
	options := opts.withDefaults()

	pageParam, sizeParam := paginationParameterNames(endpoint)
	offsetStyle := isOffsetParam(pageParam)

	params := make(map[string]interface{}, len(baseParams)+2)
	for name, value := range baseParams {
		params[name] = value
	}

	page := options.Page
	if offsetStyle {
		// Offsets count records from zero, not pages from one.
		page = 0
	}

	if supplied, ok := pageFromParams(baseParams, pageParam); ok {
		page = supplied
	}

	pageSize := options.PageSize
	if supplied, ok := pageFromParams(baseParams, sizeParam); ok {
		pageSize = supplied
	}

	if sizeParam != "" {
		params[sizeParam] = pageSize
	}

	result := &AggregatedResult{}

	for {
		if result.Pages >= options.MaxPages {
			return result, &PaginationLimitError{
				Endpoint:     endpoint.Key(),
				PagesFetched: result.Pages,
				Limit:        options.MaxPages,
			}
		}

		if pageParam != "" {
			params[pageParam] = page
		}

		resp, err := invoke.Invoke(ctx, endpoint, params)
		if err != nil {
			return result, &ProviderCallError{Provider: endpoint.Key(), Err: err}
		}

		pageBody, err := decodePage(resp.Body)
		if err != nil {
			return result, &ProviderCallError{Provider: endpoint.Key(), Err: err}
		}

		result.Pages++
		result.Data = append(result.Data, pageBody.entries...)

		if len(pageBody.entries) == 0 {
			break
		}

		if pageBody.envelope {
			// An envelope that omits hasNextPage is the last page.
			if pageBody.hasNext == nil || !*pageBody.hasNext {
				break
			}
		} else if len(pageBody.entries) < pageSize || pageParam == "" {
			// Bare arrays carry no flag: a short page is the end. A full
			// page may mean more, so keep going until an empty or short
			// one.
			break
		}

		if offsetStyle {
			page += pageSize
		} else {
			page++
		}
	}

	return result, nil
}

// decodedPage is one page body after decoding. envelope distinguishes
// object bodies, which own the hasNextPage flag, from bare arrays,
// which terminate on a short page instead.
type decodedPage struct {
	entries  []interface{}
	hasNext  *bool
	envelope bool
}

// decodePage extracts the data entries and termination flag from one
// page body. Bodies may be a bare JSON array, an object with a data
// array, or an object with a single data record.
func decodePage(body []byte) (decodedPage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return decodedPage{}, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var entries []interface{}
		if err := json.Unmarshal(body, &entries); err != nil {
			return decodedPage{}, fmt.Errorf("decoding page body: %w", err)
		}

		return decodedPage{entries: entries}, nil
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return decodedPage{}, fmt.Errorf("decoding page body: %w", err)
	}

	if len(envelope.Data) == 0 {
		// No data wrapper: the whole body is one entry.
		var whole interface{}
		if err := json.Unmarshal(body, &whole); err != nil {
			return decodedPage{}, fmt.Errorf("decoding page body: %w", err)
		}

		return decodedPage{entries: []interface{}{whole}, hasNext: envelope.HasNextPage, envelope: true}, nil
	}

	var entries []interface{}
	if err := json.Unmarshal(envelope.Data, &entries); err != nil {
		// data holds a single record, not an array.
		var single interface{}
		if err := json.Unmarshal(envelope.Data, &single); err != nil {
			return decodedPage{}, fmt.Errorf("decoding page data: %w", err)
		}

		return decodedPage{entries: []interface{}{single}, hasNext: envelope.HasNextPage, envelope: true}, nil
	}

	return decodedPage{entries: entries, hasNext: envelope.HasNextPage, envelope: true}, nil
}

// paginationParameterNames returns the endpoint's declared page and
// page-size parameter names, preferring the canonical spellings.
func paginationParameterNames(endpoint *Endpoint) (pageParam, sizeParam string) {
	for _, param := range endpoint.Parameters {
		switch strings.ToLower(param.Name) {
		case "page":
			pageParam = param.Name
		case "pagesize", "per_page", "perpage", "size":
			if sizeParam == "" {
				sizeParam = param.Name
			}
		case "limit":
			if sizeParam == "" {
				sizeParam = param.Name
			}
		case "offset", "skip", "start":
			if pageParam == "" {
				pageParam = param.Name
			}
		}
	}

	return pageParam, sizeParam
}

// isOffsetParam reports whether a page parameter counts records rather
// than pages, so the loop advances it by the page size.
func isOffsetParam(name string) bool {
	switch strings.ToLower(name) {
	case "offset", "skip", "start":
		return true
	default:
		return false
	}
}

func pageFromParams(params map[string]interface{}, name string) (int, bool) {
	if name == "" {
		return 0, false
	}

	value, ok := params[name]
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
