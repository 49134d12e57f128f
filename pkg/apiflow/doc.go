// Package apiflow resolves interdependent REST API parameters and
// executes the resulting call chains.
//
// # Overview
//
// Given a normalized API specification, the package classifies every
// declared parameter (foreign key, date, enum, pagination, filter, or
// free-form), discovers which endpoints can supply the foreign keys,
// builds a dependency graph between endpoints, and plans a topological
// execution order for any target endpoint. The Executor then walks the
// plan: it invokes provider endpoints, extracts identifier values from
// their responses, caches them in a session Context, and finally calls
// the target with a fully resolved parameter map.
//
// Running a target end to end:
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/apiflow/pkg/apiflow"
//	)
//
//	func example(spec *apiflow.Spec, invoker apiflow.Invoker) {
//	  ctx := context.Background()
//
//	  exec, err := apiflow.NewExecutor(spec, &apiflow.Config{Invoker: invoker})
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := exec.ResolveAndCall(ctx, apiflow.EndpointKey{Path: "/orders", Method: "GET"})
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// # Planning without executing
//
// BuildGraph and Plan are usable on their own to inspect what a run
// would do:
//
//	graph, broken, err := apiflow.BuildGraph(spec, nil)
//	if err != nil { /* handle error */ }
//	for _, diag := range broken { log.Println(diag) }
//
//	plan, err := apiflow.Plan(graph, apiflow.EndpointKey{Path: "/orders", Method: "GET"})
//	if err != nil { /* handle error */ }
//	_ = plan.Steps
//
// # Pagination
//
// List endpoints that declare paging parameters are fetched through
// FetchAllPages, which merges the data arrays of every page and stops
// on an explicit hasNextPage flag, an empty or short page, or a hard
// safety cap.
//
// # Errors
//
// Failures are represented by typed errors such as
// UnresolvedParameterError, ProviderCallError, and
// PaginationLimitError. Helpers IsUnresolved, IsProviderFailure, and
// IsPaginationLimit make it easy to branch on them.
//
// # Persistence
//
// The session Context can be saved and restored through a ContextStore;
// memory, JSON file, and NATS KV backends are provided.
package apiflow
