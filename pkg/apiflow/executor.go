package apiflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// Invoker is the injected HTTP invocation capability. It abstracts
// authentication, transport, and retries; the engine treats it as an
// opaque, potentially slow, potentially failing function.
type Invoker interface {
	Invoke(ctx context.Context, endpoint *Endpoint, params map[string]interface{}) (*Response, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, endpoint *Endpoint, params map[string]interface{}) (*Response, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, endpoint *Endpoint, params map[string]interface{}) (*Response, error) {
	return f(ctx, endpoint, params)
}

// Response is the body and status of one invocation.
type Response struct {
	StatusCode int
	Body       []byte
}

// Selector is the injected selection capability. It externalizes every
// interactive concern: choosing among candidate records when a provider
// returns several, and entering values the engine cannot resolve.
type Selector interface {
	// SelectFromCandidates picks one value for the parameter out of the
	// candidate records.
	SelectFromCandidates(ctx context.Context, parameter string, records []map[string]interface{}) (interface{}, error)

	// ProvideValue obtains a value for a parameter that has no cached
	// value, no provider, and no default.
	ProvideValue(ctx context.Context, parameter string) (interface{}, error)
}

// Config configures an Executor.
type Config struct {
	// Invoker performs the actual HTTP calls. Required.
	Invoker Invoker

	// Selector handles interactive disambiguation and manual entry.
	// Optional; without it, ambiguity is an unresolved parameter.
	Selector Selector

	// Context is the resolution cache for the session. A fresh one is
	// created when nil.
	Context *Context

	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger Logger

	// Concurrency bounds the worker pool for independent sibling
	// steps. Defaults to 3.
	Concurrency int

	// Pagination tunes the page aggregator.
	Pagination *PaginationOptions

	// Cache short-circuits repeated provider calls within a session.
	// Optional.
	Cache *ResponseCache
}

// Executor drives execution plans: it invokes endpoints in dependency
// order, feeds provider outputs into dependent inputs through the
// Context, and surfaces whatever cannot be resolved.
type Executor struct {
	spec        *Spec
	invoker     Invoker
	selector    Selector
	resolved    *Context
	logger      Logger
	concurrency int
	pagination  *PaginationOptions
	cache       *ResponseCache
}

// NewExecutor creates an executor for one specification.
func NewExecutor(spec *Spec, config *Config) (*Executor, error) {
	if spec == nil {
		return nil, ErrSpecRequired
	}

	if config == nil || config.Invoker == nil {
		return nil, ErrInvokerRequired
	}

	executor := &Executor{
		spec:        spec,
		invoker:     config.Invoker,
		selector:    config.Selector,
		resolved:    config.Context,
		logger:      config.Logger,
		concurrency: config.Concurrency,
		pagination:  config.Pagination,
		cache:       config.Cache,
	}

	if executor.resolved == nil {
		executor.resolved = NewContext()
	}

	if executor.logger == nil {
		executor.logger = NopLogger()
	}

	if executor.concurrency <= 0 {
		executor.concurrency = constants.DefaultConcurrencyLimit
	}

	return executor, nil
}

// Context returns the session's resolution cache, for seeding before a
// run and exporting afterwards.
func (e *Executor) Context() *Context {
	return e.resolved
}

// ResolveAndCall builds a fresh plan for the target, executes the
// provider chain, and finally invokes the target itself. It returns the
// fully resolved parameter map together with the (possibly aggregated)
// response.
//
// Execution aborts on the first fatal error; Context entries written so
// far are preserved and remain valid for a retry of the same target.
func (e *Executor) ResolveAndCall(ctx context.Context, target EndpointKey) (*CallResult, error) {
	graph, diagnostics, err := BuildGraph(e.spec, e.resolved.Snapshot())
	if err != nil {
		return nil, err
	}

	for _, diag := range diagnostics {
		e.logger.Warn("dependency cycle broken", map[string]interface{}{
			"consumer":  diag.Consumer.String(),
			"provider":  diag.Provider.String(),
			"parameter": diag.Parameter,
		})
	}

	plan, err := Plan(graph, target)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("execution plan built", map[string]interface{}{
		"target": target.String(),
		"steps":  len(plan.Steps),
	})

	levels := plan.Levels()

	// The target occupies the final level alone; every earlier level
	// holds mutually independent provider steps.
	for _, level := range levels[:len(levels)-1] {
		if err := e.runLevel(ctx, plan.Target, level); err != nil {
			return nil, err
		}
	}

	targetStep := levels[len(levels)-1][0]

	return e.executeTarget(ctx, targetStep)
}

// runLevel dispatches one level's steps through a bounded worker pool
// and joins them before returning. The first fatal error cancels every
// still in-flight sibling.
func (e *Executor) runLevel(ctx context.Context, target EndpointKey, steps []ExecutionStep) error {
	if len(steps) == 1 {
		return e.executeProvider(ctx, target, steps[0])
	}

	levelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		waitGroup sync.WaitGroup
		once      sync.Once
		firstErr  error
	)

	semaphore := make(chan struct{}, e.concurrency)

	for _, step := range steps {
		waitGroup.Add(1)

		go func(step ExecutionStep) {
			defer waitGroup.Done()

			select {
			case semaphore <- struct{}{}:
			case <-levelCtx.Done():
				return
			}

			defer func() { <-semaphore }()

			if err := e.executeProvider(levelCtx, target, step); err != nil {
				once.Do(func() {
					firstErr = err

					cancel()
				})
			}
		}(step)
	}

	waitGroup.Wait()

	return firstErr
}

// executeProvider runs one provider step: resolve its own inputs,
// invoke it, and write the values its dependents need into the Context.
// Steps whose outputs are all cached already are skipped entirely.
func (e *Executor) executeProvider(ctx context.Context, target EndpointKey, step ExecutionStep) error {
	if e.allProvided(step) {
		e.logger.Debug("provider skipped, values cached", map[string]interface{}{
			"endpoint": step.Key().String(),
		})

		return nil
	}

	params, err := e.resolveParameters(ctx, step)
	if err != nil {
		return err
	}

	records, err := e.fetchRecords(ctx, target, step, params)
	if err != nil {
		return err
	}

	for _, name := range step.Provides {
		if e.resolved.Has(name) {
			continue
		}

		value, err := e.valueFromRecords(ctx, step, name, records)
		if err != nil {
			return err
		}

		e.resolved.Set(name, value)

		e.logger.Info("parameter resolved", map[string]interface{}{
			"parameter": name,
			"provider":  step.Key().String(),
		})
	}

	return nil
}

func (e *Executor) allProvided(step ExecutionStep) bool {
	if len(step.Provides) == 0 {
		return false
	}

	for _, name := range step.Provides {
		if !e.resolved.Has(name) {
			return false
		}
	}

	return true
}

// fetchRecords invokes the step endpoint, through the pagination
// aggregator when it declares one, and extracts the candidate records.
func (e *Executor) fetchRecords(ctx context.Context, target EndpointKey, step ExecutionStep, params map[string]interface{}) ([]map[string]interface{}, error) {
	if step.Paginated {
		aggregated, err := FetchAllPages(ctx, step.Endpoint, params, e.cachingInvoker(), e.pagination)
		if err != nil {
			return nil, wrapProviderError(err, step.Key(), target)
		}

		return toRecords(aggregated.Data), nil
	}

	resp, err := e.invokeOnce(ctx, step.Endpoint, params)
	if err != nil {
		return nil, &ProviderCallError{Provider: step.Key(), Dependent: target, Err: err}
	}

	return ExtractRecords(resp.Body), nil
}

// executeTarget performs the final step and assembles the result.
func (e *Executor) executeTarget(ctx context.Context, step ExecutionStep) (*CallResult, error) {
	params, err := e.resolveParameters(ctx, step)
	if err != nil {
		return nil, err
	}

	result := &CallResult{Parameters: params}

	if step.Paginated {
		aggregated, err := FetchAllPages(ctx, step.Endpoint, params, e.cachingInvoker(), e.pagination)
		if err != nil {
			return nil, err
		}

		result.Aggregated = aggregated

		return result, nil
	}

	resp, err := e.invokeOnce(ctx, step.Endpoint, params)
	if err != nil {
		return nil, &ProviderCallError{Provider: step.Key(), Err: err}
	}

	result.Body = resp.Body

	return result, nil
}

// resolveParameters gathers values for every declared parameter of a
// step: Context first, then defaults, then the selection collaborator.
// Required parameters that remain unresolved abort the plan.
func (e *Executor) resolveParameters(ctx context.Context, step ExecutionStep) (map[string]interface{}, error) {
	classifier := NewClassifier(e.spec)
	params := make(map[string]interface{})

	for _, param := range step.Endpoint.Parameters {
		if value, ok := e.resolved.Get(param.Name); ok {
			params[param.Name] = value

			continue
		}

		info := classifier.Classify(param.Name, param.Schema)

		value, resolved, err := e.resolveSingle(ctx, step, param, info)
		if err != nil {
			return nil, err
		}

		if resolved {
			params[param.Name] = value
		}
	}

	return params, nil
}

func (e *Executor) resolveSingle(ctx context.Context, step ExecutionStep, param Parameter, info ParameterInfo) (interface{}, bool, error) {
	switch info.Kind {
	case KindPagination:
		// The aggregator supplies paging values.
		return nil, false, nil

	case KindEnum:
		return e.resolveEnum(ctx, step, param, info)

	case KindForeignKey:
		// Providers ran before this step; a missing value means there
		// was no provider and nothing cached.
		return e.resolveManual(ctx, step, param)

	case KindDate, KindFilter, KindFree:
		if param.Schema.Default != nil {
			return param.Schema.Default, true, nil
		}

		return e.resolveManual(ctx, step, param)

	default:
		return e.resolveManual(ctx, step, param)
	}
}

func (e *Executor) resolveEnum(ctx context.Context, step ExecutionStep, param Parameter, info ParameterInfo) (interface{}, bool, error) {
	if len(info.EnumValues) == 1 {
		return info.EnumValues[0], true, nil
	}

	if param.Schema.Default != nil {
		return param.Schema.Default, true, nil
	}

	if !param.Required {
		return nil, false, nil
	}

	if e.selector == nil {
		return nil, false, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: param.Name}
	}

	records := make([]map[string]interface{}, len(info.EnumValues))
	for i, value := range info.EnumValues {
		records[i] = map[string]interface{}{param.Name: value}
	}

	value, err := e.selector.SelectFromCandidates(ctx, param.Name, records)
	if err != nil {
		return nil, false, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: param.Name}
	}

	e.resolved.Set(param.Name, value)

	return value, true, nil
}

func (e *Executor) resolveManual(ctx context.Context, step ExecutionStep, param Parameter) (interface{}, bool, error) {
	if !param.Required {
		return nil, false, nil
	}

	if e.selector == nil {
		return nil, false, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: param.Name}
	}

	value, err := e.selector.ProvideValue(ctx, param.Name)
	if err != nil || value == nil {
		return nil, false, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: param.Name}
	}

	e.resolved.Set(param.Name, value)

	return value, true, nil
}

// valueFromRecords disambiguates one parameter value out of a
// provider's records. Exactly one record resolves automatically;
// anything else requires the selection collaborator.
func (e *Executor) valueFromRecords(ctx context.Context, step ExecutionStep, name string, records []map[string]interface{}) (interface{}, error) {
	switch len(records) {
	case 0:
		return nil, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: name}

	case 1:
		value, ok := ExtractValue(records[0], name)
		if !ok {
			return nil, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: name}
		}

		return value, nil

	default:
		if e.selector == nil {
			return nil, &UnresolvedParameterError{Endpoint: step.Key(), Parameter: name}
		}

		value, err := e.selector.SelectFromCandidates(ctx, name, records)
		if err != nil {
			return nil, fmt.Errorf("selecting %q from %d candidates: %w", name, len(records), err)
		}

		return value, nil
	}
}

// invokeOnce performs a single invocation, serving repeats from the
// response cache when one is configured.
func (e *Executor) invokeOnce(ctx context.Context, endpoint *Endpoint, params map[string]interface{}) (*Response, error) {
	if e.cache != nil && endpoint.Method == "GET" {
		key := CacheKey(endpoint, params)

		if resp, ok := e.cache.Get(key); ok {
			return resp, nil
		}

		resp, err := e.invoker.Invoke(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		e.cache.Set(key, resp)

		return resp, nil
	}

	return e.invoker.Invoke(ctx, endpoint, params)
}

func (e *Executor) cachingInvoker() Invoker {
	return InvokerFunc(e.invokeOnce)
}

// wrapProviderError attaches provider/dependent identity to aggregator
// failures that are not already structured.
func wrapProviderError(err error, provider, dependent EndpointKey) error {
	if IsPaginationLimit(err) || IsProviderFailure(err) {
		return err
	}

	return &ProviderCallError{Provider: provider, Dependent: dependent, Err: err}
}
