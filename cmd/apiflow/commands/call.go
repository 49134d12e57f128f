package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// NewCallCommand creates the call command.
func NewCallCommand() *cobra.Command {
	var (
		params      []string
		maxPages    int
		pageSize    int
		noInteract  bool
		noPersist   bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "call \"METHOD /path\"",
		Short: "Resolve dependencies and call a target endpoint",
		Long: `Resolve every parameter the target endpoint needs, calling provider
endpoints as necessary, then perform the target call and print its
response. Resolved values are cached and persisted for later calls.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], callOptions{
				params:      params,
				maxPages:    maxPages,
				pageSize:    pageSize,
				noInteract:  noInteract,
				noPersist:   noPersist,
				concurrency: concurrency,
			})
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "seed value (name=value, repeatable)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "pagination safety cap (0 = default)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size for paginated providers (0 = default)")
	cmd.Flags().BoolVar(&noInteract, "non-interactive", false, "fail instead of prompting for ambiguous values")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not write resolved values back to the context store")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent provider calls (0 = default)")

	return cmd
}

type callOptions struct {
	params      []string
	maxPages    int
	pageSize    int
	noInteract  bool
	noPersist   bool
	concurrency int
}

func runCall(cmd *cobra.Command, target string, opts callOptions) error {
	ctx := cmd.Context()

	spec, err := loadSpec(ctx)
	if err != nil {
		return err
	}

	invoker, err := newInvoker()
	if err != nil {
		return err
	}

	store, err := contextStore()
	if err != nil {
		return err
	}

	session, err := loadSessionContext(ctx, store)
	if err != nil {
		return err
	}

	seeds, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	session.Seed(seeds)

	var selector apiflow.Selector
	if !opts.noInteract {
		selector = NewTerminalSelector()
	}

	executor, err := apiflow.NewExecutor(spec, &apiflow.Config{
		Invoker:     invoker,
		Selector:    selector,
		Context:     session,
		Logger:      NewCLILogger(viper.GetBool("verbose")),
		Concurrency: opts.concurrency,
		Pagination: &apiflow.PaginationOptions{
			PageSize: opts.pageSize,
			MaxPages: opts.maxPages,
		},
		Cache: apiflow.NewResponseCache(0, 0),
	})
	if err != nil {
		return err
	}

	key := parseEndpointArg(target)
	start := time.Now()

	result, callErr := executor.ResolveAndCall(ctx, key)

	// Values resolved before a failure stay useful; persist either way.
	if !opts.noPersist {
		if saveErr := store.Save(ctx, session.Export()); saveErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "warning: failed to persist context: %v\n", saveErr)
		}
	}

	if callErr != nil {
		return callErr
	}

	if viper.GetBool("verbose") {
		_, _ = fmt.Fprintf(os.Stderr, "completed in %v\n", time.Since(start))
	}

	return renderCallResult(result)
}

func renderCallResult(result *apiflow.CallResult) error {
	switch viper.GetString("output") {
	case OutputFormatYAML:
		return StandardYAMLRenderer(callReport(result))
	case OutputFormatJSON:
		return StandardJSONRenderer(callReport(result))
	default:
		return renderCallBody(result)
	}
}

// callReport flattens the result for structured output: the raw body is
// decoded so it nests naturally instead of printing as a byte blob.
func callReport(result *apiflow.CallResult) map[string]interface{} {
	report := map[string]interface{}{
		"parameters": result.Parameters,
	}

	if result.Aggregated != nil {
		report["data"] = result.Aggregated.Data
		report["pages"] = result.Aggregated.Pages

		return report
	}

	var body interface{}
	if err := json.Unmarshal(result.Body, &body); err == nil {
		report["body"] = body
	} else {
		report["body"] = string(result.Body)
	}

	return report
}

func renderCallBody(result *apiflow.CallResult) error {
	if result.Aggregated != nil {
		_, _ = fmt.Fprintf(os.Stderr, "aggregated %d entries across %d pages\n",
			len(result.Aggregated.Data), result.Aggregated.Pages)

		return StandardJSONRenderer(result.Aggregated.Data)
	}

	var body interface{}
	if err := json.Unmarshal(result.Body, &body); err == nil {
		return StandardJSONRenderer(body)
	}

	_, _ = os.Stdout.Write(result.Body)
	_, _ = os.Stdout.WriteString("\n")

	return nil
}
