package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apiflow/internal/constants"
	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// NewEndpointsCommand creates the endpoints command group.
func NewEndpointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"eps"},
		Short:   "Inspect the loaded API document",
		Long:    "List and describe the endpoints of the loaded OpenAPI document",
	}

	cmd.AddCommand(newEndpointsListCommand())
	cmd.AddCommand(newEndpointsDescribeCommand())

	return cmd
}

func newEndpointsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List endpoints",
		Long:  "List every endpoint of the loaded document",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSpec(cmd.Context())
			if err != nil {
				return err
			}

			endpoints := spec.Endpoints()

			switch viper.GetString("output") {
			case OutputFormatJSON:
				return StandardJSONRenderer(endpoints)
			case OutputFormatYAML:
				return StandardYAMLRenderer(endpoints)
			default:
				return renderEndpointsTable(endpoints)
			}
		},
	}
}

func renderEndpointsTable(endpoints []*apiflow.Endpoint) error {
	if len(endpoints) == 0 {
		_, _ = os.Stdout.WriteString("No endpoints found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Method", "Path", "Required", "List", "Summary")

	for _, endpoint := range endpoints {
		required := len(endpoint.RequiredParameters())

		list := ""
		if endpoint.ResponseIsList {
			list = "yes"
		}

		_ = table.Append(endpoint.Method, endpoint.Path,
			fmt.Sprintf("%d/%d", required, len(endpoint.Parameters)),
			list, truncate(endpoint.Summary, constants.DescriptionDisplayLength))
	}

	_ = table.Render()

	return nil
}

func newEndpointsDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe \"METHOD /path\"",
		Short: "Describe one endpoint",
		Long:  "Show the classified parameters of a single endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSpec(cmd.Context())
			if err != nil {
				return err
			}

			key := parseEndpointArg(args[0])

			endpoint, ok := spec.Lookup(key.Path, key.Method)
			if !ok {
				return fmt.Errorf("%w: %s", ErrEndpointNotInSpec, key.String())
			}

			classifier := apiflow.NewClassifier(spec)

			infos := make([]apiflow.ParameterInfo, 0, len(endpoint.Parameters))
			for _, param := range endpoint.Parameters {
				infos = append(infos, classifier.Classify(param.Name, param.Schema))
			}

			switch viper.GetString("output") {
			case OutputFormatJSON:
				return StandardJSONRenderer(infos)
			case OutputFormatYAML:
				return StandardYAMLRenderer(infos)
			default:
				return renderParameterTable(endpoint, infos)
			}
		},
	}
}

func renderParameterTable(endpoint *apiflow.Endpoint, infos []apiflow.ParameterInfo) error {
	_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", endpoint.Method, endpoint.Path)

	if endpoint.Summary != "" {
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", endpoint.Summary)
	}

	if len(infos) == 0 {
		_, _ = os.Stdout.WriteString("\nNo parameters\n")

		return nil
	}

	_, _ = os.Stdout.WriteString("\n")

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Parameter", "Kind", "Location", "Required", "Provider")

	for i, param := range endpoint.Parameters {
		info := infos[i]

		provider := constants.NotAvailable
		if len(info.Candidates) > 0 {
			provider = fmt.Sprintf("%s (%.2f)", info.Candidates[0].Key().String(), info.Confidence)
		}

		required := ""
		if param.Required {
			required = "yes"
		}

		_ = table.Append(param.Name, string(info.Kind), string(param.Location), required, provider)
	}

	_ = table.Render()

	return nil
}
