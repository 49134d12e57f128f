package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "plan \"METHOD /path\"",
		Short: "Show the execution plan for a target endpoint",
		Long: `Build the dependency graph for the loaded document and print the call
sequence that would resolve the target endpoint's parameters, without
invoking anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSpec(cmd.Context())
			if err != nil {
				return err
			}

			seeds, err := parseParams(params)
			if err != nil {
				return err
			}

			graph, broken, err := apiflow.BuildGraph(spec, seeds)
			if err != nil {
				return err
			}

			key := parseEndpointArg(args[0])

			plan, err := apiflow.Plan(graph, key)
			if err != nil {
				return err
			}

			switch viper.GetString("output") {
			case OutputFormatJSON:
				return StandardJSONRenderer(planReport{Plan: plan, CyclesBroken: broken})
			case OutputFormatYAML:
				return StandardYAMLRenderer(planReport{Plan: plan, CyclesBroken: broken})
			default:
				return renderPlanTable(plan, broken)
			}
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "seed value (name=value, repeatable)")

	return cmd
}

type planReport struct {
	Plan         *apiflow.ExecutionPlan `json:"plan"                    yaml:"plan"`
	CyclesBroken []apiflow.CycleBroken  `json:"cycles_broken,omitempty" yaml:"cycles_broken,omitempty"`
}

func renderPlanTable(plan *apiflow.ExecutionPlan, broken []apiflow.CycleBroken) error {
	for _, diag := range broken {
		_, _ = fmt.Fprintf(os.Stderr, "warning: %s\n", diag.String())
	}

	_, _ = fmt.Fprintf(os.Stdout, "Plan for %s (%d steps):\n\n", plan.Target.String(), len(plan.Steps))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Step", "Level", "Endpoint", "Provides", "Paginated")

	for i, step := range plan.Steps {
		provides := strings.Join(step.Provides, ", ")
		if provides == "" {
			provides = "-"
		}

		paginated := ""
		if step.Paginated {
			paginated = "yes"
		}

		_ = table.Append(strconv.Itoa(i+1), strconv.Itoa(step.Level),
			step.Key().String(), provides, paginated)
	}

	_ = table.Render()

	return nil
}
