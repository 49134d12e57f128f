package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// NewContextCommand creates the context command group.
func NewContextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "context",
		Aliases: []string{"ctx"},
		Short:   "Manage persisted resolved values",
		Long: `Inspect and edit the session context: the resolved parameter values
that are reused across calls instead of being resolved again.`,
	}

	cmd.AddCommand(newContextListCommand())
	cmd.AddCommand(newContextSetCommand())
	cmd.AddCommand(newContextUnsetCommand())
	cmd.AddCommand(newContextClearCommand())

	return cmd
}

func newContextListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List persisted values",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := contextStore()
			if err != nil {
				return err
			}

			values, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load context: %w", err)
			}

			switch viper.GetString("output") {
			case OutputFormatJSON:
				return StandardJSONRenderer(values)
			case OutputFormatYAML:
				return StandardYAMLRenderer(values)
			default:
				renderContextTable(values)

				return nil
			}
		},
	}
}

func newContextSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set name=value [name=value...]",
		Short: "Set persisted values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseParams(args)
			if err != nil {
				return err
			}

			store, err := contextStore()
			if err != nil {
				return err
			}

			values, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load context: %w", err)
			}

			for name, value := range updates {
				values[name] = value
			}

			if err := store.Save(cmd.Context(), values); err != nil {
				return fmt.Errorf("failed to save context: %w", err)
			}

			fmt.Printf("Set %d value(s)\n", len(updates))

			return nil
		},
	}
}

func newContextUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset name [name...]",
		Short: "Remove persisted values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := contextStore()
			if err != nil {
				return err
			}

			values, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load context: %w", err)
			}

			removed := 0

			for _, name := range args {
				if _, ok := values[name]; ok {
					delete(values, name)

					removed++
				}
			}

			if err := store.Save(cmd.Context(), values); err != nil {
				return fmt.Errorf("failed to save context: %w", err)
			}

			fmt.Printf("Removed %d value(s)\n", removed)

			return nil
		},
	}
}

func newContextClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all persisted values",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := contextStore()
			if err != nil {
				return err
			}

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear context: %w", err)
			}

			fmt.Println("Context cleared")

			return nil
		},
	}
}

func renderContextTable(values map[string]interface{}) {
	if len(values) == 0 {
		fmt.Println("Context is empty")

		return
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Name", "Value"})

	for _, name := range names {
		value := truncate(fmt.Sprintf("%v", values[name]), constants.DescriptionDisplayLength)
		_ = table.Append([]string{name, value})
	}

	_ = table.Render()
}
