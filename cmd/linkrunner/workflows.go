package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/config"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List available workflows",
	Long:  `List the registered workflows with their input fields and timeouts.`,
	RunE:  runWorkflows,
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, _, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIMEOUT\tINPUT\tDESCRIPTION")
	for _, d := range registry.List() {
		fields := make([]string, 0, len(d.Schema.Fields))
		for _, f := range d.Schema.Fields {
			fields = append(fields, fmt.Sprintf("%s (%s)", f.Name, f.Kind))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Timeout, strings.Join(fields, ", "), d.Description)
	}
	return tw.Flush()
}
