package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autogippity/pkg/capabilities"
)

func capabilitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Inspect the LLM capabilities agents can request",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List capabilities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tOUTPUT\tDESCRIPTION")
				for _, c := range capabilities.All() {
					output := "text"
					if c.Structured() {
						output = "json"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, output, c.Description)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "render <name> <input...>",
			Short: "Print the system message a capability sends for input",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, ok := capabilities.Lookup(args[0])
				if !ok {
					return fmt.Errorf("unknown capability %q", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.Render(strings.Join(args[1:], " ")))
				return nil
			},
		},
	)
	return cmd
}
