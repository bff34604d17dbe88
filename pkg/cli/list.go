package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"condgen/pkg/colors"
	"condgen/pkg/compiler"
)

// listCommand shows the invocation units a run would produce, with the
// decision each unit would get. Nothing is invoked.
func (a *App) listCommand(c *compiler.Compiler) *cobra.Command {
	return &cobra.Command{
		Use:   "list [inputs...]",
		Short: "Show invocation units and what would be rebuilt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseVars(a.globals.vars)
			if err != nil {
				return err
			}
			outputDir := a.globals.outputDir
			if outputDir == "" {
				outputDir = a.Settings.OutputDir
			}
			units, err := c.GenerateContexts(compiler.GenerateRequest{
				Inputs:        args,
				OutputDir:     outputDir,
				Metadata:      meta,
				Force:         a.globals.force,
				SidecarPrefix: a.sidecarPrefix(c),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, unit := range units {
				decision := c.Query.Resolve(a.Logger, unit)

				fmt.Fprintf(out, "%s[%d/%d]%s %s%s%s\n",
					colors.Dim, i+1, len(units), colors.Reset,
					colors.Bold, unit.DisplayName(), colors.Reset)

				clr := colors.Green
				if decision.Reason.ShouldInvoke() {
					clr = colors.Yellow
				}
				fmt.Fprintf(out, "  %-12s %s%s%s\n", "decision:", clr, decision.String(), colors.Reset)

				for _, in := range unit.InputItems {
					fmt.Fprintf(out, "  %-12s %s\n", "input:", in)
				}
				for _, o := range unit.OutputItems {
					fmt.Fprintf(out, "  %-12s %s\n", "output:", o)
				}
				if keys := metadataKeys(unit.Metadata); len(keys) > 0 {
					var pairs []string
					for _, k := range keys {
						pairs = append(pairs, fmt.Sprintf("%s=%v", k, unit.Metadata[k]))
					}
					fmt.Fprintf(out, "  %-12s %s%s%s\n", "metadata:", colors.Dim, strings.Join(pairs, " "), colors.Reset)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func metadataKeys(m compiler.Metadata) []string {
	var keys []string
	for k := range m {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
