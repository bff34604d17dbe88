package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"condgen/pkg/colors"
	"condgen/pkg/compiler"
)

// cleanCommand removes a compiler's outputs and state files.
func (a *App) cleanCommand(c *compiler.Compiler) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [inputs...]",
		Short: "Remove generated outputs and tracked state",
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
				SidecarPrefix: a.sidecarPrefix(c),
			})
			if err != nil {
				return err
			}

			removed := 0
			for _, unit := range units {
				if err := c.Clean(a.Logger, unit); err != nil {
					return fmt.Errorf("cleaning %s: %w", unit.DisplayName(), err)
				}
				removed += len(unit.OutputItems)
				if !a.globals.quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s✓%s cleaned %s\n",
						colors.Green, colors.Reset, unit.DisplayName())
				}
			}
			if !a.globals.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%sRemoved %d output(s) across %d unit(s).%s\n",
					colors.Dim, removed, len(units), colors.Reset)
			}
			return nil
		},
	}
}
