package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"condgen/pkg/batch"
	"condgen/pkg/compiler"
	"condgen/pkg/display"
	"condgen/pkg/lock"
	"condgen/pkg/settings"
	"condgen/pkg/workspace"
)

// invokeCommand builds the compiler's main verb subcommand.
func (a *App) invokeCommand(c *compiler.Compiler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   c.Verb + " [inputs...]",
		Short: fmt.Sprintf("%s the given files or directories", c.InvokeDescription),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInvoke(cmd, c, args)
		},
	}
	addCustomFlags(cmd, c)
	return cmd
}

// addCustomFlags surfaces the compiler's declared args as typed flags.
func addCustomFlags(cmd *cobra.Command, c *compiler.Compiler) {
	for _, def := range c.CustomArgs() {
		switch def.Kind {
		case compiler.ArgBool:
			dv, _ := def.Default.(bool)
			cmd.Flags().Bool(def.Name, dv, def.Usage)
		case compiler.ArgInt:
			dv, _ := def.Default.(int)
			cmd.Flags().Int(def.Name, dv, def.Usage)
		case compiler.ArgFloat:
			dv, _ := def.Default.(float64)
			cmd.Flags().Float64(def.Name, dv, def.Usage)
		default:
			dv, _ := def.Default.(string)
			cmd.Flags().String(def.Name, dv, def.Usage)
		}
	}
}

// customFlagMetadata folds explicitly set custom flags into metadata.
func customFlagMetadata(cmd *cobra.Command, c *compiler.Compiler, meta compiler.Metadata) {
	for _, def := range c.CustomArgs() {
		if !cmd.Flags().Changed(def.Name) {
			continue
		}
		switch def.Kind {
		case compiler.ArgBool:
			v, _ := cmd.Flags().GetBool(def.Name)
			meta[def.Name] = v
		case compiler.ArgInt:
			v, _ := cmd.Flags().GetInt(def.Name)
			meta[def.Name] = v
		case compiler.ArgFloat:
			v, _ := cmd.Flags().GetFloat64(def.Name)
			meta[def.Name] = v
		default:
			v, _ := cmd.Flags().GetString(def.Name)
			meta[def.Name] = v
		}
	}
}

// parseVars turns repeated -x key=value flags into metadata. Values that
// parse as booleans or numbers are typed accordingly.
func parseVars(vars []string) (compiler.Metadata, error) {
	meta := compiler.Metadata{}
	for _, v := range vars {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, compiler.Configf("invalid -x value %q, expected key=value", v)
		}
		switch {
		case value == "true" || value == "false":
			meta[key] = value == "true"
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				meta[key] = n
			} else {
				meta[key] = value
			}
		}
	}
	return meta, nil
}

func (a *App) runInvoke(cmd *cobra.Command, c *compiler.Compiler, inputs []string) error {
	start := time.Now()

	if err := c.ValidateEnvironment(); err != nil {
		return compiler.Configf("%s: %v", c.Name, err)
	}

	meta, err := parseVars(a.globals.vars)
	if err != nil {
		return err
	}
	customFlagMetadata(cmd, c, meta)

	outputDir := a.globals.outputDir
	if outputDir == "" {
		outputDir = a.Settings.OutputDir
	}
	if outputDir == "" && c.RequiresOutputDir && !a.SettingsExisted {
		settings.PrintSetupInstructions()
	}

	units, err := c.GenerateContexts(compiler.GenerateRequest{
		Inputs:        inputs,
		OutputDir:     outputDir,
		Metadata:      meta,
		Force:         a.globals.force,
		SidecarPrefix: a.sidecarPrefix(c),
	})
	if err != nil {
		return err
	}

	fl, err := lock.Acquire(lock.GetIdentifier(outputDir), a.globals.useLock)
	if err != nil {
		return err
	}
	defer fl.Release()

	var logDir string
	ws := a.openWorkspace()
	if ws != nil {
		logDir = ws.LogsDir()
	}

	var opts []display.Option
	if a.globals.quiet {
		opts = append(opts, display.WithQuiet())
	}
	if a.globals.verbose || a.globals.debug {
		opts = append(opts, display.WithVerbose())
	}
	disp := display.New(cmd.OutOrStdout(), c, len(units), opts...)
	disp.PrintHeader(outputDir)

	sum, err := batch.Run(cmd.Context(), a.Logger, c, units, batch.Options{
		SingleThreaded: a.globals.singleThreaded || !c.ExecuteInParallel,
		LogDir:         logDir,
		Observer:       disp,
	})
	if err != nil {
		return err
	}
	disp.PrintSummary(sum.Invoked, sum.Skipped, sum.Warnings, sum.Failures)

	if ws != nil {
		a.writeRecord(ws, c, outputDir, sum, start)
	}

	if code := sum.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// openWorkspace creates the per-run directory, best effort.
func (a *App) openWorkspace() *workspace.Workspace {
	base, err := workspace.DefaultBaseDir()
	if err != nil {
		a.Logger.Warn("run logs disabled", "err", err)
		return nil
	}
	ws, err := workspace.New(base)
	if err != nil {
		a.Logger.Warn("run logs disabled", "err", err)
		return nil
	}
	return ws
}

func (a *App) writeRecord(ws *workspace.Workspace, c *compiler.Compiler, outputDir string, sum *batch.Summary, start time.Time) {
	rec := workspace.NewRecord(c.Name, c.Verb).WithOutputDir(outputDir).WithTiming(start, time.Now())
	switch {
	case sum.Failures > 0 && sum.Failures == len(sum.Units):
		rec.Failure("ALL_UNITS_FAILED", fmt.Sprintf("%d unit(s) failed", sum.Failures))
	case sum.Failures > 0:
		rec.Partial()
	case sum.Invoked == 0:
		rec.Skipped()
	default:
		rec.Success()
	}
	for _, ur := range sum.Units {
		u := workspace.UnitRecord{
			Name:       ur.Unit.DisplayName(),
			Invoked:    ur.Result.Invoked,
			Reason:     ur.Result.Reason.String(),
			Code:       ur.Result.Code,
			Outcome:    ur.Result.Short,
			DurationMs: ur.Duration.Milliseconds(),
			LogPath:    ur.LogPath,
		}
		if ur.Err != nil {
			u.Outcome = ur.Err.Error()
			u.Code = -1
		}
		rec.WithUnit(u)
	}
	if _, err := ws.WriteRecord(rec.Build()); err != nil {
		a.Logger.Warn("could not write run record", "err", err)
	}
}
