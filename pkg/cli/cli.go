// Package cli wires the registered compilers into the condgen command
// tree: one command group per compiler with its verb plus clean and list
// subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"condgen/pkg/colors"
	"condgen/pkg/compiler"
	"condgen/pkg/plugin"
	"condgen/pkg/settings"
)

// ExitError carries an explicit process exit code through cobra's error
// return path.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// App holds everything a command needs at run time.
type App struct {
	Registry *plugin.Registry
	Settings *settings.Settings
	Logger   *log.Logger

	// SettingsExisted reports whether a settings file was found at startup,
	// used to point first-time users at setup.
	SettingsExisted bool

	globals globalFlags
}

type globalFlags struct {
	outputDir      string
	force          bool
	useLock        bool
	singleThreaded bool
	quiet          bool
	verbose        bool
	debug          bool
	noColor        bool
	sidecarPrefix  string
	vars           []string
}

// NewApp loads settings, configures logging, and populates the registry
// with built-ins and plugin manifests.
func NewApp(builtins []*compiler.Compiler) *App {
	cfg, existed := settings.LoadWithFallback()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Level:           log.WarnLevel,
	})
	if lvl := settings.GetEnvLogLevel(); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			logger.SetLevel(parsed)
		}
	}
	if cfg.NoColor {
		colors.Disable()
	}

	registry := plugin.NewRegistry(logger)
	for _, c := range builtins {
		if err := registry.Register(c); err != nil {
			logger.Warn("skipping builtin compiler", "name", c.Name, "err", err)
		}
	}
	if err := plugin.LoadDirs(registry, logger, cfg.PluginDirs); err != nil {
		logger.Warn("loading plugin manifests", "err", err)
	}

	return &App{Registry: registry, Settings: cfg, Logger: logger, SettingsExisted: existed}
}

// Execute runs the command tree and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.buildRoot()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		var cfgErr *compiler.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "%sError:%s %s\n", colors.Red, colors.Reset, cfgErr.Msg)
			return 1
		}
		if errors.Is(err, compiler.ErrCanceled) || errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%sCanceled.%s\n", colors.Yellow, colors.Reset)
			return 1
		}
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colors.Red, colors.Reset, err)
		return 1
	}
	return 0
}

func (a *App) buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "condgen",
		Short: "Conditional code generation and verification",
		Long: "condgen runs compilers, code generators, and verifiers over input\n" +
			"files, rebuilding only the units whose inputs, outputs, or settings\n" +
			"changed since the last run.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.applyGlobalFlags()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.globals.outputDir, "output", "o", "", "output directory (defaults to settings output_dir)")
	pf.BoolVarP(&a.globals.force, "force", "f", false, "rebuild every unit regardless of state")
	pf.BoolVar(&a.globals.useLock, "lock", false, "serialize runs against the same output directory")
	pf.BoolVar(&a.globals.singleThreaded, "single-threaded", false, "disable parallel execution")
	pf.BoolVarP(&a.globals.quiet, "quiet", "q", false, "only report failures")
	pf.BoolVarP(&a.globals.verbose, "verbose", "v", false, "report every step")
	pf.BoolVar(&a.globals.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&a.globals.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&a.globals.sidecarPrefix, "sidecar-prefix", "", "state file prefix (defaults to the compiler name)")
	pf.StringArrayVarP(&a.globals.vars, "var", "x", nil, "metadata for every unit, key=value (repeatable)")

	for _, c := range a.Registry.All() {
		root.AddCommand(a.compilerCommand(c))
	}
	root.AddCommand(a.compilersCommand())
	root.AddCommand(a.setupCommand())
	return root
}

func (a *App) applyGlobalFlags() {
	if a.globals.debug {
		a.Logger.SetLevel(log.DebugLevel)
	} else if a.globals.verbose {
		a.Logger.SetLevel(log.InfoLevel)
	}
	if a.globals.noColor {
		colors.Disable()
	}
	if a.Settings.SingleThreaded {
		a.globals.singleThreaded = true
	}
}

// sidecarPrefix resolves the state file prefix for a compiler. Prefixing by
// compiler name keeps compilers sharing one output directory from colliding.
func (a *App) sidecarPrefix(c *compiler.Compiler) string {
	if a.globals.sidecarPrefix != "" {
		return a.globals.sidecarPrefix
	}
	return c.Name
}

// compilerCommand builds the command group for one compiler.
func (a *App) compilerCommand(c *compiler.Compiler) *cobra.Command {
	group := &cobra.Command{
		Use:   c.Name,
		Short: c.Description,
	}
	group.AddCommand(a.invokeCommand(c))
	if c.RequiresOutputDir {
		group.AddCommand(a.cleanCommand(c))
	}
	group.AddCommand(a.listCommand(c))
	return group
}

// compilersCommand lists everything that is registered.
func (a *App) compilersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compilers",
		Short: "List registered compilers",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range a.Registry.Names() {
				c := a.Registry.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", colors.Wrap(colors.Cyan, fmt.Sprintf("%-16s", name)), c.Description)
			}
			return nil
		},
	}
}

// setupCommand runs the interactive first-time configuration wizard.
func (a *App) setupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create ~/.condgen/settings.json interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := settings.RunInteractiveSetup()
			if !ok {
				return &ExitError{Code: 1}
			}
			a.Settings = s
			a.SettingsExisted = true
			return nil
		},
	}
}
