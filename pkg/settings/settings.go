// Package settings handles loading and managing user configuration
// from ~/.condgen/settings.json.
package settings

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ai8future/chassis-go/v5/config"

	"condgen/pkg/colors"
)

const (
	ConfigDirName  = ".condgen"
	ConfigFileName = "settings.json"
)

// Settings holds all configuration for condgen
type Settings struct {
	PluginDirs     []string `json:"plugin_dirs,omitempty"`     // Extra directories scanned for plugin manifests (supports ~ expansion)
	OutputDir      string   `json:"output_dir,omitempty"`      // Default output directory when -o is not given
	IgnoreDirs     []string `json:"ignore_dirs,omitempty"`     // Directory names skipped during input expansion
	SingleThreaded bool     `json:"single_threaded,omitempty"` // Disable parallel execution by default
	NoColor        bool     `json:"no_color,omitempty"`        // Disable ANSI colors in output
}

// EnvOverrides allows environment variables to override settings.json values.
// All fields are optional (required:"false"); only non-empty values apply.
// Merge order: defaults < settings.json < env vars < CLI flags.
type EnvOverrides struct {
	PluginPath     string `env:"CONDGEN_PLUGIN_PATH" required:"false"`
	OutputDir      string `env:"CONDGEN_OUTPUT_DIR" required:"false"`
	LogLevel       string `env:"CONDGEN_LOG_LEVEL" required:"false"`
	NoColor        string `env:"CONDGEN_NO_COLOR" required:"false"`
	SingleThreaded string `env:"CONDGEN_SINGLE_THREADED" required:"false"`
}

// applyEnvOverrides loads environment variable overrides and merges them into settings.
func applyEnvOverrides(s *Settings) {
	env := config.MustLoad[EnvOverrides]()

	if env.PluginPath != "" {
		// Colon-separated, like PATH
		for _, dir := range strings.Split(env.PluginPath, ":") {
			if dir != "" {
				s.PluginDirs = append(s.PluginDirs, expandTilde(dir))
			}
		}
	}
	if env.OutputDir != "" {
		s.OutputDir = expandTilde(env.OutputDir)
	}
	if env.NoColor != "" {
		s.NoColor = env.NoColor != "0" && !strings.EqualFold(env.NoColor, "false")
	}
	if env.SingleThreaded != "" {
		s.SingleThreaded = env.SingleThreaded != "0" && !strings.EqualFold(env.SingleThreaded, "false")
	}
}

// GetEnvLogLevel returns the CONDGEN_LOG_LEVEL env var value, or empty string if unset.
func GetEnvLogLevel() string {
	return os.Getenv("CONDGEN_LOG_LEVEL")
}

// GetConfigDir returns the path to the config directory (~/.condgen)
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME") // fallback for legacy systems
	}
	return filepath.Join(home, ConfigDirName)
}

// GetConfigPath returns the full path to settings.json
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME") // fallback for legacy systems
			if home == "" {
				return path
			}
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
			if home == "" {
				return path
			}
		}
		return home
	}
	return path
}

// Load reads settings from ~/.condgen/settings.json
// Returns nil and an error if the file doesn't exist or is invalid
func Load() (*Settings, error) {
	return loadFrom(GetConfigPath())
}

func loadFrom(configPath string) (*Settings, error) {
	// Check file permissions for security
	info, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("settings file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}

	// Warn if settings file is world-writable (security risk)
	mode := info.Mode().Perm()
	if mode&0002 != 0 { // world-writable
		fmt.Fprintf(os.Stderr, "Warning: settings file %s is world-writable (mode %o). This is a security risk.\n", configPath, mode)
		fmt.Fprintf(os.Stderr, "Run: chmod 600 %s\n", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", configPath, err)
	}

	// Expand tilde in paths
	settings.OutputDir = expandTilde(settings.OutputDir)
	for i, dir := range settings.PluginDirs {
		settings.PluginDirs[i] = expandTilde(dir)
	}

	return &settings, nil
}

// GetDefaultSettings returns settings with sensible defaults
func GetDefaultSettings() *Settings {
	return &Settings{
		PluginDirs: []string{filepath.Join(GetConfigDir(), "plugins")},
	}
}

// LoadWithFallback tries to load settings, falling back to defaults if not found
// Returns the settings (possibly with defaults) and whether the config file existed
func LoadWithFallback() (*Settings, bool) {
	settings, err := Load()
	existed := err == nil
	if err != nil {
		settings = GetDefaultSettings()
	}
	// The user plugin directory is always scanned, listed or not
	userPlugins := filepath.Join(GetConfigDir(), "plugins")
	found := false
	for _, dir := range settings.PluginDirs {
		if dir == userPlugins {
			found = true
			break
		}
	}
	if !found {
		settings.PluginDirs = append(settings.PluginDirs, userPlugins)
	}
	// Apply environment variable overrides (CONDGEN_* vars override settings.json)
	applyEnvOverrides(settings)
	return settings, existed
}

// PrintSetupInstructions prints helpful setup instructions when settings.json doesn't exist
func PrintSetupInstructions() {
	configPath := GetConfigPath()
	configDir := GetConfigDir()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s%sSetup:%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(os.Stderr, "  No settings file found at: %s%s%s\n\n", colors.Magenta, configPath, colors.Reset)
	fmt.Fprintf(os.Stderr, "  Create the settings file:\n")
	fmt.Fprintf(os.Stderr, "    %smkdir -p %s%s\n\n", colors.Green, configDir, colors.Reset)
	fmt.Fprintf(os.Stderr, "  Then create settings.json:\n")
	fmt.Fprintf(os.Stderr, "    %s{\n", colors.Yellow)
	fmt.Fprintf(os.Stderr, "      \"plugin_dirs\": [\"~/my-plugins\"],\n")
	fmt.Fprintf(os.Stderr, "      \"output_dir\": \"~/generated\"\n")
	fmt.Fprintf(os.Stderr, "    }%s\n\n", colors.Reset)
}

// RunInteractiveSetup runs an interactive setup wizard to create the settings file
// Returns the created settings and true if successful, nil and false if cancelled/failed
func RunInteractiveSetup() (*Settings, bool) {
	// Check if stdin is a terminal
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Standard input is not a terminal. Interactive setup cannot run.")
		fmt.Fprintln(os.Stderr, "Please create ~/.condgen/settings.json manually.")
		return nil, false
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("\n%s%s╔════════════════════════════════════════════════════════════════╗%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Printf("%s%s║  condgen - First Time Setup                                    ║%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Printf("%s%s╚════════════════════════════════════════════════════════════════╝%s\n\n", colors.Bold, colors.Cyan, colors.Reset)

	fmt.Printf("No settings file found. Let's set one up!\n\n")

	fmt.Printf("%s%sWhere should generated output go by default?%s\n", colors.Bold, colors.Green, colors.Reset)
	fmt.Printf("%s(Leave empty to require -o on every run)%s\n\n", colors.Dim, colors.Reset)
	fmt.Printf("%sOutput directory%s []: ", colors.Bold, colors.Reset)

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n%sError:%s reading input: %v\n", colors.Yellow, colors.Reset, err)
		return nil, false
	}
	outputDir := strings.TrimSpace(input)

	fmt.Printf("\n%s%sExtra plugin directory?%s\n", colors.Bold, colors.Green, colors.Reset)
	fmt.Printf("%sPlugin manifests in ~/.condgen/plugins are always loaded.%s\n\n", colors.Dim, colors.Reset)
	fmt.Printf("%sPlugin directory%s []: ", colors.Bold, colors.Reset)

	input, _ = reader.ReadString('\n')
	pluginDir := strings.TrimSpace(input)

	settings := &Settings{OutputDir: outputDir}
	if pluginDir != "" {
		settings.PluginDirs = []string{pluginDir}
	}

	// Create config directory
	configDir := GetConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s creating config directory: %v\n", colors.Yellow, colors.Reset, err)
		return nil, false
	}

	// Write settings file
	configPath := GetConfigPath()
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s encoding settings: %v\n", colors.Yellow, colors.Reset, err)
		return nil, false
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s writing settings: %v\n", colors.Yellow, colors.Reset, err)
		return nil, false
	}

	fmt.Printf("\n%s%s────────────────────────────────────────────────────────────────%s\n", colors.Dim, colors.Cyan, colors.Reset)
	fmt.Printf("%s%sSetup Complete!%s\n\n", colors.Bold, colors.Green, colors.Reset)
	fmt.Printf("  %sSettings saved to:%s %s%s%s\n", colors.Dim, colors.Reset, colors.Magenta, configPath, colors.Reset)
	if outputDir != "" {
		fmt.Printf("  %sOutput directory:%s  %s%s%s\n", colors.Dim, colors.Reset, colors.Magenta, outputDir, colors.Reset)
	}
	fmt.Printf("%s%s────────────────────────────────────────────────────────────────%s\n\n", colors.Dim, colors.Cyan, colors.Reset)

	settings.OutputDir = expandTilde(outputDir)
	for i, dir := range settings.PluginDirs {
		settings.PluginDirs[i] = expandTilde(dir)
	}
	return settings, true
}
