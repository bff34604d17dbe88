package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"condgen/pkg/compiler"
)

// Manifest describes an external tool as a compiler. Manifests live in
// *.plugin.json files under the configured plugin directories.
type Manifest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Verb        string `json:"verb"`

	// InputType is "files" or "directories".
	InputType string `json:"input_type,omitempty"`

	// Extensions filter supported inputs, e.g. [".proto"]. Empty accepts
	// everything of the input type.
	Extensions []string `json:"extensions,omitempty"`

	// Grouping is "individual" (default) or "atomic".
	Grouping string `json:"grouping,omitempty"`

	Parallel bool `json:"parallel,omitempty"`

	// Argv is the command template. Placeholders: {input} (first input),
	// {inputs} (expands to one element per input), {output_dir}, and
	// {meta:KEY} for metadata values.
	Argv []string `json:"argv"`

	// Output is "none", "atomic", or "multiple".
	Output         string `json:"output,omitempty"`
	OutputFilename string `json:"output_filename,omitempty"`
	OutputSuffix   string `json:"output_suffix,omitempty"`

	OptionalMetadata map[string]any `json:"optional_metadata,omitempty"`
	RequiredMetadata []string       `json:"required_metadata,omitempty"`

	// Tool is checked on PATH before the compiler runs. Defaults to
	// Argv[0].
	Tool string `json:"tool,omitempty"`
}

func (m *Manifest) validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	if m.Verb == "" {
		return fmt.Errorf("plugin %s: verb is required", m.Name)
	}
	if len(m.Argv) == 0 {
		return fmt.Errorf("plugin %s: argv is required", m.Name)
	}
	switch m.InputType {
	case "", "files", "directories":
	default:
		return fmt.Errorf("plugin %s: input_type must be files or directories", m.Name)
	}
	switch m.Grouping {
	case "", "individual", "atomic":
	default:
		return fmt.Errorf("plugin %s: grouping must be individual or atomic", m.Name)
	}
	switch m.Output {
	case "", "none", "atomic", "multiple":
	default:
		return fmt.Errorf("plugin %s: output must be none, atomic, or multiple", m.Name)
	}
	if m.Output == "multiple" && m.OutputSuffix == "" {
		return fmt.Errorf("plugin %s: output_suffix is required for multiple output", m.Name)
	}
	return nil
}

// Compile assembles a compiler from the manifest.
func (m *Manifest) Compile() (*compiler.Compiler, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	inputType := compiler.InputFiles
	if m.InputType == "directories" {
		inputType = compiler.InputDirectories
	}

	var input compiler.InputStrategy = compiler.IndividualInput{}
	if m.Grouping == "atomic" {
		input = compiler.AtomicInput{DisplayName: m.Name}
	}

	var output compiler.OutputStrategy
	var query compiler.InvocationQuery = &compiler.ConditionalInvoke{}
	requiresOutputDir := true
	switch m.Output {
	case "none":
		// Nowhere to keep state without outputs, so verifier plugins run
		// every time.
		output = compiler.NoOutput{}
		query = compiler.AlwaysInvoke{}
		requiresOutputDir = false
	case "multiple":
		output = compiler.MultipleOutput{Suffix: m.OutputSuffix}
	default:
		output = compiler.AtomicOutput{Filename: m.OutputFilename}
	}

	var supports func(string) bool
	if len(m.Extensions) > 0 {
		exts := make(map[string]struct{}, len(m.Extensions))
		for _, e := range m.Extensions {
			exts[strings.ToLower(e)] = struct{}{}
		}
		supports = func(path string) bool {
			_, ok := exts[strings.ToLower(filepath.Ext(path))]
			return ok
		}
	}

	tool := m.Tool
	if tool == "" {
		tool = m.Argv[0]
	}
	argv := append([]string(nil), m.Argv...)

	return compiler.New(compiler.Spec{
		Name:              m.Name,
		Description:       m.Description,
		Verb:              m.Verb,
		InputType:         inputType,
		RequiresOutputDir: requiresOutputDir,
		ExecuteInParallel: m.Parallel,
		Input:             input,
		Query:             query,
		Output:            output,
		Invoker: compiler.CommandInvoker{
			BuildArgv: func(unit *compiler.Context) ([]string, error) {
				return expandArgv(argv, unit)
			},
		},
		Supports:         supports,
		OptionalMetadata: compiler.Metadata(m.OptionalMetadata),
		RequiredMetadata: m.RequiredMetadata,
		ValidateEnvironment: func() error {
			if _, err := exec.LookPath(tool); err != nil {
				return fmt.Errorf("required tool %q not found on PATH", tool)
			}
			return nil
		},
	})
}

// expandArgv substitutes placeholders in the manifest's command template.
func expandArgv(template []string, unit *compiler.Context) ([]string, error) {
	var out []string
	for _, arg := range template {
		if arg == "{inputs}" {
			out = append(out, unit.InputItems...)
			continue
		}
		expanded, err := expandArg(arg, unit)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

func expandArg(arg string, unit *compiler.Context) (string, error) {
	arg = strings.ReplaceAll(arg, "{output_dir}", unit.OutputDir)
	if strings.Contains(arg, "{input}") {
		if len(unit.InputItems) == 0 {
			return "", fmt.Errorf("no inputs for {input} placeholder")
		}
		arg = strings.ReplaceAll(arg, "{input}", unit.InputItems[0])
	}
	for {
		start := strings.Index(arg, "{meta:")
		if start < 0 {
			break
		}
		end := strings.Index(arg[start:], "}")
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", arg)
		}
		key := arg[start+len("{meta:") : start+end]
		val, ok := unit.Metadata[key]
		if !ok {
			return "", fmt.Errorf("metadata %q not set for placeholder in %q", key, arg)
		}
		arg = arg[:start] + fmt.Sprint(val) + arg[start+end+1:]
	}
	return arg, nil
}

// LoadDir registers every *.plugin.json manifest found in dir. A missing
// directory is not an error. Invalid manifests are logged and skipped so a
// broken plugin cannot take down the CLI.
func LoadDir(r *Registry, logger *log.Logger, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading plugin directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".plugin.json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unreadable plugin manifest", "path", path, "err", err)
			}
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			if logger != nil {
				logger.Warn("skipping invalid plugin manifest", "path", path, "err", err)
			}
			continue
		}
		c, err := m.Compile()
		if err != nil {
			if logger != nil {
				logger.Warn("skipping plugin", "path", path, "err", err)
			}
			continue
		}
		if err := r.Register(c); err != nil {
			if logger != nil {
				logger.Warn("skipping plugin", "path", path, "err", err)
			}
		}
	}
	return nil
}

// LoadDirs registers manifests from every directory in order. Earlier
// directories win on name conflicts.
func LoadDirs(r *Registry, logger *log.Logger, dirs []string) error {
	for _, dir := range dirs {
		if err := LoadDir(r, logger, dir); err != nil {
			return err
		}
	}
	return nil
}
