// Package compiler implements the conditional compilation pipeline shared by
// compilers, code generators, and verifiers: context generation from
// filesystem inputs, invoke-reason resolution against persisted state,
// invocation with step-wise progress, and sidecar persistence.
//
// A Compiler is assembled by explicit composition: an InputStrategy decides
// how matched inputs are grouped into units, an InvocationQuery decides
// whether a unit needs to be rebuilt, an OutputStrategy derives the unit's
// output items, and an Invoker performs the actual work.
package compiler

import (
	"fmt"
	"os"
)

// InputType signals whether a compiler operates on individual files or on
// directories.
type InputType int

const (
	InputFiles InputType = iota
	InputDirectories
)

func (t InputType) String() string {
	switch t {
	case InputFiles:
		return "files"
	case InputDirectories:
		return "directories"
	default:
		return fmt.Sprintf("InputType(%d)", int(t))
	}
}

// Matches reports whether the path on disk is of the kind this compiler
// accepts as direct input.
func (t InputType) Matches(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	switch t {
	case InputFiles:
		return !info.IsDir()
	case InputDirectories:
		return info.IsDir()
	default:
		return false
	}
}

// ArgKind enumerates the value kinds a compiler-specific command line flag
// may carry.
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgBool
	ArgInt
	ArgFloat
	ArgPath
)

// ArgDef declares a compiler-specific command line flag. The CLI scaffolding
// turns each definition into a typed flag whose value lands in the unit
// metadata under Name.
type ArgDef struct {
	Name    string
	Kind    ArgKind
	Default any
	Usage   string
}

// Spec describes a compiler to be assembled by New. Strategy fields are
// mandatory; hooks are optional.
type Spec struct {
	// Name is the short identifier used for CLI command groups and logs.
	Name        string
	Description string

	// Verb is the invocation command name (e.g. "compile", "generate",
	// "verify"); InvokeDescription is its progressive form ("Compiling").
	Verb              string
	InvokeDescription string

	InputType         InputType
	RequiresOutputDir bool
	ExecuteInParallel bool

	Input   InputStrategy
	Query   InvocationQuery
	Output  OutputStrategy
	Invoker Invoker

	// Supports filters candidate inputs by name/content. nil accepts
	// everything of the right InputType.
	Supports func(path string) bool

	// CustomArgs declares compiler-specific flags surfaced by the CLI.
	CustomArgs []ArgDef

	// OptionalMetadata supplies defaults applied only when the caller did
	// not provide a non-empty value for the key.
	OptionalMetadata Metadata

	// RequiredMetadata lists keys that must be present in every unit's
	// metadata after generation.
	RequiredMetadata []string

	// IgnoreDirs lists directory names skipped during recursive expansion.
	// nil uses DefaultIgnoreDirs.
	IgnoreDirs []string

	// ValidateEnvironment rejects the current environment before any work
	// happens (e.g. a required external tool is missing).
	ValidateEnvironment func() error

	// CreateContext runs after a unit's context is assembled and may
	// resolve additional output paths or create directories.
	CreateContext func(ctx *Context) error
}

// Compiler is an assembled conditional compilation pipeline.
type Compiler struct {
	Name              string
	Description       string
	Verb              string
	InvokeDescription string
	InputType         InputType
	RequiresOutputDir bool
	ExecuteInParallel bool

	Input   InputStrategy
	Query   InvocationQuery
	Output  OutputStrategy
	Invoker Invoker

	supports            func(path string) bool
	customArgs          []ArgDef
	optionalMetadata    Metadata
	requiredMetadata    []string
	ignoreDirs          map[string]struct{}
	validateEnvironment func() error
	createContext       func(ctx *Context) error
}

// DefaultIgnoreDirs are directory names skipped during recursive input
// expansion unless the spec overrides them.
var DefaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules", "__pycache__"}

// New validates the spec and assembles a Compiler.
func New(spec Spec) (*Compiler, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("compiler spec: Name is required")
	}
	if spec.Verb == "" {
		return nil, fmt.Errorf("compiler %s: Verb is required", spec.Name)
	}
	if spec.Input == nil || spec.Query == nil || spec.Output == nil || spec.Invoker == nil {
		return nil, fmt.Errorf("compiler %s: Input, Query, Output, and Invoker strategies are all required", spec.Name)
	}
	if spec.InvokeDescription == "" {
		spec.InvokeDescription = titleVerb(spec.Verb)
	}

	ignore := spec.IgnoreDirs
	if ignore == nil {
		ignore = DefaultIgnoreDirs
	}
	ignoreSet := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		ignoreSet[name] = struct{}{}
	}

	c := &Compiler{
		Name:              spec.Name,
		Description:       spec.Description,
		Verb:              spec.Verb,
		InvokeDescription: spec.InvokeDescription,
		InputType:         spec.InputType,
		RequiresOutputDir: spec.RequiresOutputDir || spec.Query.RequiresOutputDir(),
		ExecuteInParallel: spec.ExecuteInParallel,

		Input:   spec.Input,
		Query:   spec.Query,
		Output:  spec.Output,
		Invoker: spec.Invoker,

		supports:            spec.Supports,
		customArgs:          spec.CustomArgs,
		optionalMetadata:    spec.OptionalMetadata,
		requiredMetadata:    spec.RequiredMetadata,
		ignoreDirs:          ignoreSet,
		validateEnvironment: spec.ValidateEnvironment,
		createContext:       spec.CreateContext,
	}
	return c, nil
}

// CustomArgs returns the compiler-specific flag declarations.
func (c *Compiler) CustomArgs() []ArgDef {
	return c.customArgs
}

// IsSupported reports whether the path is valid input for this compiler.
func (c *Compiler) IsSupported(path string) bool {
	if !c.InputType.Matches(path) {
		return false
	}
	if c.supports == nil {
		return true
	}
	return c.supports(path)
}

// ValidateEnvironment reports why the current environment cannot run this
// compiler, or nil.
func (c *Compiler) ValidateEnvironment() error {
	if c.validateEnvironment == nil {
		return nil
	}
	return c.validateEnvironment()
}

func titleVerb(verb string) string {
	if verb == "" {
		return ""
	}
	// "compile" -> "Compiling", "generate" -> "Generating"
	base := verb
	if last := len(base) - 1; base[last] == 'e' {
		base = base[:last]
	}
	out := []byte(base + "ing")
	if out[0] >= 'a' && out[0] <= 'z' {
		out[0] -= 'a' - 'A'
	}
	return string(out)
}
