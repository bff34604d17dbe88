package compiler

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GenerateRequest carries the caller's inputs for one run of a compiler.
type GenerateRequest struct {
	// Inputs are files or directories to process. Directories are
	// expanded recursively when the compiler takes files.
	Inputs []string

	// OutputDir is where outputs and state files go.
	OutputDir string

	// Metadata is applied to every generated unit, over the compiler's
	// optional defaults.
	Metadata Metadata

	// Force marks every unit for unconditional rebuild.
	Force bool

	// SidecarPrefix distinguishes this compiler's state files in shared
	// output directories. A per-unit discriminator is appended during
	// generation so sibling units never share a state file.
	SidecarPrefix string
}

// GenerateContexts expands and validates the request's inputs and groups
// them into invocation units.
//
// Each explicitly listed input must match the compiler's input type and
// Supports filter; a mismatch is a configuration error. Listed directories
// are walked recursively when the compiler takes files, collecting every
// supported file and skipping ignored directory names.
func (c *Compiler) GenerateContexts(req GenerateRequest) ([]*Context, error) {
	if c.RequiresOutputDir && req.OutputDir == "" {
		return nil, Configf("%s requires an output directory", c.Name)
	}

	matched, root, err := c.expandInputs(req.Inputs)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, Configf("no supported inputs for %s", c.Name)
	}

	meta, err := c.effectiveMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	var units []*Context
	for _, group := range c.Input.Group(matched) {
		unit := &Context{
			InputItems: sortedCopy(group),
			InputRoot:  root,
			OutputDir:  req.OutputDir,
			Metadata:   meta.clone(),
			Force:      req.Force,
		}
		unit.SidecarPrefix = joinSidecarPrefix(req.SidecarPrefix, sidecarKey(unit.InputItems[0], root))
		if atomic, ok := c.Input.(AtomicInput); ok && atomic.DisplayName != "" {
			unit.SetDisplayName(atomic.DisplayName)
		}
		if err := c.Output.Resolve(unit); err != nil {
			return nil, err
		}
		if c.createContext != nil {
			if err := c.createContext(unit); err != nil {
				return nil, err
			}
		}
		units = append(units, unit)
	}
	return units, nil
}

// effectiveMetadata merges caller metadata over optional defaults and
// enforces required keys. Defaults apply only when the caller's value is
// absent, nil, or an empty string.
func (c *Compiler) effectiveMetadata(caller Metadata) (Metadata, error) {
	merged, err := CanonicalizeMetadata(caller)
	if err != nil {
		return nil, Configf("%s: %v", c.Name, err)
	}
	for k, def := range c.optionalMetadata {
		v, ok := merged[k]
		if !ok || v == nil || v == "" {
			canon, err := Canonicalize(def)
			if err != nil {
				return nil, Configf("%s: default for %q: %v", c.Name, k, err)
			}
			merged[k] = canon
		}
	}
	for _, k := range c.requiredMetadata {
		if v, ok := merged[k]; !ok || v == nil || v == "" {
			return nil, Configf("%s requires metadata %q", c.Name, k)
		}
	}
	return merged, nil
}

// sidecarKey derives a stable per-unit state file discriminator from the
// unit's first input, so sibling units sharing an output directory never
// clobber each other's state.
func sidecarKey(first, root string) string {
	rel := displayPath(first, root)
	var b strings.Builder
	for _, r := range rel {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func joinSidecarPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// expandInputs validates each listed input and expands directories into the
// supported files beneath them. It returns the sorted matches and the
// common root used for relative display and output names.
func (c *Compiler) expandInputs(inputs []string) ([]string, string, error) {
	seen := make(map[string]struct{})
	var matched []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		matched = append(matched, path)
	}

	var root string
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, "", Configf("resolving %s: %v", in, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, "", Configf("input %s: %v", in, err)
		}

		if info.IsDir() && c.InputType == InputFiles {
			if root == "" {
				root = abs
			}
			err := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if _, skip := c.ignoreDirs[d.Name()]; skip && path != abs {
						return filepath.SkipDir
					}
					return nil
				}
				if c.IsSupported(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, "", Configf("scanning %s: %v", in, err)
			}
			continue
		}

		// Explicitly listed inputs must match outright.
		if !c.IsSupported(abs) {
			return nil, "", Configf("%s is not a supported %s input (%s)", in, c.Name, c.InputType)
		}
		add(abs)
		if root == "" {
			root = filepath.Dir(abs)
		}
	}
	sort.Strings(matched)
	return matched, root, nil
}
