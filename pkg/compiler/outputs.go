package compiler

import (
	"os"
	"path/filepath"
	"strings"
)

// OutputStrategy resolves the output items of a unit before invocation.
type OutputStrategy interface {
	// Resolve fills ctx.OutputItems and creates their parent directories,
	// so invokers can write without their own mkdir. OutputDir and
	// InputItems are already set when it runs.
	Resolve(ctx *Context) error
}

// NoOutput is for verifiers and other compilers that write nothing.
type NoOutput struct{}

func (NoOutput) Resolve(ctx *Context) error {
	ctx.OutputItems = nil
	return nil
}

// AtomicOutput produces a single output file per unit. The filename comes
// from the unit's "output_filename" metadata, or from Filename.
type AtomicOutput struct {
	Filename string
}

func (s AtomicOutput) Resolve(ctx *Context) error {
	name := ctx.MetaString("output_filename", s.Filename)
	if name == "" {
		return Configf("no output filename for %s: set output_filename metadata", ctx.DisplayName())
	}
	if ctx.OutputDir == "" {
		return Configf("output directory required for %s", ctx.DisplayName())
	}
	if err := os.MkdirAll(ctx.OutputDir, 0o755); err != nil {
		return err
	}
	ctx.OutputItems = []string{filepath.Join(ctx.OutputDir, name)}
	return nil
}

// MultipleOutput derives one or more outputs per input item. NameFunc maps
// an input's root-relative path to its output names; nil applies Suffix
// replacement to the input's extension.
type MultipleOutput struct {
	// Suffix replaces the input extension when NameFunc is nil, e.g.
	// ".gen.go".
	Suffix string

	NameFunc func(relInput string) []string
}

func (s MultipleOutput) Resolve(ctx *Context) error {
	if ctx.OutputDir == "" {
		return Configf("output directory required for %s", ctx.DisplayName())
	}
	var outs []string
	for _, in := range ctx.InputItems {
		rel := in
		if ctx.InputRoot != "" {
			if r, err := filepath.Rel(ctx.InputRoot, in); err == nil && !strings.HasPrefix(r, "..") {
				rel = r
			} else {
				rel = filepath.Base(in)
			}
		} else {
			rel = filepath.Base(in)
		}
		if s.NameFunc != nil {
			for _, name := range s.NameFunc(rel) {
				outs = append(outs, filepath.Join(ctx.OutputDir, name))
			}
			continue
		}
		ext := filepath.Ext(rel)
		outs = append(outs, filepath.Join(ctx.OutputDir, strings.TrimSuffix(rel, ext)+s.Suffix))
	}
	for _, out := range outs {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
	}
	ctx.OutputItems = sortedCopy(outs)
	return nil
}
