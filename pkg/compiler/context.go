package compiler

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Context is the unit of work handed to the invoker: the inputs of one
// invocation, where its outputs go, and its effective metadata.
type Context struct {
	// InputItems are the absolute input paths of this unit, sorted.
	InputItems []string

	// InputRoot is the common base the inputs were discovered under, used
	// to derive relative output names.
	InputRoot string

	// OutputDir is the directory outputs are written into. Empty when the
	// compiler produces no filesystem outputs.
	OutputDir string

	// OutputItems are the absolute output paths, resolved by the output
	// strategy before invocation.
	OutputItems []string

	// Metadata holds the unit's effective settings: caller-provided values
	// merged over the compiler's optional defaults. Underscore-prefixed
	// keys are transient.
	Metadata Metadata

	// Extra carries strategy- or invoker-specific values that are not part
	// of change detection and never persisted.
	Extra map[string]any

	// Force marks the unit for unconditional rebuild. Consumed once by
	// reason resolution and never persisted.
	Force bool

	// SidecarPrefix distinguishes sidecar files when several compilers
	// share an output directory.
	SidecarPrefix string
}

// DisplayName names the unit in progress output and logs.
func (c *Context) DisplayName() string {
	if n, ok := c.Metadata["_display_name"].(string); ok && n != "" {
		return n
	}
	if len(c.InputItems) == 0 {
		return "(no inputs)"
	}
	if len(c.InputItems) == 1 {
		return displayPath(c.InputItems[0], c.InputRoot)
	}
	return fmt.Sprintf("%s (+%d)", displayPath(c.InputItems[0], c.InputRoot), len(c.InputItems)-1)
}

// SetDisplayName overrides the name shown for this unit.
func (c *Context) SetDisplayName(name string) {
	if c.Metadata == nil {
		c.Metadata = Metadata{}
	}
	c.Metadata["_display_name"] = name
}

func displayPath(path, root string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}

// MetaString returns the string value of a metadata key, or def when absent
// or of another type.
func (c *Context) MetaString(key, def string) string {
	if v, ok := c.Metadata[key].(string); ok {
		return v
	}
	return def
}

// MetaBool returns the bool value of a metadata key, or def.
func (c *Context) MetaBool(key string, def bool) bool {
	if v, ok := c.Metadata[key].(bool); ok {
		return v
	}
	return def
}

func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
