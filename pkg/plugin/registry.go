// Package plugin maintains the set of available compilers: built-ins
// registered at startup and external tools described by JSON manifests.
package plugin

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"condgen/pkg/compiler"
)

// validNamePattern matches alphanumeric, hyphens, underscores only
var validNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// validateName checks if a compiler name is safe to use in file paths
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid compiler name: empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("invalid compiler name: too long (max 100 chars)")
	}
	if !validNamePattern.MatchString(name) {
		return fmt.Errorf("invalid compiler name: must contain only alphanumeric, hyphens, underscores")
	}
	return nil
}

// Registry holds registered compilers by name. First registration wins;
// duplicates are logged and dropped.
type Registry struct {
	mu        sync.RWMutex
	compilers map[string]*compiler.Compiler
	logger    *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		compilers: make(map[string]*compiler.Compiler),
		logger:    logger,
	}
}

// Register adds a compiler. A duplicate name keeps the first registration
// and logs a warning.
func (r *Registry) Register(c *compiler.Compiler) error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.compilers[c.Name]; exists {
		if r.logger != nil {
			r.logger.Warn("duplicate compiler registration ignored", "name", c.Name)
		}
		return nil
	}
	r.compilers[c.Name] = c
	return nil
}

// Get returns the compiler by name, or nil.
func (r *Registry) Get(name string) *compiler.Compiler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compilers[name]
}

// Names returns the registered compiler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.compilers))
	for name := range r.compilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered compiler in name order.
func (r *Registry) All() []*compiler.Compiler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.compilers))
	for name := range r.compilers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*compiler.Compiler, len(names))
	for i, name := range names {
		out[i] = r.compilers[name]
	}
	return out
}
