package compiler

import "github.com/charmbracelet/log"

// InvocationQuery decides whether a unit needs to be invoked.
type InvocationQuery interface {
	// Resolve inspects the unit and any persisted state and returns the
	// decision. Resolve must not mutate filesystem state other than
	// reading.
	Resolve(logger *log.Logger, ctx *Context) Decision

	// Persist records the unit's current state after a successful
	// invocation so the next Resolve can detect changes. Queries with no
	// state return nil.
	Persist(ctx *Context) error

	// RequiresOutputDir reports whether the query stores state under the
	// unit's output directory.
	RequiresOutputDir() bool
}

// AlwaysInvoke rebuilds every unit on every run and keeps no state.
type AlwaysInvoke struct{}

func (AlwaysInvoke) Resolve(*log.Logger, *Context) Decision {
	return Decision{Reason: ReasonAlways}
}

func (AlwaysInvoke) Persist(*Context) error { return nil }

func (AlwaysInvoke) RequiresOutputDir() bool { return false }
