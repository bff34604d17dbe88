package compiler

import "fmt"

// InvokeReason explains why a unit is (or is not) being rebuilt. The zero
// value None means the unit is up to date.
type InvokeReason int

const (
	ReasonNone InvokeReason = iota
	ReasonForce
	ReasonPreviousContextMissing
	ReasonNewerGenerators
	ReasonMissingOutput
	ReasonDifferentOutput
	ReasonNewerInput
	ReasonDifferentInputs
	ReasonDifferentMetadata
	ReasonOptIn
	ReasonAlways
)

var reasonNames = map[InvokeReason]string{
	ReasonNone:                   "up to date",
	ReasonForce:                  "forced",
	ReasonPreviousContextMissing: "no previous context",
	ReasonNewerGenerators:        "newer generators",
	ReasonMissingOutput:          "missing output",
	ReasonDifferentOutput:        "different output",
	ReasonNewerInput:             "newer input",
	ReasonDifferentInputs:        "different inputs",
	ReasonDifferentMetadata:      "different metadata",
	ReasonOptIn:                  "opt-in",
	ReasonAlways:                 "always",
}

func (r InvokeReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("InvokeReason(%d)", int(r))
}

// ShouldInvoke reports whether the reason warrants running the invoker.
func (r InvokeReason) ShouldInvoke() bool {
	return r != ReasonNone
}

// Decision carries the resolved reason plus a human-readable detail string
// describing exactly what changed.
type Decision struct {
	Reason InvokeReason
	Detail string
}

func (d Decision) String() string {
	if d.Detail == "" {
		return d.Reason.String()
	}
	return fmt.Sprintf("%s (%s)", d.Reason, d.Detail)
}
