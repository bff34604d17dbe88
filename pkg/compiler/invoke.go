package compiler

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Framework step names reported to the progress callback for every unit.
// Invoker-declared steps slot in before the final persist step.
var frameworkSteps = []string{
	"Detecting changes",
	"Extracting input items",
	"Executing",
	"Persisting state",
}

// ProgressFunc observes invocation progress. step counts from zero across
// NumSteps; status describes the step. Returning false requests
// cancellation, honored at the next step boundary.
type ProgressFunc func(step int, status string) bool

// NumSteps is the total number of progress steps for one unit under this
// compiler, framework steps plus the invoker's.
func (c *Compiler) NumSteps() int {
	return len(frameworkSteps) + len(c.Invoker.ExtraSteps())
}

// ErrCanceled is returned when the progress callback or the context
// canceled an invocation between steps.
var ErrCanceled = fmt.Errorf("invocation canceled")

// Invoke runs one unit through the pipeline: resolve the invoke reason,
// run the invoker if needed, and persist the unit's state on success.
//
// logw receives the invoker's combined output. A unit that is up to date
// returns a Result with Invoked false and no error. Persist failures
// degrade to a warning in the result rather than an error, since the work
// itself succeeded.
func (c *Compiler) Invoke(ctx context.Context, logger *log.Logger, unit *Context, logw io.Writer, progress ProgressFunc) (res Result, err error) {
	step := 0
	advance := func(status string) error {
		if ctx.Err() != nil {
			return ErrCanceled
		}
		if progress != nil && !progress(step, status) {
			return ErrCanceled
		}
		step++
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic in %q: %v", c.Name, frameworkSteps[min(step, len(frameworkSteps)-1)], r)
		}
	}()

	if err := advance(frameworkSteps[0]); err != nil {
		return Result{}, err
	}
	decision := c.Query.Resolve(logger, unit)
	if logger != nil {
		logger.Debug("resolved invoke reason", "compiler", c.Name, "unit", unit.DisplayName(), "decision", decision.String())
	}
	if !decision.Reason.ShouldInvoke() {
		return Result{Code: 0, Short: "up to date", Reason: decision, Invoked: false}, nil
	}

	if err := advance(frameworkSteps[1]); err != nil {
		return Result{}, err
	}
	for _, in := range unit.InputItems {
		if !c.InputType.Matches(in) {
			return Result{}, Configf("%s: input %s disappeared or changed type", c.Name, in)
		}
	}

	if err := advance(frameworkSteps[2]); err != nil {
		return Result{}, err
	}
	invokerBase := step
	res, err = c.Invoker.Invoke(ctx, unit, logw, func(extraStep int) {
		if progress != nil {
			extras := c.Invoker.ExtraSteps()
			if extraStep >= 0 && extraStep < len(extras) {
				progress(invokerBase+extraStep, extras[extraStep])
			}
		}
	})
	if err != nil {
		return Result{}, err
	}
	step = invokerBase + len(c.Invoker.ExtraSteps())
	res.Reason = decision
	res.Invoked = true
	if res.Short == "" {
		res.Short = "ok"
	}

	if err := advance(frameworkSteps[3]); err != nil {
		return Result{}, err
	}
	if res.Code >= 0 {
		if perr := c.Query.Persist(unit); perr != nil {
			if logger != nil {
				logger.Warn("failed to persist state", "compiler", c.Name, "unit", unit.DisplayName(), "err", perr)
			}
			if res.Code == 0 {
				res.Code = 1
				res.Short = fmt.Sprintf("succeeded, but state not persisted: %v", perr)
			}
		}
	}
	return res, nil
}

// Clean removes a unit's outputs and state file.
func (c *Compiler) Clean(logger *log.Logger, unit *Context) error {
	inputs := make(map[string]bool, len(unit.InputItems))
	for _, in := range unit.InputItems {
		inputs[in] = true
	}
	for _, out := range unit.OutputItems {
		// In-place tools declare an input as its own output; leave those.
		if inputs[out] {
			continue
		}
		if err := removeIfExists(out); err != nil {
			return err
		}
		if logger != nil {
			logger.Debug("removed output", "compiler", c.Name, "path", out)
		}
	}
	if c.Query.RequiresOutputDir() && unit.OutputDir != "" {
		return RemoveSidecar(unit.OutputDir, unit.SidecarPrefix)
	}
	return nil
}
