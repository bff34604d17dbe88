package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// Invoker performs the actual work of one unit.
type Invoker interface {
	// ExtraSteps names invoker-internal steps reported through the
	// progress callback between "executing" and "persisting".
	ExtraSteps() []string

	// Invoke runs the unit. logw receives the tool's combined output.
	// report is called with the invoker-local step index before each extra
	// step. A negative code means failure, zero success, positive a
	// warning.
	Invoke(ctx context.Context, unit *Context, logw io.Writer, report func(step int)) (Result, error)
}

// Result summarizes one unit's invocation.
type Result struct {
	// Code is zero on success, negative on failure, positive on warning.
	Code int

	// Short is a one-line outcome description for the summary table.
	Short string

	// Reason records why the unit was (or was not) invoked.
	Reason Decision

	// Invoked is false when the unit was up to date and skipped.
	Invoked bool
}

// Failed reports whether the invocation failed outright.
func (r Result) Failed() bool { return r.Code < 0 }

// Warned reports whether the invocation succeeded with warnings.
func (r Result) Warned() bool { return r.Code > 0 }

// FuncInvoker runs an in-process function, typically a built-in generator
// or verifier.
type FuncInvoker struct {
	// Steps names the function's internal phases for progress display.
	Steps []string

	Run func(ctx context.Context, unit *Context, logw io.Writer, report func(step int)) (Result, error)
}

func (f FuncInvoker) ExtraSteps() []string { return f.Steps }

func (f FuncInvoker) Invoke(ctx context.Context, unit *Context, logw io.Writer, report func(step int)) (Result, error) {
	return f.Run(ctx, unit, logw, report)
}

// CommandInvoker shells out to an external tool. The tool's exit code
// becomes the result code unchanged, so a nonzero exit surfaces as a
// warning under the framework's code convention; a signal-killed tool maps
// to the negated signal number, a failure.
type CommandInvoker struct {
	// BuildArgv produces the command line for a unit. The first element is
	// the executable.
	BuildArgv func(unit *Context) ([]string, error)

	// Dir is the working directory; empty inherits the process's.
	Dir string

	// Env appends to the inherited environment.
	Env []string
}

func (c CommandInvoker) ExtraSteps() []string { return nil }

func (c CommandInvoker) Invoke(ctx context.Context, unit *Context, logw io.Writer, report func(step int)) (Result, error) {
	argv, err := c.BuildArgv(unit)
	if err != nil {
		return Result{}, err
	}
	if len(argv) == 0 {
		return Result{}, Configf("empty command for %s", unit.DisplayName())
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Stdout = logw
	cmd.Stderr = logw

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
					return Result{
						Code:  -int(ws.Signal()),
						Short: fmt.Sprintf("%s killed by signal %d", argv[0], int(ws.Signal())),
					}, nil
				}
				return Result{Code: -1, Short: fmt.Sprintf("%s terminated abnormally", argv[0])}, nil
			}
			return Result{
				Code:  code,
				Short: fmt.Sprintf("%s exited with code %d", argv[0], code),
			}, nil
		}
		return Result{}, fmt.Errorf("running %s: %w", argv[0], err)
	}
	return Result{Code: 0, Short: "ok"}, nil
}
