// Package batch runs a compiler's invocation units, in parallel when the
// compiler allows it, and aggregates the outcomes.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"condgen/pkg/compiler"
)

// Observer receives unit lifecycle events. Implementations must be safe for
// concurrent use.
type Observer interface {
	UnitStarted(index int, name string)
	UnitProgress(index int, name string, step int, status string)
	UnitFinished(index int, name string, res compiler.Result, dur time.Duration)
	UnitError(index int, name string, err error)
}

// Options controls a batch run.
type Options struct {
	// SingleThreaded forces sequential execution even for compilers that
	// allow parallelism.
	SingleThreaded bool

	// LogDir receives one numbered subdirectory per unit holding the
	// invoker's output.log. Empty discards invoker output.
	LogDir string

	// Observer receives progress events; nil disables reporting.
	Observer Observer
}

// UnitResult pairs a unit with its outcome.
type UnitResult struct {
	Index    int
	Unit     *compiler.Context
	Result   compiler.Result
	Err      error
	Duration time.Duration
	LogPath  string
}

// Summary aggregates a batch run.
type Summary struct {
	Units    []UnitResult
	Invoked  int
	Skipped  int
	Warnings int
	Failures int
	Elapsed  time.Duration
}

// ExitCode maps the summary onto the process exit code: 0 all clean, 1 any
// failure, 2 success with warnings.
func (s *Summary) ExitCode() int {
	if s.Failures > 0 {
		return 1
	}
	if s.Warnings > 0 {
		return 2
	}
	return 0
}

// Run executes every unit through the compiler. Units run concurrently up
// to GOMAXPROCS workers when the compiler allows parallel execution; a unit
// failure does not stop the others, but context cancellation does.
func Run(ctx context.Context, logger *log.Logger, c *compiler.Compiler, units []*compiler.Context, opts Options) (*Summary, error) {
	start := time.Now()
	results := make([]UnitResult, len(units))

	workers := 1
	if c.ExecuteInParallel && !opts.SingleThreaded {
		workers = min(len(units), runtime.GOMAXPROCS(0))
	}
	if logger != nil {
		logger.Debug("starting batch", "compiler", c.Name, "units", len(units), "workers", workers)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)

	for i, unit := range units {
		g.Go(func() error {
			res := runUnit(gctx, logger, c, i, unit, opts)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if res.Err == compiler.ErrCanceled {
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, compiler.ErrCanceled
	}

	sum := &Summary{Units: results, Elapsed: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Err != nil || r.Result.Failed():
			sum.Failures++
		case r.Result.Warned():
			sum.Warnings++
			sum.Invoked++
		case r.Result.Invoked:
			sum.Invoked++
		default:
			sum.Skipped++
		}
	}
	return sum, nil
}

func runUnit(ctx context.Context, logger *log.Logger, c *compiler.Compiler, index int, unit *compiler.Context, opts Options) UnitResult {
	name := unit.DisplayName()
	if opts.Observer != nil {
		opts.Observer.UnitStarted(index, name)
	}

	logw, logPath, closeLog, err := unitLog(opts.LogDir, index)
	if err != nil {
		if opts.Observer != nil {
			opts.Observer.UnitError(index, name, err)
		}
		return UnitResult{Index: index, Unit: unit, Err: err}
	}
	defer closeLog()

	var progress compiler.ProgressFunc
	if opts.Observer != nil {
		progress = func(step int, status string) bool {
			opts.Observer.UnitProgress(index, name, step, status)
			return true
		}
	}

	start := time.Now()
	res, err := c.Invoke(ctx, logger, unit, logw, progress)
	dur := time.Since(start)

	out := UnitResult{Index: index, Unit: unit, Result: res, Err: err, Duration: dur, LogPath: logPath}
	if opts.Observer != nil {
		if err != nil {
			opts.Observer.UnitError(index, name, err)
		} else {
			opts.Observer.UnitFinished(index, name, res, dur)
		}
	}
	return out
}

// unitLog opens the output.log for one unit under a numbered directory.
func unitLog(logDir string, index int) (io.Writer, string, func(), error) {
	if logDir == "" {
		return io.Discard, "", func() {}, nil
	}
	dir := filepath.Join(logDir, fmt.Sprintf("%06d", index+1))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("creating unit log dir: %w", err)
	}
	path := filepath.Join(dir, "output.log")
	f, err := os.Create(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("creating unit log: %w", err)
	}
	return f, path, func() { f.Close() }, nil
}
