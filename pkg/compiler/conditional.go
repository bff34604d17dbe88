package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// ConditionalInvoke rebuilds a unit only when something changed since the
// last successful invocation, tracked through a sidecar file in the unit's
// output directory.
//
// Checks run in priority order: force, missing previous context, newer
// generator sources, missing or different outputs, newer or different
// inputs, different metadata, then the opt-in hook. The first hit wins.
type ConditionalInvoke struct {
	// Generators are source files of the compiler itself. When any of them
	// is newer than the persisted state, everything rebuilds.
	Generators []string

	// ShouldGenerate is the opt-in hook, consulted only after every other
	// check passes. Returning a non-empty string triggers a rebuild with
	// that detail.
	ShouldGenerate func(ctx *Context) string

	// Compare overrides metadata comparison; it returns a difference
	// description, or empty when equal. nil uses structural comparison
	// over non-transient keys.
	Compare func(prev, cur Metadata) string
}

func (q *ConditionalInvoke) RequiresOutputDir() bool { return true }

func (q *ConditionalInvoke) Resolve(logger *log.Logger, ctx *Context) Decision {
	if ctx.Force {
		ctx.Force = false
		return Decision{Reason: ReasonForce, Detail: "rebuild requested"}
	}

	prev, err := LoadPersistedInfo(ctx.OutputDir, ctx.SidecarPrefix)
	if err != nil {
		if logger != nil {
			logger.Warn("discarding unreadable state file", "dir", ctx.OutputDir, "err", err)
		}
		return Decision{Reason: ReasonPreviousContextMissing, Detail: "previous state unreadable"}
	}
	if prev == nil {
		return Decision{Reason: ReasonPreviousContextMissing, Detail: "first run for this output directory"}
	}

	if detail := newerThan(q.Generators, prev.Timestamp); detail != "" {
		return Decision{Reason: ReasonNewerGenerators, Detail: detail}
	}

	for _, out := range ctx.OutputItems {
		if _, err := os.Stat(out); err != nil {
			return Decision{Reason: ReasonMissingOutput, Detail: filepath.Base(out)}
		}
	}

	if detail := diffItems(prev.OutputItems, ctx.OutputItems); detail != "" {
		return Decision{Reason: ReasonDifferentOutput, Detail: detail}
	}

	if detail := newerThan(ctx.InputItems, prev.Timestamp); detail != "" {
		return Decision{Reason: ReasonNewerInput, Detail: detail}
	}

	if detail := diffItems(prev.InputItems, ctx.InputItems); detail != "" {
		return Decision{Reason: ReasonDifferentInputs, Detail: detail}
	}

	compare := q.Compare
	if compare == nil {
		compare = diffMetadata
	}
	if detail := compare(prev.Metadata, ctx.Metadata); detail != "" {
		return Decision{Reason: ReasonDifferentMetadata, Detail: detail}
	}

	if q.ShouldGenerate != nil {
		if detail := q.ShouldGenerate(ctx); detail != "" {
			return Decision{Reason: ReasonOptIn, Detail: detail}
		}
	}

	return Decision{Reason: ReasonNone}
}

// Persist writes the unit's current state to the sidecar file.
func (q *ConditionalInvoke) Persist(ctx *Context) error {
	meta, err := CanonicalizeMetadata(persistable(ctx.Metadata))
	if err != nil {
		return err
	}
	info := &PersistedInfo{
		Timestamp:   time.Now(),
		InputItems:  sortedCopy(ctx.InputItems),
		OutputItems: sortedCopy(ctx.OutputItems),
		Metadata:    meta,
	}
	return info.Save(ctx.OutputDir, ctx.SidecarPrefix)
}

// newerThan reports the first path modified after t, or empty. Paths that
// cannot be stat'ed count as changed. Directories are expanded one level,
// since editing a file inside a directory does not bump the directory's own
// mtime.
func newerThan(paths []string, t time.Time) string {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Sprintf("%s is unreadable", filepath.Base(p))
		}
		if info.ModTime().After(t) {
			return fmt.Sprintf("%s modified at %s", filepath.Base(p), info.ModTime().Format(time.RFC3339))
		}
		if !info.IsDir() {
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return fmt.Sprintf("%s is unreadable", filepath.Base(p))
		}
		for _, e := range entries {
			ei, err := e.Info()
			if err != nil {
				continue
			}
			if ei.ModTime().After(t) {
				name := filepath.Join(filepath.Base(p), e.Name())
				return fmt.Sprintf("%s modified at %s", name, ei.ModTime().Format(time.RFC3339))
			}
		}
	}
	return ""
}

// diffItems reports the first difference between two sorted path lists.
func diffItems(prev, cur []string) string {
	prevSet := make(map[string]struct{}, len(prev))
	for _, p := range prev {
		prevSet[p] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(cur))
	for _, p := range cur {
		curSet[p] = struct{}{}
		if _, ok := prevSet[p]; !ok {
			return fmt.Sprintf("added %s", filepath.Base(p))
		}
	}
	for _, p := range prev {
		if _, ok := curSet[p]; !ok {
			return fmt.Sprintf("removed %s", filepath.Base(p))
		}
	}
	return ""
}
