package compiler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// conditionalUnit builds a unit with one input and one existing output, plus
// a persisted state matching both.
func conditionalUnit(t *testing.T) (*ConditionalInvoke, *Context) {
	t.Helper()
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "src", "a.txt"), "hello")
	out := writeFile(t, filepath.Join(dir, "out", "a.gen"), "generated")

	unit := &Context{
		InputItems:  []string{in},
		OutputDir:   filepath.Join(dir, "out"),
		OutputItems: []string{out},
		Metadata:    Metadata{"lang": "go"},
	}
	q := &ConditionalInvoke{}
	if err := q.Persist(unit); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	return q, unit
}

func TestConditionalInvoke_FirstRun(t *testing.T) {
	dir := t.TempDir()
	unit := &Context{OutputDir: dir, Metadata: Metadata{}}
	d := (&ConditionalInvoke{}).Resolve(nil, unit)
	if d.Reason != ReasonPreviousContextMissing {
		t.Errorf("first run reason = %v, want %v", d.Reason, ReasonPreviousContextMissing)
	}
}

func TestConditionalInvoke_UpToDate(t *testing.T) {
	q, unit := conditionalUnit(t)
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonNone {
		t.Errorf("unchanged unit reason = %v (%s), want up to date", d.Reason, d.Detail)
	}
}

func TestConditionalInvoke_Force(t *testing.T) {
	q, unit := conditionalUnit(t)
	unit.Force = true
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonForce {
		t.Errorf("forced unit reason = %v, want %v", d.Reason, ReasonForce)
	}
	if unit.Force {
		t.Error("force flag should be consumed by resolution")
	}
	// A second resolve with the flag consumed sees no changes.
	if d := q.Resolve(nil, unit); d.Reason != ReasonNone {
		t.Errorf("reason after force consumed = %v, want up to date", d.Reason)
	}
}

func TestConditionalInvoke_MissingOutput(t *testing.T) {
	q, unit := conditionalUnit(t)
	if err := os.Remove(unit.OutputItems[0]); err != nil {
		t.Fatal(err)
	}
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonMissingOutput {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonMissingOutput)
	}
}

func TestConditionalInvoke_NewerInput(t *testing.T) {
	q, unit := conditionalUnit(t)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(unit.InputItems[0], future, future); err != nil {
		t.Fatal(err)
	}
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonNewerInput {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonNewerInput)
	}
}

func TestConditionalInvoke_NewerFileInsideDirectoryInput(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	inner := writeFile(t, filepath.Join(srcDir, "schema.sql"), "v1")
	out := writeFile(t, filepath.Join(dir, "out", "db.gen"), "generated")

	unit := &Context{
		InputItems:  []string{srcDir},
		OutputDir:   filepath.Join(dir, "out"),
		OutputItems: []string{out},
		Metadata:    Metadata{},
	}
	q := &ConditionalInvoke{}
	if err := q.Persist(unit); err != nil {
		t.Fatal(err)
	}

	// Editing a contained file does not bump the directory's own mtime.
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(inner, future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(srcDir, past, past); err != nil {
		t.Fatal(err)
	}

	d := q.Resolve(nil, unit)
	if d.Reason != ReasonNewerInput {
		t.Errorf("reason = %v (%s), want %v", d.Reason, d.Detail, ReasonNewerInput)
	}
}

func TestConditionalInvoke_DifferentInputs(t *testing.T) {
	q, unit := conditionalUnit(t)
	extra := writeFile(t, filepath.Join(filepath.Dir(unit.InputItems[0]), "b.txt"), "more")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(extra, past, past); err != nil {
		t.Fatal(err)
	}
	unit.InputItems = sortedCopy(append(unit.InputItems, extra))
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonDifferentInputs {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonDifferentInputs)
	}
}

func TestConditionalInvoke_DifferentOutput(t *testing.T) {
	q, unit := conditionalUnit(t)
	extra := writeFile(t, filepath.Join(unit.OutputDir, "b.gen"), "more")
	unit.OutputItems = sortedCopy(append(unit.OutputItems, extra))
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonDifferentOutput {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonDifferentOutput)
	}
}

func TestConditionalInvoke_DifferentMetadata(t *testing.T) {
	q, unit := conditionalUnit(t)
	unit.Metadata["lang"] = "rust"
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonDifferentMetadata {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonDifferentMetadata)
	}
}

func TestConditionalInvoke_TransientMetadataIgnored(t *testing.T) {
	q, unit := conditionalUnit(t)
	unit.Metadata["_scratch"] = "anything"
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonNone {
		t.Errorf("transient key triggered rebuild: %v (%s)", d.Reason, d.Detail)
	}
}

func TestConditionalInvoke_NewerGenerators(t *testing.T) {
	q, unit := conditionalUnit(t)
	gen := writeFile(t, filepath.Join(t.TempDir(), "generator.go"), "package main")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(gen, future, future); err != nil {
		t.Fatal(err)
	}
	q.Generators = []string{gen}
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonNewerGenerators {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonNewerGenerators)
	}
}

func TestConditionalInvoke_OptIn(t *testing.T) {
	q, unit := conditionalUnit(t)
	q.ShouldGenerate = func(*Context) string { return "downstream schema changed" }
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonOptIn {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonOptIn)
	}
	if d.Detail != "downstream schema changed" {
		t.Errorf("detail = %q", d.Detail)
	}
}

// Missing output outranks a newer input when both changed.
func TestConditionalInvoke_Priority(t *testing.T) {
	q, unit := conditionalUnit(t)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(unit.InputItems[0], future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(unit.OutputItems[0]); err != nil {
		t.Fatal(err)
	}
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonMissingOutput {
		t.Errorf("reason = %v, want missing output to win", d.Reason)
	}
}

func TestConditionalInvoke_CorruptedStateIsMissing(t *testing.T) {
	q, unit := conditionalUnit(t)
	if err := os.WriteFile(SidecarPath(unit.OutputDir, ""), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonPreviousContextMissing {
		t.Errorf("corrupted state reason = %v, want %v", d.Reason, ReasonPreviousContextMissing)
	}
}

func TestConditionalInvoke_CustomCompare(t *testing.T) {
	q, unit := conditionalUnit(t)
	q.Compare = func(prev, cur Metadata) string { return "tool version bumped" }
	d := q.Resolve(nil, unit)
	if d.Reason != ReasonDifferentMetadata {
		t.Errorf("reason = %v, want %v", d.Reason, ReasonDifferentMetadata)
	}
	if d.Detail != "tool version bumped" {
		t.Errorf("detail = %q", d.Detail)
	}
}
