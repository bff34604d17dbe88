// Package workspace manages per-run working directories under the user's
// condgen home: unit logs while a run executes, and a run record written
// when it finishes.
package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Workspace struct {
	BaseDir string
	RunID   string
	RunDir  string
}

// GenerateRunID creates YYYYMMDD-HHMMSS-{4 hex bytes}
func GenerateRunID() string {
	now := time.Now()
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback: use nanoseconds if crypto/rand fails
		return fmt.Sprintf("%s-%08x", now.Format("20060102-150405"), now.UnixNano()&0xFFFFFFFF)
	}
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), hex.EncodeToString(b))
}

// DefaultBaseDir returns ~/.condgen/runs.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".condgen", "runs"), nil
}

func New(baseDir string) (*Workspace, error) {
	runID := GenerateRunID()
	runDir := filepath.Join(baseDir, runID)

	if err := os.MkdirAll(filepath.Join(runDir, "logs"), 0755); err != nil {
		return nil, err
	}

	return &Workspace{BaseDir: baseDir, RunID: runID, RunDir: runDir}, nil
}

// LogsDir is where per-unit invoker output lands.
func (w *Workspace) LogsDir() string {
	return filepath.Join(w.RunDir, "logs")
}

// RecordPath is where the run record is written.
func (w *Workspace) RecordPath() string {
	return filepath.Join(w.RunDir, "record.json")
}

// WriteRecord writes the run record as indented JSON.
func (w *Workspace) WriteRecord(rec *RunRecord) (string, error) {
	path := w.RecordPath()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", err
	}
	return path, nil
}
