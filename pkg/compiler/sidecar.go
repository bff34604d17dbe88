package compiler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sidecarBaseName is the fixed name of the per-directory state file. A
// prefix distinguishes compilers sharing an output directory.
const sidecarBaseName = "Compiler.ConditionalInvocationQueryMixin.data"

// sidecarVersion marks the payload encoding. Bump when the persisted
// structure changes incompatibly; older files are discarded as unreadable.
const sidecarVersion = "2"

// PersistedInfo is the state written after each successful invocation and
// compared against on the next run.
type PersistedInfo struct {
	Timestamp   time.Time `json:"timestamp"`
	InputItems  []string  `json:"input_items"`
	OutputItems []string  `json:"output_items"`
	Metadata    Metadata  `json:"metadata"`
}

// SidecarPath returns the state file path for an output directory.
func SidecarPath(outputDir, prefix string) string {
	name := sidecarBaseName
	if prefix != "" {
		name = prefix + "." + name
	}
	return filepath.Join(outputDir, name)
}

// Save writes the state file. The payload is a base64-encoded JSON blob
// under a short comment header, followed by the version marker.
func (p *PersistedInfo) Save(outputDir, prefix string) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Generated to trace context changes between runs.\n")
	b.WriteString("# ***** Please do not modify this file *****\n")
	b.WriteString(base64.StdEncoding.EncodeToString(raw))
	b.WriteString("\n")
	b.WriteString(sidecarVersion)
	b.WriteString("\n")

	path := SidecarPath(outputDir, prefix)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// LoadPersistedInfo reads the state file for an output directory. A missing
// file returns (nil, nil); a present but unreadable or mismatched file
// returns an error so the caller can discard it with a warning.
func LoadPersistedInfo(outputDir, prefix string) (*PersistedInfo, error) {
	data, err := os.ReadFile(SidecarPath(outputDir, prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var payload []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		payload = append(payload, line)
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("truncated state file")
	}
	version := payload[len(payload)-1]
	if version != sidecarVersion {
		return nil, fmt.Errorf("state file version %q, want %q", version, sidecarVersion)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.Join(payload[:len(payload)-1], ""))
	if err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	var info PersistedInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if info.Metadata == nil {
		info.Metadata = Metadata{}
	}
	return &info, nil
}

// RemoveSidecar deletes the state file if present.
func RemoveSidecar(outputDir, prefix string) error {
	err := os.Remove(SidecarPath(outputDir, prefix))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
