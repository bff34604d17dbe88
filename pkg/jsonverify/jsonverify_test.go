package jsonverify

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"condgen/pkg/compiler"
)

func verifyFile(t *testing.T, content string, meta compiler.Metadata) compiler.Result {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	units, err := c.GenerateContexts(compiler.GenerateRequest{
		Inputs:   []string{path},
		Metadata: meta,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Invoke(context.Background(), nil, units[0], io.Discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestVerify_Valid(t *testing.T) {
	res := verifyFile(t, `{"name": "x", "count": 3}`, nil)
	if res.Failed() {
		t.Errorf("valid document failed: %s", res.Short)
	}
	if res.Reason.Reason != compiler.ReasonAlways {
		t.Errorf("verifier reason = %v, want always", res.Reason.Reason)
	}
}

func TestVerify_Invalid(t *testing.T) {
	res := verifyFile(t, `{"name":`, nil)
	if !res.Failed() {
		t.Error("invalid document passed")
	}
	if !strings.Contains(res.Short, "invalid JSON") {
		t.Errorf("short = %q", res.Short)
	}
}

func TestVerify_Empty(t *testing.T) {
	res := verifyFile(t, "", nil)
	if !res.Failed() {
		t.Error("empty document should fail by default")
	}

	res = verifyFile(t, "", compiler.Metadata{"allow_empty": true})
	if res.Failed() {
		t.Error("allow_empty should accept empty documents")
	}
	if !res.Warned() {
		t.Error("empty-but-allowed should warn")
	}
}

func TestVerify_RequiredKeys(t *testing.T) {
	meta := compiler.Metadata{"required_keys": "name, version"}

	res := verifyFile(t, `{"name": "x", "version": "1.0"}`, meta)
	if res.Failed() {
		t.Errorf("document with required keys failed: %s", res.Short)
	}

	res = verifyFile(t, `{"name": "x"}`, meta)
	if !res.Failed() {
		t.Error("missing required key passed")
	}
	if !strings.Contains(res.Short, "version") {
		t.Errorf("short = %q", res.Short)
	}

	res = verifyFile(t, `[1, 2, 3]`, meta)
	if !res.Failed() {
		t.Error("non-object with required keys passed")
	}
}

func TestRequiredKeys_Parsing(t *testing.T) {
	unit := &compiler.Context{Metadata: compiler.Metadata{"required_keys": " a ,b,, c"}}
	keys := requiredKeys(unit)
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("requiredKeys = %v", keys)
	}
	if got := requiredKeys(&compiler.Context{Metadata: compiler.Metadata{}}); got != nil {
		t.Errorf("empty metadata yielded %v", got)
	}
}
