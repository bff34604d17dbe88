package tmplgen

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"condgen/pkg/compiler"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runOne(t *testing.T, meta compiler.Metadata, srcDir, outDir string) compiler.Result {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	units, err := c.GenerateContexts(compiler.GenerateRequest{
		Inputs:    []string{srcDir},
		OutputDir: outDir,
		Metadata:  meta,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	res, err := c.Invoke(context.Background(), nil, units[0], io.Discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "src", "service.go.tmpl"),
		"package {{.package}}\n\n// {{upper .service}} client\n")

	res := runOne(t, compiler.Metadata{"service": "billing"}, filepath.Join(dir, "src"), filepath.Join(dir, "out"))
	if res.Failed() {
		t.Fatalf("render failed: %s", res.Short)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "service.go"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "package generated") {
		t.Errorf("default package metadata not applied: %q", got)
	}
	if !strings.Contains(got, "BILLING client") {
		t.Errorf("upper helper not applied: %q", got)
	}
}

func TestRender_ParseError(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "src", "bad.go.tmpl"), "{{.unclosed")

	res := runOne(t, nil, filepath.Join(dir, "src"), filepath.Join(dir, "out"))
	if !res.Failed() {
		t.Fatal("parse error should fail the unit")
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "bad.go")); !os.IsNotExist(err) {
		t.Error("output written despite parse error")
	}
}

func TestRender_StrictMissingKey(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "src", "a.txt.tmpl"), "value: {{.absent}}\n")

	res := runOne(t, compiler.Metadata{"strict": true}, filepath.Join(dir, "src"), filepath.Join(dir, "out"))
	if !res.Failed() {
		t.Error("strict mode should fail on missing key")
	}

	res = runOne(t, nil, filepath.Join(dir, "src"), filepath.Join(dir, "out2"))
	if res.Failed() {
		t.Errorf("non-strict mode failed: %s", res.Short)
	}
}

func TestRender_SkipsWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "src", "a.txt.tmpl"), "hello\n")
	src, out := filepath.Join(dir, "src"), filepath.Join(dir, "out")

	res := runOne(t, nil, src, out)
	if !res.Invoked {
		t.Fatal("first run should render")
	}
	res = runOne(t, nil, src, out)
	if res.Invoked {
		t.Errorf("unchanged template re-rendered: %v", res.Reason)
	}
}

func TestSnakeHelper(t *testing.T) {
	cases := map[string]string{
		"MyService":  "my_service",
		"HTTPServer": "h_t_t_p_server",
		"plain":      "plain",
	}
	for in, want := range cases {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputNames(t *testing.T) {
	got := outputNames("sub/service.go.tmpl")
	if len(got) != 1 || got[0] != "sub/service.go" {
		t.Errorf("outputNames = %v", got)
	}
}
