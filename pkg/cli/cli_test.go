package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"condgen/pkg/compiler"
	"condgen/pkg/plugin"
	"condgen/pkg/settings"
)

func testApp(t *testing.T, compilers ...*compiler.Compiler) *App {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	logger := log.NewWithOptions(io.Discard, log.Options{})
	registry := plugin.NewRegistry(logger)
	for _, c := range compilers {
		if err := registry.Register(c); err != nil {
			t.Fatal(err)
		}
	}
	return &App{
		Registry: registry,
		Settings: &settings.Settings{},
		Logger:   logger,
	}
}

func copyCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	c, err := compiler.New(compiler.Spec{
		Name:              "copy",
		Description:       "copies text files",
		Verb:              "generate",
		InputType:         compiler.InputFiles,
		ExecuteInParallel: true,
		Input:             compiler.IndividualInput{},
		Query:             &compiler.ConditionalInvoke{},
		Output:            compiler.MultipleOutput{Suffix: ".out"},
		Invoker: compiler.FuncInvoker{
			Run: func(ctx context.Context, unit *compiler.Context, logw io.Writer, report func(int)) (compiler.Result, error) {
				data, err := os.ReadFile(unit.InputItems[0])
				if err != nil {
					return compiler.Result{}, err
				}
				if err := os.WriteFile(unit.OutputItems[0], data, 0o644); err != nil {
					return compiler.Result{}, err
				}
				return compiler.Result{}, nil
			},
		},
		Supports: func(path string) bool { return filepath.Ext(path) == ".txt" },
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestParseVars(t *testing.T) {
	meta, err := parseVars([]string{"name=svc", "count=3", "strict=true", "ratio=1.5"})
	if err != nil {
		t.Fatal(err)
	}
	if meta["name"] != "svc" {
		t.Errorf("name = %v", meta["name"])
	}
	if meta["count"] != float64(3) {
		t.Errorf("count = %v (%T)", meta["count"], meta["count"])
	}
	if meta["strict"] != true {
		t.Errorf("strict = %v", meta["strict"])
	}
	if meta["ratio"] != 1.5 {
		t.Errorf("ratio = %v", meta["ratio"])
	}
}

func TestParseVars_Invalid(t *testing.T) {
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Errorf("parseVars(%q) accepted", bad)
		}
	}
}

func TestParseVars_ValueWithEquals(t *testing.T) {
	meta, err := parseVars([]string{"flags=-x=1"})
	if err != nil {
		t.Fatal(err)
	}
	if meta["flags"] != "-x=1" {
		t.Errorf("flags = %v", meta["flags"])
	}
}

func TestExecute_Invoke(t *testing.T) {
	app := testApp(t, copyCompiler(t))
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	code := app.Execute(context.Background(), []string{"copy", "generate", "-o", out, "--quiet", src})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(filepath.Join(out, "a.out"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("output = %q", data)
	}
}

func TestExecute_CleanRemovesOutputs(t *testing.T) {
	app := testApp(t, copyCompiler(t))
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	out := filepath.Join(dir, "out")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644)

	if code := app.Execute(context.Background(), []string{"copy", "generate", "-o", out, "--quiet", src}); code != 0 {
		t.Fatalf("generate exit code = %d", code)
	}
	if code := app.Execute(context.Background(), []string{"copy", "clean", "-o", out, "--quiet", src}); code != 0 {
		t.Fatalf("clean exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(out, "a.out")); !os.IsNotExist(err) {
		t.Error("output survived clean")
	}
	leftover, err := filepath.Glob(filepath.Join(out, "*.data"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftover) != 0 {
		t.Errorf("state files survived clean: %v", leftover)
	}
}

func TestExecute_List(t *testing.T) {
	app := testApp(t, copyCompiler(t))
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	out := filepath.Join(dir, "out")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644)

	root := app.buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"copy", "list", "-o", out, src})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	output := buf.String()
	if !strings.Contains(output, "a.txt") {
		t.Errorf("list output missing unit name: %q", output)
	}
	if !strings.Contains(output, "no previous context") {
		t.Errorf("list output missing decision: %q", output)
	}
	// Listing must not create outputs.
	if _, err := os.Stat(filepath.Join(out, "a.out")); !os.IsNotExist(err) {
		t.Error("list produced outputs")
	}
}

func TestExecute_FailureExitCode(t *testing.T) {
	c, err := compiler.New(compiler.Spec{
		Name:      "refuse",
		Verb:      "verify",
		InputType: compiler.InputFiles,
		Input:     compiler.IndividualInput{},
		Query:     compiler.AlwaysInvoke{},
		Output:    compiler.NoOutput{},
		Invoker: compiler.FuncInvoker{
			Run: func(context.Context, *compiler.Context, io.Writer, func(int)) (compiler.Result, error) {
				return compiler.Result{Code: -1, Short: "nope"}, nil
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	app := testApp(t, c)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644)

	code := app.Execute(context.Background(), []string{"refuse", "verify", "--quiet", filepath.Join(dir, "a.txt")})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestExecute_NoCleanForOutputlessCompiler(t *testing.T) {
	c, err := compiler.New(compiler.Spec{
		Name:      "lint",
		Verb:      "verify",
		InputType: compiler.InputFiles,
		Input:     compiler.IndividualInput{},
		Query:     compiler.AlwaysInvoke{},
		Output:    compiler.NoOutput{},
		Invoker: compiler.FuncInvoker{
			Run: func(context.Context, *compiler.Context, io.Writer, func(int)) (compiler.Result, error) {
				return compiler.Result{}, nil
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	app := testApp(t, c, copyCompiler(t))
	root := app.buildRoot()

	if cmd, _, _ := root.Find([]string{"lint", "clean"}); cmd != nil && cmd.Name() == "clean" {
		t.Error("clean registered for a compiler without outputs")
	}
	if cmd, _, _ := root.Find([]string{"copy", "clean"}); cmd == nil || cmd.Name() != "clean" {
		t.Error("clean missing for a compiler with outputs")
	}
}

func TestExecute_SetupRequiresTerminal(t *testing.T) {
	app := testApp(t, copyCompiler(t))
	if code := app.Execute(context.Background(), []string{"setup"}); code != 1 {
		t.Errorf("exit code = %d, want 1 when stdin is not a terminal", code)
	}
	if _, err := os.Stat(settings.GetConfigPath()); !os.IsNotExist(err) {
		t.Error("setup wrote a settings file without terminal input")
	}
}

func TestExecute_MissingInputIsConfigError(t *testing.T) {
	app := testApp(t, copyCompiler(t))
	code := app.Execute(context.Background(), []string{"copy", "generate", "-o", t.TempDir(), "--quiet", "/no/such/input"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestExecute_CustomFlagBecomesMetadata(t *testing.T) {
	var seen compiler.Metadata
	c, err := compiler.New(compiler.Spec{
		Name:      "inspect",
		Verb:      "verify",
		InputType: compiler.InputFiles,
		Input:     compiler.IndividualInput{},
		Query:     compiler.AlwaysInvoke{},
		Output:    compiler.NoOutput{},
		Invoker: compiler.FuncInvoker{
			Run: func(ctx context.Context, unit *compiler.Context, logw io.Writer, report func(int)) (compiler.Result, error) {
				seen = unit.Metadata
				return compiler.Result{}, nil
			},
		},
		CustomArgs: []compiler.ArgDef{
			{Name: "level", Kind: compiler.ArgInt, Default: 1, Usage: "check level"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	app := testApp(t, c)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644)

	code := app.Execute(context.Background(), []string{"inspect", "verify", "--quiet", "--level", "3", filepath.Join(dir, "a.txt")})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if seen["level"] != float64(3) {
		t.Errorf("level metadata = %v (%T)", seen["level"], seen["level"])
	}
}
