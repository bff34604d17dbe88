// Package jsonverify provides the built-in JSON verifier: it checks that
// every input parses as JSON and, optionally, that required top-level keys
// are present. Verifiers produce no outputs and run on every invocation.
package jsonverify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"condgen/pkg/compiler"
)

// New assembles the JSON verifier compiler.
func New() (*compiler.Compiler, error) {
	return compiler.New(compiler.Spec{
		Name:              "jsonlint",
		Description:       "verifies that JSON documents parse and carry required keys",
		Verb:              "verify",
		InputType:         compiler.InputFiles,
		ExecuteInParallel: true,
		Input:             compiler.IndividualInput{},
		Query:             compiler.AlwaysInvoke{},
		Output:            compiler.NoOutput{},
		Invoker: compiler.FuncInvoker{
			Run: verify,
		},
		Supports: func(path string) bool {
			return filepath.Ext(path) == ".json"
		},
		CustomArgs: []compiler.ArgDef{
			{Name: "required_keys", Kind: compiler.ArgString, Default: "", Usage: "comma-separated top-level keys every document must carry"},
			{Name: "allow_empty", Kind: compiler.ArgBool, Default: false, Usage: "treat empty files as valid"},
		},
	})
}

func verify(ctx context.Context, unit *compiler.Context, logw io.Writer, report func(int)) (compiler.Result, error) {
	in := unit.InputItems[0]
	data, err := os.ReadFile(in)
	if err != nil {
		return compiler.Result{}, err
	}

	if len(data) == 0 {
		if unit.MetaBool("allow_empty", false) {
			fmt.Fprintf(logw, "%s: empty, allowed\n", filepath.Base(in))
			return compiler.Result{Code: 1, Short: "empty document"}, nil
		}
		return compiler.Result{Code: -1, Short: "empty document"}, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(logw, "%s: %v\n", filepath.Base(in), err)
		return compiler.Result{Code: -1, Short: fmt.Sprintf("invalid JSON: %v", err)}, nil
	}

	keys := requiredKeys(unit)
	if len(keys) > 0 {
		obj, ok := doc.(map[string]any)
		if !ok {
			return compiler.Result{Code: -1, Short: "document is not a JSON object"}, nil
		}
		for _, key := range keys {
			if _, present := obj[key]; !present {
				return compiler.Result{Code: -1, Short: fmt.Sprintf("missing required key %q", key)}, nil
			}
		}
	}

	fmt.Fprintf(logw, "%s: ok\n", filepath.Base(in))
	return compiler.Result{Short: "valid"}, nil
}

func requiredKeys(unit *compiler.Context) []string {
	raw := unit.MetaString("required_keys", "")
	if raw == "" {
		return nil
	}
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
