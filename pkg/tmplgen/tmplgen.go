// Package tmplgen provides the built-in template code generator: it renders
// Go text/template files into the output directory, with the unit's
// metadata as template data.
package tmplgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"condgen/pkg/compiler"
)

const templateExt = ".tmpl"

// funcs are the helpers available inside templates.
var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"snake": toSnake,
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// New assembles the template generator compiler.
func New() (*compiler.Compiler, error) {
	return compiler.New(compiler.Spec{
		Name:              "tmpl",
		Description:       "renders text/template files into generated sources",
		Verb:              "generate",
		InputType:         compiler.InputFiles,
		ExecuteInParallel: true,
		Input:             compiler.IndividualInput{},
		Query:             &compiler.ConditionalInvoke{},
		Output:            compiler.MultipleOutput{NameFunc: outputNames},
		Invoker: compiler.FuncInvoker{
			Steps: []string{"Parsing template", "Rendering"},
			Run:   render,
		},
		Supports: func(path string) bool {
			return filepath.Ext(path) == templateExt
		},
		CustomArgs: []compiler.ArgDef{
			{Name: "strict", Kind: compiler.ArgBool, Default: false, Usage: "fail on references to missing metadata keys"},
		},
		OptionalMetadata: compiler.Metadata{"package": "generated"},
	})
}

// outputNames strips the template extension: service.go.tmpl -> service.go.
func outputNames(relInput string) []string {
	return []string{strings.TrimSuffix(relInput, templateExt)}
}

func render(ctx context.Context, unit *compiler.Context, logw io.Writer, report func(int)) (compiler.Result, error) {
	in := unit.InputItems[0]

	report(0)
	src, err := os.ReadFile(in)
	if err != nil {
		return compiler.Result{}, err
	}
	tmpl := template.New(filepath.Base(in)).Funcs(funcs)
	if unit.MetaBool("strict", false) {
		tmpl = tmpl.Option("missingkey=error")
	}
	tmpl, err = tmpl.Parse(string(src))
	if err != nil {
		return compiler.Result{Code: -1, Short: fmt.Sprintf("parse error: %v", err)}, nil
	}

	if err := ctx.Err(); err != nil {
		return compiler.Result{}, err
	}

	report(1)
	out := unit.OutputItems[0]
	f, err := os.Create(out)
	if err != nil {
		return compiler.Result{}, err
	}
	defer f.Close()

	if err := tmpl.Execute(f, templateData(unit)); err != nil {
		os.Remove(out)
		return compiler.Result{Code: -1, Short: fmt.Sprintf("render error: %v", err)}, nil
	}
	fmt.Fprintf(logw, "rendered %s\n", filepath.Base(out))
	return compiler.Result{Short: fmt.Sprintf("rendered %s", filepath.Base(out))}, nil
}

// templateData exposes the unit's non-transient metadata to the template.
func templateData(unit *compiler.Context) map[string]any {
	data := make(map[string]any, len(unit.Metadata))
	for k, v := range unit.Metadata {
		if strings.HasPrefix(k, "_") {
			continue
		}
		data[k] = v
	}
	return data
}
