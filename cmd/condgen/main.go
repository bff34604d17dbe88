package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"condgen/pkg/cli"
	"condgen/pkg/compiler"
	"condgen/pkg/jsonverify"
	"condgen/pkg/tmplgen"
)

const version = "1.0.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "version", "-V", "--version":
			fmt.Printf("condgen %s\n", version)
			return
		}
	}

	app := cli.NewApp(builtins())

	// First Ctrl-C cancels at the next step boundary; a second one kills
	// the process through the default handler.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(app.Execute(ctx, os.Args[1:]))
}

func builtins() []*compiler.Compiler {
	var out []*compiler.Compiler
	if c, err := tmplgen.New(); err == nil {
		out = append(out, c)
	}
	if c, err := jsonverify.New(); err == nil {
		out = append(out, c)
	}
	return out
}
