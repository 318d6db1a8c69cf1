// Command wildlifectl manages a wildlife catalog: the category taxonomy,
// field definitions, records with their typed values and images, and typed
// searches. Every subcommand prints JSON on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer func() { _ = a.close() }()
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if werr := a.writeMetrics(stderr); werr != nil {
		err = errors.Join(err, werr)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "wildlifectl: %v\n", err)
		return 1
	}
	return 0
}
