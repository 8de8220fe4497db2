// Command custodyctl operates the library custody engine: it serves the HTTP API, migrates the
// schema, runs custody operations and queries, and manages demo data.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := execute(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])

	stop()

	if err != nil {
		os.Exit(1)
	}
}
