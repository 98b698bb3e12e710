package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"library-lending/internal/cli"
	"library-lending/library"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes from rule violations and store trouble.
func exitCode(err error) int {
	switch library.TypeOf(err) {
	case library.ErrorTypeValidation, library.ErrorTypeNotFound:
		return 2
	case library.ErrorTypeConflict, library.ErrorTypeTimeout, library.ErrorTypeStorageFailure, "":
		return 1
	default:
		return 3
	}
}
