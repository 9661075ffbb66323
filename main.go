package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"library-ledger/library"
)

// Exit codes by error kind; 75 is EX_TEMPFAIL, the caller may retry.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInvalidInput = 2
	exitNotFound     = 3
	exitConflict     = 4
	exitContention   = 75
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return exitInvalidInput
	}
	switch library.KindOf(err) {
	case library.KindInvalidInput:
		return exitInvalidInput
	case library.KindNotFound:
		return exitNotFound
	case library.KindConflict:
		return exitConflict
	case library.KindContention:
		return exitContention
	default:
		return exitFailure
	}
}

// usageError marks bad command-line arguments.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
