package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := newRootCommand().Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		// Interrupted by the operator; exit nonzero without noise.
		return 1
	default:
		fmt.Fprintln(os.Stderr, "showrunner:", err)
		return 1
	}
}
