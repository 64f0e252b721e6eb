// Command git-subset rewrites a git repository's history so that every
// commit's tree contains only a whitelisted set of paths, and points a
// branch at the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	root.SetContext(ctx)

	err := root.Execute()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)

	var uerr *userError
	if errors.As(err, &uerr) {
		os.Exit(1)
	}
	os.Exit(2)
}
