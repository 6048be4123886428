package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/intellivest/internal/app"
)

// runner is implemented by every subcommand. run writes its report to w.
type runner interface {
	run(ctx context.Context, a *app.App, w io.Writer) error
}

// execute opens the app, runs r and maps the outcome to an exit status.
// Pending writes are flushed by a.Close before the process exits.
func execute(ctx context.Context, r runner) subcommands.ExitStatus {
	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := r.run(ctx, a, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
