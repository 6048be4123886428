package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/intellivest/internal/app"
	"github.com/bobmcallan/intellivest/internal/common"
)

// --- refresh ---

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch current prices for every held ticker" }
func (*refreshCmd) Usage() string {
	return `intellivest refresh

  Replaces the price snapshot. A provider rate limit disables refresh until
  'intellivest clear-limit' is run.
`
}

func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *refreshCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	snap, err := a.PortfolioService.RefreshPrices(ctx)
	if errors.Is(err, common.ErrUpstreamRateLimited) {
		fmt.Fprintln(w, "API limit reached; run 'intellivest clear-limit' to re-enable refresh")
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Refreshed %d prices at %s\n", len(snap.Prices), snap.LastUpdated.Local().Format(time.DateTime))
	return nil
}

// --- clear-limit ---

type clearLimitCmd struct{}

func (*clearLimitCmd) Name() string     { return "clear-limit" }
func (*clearLimitCmd) Synopsis() string { return "re-enable price refresh after a rate limit" }
func (*clearLimitCmd) Usage() string {
	return `intellivest clear-limit
`
}

func (*clearLimitCmd) SetFlags(*flag.FlagSet) {}

func (c *clearLimitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *clearLimitCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	if !a.QuoteService.LimitReached() {
		fmt.Fprintln(w, "Price refresh is already enabled")
		return nil
	}
	a.QuoteService.ClearLimit(ctx)
	fmt.Fprintln(w, "Price refresh re-enabled")
	return nil
}
