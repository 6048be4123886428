package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/intellivest/internal/app"
	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/services/portfolio"
)

var errIDRequired = fmt.Errorf("%w: -id is required", common.ErrInvalidInput)

// parseOptionalDate returns the zero time for an empty flag.
func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return common.ParseDate(s)
}

// visited reports which flags were set on the command line.
func visited(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

// --- add ---

type addCmd struct {
	symbol   string
	exchange string
	quantity float64
	price    float64
	date     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a new position" }
func (*addCmd) Usage() string {
	return `intellivest add -s <symbol> -q <quantity> -p <price> [-x NSE|BSE] [-d <date>]

  Adds an open position. The date defaults to today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Stock symbol, e.g. RELIANCE")
	f.StringVar(&c.exchange, "x", string(models.ExchangeNSE), "Exchange (NSE or BSE)")
	f.Float64Var(&c.quantity, "q", 0, "Quantity")
	f.Float64Var(&c.price, "p", 0, "Purchase price per unit")
	f.StringVar(&c.date, "d", "", "Purchase date (YYYY-MM-DD)")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *addCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	date, err := parseOptionalDate(c.date)
	if err != nil {
		return err
	}
	pos, err := a.PortfolioService.AddPosition(ctx, models.NewStock{
		Symbol:   c.symbol,
		Exchange: models.Exchange(c.exchange),
		Quantity: c.quantity,
		Price:    c.price,
		Date:     date,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Added %s %s x%s @ %s (id %s)\n",
		pos.Symbol, pos.Exchange, common.FormatQuantity(pos.Quantity), common.FormatRupee(pos.Price), pos.ID)
	return nil
}

// --- sell ---

type sellCmd struct {
	id       string
	quantity float64
	price    float64
	date     string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell all or part of a position" }
func (*sellCmd) Usage() string {
	return `intellivest sell -id <position id> -q <quantity> -p <price> [-d <date>]

  Sells units of a position and appends a realized record. Selling the whole
  quantity closes the position.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Position id")
	f.Float64Var(&c.quantity, "q", 0, "Quantity to sell")
	f.Float64Var(&c.price, "p", 0, "Sell price per unit")
	f.StringVar(&c.date, "d", "", "Sell date (YYYY-MM-DD)")
}

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *sellCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	if c.id == "" {
		return errIDRequired
	}
	date, err := parseOptionalDate(c.date)
	if err != nil {
		return err
	}
	rec, err := a.PortfolioService.SellPosition(ctx, c.id, models.SellRequest{
		Price:    c.price,
		Quantity: c.quantity,
		Date:     date,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Sold %s x%s @ %s: profit %s (%s) after %d days (record %s)\n",
		rec.Symbol, common.FormatQuantity(rec.Quantity), common.FormatRupee(rec.SellPrice),
		common.FormatRupee(rec.Profit), common.FormatPercent(rec.ProfitPercentage), rec.DaysHeld, rec.ID)
	return nil
}

// --- edit ---

type editCmd struct {
	id       string
	symbol   string
	exchange string
	quantity float64
	price    float64
	date     string
	set      map[string]bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "edit fields of a position" }
func (*editCmd) Usage() string {
	return `intellivest edit -id <position id> [-s <symbol>] [-x <exchange>] [-q <quantity>] [-p <price>] [-d <date>]

  Replaces only the fields given on the command line.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Position id")
	f.StringVar(&c.symbol, "s", "", "Stock symbol")
	f.StringVar(&c.exchange, "x", "", "Exchange (NSE or BSE)")
	f.Float64Var(&c.quantity, "q", 0, "Quantity")
	f.Float64Var(&c.price, "p", 0, "Purchase price per unit")
	f.StringVar(&c.date, "d", "", "Purchase date (YYYY-MM-DD)")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.set = visited(f)
	return execute(ctx, c)
}

func (c *editCmd) patch() (models.PositionPatch, error) {
	var p models.PositionPatch
	if c.set["s"] {
		p.Symbol = &c.symbol
	}
	if c.set["x"] {
		x := models.Exchange(c.exchange)
		p.Exchange = &x
	}
	if c.set["q"] {
		p.Quantity = &c.quantity
	}
	if c.set["p"] {
		p.Price = &c.price
	}
	if c.set["d"] {
		d, err := common.ParseDate(c.date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

func (c *editCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	if c.id == "" {
		return errIDRequired
	}
	p, err := c.patch()
	if err != nil {
		return err
	}
	pos, err := a.PortfolioService.EditPosition(ctx, c.id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Updated %s: %s %s x%s @ %s on %s\n", pos.ID, pos.Symbol, pos.Exchange,
		common.FormatQuantity(pos.Quantity), common.FormatRupee(pos.Price), pos.Date.Format(common.DateLayout))
	return nil
}

// --- delete ---

type deleteCmd struct {
	id     string
	record bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a position or a realized record" }
func (*deleteCmd) Usage() string {
	return `intellivest delete -id <id> [-record]

  Removes a position, or a realized record with -record. No realized
  record is created. Deleting an unknown id does nothing.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Position or record id")
	f.BoolVar(&c.record, "record", false, "Delete a realized record instead of a position")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *deleteCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	if c.id == "" {
		return errIDRequired
	}
	var (
		removed bool
		err     error
		kind    = "position"
	)
	if c.record {
		kind = "record"
		removed, err = a.PortfolioService.DeleteRecord(ctx, c.id)
	} else {
		removed, err = a.PortfolioService.DeletePosition(ctx, c.id)
	}
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(w, "No %s with id %s\n", kind, c.id)
		return nil
	}
	fmt.Fprintf(w, "Deleted %s %s\n", kind, c.id)
	return nil
}

// --- summary ---

type summaryCmd struct {
	sort string
	dir  string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show open positions and portfolio totals" }
func (*summaryCmd) Usage() string {
	return `intellivest summary [-sort <field>] [-dir asc|desc]

  Values open positions against the last price snapshot. Unavailable prices
  are shown as N/A and make the unrealized total unavailable.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", "", "Sort field (symbol, quantity, invested, profit, profit_percentage, days_held, ...)")
	f.StringVar(&c.dir, "dir", "asc", "Sort direction")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *summaryCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	overview := a.PortfolioService.Overview(ctx)
	view := overview.View
	if err := portfolio.SortPositions(view.Positions, c.sort, c.dir); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tSymbol\tQty\tBuy\tInvested\tCurrent\tValue\tP/L\tP/L %\tDays\t")
	for _, v := range view.Positions {
		fmt.Fprintf(tw, "%s\t%s.%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			v.ID, v.Symbol, v.Exchange, common.FormatQuantity(v.Quantity),
			common.FormatRupee(v.Price), common.FormatRupee(v.Invested),
			common.FormatOptionalRupee(v.CurrentPrice), common.FormatOptionalRupee(v.CurrentValue),
			common.FormatOptionalRupee(v.Profit), common.FormatPercent(v.ProfitPercentage), v.DaysHeld)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Invested:        %s\n", common.FormatRupee(view.TotalInvested))
	fmt.Fprintf(w, "Current value:   %s\n", common.FormatRupee(view.TotalCurrentValue))
	fmt.Fprintf(w, "Unrealized P/L:  %s (%s)\n", common.FormatOptionalRupee(view.TotalUnrealized), common.FormatPercent(view.TotalUnrealizedPct))
	fmt.Fprintf(w, "Realized P/L:    %s\n", common.FormatRupee(overview.Ledger.TotalRealized))
	if view.BestPerformer != nil {
		fmt.Fprintf(w, "Best performer:  %s (%s)\n", view.BestPerformer.Symbol, common.FormatPercent(view.BestPerformer.ProfitPercentage))
	}
	if view.WorstPerformer != nil {
		fmt.Fprintf(w, "Worst performer: %s (%s)\n", view.WorstPerformer.Symbol, common.FormatPercent(view.WorstPerformer.ProfitPercentage))
	}
	if overview.PricesUpdated.IsZero() {
		fmt.Fprintln(w, "Prices:          never refreshed")
	} else {
		fmt.Fprintf(w, "Prices:          %s\n", overview.PricesUpdated.Local().Format(time.DateTime))
	}
	if overview.LimitReached {
		fmt.Fprintln(w, "API limit reached; run 'intellivest clear-limit' to re-enable refresh")
	}
	return nil
}

// ensure every command satisfies both interfaces
var (
	_ subcommands.Command = (*addCmd)(nil)
	_ runner              = (*addCmd)(nil)
	_ runner              = (*sellCmd)(nil)
	_ runner              = (*editCmd)(nil)
	_ runner              = (*deleteCmd)(nil)
	_ runner              = (*summaryCmd)(nil)
)
