package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/bobmcallan/intellivest/internal/app"
	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/services/portfolio"
)

// --- records ---

type recordsCmd struct {
	sort string
	dir  string
}

func (*recordsCmd) Name() string     { return "records" }
func (*recordsCmd) Synopsis() string { return "list realized records and ledger totals" }
func (*recordsCmd) Usage() string {
	return `intellivest records [-sort <field>] [-dir asc|desc]

  Lists every closed sale with its profit and proceeds.
`
}

func (c *recordsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", "", "Sort field (symbol, sell_date, profit, profit_percentage, total_amount, ...)")
	f.StringVar(&c.dir, "dir", "asc", "Sort direction")
}

func (c *recordsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *recordsCmd) run(_ context.Context, a *app.App, w io.Writer) error {
	records := a.PortfolioService.Holdings().Records
	if err := portfolio.SortRecords(records, c.sort, c.dir); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tSymbol\tQty\tBuy\tBought\tSell\tSold\tAmount\tP/L\tP/L %\tDays\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s.%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			r.ID, r.Symbol, r.Exchange, common.FormatQuantity(r.Quantity),
			common.FormatRupee(r.PurchasePrice), r.PurchaseDate.Format(common.DateLayout),
			common.FormatRupee(r.SellPrice), r.SellDate.Format(common.DateLayout),
			common.FormatRupee(portfolio.TotalAmount(r)), common.FormatRupee(r.Profit),
			common.FormatPercent(r.ProfitPercentage), r.DaysHeld)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := portfolio.SummarizeLedger(records)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records:         %d (%d winners, %d losers)\n", s.Count, s.Winners, s.Losers)
	fmt.Fprintf(w, "Total proceeds:  %s\n", common.FormatRupee(s.TotalProceeds))
	fmt.Fprintf(w, "Realized P/L:    %s\n", common.FormatRupee(s.TotalRealized))
	if s.BestByProfit != nil {
		fmt.Fprintf(w, "Best sale:       %s %s\n", s.BestByProfit.Symbol, common.FormatRupee(s.BestByProfit.Profit))
	}
	if s.WorstByProfit != nil {
		fmt.Fprintf(w, "Worst sale:      %s %s\n", s.WorstByProfit.Symbol, common.FormatRupee(s.WorstByProfit.Profit))
	}
	return nil
}

// --- edit-record ---

type editRecordCmd struct {
	id            string
	symbol        string
	exchange      string
	quantity      float64
	purchasePrice float64
	purchaseDate  string
	sellPrice     float64
	sellDate      string
	profit        float64
	recompute     bool
	set           map[string]bool
}

func (*editRecordCmd) Name() string     { return "edit-record" }
func (*editRecordCmd) Synopsis() string { return "edit fields of a realized record" }
func (*editRecordCmd) Usage() string {
	return `intellivest edit-record -id <record id> [-s] [-x] [-q] [-buy] [-bought] [-sell] [-sold] [-profit] [-recompute]

  Replaces only the fields given. With -recompute, profit, profit percentage
  and days held are derived again from the edited values.
`
}

func (c *editRecordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Record id")
	f.StringVar(&c.symbol, "s", "", "Stock symbol")
	f.StringVar(&c.exchange, "x", "", "Exchange (NSE or BSE)")
	f.Float64Var(&c.quantity, "q", 0, "Quantity")
	f.Float64Var(&c.purchasePrice, "buy", 0, "Purchase price per unit")
	f.StringVar(&c.purchaseDate, "bought", "", "Purchase date (YYYY-MM-DD)")
	f.Float64Var(&c.sellPrice, "sell", 0, "Sell price per unit")
	f.StringVar(&c.sellDate, "sold", "", "Sell date (YYYY-MM-DD)")
	f.Float64Var(&c.profit, "profit", 0, "Profit, taken as given")
	f.BoolVar(&c.recompute, "recompute", false, "Derive profit, percentage and days held from the other fields")
}

func (c *editRecordCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.set = visited(f)
	return execute(ctx, c)
}

func (c *editRecordCmd) patch() (models.RecordPatch, error) {
	p := models.RecordPatch{Recompute: c.recompute}
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
	if c.set["buy"] {
		p.PurchasePrice = &c.purchasePrice
	}
	if c.set["bought"] {
		d, err := common.ParseDate(c.purchaseDate)
		if err != nil {
			return p, err
		}
		p.PurchaseDate = &d
	}
	if c.set["sell"] {
		p.SellPrice = &c.sellPrice
	}
	if c.set["sold"] {
		d, err := common.ParseDate(c.sellDate)
		if err != nil {
			return p, err
		}
		p.SellDate = &d
	}
	if c.set["profit"] {
		p.Profit = &c.profit
	}
	return p, nil
}

func (c *editRecordCmd) run(ctx context.Context, a *app.App, w io.Writer) error {
	if c.id == "" {
		return errIDRequired
	}
	p, err := c.patch()
	if err != nil {
		return err
	}
	rec, err := a.PortfolioService.EditRecord(ctx, c.id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Updated record %s: %s x%s, profit %s (%s), %d days\n", rec.ID, rec.Symbol,
		common.FormatQuantity(rec.Quantity), common.FormatRupee(rec.Profit),
		common.FormatPercent(rec.ProfitPercentage), rec.DaysHeld)
	return nil
}

// --- series ---

type seriesCmd struct{}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "print cumulative realized profit per business day" }
func (*seriesCmd) Usage() string {
	return `intellivest series

  Prints the cumulative realized P/L for each business day from the first
  sale to the last.
`
}

func (*seriesCmd) SetFlags(*flag.FlagSet) {}

func (c *seriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *seriesCmd) run(_ context.Context, a *app.App, w io.Writer) error {
	points := a.PortfolioService.Series()
	if len(points) == 0 {
		fmt.Fprintln(w, "No realized sales yet")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Date\tCumulative P/L\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Date.Format(common.DateLayout), common.FormatRupee(p.CumulativeProfit))
	}
	return tw.Flush()
}

// --- chart ---

type chartCmd struct {
	output string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "render the cumulative P/L chart as PNG" }
func (*chartCmd) Usage() string {
	return `intellivest chart [-o <file.png>]

  Writes the cumulative realized P/L area chart.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "pnl.png", "Output file")
}

func (c *chartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c)
}

func (c *chartCmd) run(_ context.Context, a *app.App, w io.Writer) error {
	png, err := portfolio.RenderProfitLossChart(a.PortfolioService.Series())
	if errors.Is(err, common.ErrInsufficientData) {
		fmt.Fprintln(w, "Not enough realized sales to draw a chart")
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.output, png, 0644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	fmt.Fprintf(w, "Chart written to %s\n", c.output)
	return nil
}
