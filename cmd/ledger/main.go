// Command ledger drives the ledger controller against a running spendsmart
// server.
//
//	ledger [-server URL] [-user NAME -password PASS] <command> [flags]
//
// Commands: list, summary, add, edit, delete, budget, render.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"spendsmart/internal/cli"
	"spendsmart/internal/client"
	"spendsmart/internal/core"
	"spendsmart/internal/ledger"
	"spendsmart/internal/log"
	appweb "spendsmart/web"
)

// Empty flags fall back to the environment, .env included.
var (
	server   = flag.String("server", "", "server base URL (SPENDSMART_URL)")
	user     = flag.String("user", "", "username, when the server requires login (SPENDSMART_USER)")
	password = flag.String("password", "", "password (SPENDSMART_PASSWORD)")
	token    = flag.String("token", "", "session token instead of -user/-password (SPENDSMART_TOKEN)")
	symbol   = flag.String("symbol", "", "currency symbol (CURRENCY_SYMBOL)")
	timeout  = flag.Duration("timeout", 30*time.Second, "overall command timeout")
)

func fromEnv(p *string, key, def string) {
	if *p != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*p = v
		return
	}
	*p = def
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: ledger [flags] list|summary|add|edit|delete|budget|render [command flags]\n")
	flag.PrintDefaults()
}

func main() {
	cli.LoadEnvFile()
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	fromEnv(server, "SPENDSMART_URL", "http://localhost:8081")
	fromEnv(user, "SPENDSMART_USER", "")
	fromEnv(password, "SPENDSMART_PASSWORD", "")
	fromEnv(token, "SPENDSMART_TOKEN", "")
	fromEnv(symbol, "CURRENCY_SYMBOL", core.DefaultCurrencySymbol)

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: "ledger-cli",
		Output:    os.Stderr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, flag.Arg(0), flag.Args()[1:]); err != nil {
		var verr *ledger.ValidationError
		if !errors.As(err, &verr) {
			logger.Error("Command failed", "command", flag.Arg(0), log.FieldError, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cmd string, args []string) error {
	opts := []client.Option{}
	if *token != "" {
		opts = append(opts, client.WithToken(*token))
	}
	api := client.New(*server, opts...)
	if *token == "" && *user != "" {
		if _, err := api.Login(ctx, *user, *password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	canvas := &ledger.HTMLCanvas{}
	notifier := ledger.NotifierFunc(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
	ctrl := ledger.NewController(api, notifier,
		ledger.WithSymbol(*symbol),
		ledger.WithChart(ledger.NewChartView(canvas)))

	switch cmd {
	case "list":
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		return printTransactions(out, ctrl.State())

	case "summary":
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		return printSummary(out, ctrl.State())

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		form := formFlags(fs)
		_ = fs.Parse(args)
		return ctrl.Dispatch(ctx, ledger.EventSubmitTransaction, *form)

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ExitOnError)
		id := fs.Int64("id", 0, "transaction id")
		patch := formFlags(fs)
		_ = fs.Parse(args)
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		if err := ctrl.Dispatch(ctx, ledger.EventEditTransaction, *id); err != nil {
			return err
		}
		return ctrl.Dispatch(ctx, ledger.EventSubmitTransaction, merge(ctrl.Form(), *patch))

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "transaction id")
		_ = fs.Parse(args)
		return ctrl.Dispatch(ctx, ledger.EventDeleteTransaction, *id)

	case "budget":
		fs := flag.NewFlagSet("budget", flag.ExitOnError)
		var form ledger.BudgetForm
		fs.StringVar(&form.Category, "category", "", "budget category")
		fs.StringVar(&form.Limit, "limit", "", "monthly limit")
		_ = fs.Parse(args)
		return ctrl.Dispatch(ctx, ledger.EventSubmitBudget, form)

	case "render":
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		r, err := ledger.NewRenderer(appweb.TemplatesFS)
		if err != nil {
			return err
		}
		return r.Ledger(out, ledger.ControllerView(ctrl, canvas.HTML()))

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func formFlags(fs *flag.FlagSet) *ledger.TransactionForm {
	var f ledger.TransactionForm
	fs.StringVar(&f.Amount, "amount", "", "amount, e.g. 12.50")
	fs.StringVar(&f.Type, "type", "", "income or expense")
	fs.StringVar(&f.Category, "category", "", "category")
	fs.StringVar(&f.Date, "date", "", "date as YYYY-MM-DD (default today)")
	return &f
}

// merge overrides the loaded form with the fields given on the command line.
func merge(base, patch ledger.TransactionForm) ledger.TransactionForm {
	if patch.Amount != "" {
		base.Amount = patch.Amount
	}
	if patch.Type != "" {
		base.Type = patch.Type
	}
	if patch.Category != "" {
		base.Category = patch.Category
	}
	if patch.Date != "" {
		base.Date = patch.Date
	}
	return base
}

func printTransactions(out io.Writer, v *ledger.ViewState) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT")
	for _, tx := range v.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", tx.ID, tx.Date, tx.Type, tx.Category, tx.Amount.Format(v.Symbol))
	}
	return tw.Flush()
}

func printSummary(out io.Writer, v *ledger.ViewState) error {
	t := v.Totals()
	fmt.Fprintf(out, "Income:  %s\nExpense: %s\nNet:     %s\n",
		t.Income.Format(v.Symbol), t.Expense.Format(v.Symbol), t.Net.Format(v.Symbol))

	lines := v.BudgetProgress()
	if len(lines) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tLIMIT\tUSED")
	for _, l := range lines {
		marker := ""
		if l.Over {
			marker = " over"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%%s\n", l.Category, l.Spent.Format(v.Symbol), l.Limit.Format(v.Symbol), l.Percent.StringFixed(1), marker)
	}
	return tw.Flush()
}
