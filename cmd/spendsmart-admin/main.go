// Command spendsmart-admin inspects or clears the configured store.
//
//	spendsmart-admin dump
//	spendsmart-admin reset -yes
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"spendsmart/internal/backend"
	"spendsmart/internal/cli"
	"spendsmart/internal/log"
	"spendsmart/internal/ports"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentBackend)
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: spendsmart-admin dump|reset [-yes]")
		os.Exit(2)
	}
	cfg := cli.LoadAndValidateConfig(logger)

	// Events are not published from here.
	cfg.AMQPURL = ""
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	ctx := context.Background()
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Cleanup()

	switch flag.Arg(0) {
	case "dump":
		err = dump(ctx, os.Stdout, res.Store)
	case "reset":
		fs := flag.NewFlagSet("reset", flag.ExitOnError)
		yes := fs.Bool("yes", false, "confirm removal of every record")
		_ = fs.Parse(flag.Args()[1:])
		if !*yes {
			err = fmt.Errorf("refusing to reset the %s store without -yes", cfg.DataBackend)
			break
		}
		if err = res.Store.Reset(ctx); err == nil {
			logger.Info("Store reset", "backend", cfg.DataBackend)
		}
	default:
		err = fmt.Errorf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		logger.Error("Command failed", "command", flag.Arg(0), log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}
}

// dump prints every user followed by the transactions and budgets of each
// owner. Owner 0 holds the records written while login was disabled.
func dump(ctx context.Context, out io.Writer, store ports.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "== users ==")
	fmt.Fprintln(tw, "ID\tUSERNAME\tCREATED")
	owners := []int64{0}
	names := map[int64]string{0: "(anonymous)"}
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
		owners = append(owners, u.ID)
		names[u.ID] = u.Username
	}

	for _, owner := range owners {
		txs, err := store.ListTransactions(ctx, owner)
		if err != nil {
			return fmt.Errorf("list transactions of %d: %w", owner, err)
		}
		budgets, err := store.ListBudgets(ctx, owner)
		if err != nil {
			return fmt.Errorf("list budgets of %d: %w", owner, err)
		}
		if len(txs) == 0 && len(budgets) == 0 {
			continue
		}

		fmt.Fprintf(tw, "\n== %s ==\n", names[owner])
		fmt.Fprintln(tw, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT")
		for _, tx := range txs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", tx.ID, tx.Date, tx.Type, tx.Category, tx.Amount)
		}
		if len(budgets) > 0 {
			fmt.Fprintln(tw, "\nCATEGORY\tLIMIT")
			categories := make([]string, 0, len(budgets))
			for c := range budgets {
				categories = append(categories, c)
			}
			slices.Sort(categories)
			for _, c := range categories {
				fmt.Fprintf(tw, "%s\t%s\n", c, budgets[c])
			}
		}
	}
	return tw.Flush()
}
