package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-checker/internal/lottery"
	"github.com/zombor/invoice-checker/internal/source"
)

// lottery-update fetches the latest drawn term from the official API and
// publishes it into the data file the checker's cloud source downloads.
func main() {
	fs := ff.NewFlagSet("lottery-update")
	var (
		appID       = fs.StringLong("app-id", "", "e-invoice platform app ID")
		output      = fs.StringLong("output", "public/lottery-data.json", "Published data file path")
		einvoiceURL = fs.StringLong("einvoice-url", source.DefaultEInvoiceURL, "Official e-invoice API URL")
		term        = fs.StringLong("term", "", "Term to fetch such as 11310 (defaults to the latest drawn)")
		timeout     = fs.DurationLong("timeout", 30*time.Second, "Overall timeout")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LOTTERY_UPDATE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *appID, *einvoiceURL, *output, *term); err != nil {
		slog.Error("Update failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, appID, einvoiceURL, output, term string) error {
	client, err := source.NewEInvoiceClient(einvoiceURL, appID)
	if err != nil {
		return err
	}

	if term == "" {
		term, _ = source.LatestDrawnTerm(time.Now())
	} else if _, err := lottery.PeriodFromTerm(term); err != nil {
		return err
	}

	slog.Info("Fetching winning numbers", "term", term)
	set, err := client.FetchTerm(ctx, term)
	if err != nil {
		return fmt.Errorf("fetching term %s: %w", term, err)
	}

	file, err := source.NewDataFile(output)
	if err != nil {
		return err
	}
	sets, err := file.Publish(*set)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", set.Period, err)
	}

	slog.Info("Published winning numbers", "period", set.Period, "periods", len(sets), "path", output)
	return nil
}
