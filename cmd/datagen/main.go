package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/ringtrace/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		output       = flag.String("output", "data/transactions.csv", "path of the CSV to write")
		truth        = flag.String("truth", "", "optional path for a JSON list of planted patterns")
		accounts     = flag.Int("accounts", cfg.NumAccounts, "number of background accounts")
		transactions = flag.Int("transactions", cfg.NumTransactions, "number of background transactions")
		cycles       = flag.Int("cycles", cfg.Cycles, "number of planted cycles")
		fanIns       = flag.Int("fan-ins", cfg.FanIns, "number of planted fan-in bursts")
		fanOuts      = flag.Int("fan-outs", cfg.FanOuts, "number of planted fan-out bursts")
		shells       = flag.Int("shells", cfg.ShellChains, "number of planted shell chains")
		smurfs       = flag.Int("smurfs", cfg.SmurfCounterparts, "counterparties per fan-in or fan-out burst")
		payroll      = flag.Bool("payroll", cfg.Payroll, "plant a regular monthly payroll account")
		start        = flag.String("start", cfg.Start.Format("2006-01-02"), "first day of the generated period (YYYY-MM-DD)")
		days         = flag.Int("days", cfg.Days, "length of the generated period in days")
		seed         = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
	)
	flag.Parse()

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		os.Exit(2)
	}

	genCfg := generator.Config{
		NumAccounts:       *accounts,
		NumTransactions:   *transactions,
		Cycles:            nonNegative(*cycles),
		FanIns:            nonNegative(*fanIns),
		FanOuts:           nonNegative(*fanOuts),
		ShellChains:       nonNegative(*shells),
		SmurfCounterparts: *smurfs,
		Payroll:           *payroll,
		Start:             startDate,
		Days:              *days,
		Seed:              *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *output == "-" {
		if err := generator.WriteCSV(os.Stdout, dataset.Transactions); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *output, *truth); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d transactions with %d planted patterns into %s\n", len(dataset.Transactions), len(dataset.Planted), *output)
}

func nonNegative(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
