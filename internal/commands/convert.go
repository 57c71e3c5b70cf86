package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/revmon-dev/revmon/internal/convert"
	"github.com/revmon-dev/revmon/internal/importer"
	"github.com/revmon-dev/revmon/internal/layout"
	"github.com/revmon-dev/revmon/internal/monarch"
)

func newConvertCommand(key, short string, load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   key,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), a, key)
		},
	}
}

func runConvert(ctx context.Context, a *app, key string) error {
	acct := a.account(key)

	runDate, err := layout.RunDate(a.env, a.cfg.Paths.Input)
	if err != nil {
		return err
	}
	inputPath, err := layout.InputPath(a.cfg.Paths.Input, runDate, acct.InputFile)
	if err != nil {
		return err
	}
	outDir, err := layout.OutputDir(a.cfg.Paths.Output, runDate)
	if err != nil {
		return err
	}

	parser := importer.DefaultRegistry(a.cfg).Get(key)
	if parser == nil {
		return fmt.Errorf("no parser registered for %s", key)
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer f.Close()

	bankTxns, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", inputPath, err)
	}

	conv := &convert.Converter{
		Account:          acct.Name,
		SkipMissingRates: acct.SkipMissingRates,
		Categories:       convert.NewCategorizer(a.cfg.Categories),
		Logger:           a.logger,
	}
	if convert.NeedsRates(bankTxns) {
		client, err := a.exchangeClient()
		if err != nil {
			return err
		}
		conv.Rates = client
	}

	res, err := conv.Convert(ctx, bankTxns)
	if err != nil {
		return err
	}

	outPath := filepath.Join(outDir, acct.TransactionOutput)
	if err := monarch.SaveTransactions(outPath, res.Transactions); err != nil {
		return err
	}

	a.finish(key, runDate, len(res.Transactions), res.Skipped, outPath)
	return nil
}
