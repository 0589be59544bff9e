package main

import (
	"time"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Forecast sources, methods and the available history",
	RunE:  runOptions,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := a.reports.Options(ctx, time.Now())
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(opts)
	}
	return renderOptions(opts)
}
