package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cashflow/internal/cli"
	"cashflow/internal/config"
)

var importCmd = &cobra.Command{
	Use:   "import FIXTURE",
	Short: "Load a YAML fixture into the SQLite database",
	Long: `Load accounts, payees, categories, transactions and schedules from a YAML
fixture into the SQLite database. Entries with an id replace earlier ones.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	flagBackend = config.BackendSQLite
	flagSeedFile = args[0]

	ctx, cancel := commandContext(cmd)
	defer cancel()

	logger := cli.SetupLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	defer be.Close()

	if flagJSON {
		return writeJSON(be.Seeded)
	}
	st := be.Seeded
	pterm.Success.Printfln("Imported %s into %s", args[0], cfg.SQLiteDBPath)
	reloadHint()
	return renderTable([][]string{
		{"Entity", "Count"},
		{"Accounts", fmt.Sprint(st.Accounts)},
		{"Payees", fmt.Sprint(st.Payees)},
		{"Categories", fmt.Sprint(st.Categories)},
		{"Transactions", fmt.Sprint(st.Transactions)},
		{"Schedules", fmt.Sprint(st.Schedules)},
	})
}
