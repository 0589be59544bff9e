package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var completeScheduleCmd = &cobra.Command{
	Use:   "complete-schedule ID",
	Short: "Mark a schedule as completed so it stops projecting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.backend.Store.CompleteSchedule(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("Schedule %s completed", args[0])
		reloadHint()
		return nil
	},
}

var deleteTransactionCmd = &cobra.Command{
	Use:   "delete-transaction ID",
	Short: "Tombstone a transaction so reports ignore it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.backend.Store.DeleteTransaction(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("Transaction %s deleted", args[0])
		reloadHint()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completeScheduleCmd, deleteTransactionCmd)
}
