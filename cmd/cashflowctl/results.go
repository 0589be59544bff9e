package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/core"
)

var resultsCount int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Follow finished reports on the result queue",
	Long: `Consume report results published by cashflow-worker and print them. Messages
are acknowledged once printed. Stops after --count messages, or on Ctrl-C.`,
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().IntVarP(&resultsCount, "count", "c", 0, "Stop after this many results (0 follows forever)")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, _ []string) error {
	logger := cli.SetupLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.AMQPEnabled() {
		return errors.New("results needs AMQP_URL")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var (
		mu   sync.Mutex
		seen int
	)
	err = client.ConsumeReportReady(ctx, func(_ context.Context, msg *amqp.ReportReadyMessage) error {
		mu.Lock()
		defer mu.Unlock()
		if resultsCount > 0 && seen >= resultsCount {
			// already done; leave it on the queue
			return errors.New("result limit reached")
		}
		if err := printResult(msg); err != nil {
			cancel()
			return err
		}
		seen++
		if resultsCount > 0 && seen >= resultsCount {
			cancel()
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printResult(msg *amqp.ReportReadyMessage) error {
	if flagJSON {
		return writeJSON(msg)
	}
	if msg.Error != "" {
		pterm.Error.Printfln("%s failed: %s", msg.RequestID, msg.Error)
		return nil
	}
	line := pterm.Sprintf("%s balance %s, projected %s, %d points",
		msg.RequestID,
		core.FormatCurrency(msg.Balance),
		core.FormatCurrency(msg.ProjectedBalance),
		msg.Points)
	if msg.ExportRef != "" {
		line += ", exported to " + msg.ExportRef
	}
	pterm.Success.Println(line)
	return nil
}
