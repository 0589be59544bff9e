package main

import (
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
)

var (
	enqueueFlags  requestFlags
	enqueueView   string
	enqueueExport bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a report for cashflow-worker",
	Long: `Publish a report request to AMQP. cashflow-worker computes it, exports it to
Google Sheets when --export is set and publishes the result.`,
	RunE: runEnqueue,
}

func init() {
	addRequestFlags(enqueueCmd, &enqueueFlags)
	enqueueCmd.Flags().StringVar(&enqueueView, "view", "", "View name; a newer request for the same view supersedes older ones")
	enqueueCmd.Flags().BoolVar(&enqueueExport, "export", false, "Export the report to Google Sheets")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	logger := cli.SetupLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.AMQPEnabled() {
		return errors.New("enqueue needs AMQP_URL")
	}

	a := &app{logger: logger, cfg: cfg}
	req, _, err := enqueueFlags.request(a, time.Now())
	if err != nil {
		return err
	}
	if err := req.Validate(0); err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	view := enqueueView
	if view == "" && enqueueFlags.preset != "" {
		view = "preset:" + enqueueFlags.preset
	}
	msg := amqp.NewReportRequestMessage(view, req, enqueueExport)
	if err := client.PublishReportRequest(ctx, msg); err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(map[string]string{"id": msg.ID, "view": msg.View})
	}
	pterm.Success.Printfln("Queued report %s", msg.ID)
	return nil
}
