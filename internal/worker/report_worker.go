package worker

import (
	"context"
	"fmt"

	"cashflow/internal/amqp"
	"cashflow/internal/log"
	"cashflow/internal/report"
	"cashflow/internal/series"
	"cashflow/internal/sheets"
)

// DefaultTitle names exports of requests without a view.
const DefaultTitle = "Cash flow"

type (
	// Computer produces cash-flow reports; *report.Service satisfies it.
	Computer interface {
		CashFlowForView(ctx context.Context, view string, req report.CashFlowRequest) (series.Report, error)
	}

	// Publisher announces finished reports.
	Publisher interface {
		PublishReportReady(ctx context.Context, msg *amqp.ReportReadyMessage) error
	}
)

// ReportWorker computes queued report requests, exports them when asked
// and publishes the outcome.
type ReportWorker struct {
	reports   Computer
	exporter  sheets.ReportExporter
	publisher Publisher
	logger    *log.Logger
}

// NewReportWorker builds a worker. exporter and publisher may be nil.
func NewReportWorker(reports Computer, exporter sheets.ReportExporter, publisher Publisher, logger *log.Logger) *ReportWorker {
	return &ReportWorker{
		reports:   reports,
		exporter:  exporter,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReportRequest processes one request message. Errors that a retry
// cannot fix are returned as amqp.Permanent; the failure is still published.
// Other failures are retried once: a redelivered message that fails again
// is published as failed and dropped.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing report request",
		log.FieldReportID, msg.ID, log.FieldView, msg.View, log.FieldOperation, log.OpConsume)

	view := msg.View
	if view == "" {
		view = msg.ID
	}
	rep, err := w.reports.CashFlowForView(ctx, view, msg.Request)
	if err != nil {
		switch report.Classify(err) {
		case report.KindSuperseded:
			w.logger.InfoContext(ctx, "Report request superseded", log.FieldReportID, msg.ID)
			return amqp.Permanent(err)
		case report.KindInvalid, report.KindUnsupported:
			return w.fail(ctx, msg, err)
		}
		return w.retry(ctx, msg, fmt.Errorf("compute report %s: %w", msg.ID, err))
	}

	ready := amqp.NewReportReadyMessage(msg.ID)
	ready.Balance = rep.Balance
	ready.ProjectedBalance = rep.ProjectedBalance
	ready.TotalIncome = rep.TotalIncome
	ready.TotalExpenses = rep.TotalExpenses
	ready.Points = len(rep.Graph.Balances) + len(rep.Graph.FutureBalances)

	if msg.Export {
		if w.exporter == nil {
			w.logger.WarnContext(ctx, "No exporter configured, skipping export", log.FieldReportID, msg.ID)
		} else {
			title := msg.View
			if title == "" {
				title = DefaultTitle
			}
			ref, err := w.exporter.Export(ctx, title, rep)
			if err != nil {
				return w.retry(ctx, msg, fmt.Errorf("export report %s: %w", msg.ID, err))
			}
			ready.ExportRef = ref
		}
	}

	return w.publish(ctx, ready)
}

// retry returns err for requeueing on first delivery and gives up on a
// redelivered message. Shutdown errors are always requeued.
func (w *ReportWorker) retry(ctx context.Context, msg *amqp.ReportRequestMessage, err error) error {
	if !msg.Redelivered || ctx.Err() != nil {
		return err
	}
	w.logger.WarnContext(ctx, "Report request failed after redelivery, giving up",
		log.FieldReportID, msg.ID, log.FieldError, err)
	return w.fail(ctx, msg, err)
}

// fail publishes err as the request's result and drops the message.
func (w *ReportWorker) fail(ctx context.Context, msg *amqp.ReportRequestMessage, err error) error {
	ready := amqp.NewReportReadyMessage(msg.ID)
	ready.Error = err.Error()
	if perr := w.publish(ctx, ready); perr != nil {
		return perr
	}
	return amqp.Permanent(err)
}

func (w *ReportWorker) publish(ctx context.Context, ready *amqp.ReportReadyMessage) error {
	if w.publisher == nil {
		w.logger.DebugContext(ctx, "No publisher configured, dropping result", log.FieldReportID, ready.RequestID)
		return nil
	}
	if err := w.publisher.PublishReportReady(ctx, ready); err != nil {
		return fmt.Errorf("publish result %s: %w", ready.RequestID, err)
	}
	return nil
}
