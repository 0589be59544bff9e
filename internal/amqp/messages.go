package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/report"
)

// ReportRequestMessage asks a worker to compute a cash-flow report and,
// when Export is set, push it to the configured spreadsheet.
type ReportRequestMessage struct {
	ID        string                 `json:"id"`
	View      string                 `json:"view,omitempty"`
	Request   report.CashFlowRequest `json:"request"`
	Export    bool                   `json:"export"`
	Timestamp time.Time              `json:"timestamp"`

	// Redelivered is set by the consumer when the broker has handed this
	// message out before.
	Redelivered bool `json:"-"`
}

func NewReportRequestMessage(view string, req report.CashFlowRequest, export bool) *ReportRequestMessage {
	return &ReportRequestMessage{
		ID:        uuid.NewString(),
		View:      view,
		Request:   req,
		Export:    export,
		Timestamp: time.Now(),
	}
}

func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportReadyMessage is published once a requested report is done. Error
// is set instead of the figures when the computation failed.
type ReportReadyMessage struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"requestId"`
	Balance          int64     `json:"balance"`
	ProjectedBalance int64     `json:"projectedBalance"`
	TotalIncome      int64     `json:"totalIncome"`
	TotalExpenses    int64     `json:"totalExpenses"`
	Points           int       `json:"points"`
	ExportRef        string    `json:"exportRef,omitempty"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewReportReadyMessage(requestID string) *ReportReadyMessage {
	return &ReportReadyMessage{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func (m *ReportReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportReadyMessageFromJSON(data []byte) (*ReportReadyMessage, error) {
	var msg ReportReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
