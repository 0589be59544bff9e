package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

const (
	AmountIs       AmountOp = "is"
	AmountIsApprox AmountOp = "isapprox"
	AmountBetween  AmountOp = "isbetween"
)

type (
	RepetitionTypes string

	// AmountOp describes how a schedule amount is expressed.
	AmountOp string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID        string
		Name      string
		OffBudget bool
	}

	// Payee is a counterparty. A payee with a TransferAccount represents
	// another tracked account, so transactions against it are transfers.
	Payee struct {
		ID              string
		Name            string
		TransferAccount string
	}

	CategoryGroup struct {
		ID       string
		Name     string
		IsIncome bool
	}

	Category struct {
		ID    string
		Name  string
		Group string // CategoryGroup ID
	}

	Transaction struct {
		ID       string
		Date     Date
		Account  string
		Payee    string
		Category string
		Amount   Money // signed: positive is inflow
		Notes    string
	}

	ScheduleAmount struct {
		Op   AmountOp
		Num1 int64
		Num2 int64 // upper bound, only for AmountBetween
	}

	Recurrence struct {
		Start    Date
		Every    RepetitionTypes
		Interval int
		End      Date   // optional
		Cron     string // optional, overrides Every
	}

	Schedule struct {
		ID               string
		Name             string
		Account          string
		Payee            string
		TransferAccount  string // payee's transfer account, if the payee is an account
		AccountOffBudget bool
		PayeeOffBudget   bool // transfer account is off-budget
		Amount           ScheduleAmount
		Date             Date        // one-off date when Recurrence is nil
		Recurrence       *Recurrence // nil for one-off schedules
	}

	// FlowEntry is a signed net movement for one bucket.
	FlowEntry struct {
		Date            Bucket `json:"date"`
		IsTransfer      bool   `json:"isTransfer"`
		TransferAccount string `json:"transferAccount,omitempty"`
		Amount          int64  `json:"amount"`
	}

	// SplitTotal holds per-entity inflow/outflow totals used for flow diagrams.
	SplitTotal struct {
		Name        string       `json:"name"`
		TotalAssets int64        `json:"totalAssets"`
		TotalDebts  int64        `json:"totalDebts"`
		TotalTotals int64        `json:"totalTotals"`
		Categories  []SplitTotal `json:"categories,omitempty"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyAccount      = errors.New("empty account")
	ErrInvalidRepetition = errors.New("invalid repetition type")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	// Check basic ranges
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DayLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsEmpty returns true if the date is zero (for backward compatibility with optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Validate rejects zero amounts; the sign carries the direction.
func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Resolve returns the amount used for projections. A range resolves to
// its floored midpoint.
func (a ScheduleAmount) Resolve() int64 {
	if a.Op == AmountBetween {
		return FloorDiv(a.Num1+a.Num2, 2)
	}
	return a.Num1
}

// IsTransfer reports whether the schedule moves money between tracked accounts.
func (s Schedule) IsTransfer() bool {
	return s.TransferAccount != ""
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Account) == "" {
		return ErrEmptyAccount
	}
	return t.Amount.Validate()
}

func (r Recurrence) Validate() error {
	if err := r.Start.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	if !r.End.IsZero() {
		if err := r.End.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if r.End.Before(r.Start.Time) {
			return errors.New("end date must be after start date")
		}
	}

	if r.Cron != "" {
		return nil
	}

	switch r.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return ErrInvalidRepetition
	}
	if r.Interval < 0 {
		return errors.New("interval cannot be negative")
	}
	return nil
}

func (s Schedule) Validate() error {
	if strings.TrimSpace(s.Account) == "" {
		return ErrEmptyAccount
	}
	switch s.Amount.Op {
	case AmountIs, AmountIsApprox, "":
	case AmountBetween:
		if s.Amount.Num2 < s.Amount.Num1 {
			return errors.New("amount range upper bound below lower bound")
		}
	default:
		return errors.New("invalid amount operator: " + string(s.Amount.Op))
	}
	if s.Recurrence == nil {
		return s.Date.Validate()
	}
	return s.Recurrence.Validate()
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
