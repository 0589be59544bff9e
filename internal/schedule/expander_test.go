package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashflow/internal/core"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dates(ds []core.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMonthlyStepper_ClampsWithoutDrift(t *testing.T) {
	start := core.NewDate(2024, 1, 31)
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2025-02-28"}
	got := []string{
		core.DateOf(MonthlyStepper{}.Nth(start, 1, 0)).String(),
		core.DateOf(MonthlyStepper{}.Nth(start, 1, 1)).String(),
		core.DateOf(MonthlyStepper{}.Nth(start, 1, 2)).String(),
		core.DateOf(MonthlyStepper{}.Nth(start, 1, 3)).String(),
		core.DateOf(MonthlyStepper{}.Nth(start, 1, 13)).String(),
	}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestYearlyStepper_LeapDay(t *testing.T) {
	start := core.NewDate(2024, 2, 29)
	if got := core.DateOf(YearlyStepper{}.Nth(start, 1, 1)).String(); got != "2025-02-28" {
		t.Fatalf("got %s, want 2025-02-28", got)
	}
	if got := core.DateOf(YearlyStepper{}.Nth(start, 1, 4)).String(); got != "2028-02-29" {
		t.Fatalf("got %s, want 2028-02-29", got)
	}
}

func TestGetStepper(t *testing.T) {
	for _, f := range []core.RepetitionTypes{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetStepper(f); err != nil {
			t.Errorf("GetStepper(%s): %v", f, err)
		}
	}
	if _, err := GetStepper("hourly"); !errors.Is(err, ErrInvalidRecurrence) {
		t.Errorf("GetStepper(hourly) = %v, want ErrInvalidRecurrence", err)
	}
}

func TestRecurrenceExpander_Occurrences(t *testing.T) {
	e := NewRecurrenceExpander(0)
	ctx := context.Background()

	tests := []struct {
		name     string
		schedule core.Schedule
		from, to time.Time
		want     []string
	}{
		{
			name:     "one-off inside range",
			schedule: core.Schedule{ID: "s", Date: core.NewDate(2024, 3, 10)},
			from:     day(2024, 3, 1), to: day(2024, 3, 31),
			want: []string{"2024-03-10"},
		},
		{
			name:     "one-off outside range",
			schedule: core.Schedule{ID: "s", Date: core.NewDate(2024, 4, 10)},
			from:     day(2024, 3, 1), to: day(2024, 3, 31),
			want: nil,
		},
		{
			name: "monthly from earlier start",
			schedule: core.Schedule{ID: "s", Recurrence: &core.Recurrence{
				Start: core.NewDate(2023, 11, 15), Every: core.Monthly,
			}},
			from: day(2024, 1, 1), to: day(2024, 3, 31),
			want: []string{"2024-01-15", "2024-02-15", "2024-03-15"},
		},
		{
			name: "weekly every two weeks",
			schedule: core.Schedule{ID: "s", Recurrence: &core.Recurrence{
				Start: core.NewDate(2024, 1, 1), Every: core.Weekly, Interval: 2,
			}},
			from: day(2024, 1, 1), to: day(2024, 1, 31),
			want: []string{"2024-01-01", "2024-01-15", "2024-01-29"},
		},
		{
			name: "end caps expansion",
			schedule: core.Schedule{ID: "s", Recurrence: &core.Recurrence{
				Start: core.NewDate(2024, 1, 1), Every: core.Daily, End: core.NewDate(2024, 1, 3),
			}},
			from: day(2024, 1, 1), to: day(2024, 1, 31),
			want: []string{"2024-01-01", "2024-01-02", "2024-01-03"},
		},
		{
			name: "cron first of month",
			schedule: core.Schedule{ID: "s", Recurrence: &core.Recurrence{
				Start: core.NewDate(2024, 1, 1), Cron: "0 9 1 * *",
			}},
			from: day(2024, 2, 1), to: day(2024, 4, 1),
			want: []string{"2024-02-01", "2024-03-01", "2024-04-01"},
		},
		{
			name: "cron firing hourly collapses per day",
			schedule: core.Schedule{ID: "s", Recurrence: &core.Recurrence{
				Start: core.NewDate(2024, 1, 1), Cron: "0 * * * *",
			}},
			from: day(2024, 5, 1), to: day(2024, 5, 2),
			want: []string{"2024-05-01", "2024-05-02"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Occurrences(ctx, tt.schedule, tt.from, tt.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equal(dates(got), tt.want) {
				t.Fatalf("got %v, want %v", dates(got), tt.want)
			}
		})
	}
}

func TestRecurrenceExpander_Errors(t *testing.T) {
	ctx := context.Background()
	daily := core.Schedule{ID: "s", Recurrence: &core.Recurrence{Start: core.NewDate(2024, 1, 1), Every: core.Daily}}

	e := NewRecurrenceExpander(10)
	if _, err := e.Occurrences(ctx, daily, day(2024, 1, 1), day(2024, 12, 31)); !errors.Is(err, ErrTooManyOccurrences) {
		t.Fatalf("expected ErrTooManyOccurrences, got %v", err)
	}

	if _, err := e.Occurrences(ctx, daily, day(2024, 2, 1), day(2024, 1, 1)); !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	badCron := core.Schedule{ID: "s", Recurrence: &core.Recurrence{Start: core.NewDate(2024, 1, 1), Cron: "not a cron"}}
	if _, err := e.Occurrences(ctx, badCron, day(2024, 1, 1), day(2024, 1, 2)); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Occurrences(cancelled, daily, day(2024, 1, 1), day(2024, 1, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
