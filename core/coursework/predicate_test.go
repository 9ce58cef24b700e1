package coursework

import (
	"math"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	yesterday := null.TimeFrom(now.Add(-24 * time.Hour))
	tomorrow := null.TimeFrom(now.Add(24 * time.Hour))

	tests := []struct {
		name       string
		dueAt      null.Time
		status     Status
		wantStatus Status
		wantOk     bool
	}{
		{name: "pending past due", dueAt: yesterday, status: StatusPending, wantStatus: StatusOverdue, wantOk: true},
		{name: "pending not yet due", dueAt: tomorrow, status: StatusPending},
		{name: "pending due exactly now", dueAt: null.TimeFrom(now), status: StatusPending},
		{name: "pending due a nanosecond ago", dueAt: null.TimeFrom(now.Add(-time.Nanosecond)), status: StatusPending, wantStatus: StatusOverdue, wantOk: true},
		{name: "pending without due date", dueAt: null.Time{}, status: StatusPending},
		{name: "submitted past due", dueAt: yesterday, status: StatusSubmitted},
		{name: "graded past due", dueAt: yesterday, status: StatusGraded},
		{name: "already overdue", dueAt: yesterday, status: StatusOverdue},
		{name: "unknown status", dueAt: yesterday, status: Status("late")},
		{name: "empty status", dueAt: yesterday, status: Status("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus, gotOk := Evaluate(tt.dueAt, now, tt.status)
			if gotStatus != tt.wantStatus || gotOk != tt.wantOk {
				t.Errorf("Evaluate() = (%q, %v), want (%q, %v)", gotStatus, gotOk, tt.wantStatus, tt.wantOk)
			}
		})
	}
}

func TestParseDueDate(t *testing.T) {
	kinshasa, err := time.LoadLocation("Africa/Kinshasa")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	tests := []struct {
		name      string
		raw       interface{}
		loc       *time.Location
		wantValid bool
		want      time.Time
	}{
		{name: "rfc3339", raw: "2024-03-09T23:59:00Z", wantValid: true, want: time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)},
		{name: "rfc3339 with offset", raw: "2024-03-09T23:59:00+01:00", wantValid: true, want: time.Date(2024, 3, 9, 22, 59, 0, 0, time.UTC)},
		{name: "rfc3339 nano", raw: "2024-03-09T23:59:00.5Z", wantValid: true, want: time.Date(2024, 3, 9, 23, 59, 0, 5e8, time.UTC)},
		{name: "date only utc", raw: "2024-03-09", wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "date only in location", raw: "2024-03-09", loc: kinshasa, wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, kinshasa)},
		{name: "datetime-local", raw: "2024-03-09T08:30", wantValid: true, want: time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)},
		{name: "datetime with space", raw: "2024-03-09 08:30:15", wantValid: true, want: time.Date(2024, 3, 9, 8, 30, 15, 0, time.UTC)},
		{name: "day first", raw: "09/03/2024", wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "surrounding spaces", raw: "  2024-03-09 ", wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis", raw: float64(1710028800000), wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis int", raw: 1710028800000, wantValid: true, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "empty string", raw: ""},
		{name: "garbage", raw: "next friday"},
		{name: "invalid date", raw: "2024-02-31"},
		{name: "zero millis", raw: float64(0), wantValid: true, want: time.Unix(0, 0)},
		{name: "negative millis", raw: float64(-5), wantValid: true, want: time.UnixMilli(-5)},
		{name: "fractional millis", raw: 1.9, wantValid: true, want: time.UnixMilli(1)},
		{name: "latest representable millis", raw: float64(8.64e15), wantValid: true, want: time.UnixMilli(8.64e15)},
		{name: "millis past range", raw: float64(8.64e15 + 1)},
		{name: "millis overflowing int64", raw: float64(1e19)},
		{name: "huge millis", raw: float64(1e300)},
		{name: "huge negative millis", raw: float64(-1e300)},
		{name: "infinite millis", raw: math.Inf(-1)},
		{name: "NaN millis", raw: math.NaN()},
		{name: "bool", raw: true},
		{name: "nil", raw: nil},
		{name: "object", raw: map[string]interface{}{"seconds": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDueDate(tt.raw, tt.loc)
			if got.Valid != tt.wantValid {
				t.Fatalf("ParseDueDate() valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if tt.wantValid && !got.Time.Equal(tt.want) {
				t.Errorf("ParseDueDate() = %v, want %v", got.Time, tt.want)
			}
		})
	}
}
