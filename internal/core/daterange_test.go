package core

import (
	"errors"
	"testing"
	"time"
)

var hcm = time.FixedZone("ICT", 7*3600)

func TestMonthRange_CurrentMonth(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	r := MonthRange(now, hcm, 0)

	if r.Start.ISO() != "2025-03-01" {
		t.Errorf("expected start 2025-03-01, got %s", r.Start.ISO())
	}
	if r.End.ISO() != "2025-04-01" {
		t.Errorf("expected exclusive end 2025-04-01, got %s", r.End.ISO())
	}
	if r.Label != "tháng 3/2025" {
		t.Errorf("unexpected label %q", r.Label)
	}
}

func TestMonthRange_YearRollback(t *testing.T) {
	// January with offset -1 must resolve to December of the previous
	// year, not "month 0".
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	r := MonthRange(now, hcm, -1)

	if r.Month != 12 || r.Year != 2024 {
		t.Errorf("expected 12/2024, got %d/%d", r.Month, r.Year)
	}
	if r.Start.ISO() != "2024-12-01" || r.End.ISO() != "2025-01-01" {
		t.Errorf("unexpected range [%s, %s)", r.Start.ISO(), r.End.ISO())
	}
}

func TestMonthRange_LargeNegativeOffset(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	r := MonthRange(now, hcm, -14)

	if r.Month != 12 || r.Year != 2023 {
		t.Errorf("expected 12/2023, got %d/%d", r.Month, r.Year)
	}
}

func TestMonthRange_TimezoneCivilDay(t *testing.T) {
	// 18:30 UTC on Jan 31 is already Feb 1 in ICT; the current month must
	// follow the reference timezone, not the host clock.
	now := time.Date(2025, 1, 31, 18, 30, 0, 0, time.UTC)
	r := MonthRange(now, hcm, 0)

	if r.Month != 2 || r.Year != 2025 {
		t.Errorf("expected 2/2025 in ICT, got %d/%d", r.Month, r.Year)
	}
}

func TestMonthOf_Validation(t *testing.T) {
	tests := []struct {
		name    string
		month   int
		year    int
		wantErr error
	}{
		{"valid", 7, 2024, nil},
		{"month zero", 0, 2024, ErrInvalidMonth},
		{"month thirteen", 13, 2024, ErrInvalidMonth},
		{"year too small", 5, 1800, ErrInvalidYear},
		{"year too large", 5, 3999, ErrInvalidYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MonthOf(tt.month, tt.year)
			if err != tt.wantErr {
				t.Errorf("MonthOf(%d, %d) error = %v, want %v", tt.month, tt.year, err, tt.wantErr)
			}
		})
	}
}

func TestDeriveRange_Priority(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	offset := -3

	// Explicit dates win over everything else.
	r, err := DeriveRange(now, hcm, RangeRequest{
		StartDate:   "2025-01-10",
		EndDate:     "2025-01-20",
		Month:       4,
		Year:        2024,
		MonthOffset: &offset,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start.ISO() != "2025-01-10" || r.End.ISO() != "2025-01-21" {
		t.Errorf("explicit dates: got [%s, %s)", r.Start.ISO(), r.End.ISO())
	}

	// Month+year next.
	r, err = DeriveRange(now, hcm, RangeRequest{Month: 4, Year: 2024, MonthOffset: &offset})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Month != 4 || r.Year != 2024 {
		t.Errorf("month+year: got %d/%d", r.Month, r.Year)
	}

	// MonthOffset last.
	r, err = DeriveRange(now, hcm, RangeRequest{MonthOffset: &offset})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Month != 3 || r.Year != 2025 {
		t.Errorf("offset -3 from June: got %d/%d", r.Month, r.Year)
	}
}

func TestDeriveRange_HalfSpecifiedMonthYear(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	if _, err := DeriveRange(now, hcm, RangeRequest{Month: 4}); !errors.Is(err, ErrInvalidYear) {
		t.Errorf("month without year: error = %v, want %v", err, ErrInvalidYear)
	}
	if _, err := DeriveRange(now, hcm, RangeRequest{Year: 2024}); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("year without month: error = %v, want %v", err, ErrInvalidMonth)
	}
}

func TestDeriveRange_MalformedDates(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	for _, bad := range []string{"2025/01/10", "10-01-2025", "2025-1-5", "yesterday"} {
		_, err := DeriveRange(now, hcm, RangeRequest{StartDate: bad, EndDate: "2025-02-01"})
		if err == nil {
			t.Errorf("expected error for start_date %q", bad)
		}
	}
}

func TestExplicitRange_Inverted(t *testing.T) {
	_, err := ExplicitRange(NewDate(2025, 5, 10), NewDate(2025, 5, 1))
	if err != ErrInvalidRange {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestDayAndLastNDaysRange(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	day := DayRange(now, hcm)
	if day.Start.ISO() != "2025-03-10" || day.End.ISO() != "2025-03-11" {
		t.Errorf("day range: got [%s, %s)", day.Start.ISO(), day.End.ISO())
	}

	week := LastNDaysRange(now, hcm, 7)
	if week.Start.ISO() != "2025-03-04" || week.End.ISO() != "2025-03-11" {
		t.Errorf("7-day range: got [%s, %s)", week.Start.ISO(), week.End.ISO())
	}
}
