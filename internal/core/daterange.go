package core

import (
	"fmt"
	"time"
)

// DateRange is a half-open civil-date interval [Start, End). Month/Year are
// only set for ranges derived from a calendar month.
type DateRange struct {
	Start Date
	End   Date // exclusive
	Month int
	Year  int
	Label string
}

// RangeRequest carries the optional range arguments a tool call may supply.
// Priority: explicit start/end dates, then explicit month+year, then
// MonthOffset (default 0 = current month).
type RangeRequest struct {
	StartDate   string // ISO YYYY-MM-DD, inclusive
	EndDate     string // ISO YYYY-MM-DD, inclusive
	Month       int    // 1..12, 0 = unset
	Year        int    // 0 = unset
	MonthOffset *int
}

// TodayIn returns the current civil date in loc. It must be called fresh on
// every request: civil "today" rolls over at loc's midnight regardless of
// process lifetime, so the result is never cached.
func TodayIn(now time.Time, loc *time.Location) Date {
	y, m, d := now.In(loc).Date()
	return NewDate(y, int(m), d)
}

// DeriveRange resolves a RangeRequest against the current instant.
func DeriveRange(now time.Time, loc *time.Location, req RangeRequest) (DateRange, error) {
	if req.StartDate != "" || req.EndDate != "" {
		start, err := ParseDate(req.StartDate)
		if err != nil {
			return DateRange{}, fmt.Errorf("start_date: %w", err)
		}
		endIncl, err := ParseDate(req.EndDate)
		if err != nil {
			return DateRange{}, fmt.Errorf("end_date: %w", err)
		}
		return ExplicitRange(start, endIncl)
	}

	// A half-specified pair (month without year or vice versa) is a
	// validation error rather than a silent current-month fallback, so
	// the caller sees which argument was missing.
	if req.Month != 0 || req.Year != 0 {
		return MonthOf(req.Month, req.Year)
	}

	offset := 0
	if req.MonthOffset != nil {
		offset = *req.MonthOffset
	}
	return MonthRange(now, loc, offset), nil
}

// ExplicitRange builds a range from an inclusive date pair; the exclusive
// end is endInclusive plus one day.
func ExplicitRange(start, endInclusive Date) (DateRange, error) {
	end := endInclusive.AddDays(1)
	if !start.Before(end) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{
		Start: start,
		End:   end,
		Label: fmt.Sprintf("từ %s đến %s", start.ISO(), endInclusive.ISO()),
	}, nil
}

// MonthOf builds the range [first day of month, first day of next month).
// Out-of-range values fail validation rather than wrapping.
func MonthOf(month, year int) (DateRange, error) {
	if month < 1 || month > 12 {
		return DateRange{}, ErrInvalidMonth
	}
	if year < 1900 || year > 3000 {
		return DateRange{}, ErrInvalidYear
	}
	return monthRangeAt(year, month), nil
}

// MonthRange resolves a month offset relative to the current civil month in
// loc. Offset 0 is this month, -1 the previous one. The absolute month
// index with floor division keeps negative offsets rolling back across year
// boundaries (January, offset -1 → December of the previous year).
func MonthRange(now time.Time, loc *time.Location, offset int) DateRange {
	today := TodayIn(now, loc)
	idx := today.Time.Year()*12 + int(today.Time.Month()) - 1 + offset
	year := floorDiv(idx, 12)
	month := idx - year*12 + 1
	return monthRangeAt(year, month)
}

// DayRange is the single civil day [today, tomorrow) in loc.
func DayRange(now time.Time, loc *time.Location) DateRange {
	today := TodayIn(now, loc)
	return DateRange{
		Start: today,
		End:   today.AddDays(1),
		Label: "hôm nay (" + today.Format("02/01/2006") + ")",
	}
}

// LastNDaysRange covers the n civil days ending today, inclusive.
func LastNDaysRange(now time.Time, loc *time.Location, n int) DateRange {
	today := TodayIn(now, loc)
	start := today.AddDays(-(n - 1))
	return DateRange{
		Start: start,
		End:   today.AddDays(1),
		Label: fmt.Sprintf("từ %s đến %s", start.Format("02/01/2006"), today.Format("02/01/2006")),
	}
}

func monthRangeAt(year, month int) DateRange {
	start := NewDate(year, month, 1)
	return DateRange{
		Start: start,
		End:   Date{Time: start.Time.AddDate(0, 1, 0)},
		Month: month,
		Year:  year,
		Label: fmt.Sprintf("tháng %d/%d", month, year),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
