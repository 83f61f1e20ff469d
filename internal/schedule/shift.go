package schedule

import "time"

// Shift is one extracted work period. Start already has the grace
// adjustment applied (the schedule says when the shift begins; the
// calendar entry starts earlier so there is time to arrive).
type Shift struct {
	Start time.Time
	End   time.Time
	Title string
	Note  string
}

// Day returns the shift's calendar day (midnight in the shift's location).
func (s Shift) Day() time.Time {
	return time.Date(s.Start.Year(), s.Start.Month(), s.Start.Day(), 0, 0, 0, 0, s.Start.Location())
}

// SkipReason explains why a table row produced no shift.
type SkipReason int

const (
	// NotSkipped marks a row that produced a shift.
	NotSkipped SkipReason = iota
	// SkipFieldCount marks a row without exactly three cells.
	SkipFieldCount
	// SkipHeader marks the localized header row.
	SkipHeader
	// SkipBadDate marks a date cell that is not YYYY.MM.DD.
	SkipBadDate
	// SkipNoTimeRange marks a rest day, holiday or sick-day code.
	SkipNoTimeRange
	// SkipBadTimestamp marks a date/time pair that does not combine
	// into a real timestamp.
	SkipBadTimestamp
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "not skipped"
	case SkipFieldCount:
		return "wrong field count"
	case SkipHeader:
		return "header row"
	case SkipBadDate:
		return "unparseable date"
	case SkipNoTimeRange:
		return "no time range"
	case SkipBadTimestamp:
		return "bad timestamp"
	default:
		return "unknown"
	}
}

// RowResult is the outcome of parsing one table row. Exactly one of
// Shift or Skipped is meaningful: Shift is non-nil when the row parsed,
// otherwise Skipped says why it did not. Err carries the underlying
// parse error for SkipBadTimestamp rows.
type RowResult struct {
	Shift   *Shift
	Skipped SkipReason
	Err     error
}
