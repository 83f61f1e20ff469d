// Package schedule extracts work shifts from the HTML table embedded in
// schedule notification emails. The table convention is three columns per
// row: day name, date (YYYY.MM.DD, possibly annotated), and the shift
// description (a time range like "12:00-22:00", or a day code such as
// "PN" for a rest day).
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTitle labels the calendar events this tool manages.
	DefaultTitle = "Work at McDonald's"
	// DefaultGrace is subtracted from each parsed start time so the
	// calendar entry begins before the shift does.
	DefaultGrace = 20 * time.Minute
	// DefaultDayHeader and DefaultDateHeader are the localized column
	// headers of the schedule table.
	DefaultDayHeader  = "Nap"
	DefaultDateHeader = "Dátum"
)

var (
	rowRe  = regexp.MustCompile(`(?is)<tr>(.*?)</tr>`)
	cellRe = regexp.MustCompile(`(?is)<td>(.*?)</td>`)
	tagRe  = regexp.MustCompile(`<[^>]*>`)
	dateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}`)
	timeRe = regexp.MustCompile(`(\d{1,2}:\d{2})-(\d{1,2}:\d{2})`)
)

// Options configures a Parser. Zero values fall back to the package
// defaults, so Options{} gives the stock behavior.
type Options struct {
	Title      string         // event title for extracted shifts
	Grace      time.Duration  // subtracted from each shift's start
	Location   *time.Location // zone the timestamps are built in
	DayHeader  string         // localized "Day" header token
	DateHeader string         // localized "Date" header token
}

// Parser turns one email body into a sequence of shifts.
type Parser struct {
	title      string
	grace      time.Duration
	loc        *time.Location
	dayHeader  string
	dateHeader string
}

// NewParser creates a Parser, applying defaults for unset options.
func NewParser(opts Options) *Parser {
	p := &Parser{
		title:      opts.Title,
		grace:      opts.Grace,
		loc:        opts.Location,
		dayHeader:  opts.DayHeader,
		dateHeader: opts.DateHeader,
	}
	if p.title == "" {
		p.title = DefaultTitle
	}
	if p.grace == 0 {
		p.grace = DefaultGrace
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.dayHeader == "" {
		p.dayHeader = DefaultDayHeader
	}
	if p.dateHeader == "" {
		p.dateHeader = DefaultDateHeader
	}
	return p
}

// Parse extracts all shifts from body, in document order. Rows that do
// not describe a shift (headers, rest days, malformed rows) are dropped;
// a body with no usable rows yields an empty slice, not an error.
func (p *Parser) Parse(body string) []Shift {
	var shifts []Shift
	for _, res := range p.ParseRows(body) {
		if res.Shift != nil {
			shifts = append(shifts, *res.Shift)
		}
	}
	return shifts
}

// ParseRows extracts per-row outcomes from body, in document order. Each
// table row yields exactly one RowResult, so callers can distinguish a
// rest day from a malformed row.
func (p *Parser) ParseRows(body string) []RowResult {
	// Tags may span lines in the raw email; collapse newlines before
	// matching row boundaries.
	content := strings.ReplaceAll(body, "\r", "")
	content = strings.ReplaceAll(content, "\n", "")

	var results []RowResult
	for _, row := range rowRe.FindAllStringSubmatch(content, -1) {
		results = append(results, p.parseRow(row[1]))
	}
	return results
}

func (p *Parser) parseRow(row string) RowResult {
	cells := cellRe.FindAllStringSubmatch(row, -1)
	if len(cells) != 3 {
		return RowResult{Skipped: SkipFieldCount}
	}

	// Strip inline markup (<strong>, <em>, ...) from each cell.
	dayName := cleanHTML(cells[0][1])
	dateStr := cleanHTML(cells[1][1])
	scheduleStr := cleanHTML(cells[2][1])

	if strings.Contains(dayName, p.dayHeader) || strings.Contains(dateStr, p.dateHeader) {
		return RowResult{Skipped: SkipHeader}
	}

	// The date cell may carry an annotation, e.g. "2025.11.02 (ma)";
	// only the leading token counts.
	dateStr = strings.TrimSpace(strings.SplitN(dateStr, " ", 2)[0])
	if !dateRe.MatchString(dateStr) {
		return RowResult{Skipped: SkipBadDate}
	}

	// Day codes like "PN" (rest day), "Szabi" (holiday) or "Beteg"
	// (sick) carry no time range and produce no shift.
	m := timeRe.FindStringSubmatch(scheduleStr)
	if m == nil {
		return RowResult{Skipped: SkipNoTimeRange}
	}

	start, err := time.ParseInLocation("2006.01.02 15:04", dateStr+" "+m[1], p.loc)
	if err != nil {
		return RowResult{Skipped: SkipBadTimestamp, Err: fmt.Errorf("parsing shift start: %w", err)}
	}
	end, err := time.ParseInLocation("2006.01.02 15:04", dateStr+" "+m[2], p.loc)
	if err != nil {
		return RowResult{Skipped: SkipBadTimestamp, Err: fmt.Errorf("parsing shift end: %w", err)}
	}

	return RowResult{Shift: &Shift{
		Start: start.Add(-p.grace),
		End:   end,
		Title: p.title,
		Note:  fmt.Sprintf("%s: %s", dayName, scheduleStr),
	}}
}

// cleanHTML removes markup tags from a cell, leaving trimmed plain text.
func cleanHTML(raw string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(raw, ""))
}
