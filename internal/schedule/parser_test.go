package schedule

import (
	"testing"
	"time"
)

// The fixtures mirror real notification emails: a bordered table with a
// header row, day codes for non-working days, and inline markup around
// changed rows.

const scheduleChangeEmail = `
<p>Kedves Kolléga!</p>
<p>Beoszt&aacute;sod megv&aacute;ltozott:</p>
<table style="float: none;" border="1" cellspacing="0" cellpadding="3">
<tbody>
<tr>
<td><strong>Nap</strong></td>
<td><strong>D&aacute;tum</strong></td>
<td><strong>Beoszt&aacute;s</strong></td>
</tr>
<tr>
<td>Hétfő</td>
<td>2025.10.27</td>
<td>PN</td>
</tr>
<tr>
<td><strong><em>Szombat</em></strong></td>
<td><strong><em>2025.11.01</em></strong></td>
<td><strong><em>10:00-22:00</em></strong></td>
</tr>
</tbody>
</table>
`

const newScheduleEmail = `
<p>Aktu&aacute;lis beoszt&aacute;sod a k&ouml;vetkező:</p>
<table style="float: none;" border="1" cellspacing="0" cellpadding="3">
<tbody>
<tr>
<td>Csütörtök</td>
<td>2025.11.06</td>
<td>12:00-22:00</td>
</tr>
<tr>
<td>Péntek</td>
<td>2025.11.07</td>
<td>12:00-22:00</td>
</tr>
</tbody>
</table>
`

func testParser() *Parser {
	return NewParser(Options{Location: time.UTC})
}

func TestParse_ScheduleChange(t *testing.T) {
	shifts := testParser().Parse(scheduleChangeEmail)

	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}

	// Start is the parsed 10:00 minus the 20-minute grace.
	wantStart := time.Date(2025, 11, 1, 9, 40, 0, 0, time.UTC)
	if !shifts[0].Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, shifts[0].Start)
	}

	wantEnd := time.Date(2025, 11, 1, 22, 0, 0, 0, time.UTC)
	if !shifts[0].End.Equal(wantEnd) {
		t.Errorf("Expected end %v, got %v", wantEnd, shifts[0].End)
	}

	if shifts[0].Title != DefaultTitle {
		t.Errorf("Expected title %q, got %q", DefaultTitle, shifts[0].Title)
	}

	if shifts[0].Note != "Szombat: 10:00-22:00" {
		t.Errorf("Expected note 'Szombat: 10:00-22:00', got %q", shifts[0].Note)
	}
}

func TestParse_NewSchedule(t *testing.T) {
	shifts := testParser().Parse(newScheduleEmail)

	if len(shifts) != 2 {
		t.Fatalf("Expected 2 shifts, got %d", len(shifts))
	}

	wantStart := time.Date(2025, 11, 6, 11, 40, 0, 0, time.UTC)
	if !shifts[0].Start.Equal(wantStart) {
		t.Errorf("Expected first start %v, got %v", wantStart, shifts[0].Start)
	}

	// Document order must be preserved.
	if !shifts[1].Start.After(shifts[0].Start) {
		t.Errorf("Expected shifts in document order, got %v before %v", shifts[0].Start, shifts[1].Start)
	}
}

func TestParse_EmptyPayload(t *testing.T) {
	if shifts := testParser().Parse("<html><body>no schedule here</body></html>"); len(shifts) != 0 {
		t.Errorf("Expected no shifts from a payload without a table, got %d", len(shifts))
	}
}

func TestParse_OnlyHeaderAndDayCodes(t *testing.T) {
	payload := `<table>
<tr><td>Nap</td><td>Dátum</td><td>Beosztás</td></tr>
<tr><td>Hétfő</td><td>2025.10.27</td><td>PN</td></tr>
<tr><td>Kedd</td><td>2025.10.28</td><td>Szabi</td></tr>
<tr><td>Szerda</td><td>2025.10.29</td><td>Beteg</td></tr>
</table>`

	if shifts := testParser().Parse(payload); len(shifts) != 0 {
		t.Errorf("Expected no shifts from headers and day codes, got %d", len(shifts))
	}
}

func TestParseRows_SkipReasons(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want SkipReason
	}{
		{"two cells", "<tr><td>Hétfő</td><td>2025.10.27</td></tr>", SkipFieldCount},
		{"four cells", "<tr><td>a</td><td>b</td><td>c</td><td>d</td></tr>", SkipFieldCount},
		{"header day cell", "<tr><td>Nap</td><td>x</td><td>y</td></tr>", SkipHeader},
		{"header date cell", "<tr><td>x</td><td>Dátum</td><td>y</td></tr>", SkipHeader},
		{"bad date", "<tr><td>Hétfő</td><td>27.10.2025</td><td>10:00-22:00</td></tr>", SkipBadDate},
		{"rest day", "<tr><td>Hétfő</td><td>2025.10.27</td><td>PN</td></tr>", SkipNoTimeRange},
		{"free text", "<tr><td>Hétfő</td><td>2025.10.27</td><td>kérdéses</td></tr>", SkipNoTimeRange},
		{"impossible date", "<tr><td>Hétfő</td><td>2025.02.31</td><td>10:00-22:00</td></tr>", SkipBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := testParser().ParseRows(tt.row)
			if len(results) != 1 {
				t.Fatalf("Expected 1 row result, got %d", len(results))
			}
			if results[0].Shift != nil {
				t.Fatalf("Expected no shift, got %+v", results[0].Shift)
			}
			if results[0].Skipped != tt.want {
				t.Errorf("Expected skip reason %v, got %v", tt.want, results[0].Skipped)
			}
		})
	}
}

func TestParseRows_ImpossibleDateCarriesError(t *testing.T) {
	results := testParser().ParseRows("<tr><td>Hétfő</td><td>2025.02.31</td><td>10:00-22:00</td></tr>")

	if len(results) != 1 {
		t.Fatalf("Expected 1 row result, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("Expected the underlying parse error to be attached")
	}
}

func TestParse_DateAnnotationIgnored(t *testing.T) {
	payload := "<tr><td>Vasárnap</td><td>2025.11.02 (ma)</td><td>8:00-16:00</td></tr>"
	shifts := testParser().Parse(payload)

	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}

	wantStart := time.Date(2025, 11, 2, 7, 40, 0, 0, time.UTC)
	if !shifts[0].Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, shifts[0].Start)
	}
}

func TestParse_TagsSpanLines(t *testing.T) {
	payload := "<tr>\n<td>Szombat</td>\n<td>2025.11.01</td>\n<td><strong>10:00-22:00\n</strong></td>\n</tr>"
	shifts := testParser().Parse(payload)

	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift from a row with tags spanning lines, got %d", len(shifts))
	}
}

func TestParse_GraceAppliedToStartOnly(t *testing.T) {
	// The grace offset shifts every start back and never touches ends.
	rows := []struct {
		raw            string
		startHM, endHM [2]int
		date           [3]int
	}{
		{"<tr><td>a</td><td>2025.11.06</td><td>12:00-22:00</td></tr>", [2]int{11, 40}, [2]int{22, 0}, [3]int{2025, 11, 6}},
		{"<tr><td>b</td><td>2025.11.07</td><td>16:00-23:00</td></tr>", [2]int{15, 40}, [2]int{23, 0}, [3]int{2025, 11, 7}},
		{"<tr><td>c</td><td>2025.12.01</td><td>8:15-16:45</td></tr>", [2]int{7, 55}, [2]int{16, 45}, [3]int{2025, 12, 1}},
		{"<tr><td>d</td><td>2026.01.01</td><td>0:10-6:00</td></tr>", [2]int{23, 50}, [2]int{6, 0}, [3]int{2026, 1, 1}},
	}

	for _, row := range rows {
		shifts := testParser().Parse(row.raw)
		if len(shifts) != 1 {
			t.Fatalf("Expected 1 shift from %q, got %d", row.raw, len(shifts))
		}

		got := shifts[0]
		if got.Start.Hour() != row.startHM[0] || got.Start.Minute() != row.startHM[1] {
			t.Errorf("%q: expected start %02d:%02d, got %02d:%02d", row.raw, row.startHM[0], row.startHM[1], got.Start.Hour(), got.Start.Minute())
		}
		wantEnd := time.Date(row.date[0], time.Month(row.date[1]), row.date[2], row.endHM[0], row.endHM[1], 0, 0, time.UTC)
		if !got.End.Equal(wantEnd) {
			t.Errorf("%q: expected end %v, got %v", row.raw, wantEnd, got.End)
		}
	}
}

func TestParse_CustomOptions(t *testing.T) {
	p := NewParser(Options{
		Title:      "Shift",
		Grace:      10 * time.Minute,
		Location:   time.UTC,
		DayHeader:  "Day",
		DateHeader: "Date",
	})

	payload := `<table>
<tr><td>Day</td><td>Date</td><td>Shift</td></tr>
<tr><td>Monday</td><td>2025.10.27</td><td>9:00-17:00</td></tr>
</table>`

	shifts := p.Parse(payload)
	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}

	if shifts[0].Title != "Shift" {
		t.Errorf("Expected configured title, got %q", shifts[0].Title)
	}

	wantStart := time.Date(2025, 10, 27, 8, 50, 0, 0, time.UTC)
	if !shifts[0].Start.Equal(wantStart) {
		t.Errorf("Expected start %v with 10-minute grace, got %v", wantStart, shifts[0].Start)
	}
}
