package calendar

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

// CalDAVClient targets a CalDAV calendar (e.g. iCloud) instead of Google
// Calendar. Event IDs are the server paths of the .ics resources.
type CalDAVClient struct {
	httpClient   *http.Client
	username     string
	password     string
	serverURL    string
	calendarPath string
	loc          *time.Location
}

// NewCalDAVClient creates a CalDAV client. serverURL is the CalDAV
// endpoint (e.g. "https://caldav.icloud.com"); for iCloud the password
// must be an app-specific password.
func NewCalDAVClient(serverURL, username, password, timezone string) (*CalDAVClient, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", timezone, err)
	}

	return &CalDAVClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		username:   username,
		password:   password,
		serverURL:  serverURL,
		loc:        loc,
	}, nil
}

// FindCalendar selects the named calendar as the target for all further
// calls. CalDAV servers like iCloud do not allow creating calendars over
// the API, so the calendar must already exist.
func (c *CalDAVClient) FindCalendar(name string) (string, error) {
	propfindBody := `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:displayname/>
  </d:prop>
</d:propfind>`

	calendarPath := fmt.Sprintf("/%s/calendars/%s/", c.username, strings.ToLower(strings.ReplaceAll(name, " ", "-")))

	resp, err := c.makeRequest("PROPFIND", calendarPath, strings.NewReader(propfindBody))
	if err != nil {
		return "", fmt.Errorf("failed to look up calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("calendar %q not found (HTTP %d); create it manually on the server", name, resp.StatusCode)
	}

	c.calendarPath = calendarPath
	return calendarPath, nil
}

// FindManagedEvent implements Client.
func (c *CalDAVClient) FindManagedEvent(ctx context.Context, day time.Time, title string) (*Event, error) {
	events, err := c.FindManagedEventsInRange(ctx, day, day, title)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// FindManagedEventsInRange implements Client.
func (c *CalDAVClient) FindManagedEventsInRange(ctx context.Context, minDay, maxDay time.Time, title string) ([]Event, error) {
	lo := minDay.In(c.loc)
	hi := maxDay.In(c.loc)
	start := time.Date(lo.Year(), lo.Month(), lo.Day(), 0, 0, 0, 0, c.loc)
	end := time.Date(hi.Year(), hi.Month(), hi.Day(), 23, 59, 59, 999999000, c.loc)

	queryBody := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8" ?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data/>
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="%s" end="%s"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`, start.UTC().Format("20060102T150405Z"), end.UTC().Format("20060102T150405Z"))

	resp, err := c.makeRequest("REPORT", c.calendarPath, strings.NewReader(queryBody))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf("failed to query calendar: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	items, err := parseCalDAVResponse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CalDAV response: %w", err)
	}

	var events []Event
	for _, item := range items {
		cal, err := ical.NewDecoder(strings.NewReader(item.data)).Decode()
		if err != nil {
			continue
		}
		event, err := c.toEvent(item.href, cal)
		if err != nil || event.Title != title {
			continue
		}
		events = append(events, *event)
	}

	return events, nil
}

// CreateEvent implements Client.
func (c *CalDAVClient) CreateEvent(ctx context.Context, shift schedule.Shift) (*Event, error) {
	uid := fmt.Sprintf("shift-%s-%d", shift.Start.Format("20060102"), time.Now().UnixNano())
	href := c.calendarPath + uid + ".ics"

	if err := c.putEvent(href, uid, shift); err != nil {
		return nil, err
	}

	return &Event{ID: href, Title: shift.Title, Start: shift.Start, End: shift.End}, nil
}

// UpdateEvent implements Client. For CalDAV an update is a PUT to the
// existing resource, reusing its UID.
func (c *CalDAVClient) UpdateEvent(ctx context.Context, eventID string, shift schedule.Shift) (*Event, error) {
	uid := strings.TrimSuffix(path.Base(eventID), ".ics")

	if err := c.putEvent(eventID, uid, shift); err != nil {
		return nil, err
	}

	return &Event{ID: eventID, Title: shift.Title, Start: shift.Start, End: shift.End}, nil
}

// DeleteEvent implements Client.
func (c *CalDAVClient) DeleteEvent(ctx context.Context, eventID string) error {
	resp, err := c.makeRequest("DELETE", eventID, nil)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to delete event: HTTP %d", resp.StatusCode)
	}

	return nil
}

func (c *CalDAVClient) putEvent(href, uid string, shift schedule.Shift) error {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(shiftToICal(uid, shift)); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}

	resp, err := c.makeRequest("PUT", href, &buf)
	if err != nil {
		return fmt.Errorf("failed to put event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to put event: HTTP %d", resp.StatusCode)
	}

	return nil
}

// makeRequest makes an authenticated HTTP request to the CalDAV server.
func (c *CalDAVClient) makeRequest(method, reqPath string, body io.Reader) (*http.Response, error) {
	url := strings.TrimSuffix(c.serverURL, "/") + reqPath
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		switch method {
		case "PUT":
			req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
		default:
			req.Header.Set("Content-Type", "application/xml; charset=utf-8")
		}
	}
	req.Header.Set("Depth", "1")

	return c.httpClient.Do(req)
}

// toEvent converts a decoded iCalendar object into the reconciler's view.
func (c *CalDAVClient) toEvent(href string, cal *ical.Calendar) (*Event, error) {
	var vevent *ical.Component
	for _, comp := range cal.Children {
		if comp.Name == ical.CompEvent {
			vevent = comp
			break
		}
	}
	if vevent == nil {
		return nil, fmt.Errorf("no VEVENT in %s", href)
	}

	event := &Event{ID: href}
	if summary := vevent.Props.Get(ical.PropSummary); summary != nil {
		event.Title = summary.Value
	}

	dtstart := vevent.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, fmt.Errorf("no DTSTART in %s", href)
	}
	start, err := dtstart.DateTime(c.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DTSTART: %w", err)
	}
	event.Start = start.In(c.loc)

	if dtend := vevent.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		end, err := dtend.DateTime(c.loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DTEND: %w", err)
		}
		event.End = end.In(c.loc)
	} else {
		event.End = event.Start
	}

	return event, nil
}

// shiftToICal builds the iCalendar representation of a shift.
func shiftToICal(uid string, shift schedule.Shift) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//schedule-to-calendar//EN")

	vevent := ical.NewComponent(ical.CompEvent)
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, shift.Title)
	vevent.Props.SetText(ical.PropDescription, shift.Note)
	vevent.Props.SetDateTime(ical.PropDateTimeStart, shift.Start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, shift.End)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now())
	cal.Children = append(cal.Children, vevent)

	return cal
}

// calDAVItem is one response entry of a REPORT query.
type calDAVItem struct {
	href string
	data string
}

// parseCalDAVResponse extracts hrefs and iCalendar payloads from a
// multistatus REPORT response.
func parseCalDAVResponse(body []byte) ([]calDAVItem, error) {
	type calendarData struct {
		Data string `xml:",chardata"`
	}
	type prop struct {
		CalendarData calendarData `xml:"calendar-data"`
	}
	type response struct {
		Href string `xml:"href"`
		Prop prop   `xml:"propstat>prop"`
	}
	type multistatus struct {
		Responses []response `xml:"response"`
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	var items []calDAVItem
	for _, resp := range ms.Responses {
		if resp.Prop.CalendarData.Data != "" {
			items = append(items, calDAVItem{href: resp.Href, data: resp.Prop.CalendarData.Data})
		}
	}

	return items, nil
}
