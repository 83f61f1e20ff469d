package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

// GoogleClient talks to the Google Calendar API. It operates on one
// calendar, selected with FindOrCreateCalendar (default "primary").
type GoogleClient struct {
	service    *gcal.Service
	calendarID string
	loc        *time.Location
	timezone   string
}

// NewGoogleClient creates a Google Calendar client using the provided
// authenticated HTTP client. timezone is the IANA zone name the target
// calendar lives in (e.g. "Europe/Budapest").
func NewGoogleClient(ctx context.Context, httpClient *http.Client, timezone string) (*GoogleClient, error) {
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", timezone, err)
	}

	return &GoogleClient{
		service:    service,
		calendarID: "primary",
		loc:        loc,
		timezone:   timezone,
	}, nil
}

// FindOrCreateCalendar selects the calendar with the given name as the
// target for all further calls, creating it in the configured time zone
// if it does not exist. Returns the calendar ID.
func (c *GoogleClient) FindOrCreateCalendar(ctx context.Context, name string) (string, error) {
	pageToken := ""
	for {
		call := c.service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var list *gcal.CalendarList
		err := c.doWithRetry(ctx, "list calendars", func() error {
			var doErr error
			list, doErr = call.Do()
			return doErr
		})
		if err != nil {
			return "", fmt.Errorf("failed to list calendars: %w", err)
		}

		for _, entry := range list.Items {
			if entry.Summary == name {
				c.calendarID = entry.Id
				return entry.Id, nil
			}
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}

	var created *gcal.Calendar
	err := c.doWithRetry(ctx, "create calendar", func() error {
		var doErr error
		created, doErr = c.service.Calendars.Insert(&gcal.Calendar{
			Summary:  name,
			TimeZone: c.timezone,
		}).Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to create calendar %q: %w", name, err)
	}

	c.calendarID = created.Id
	return created.Id, nil
}

// FindManagedEvent implements Client. The query spans the full calendar
// day of day in the configured zone, so a rescheduled shift on the same
// day still matches its old entry.
func (c *GoogleClient) FindManagedEvent(ctx context.Context, day time.Time, title string) (*Event, error) {
	timeMin, timeMax := c.dayWindow(day, day)

	var list *gcal.Events
	err := c.doWithRetry(ctx, "query day", func() error {
		var doErr error
		list, doErr = c.service.Events.List(c.calendarID).
			TimeMin(timeMin).
			TimeMax(timeMax).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events on %s: %w", day.Format("2006-01-02"), err)
	}

	for _, item := range list.Items {
		if item.Summary == title {
			return c.toEvent(item)
		}
	}

	return nil, nil
}

// FindManagedEventsInRange implements Client.
func (c *GoogleClient) FindManagedEventsInRange(ctx context.Context, minDay, maxDay time.Time, title string) ([]Event, error) {
	timeMin, timeMax := c.dayWindow(minDay, maxDay)

	var list *gcal.Events
	err := c.doWithRetry(ctx, "query range", func() error {
		var doErr error
		list, doErr = c.service.Events.List(c.calendarID).
			TimeMin(timeMin).
			TimeMax(timeMax).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events in range: %w", err)
	}

	var events []Event
	for _, item := range list.Items {
		if item.Summary != title {
			continue
		}
		event, err := c.toEvent(item)
		if err != nil {
			log.Printf("Warning: skipping event %s with unparseable times: %v", item.Id, err)
			continue
		}
		events = append(events, *event)
	}

	return events, nil
}

// CreateEvent implements Client.
func (c *GoogleClient) CreateEvent(ctx context.Context, shift schedule.Shift) (*Event, error) {
	var created *gcal.Event
	err := c.doWithRetry(ctx, "insert event", func() error {
		var doErr error
		created, doErr = c.service.Events.Insert(c.calendarID, c.eventBody(shift)).
			SendUpdates("none").
			Context(ctx).
			Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return c.toEvent(created)
}

// UpdateEvent implements Client.
func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, shift schedule.Shift) (*Event, error) {
	var updated *gcal.Event
	err := c.doWithRetry(ctx, "update event", func() error {
		var doErr error
		updated, doErr = c.service.Events.Update(c.calendarID, eventID, c.eventBody(shift)).
			SendUpdates("none").
			Context(ctx).
			Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	return c.toEvent(updated)
}

// DeleteEvent implements Client.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.doWithRetry(ctx, "delete event", func() error {
		return c.service.Events.Delete(c.calendarID, eventID).
			SendUpdates("none").
			Context(ctx).
			Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	return nil
}

// dayWindow builds the wire-format query bounds covering the whole days
// from minDay through maxDay in the configured zone:
// [00:00:00.000000, 23:59:59.999999] converted to UTC RFC3339.
func (c *GoogleClient) dayWindow(minDay, maxDay time.Time) (timeMin, timeMax string) {
	lo := minDay.In(c.loc)
	hi := maxDay.In(c.loc)
	start := time.Date(lo.Year(), lo.Month(), lo.Day(), 0, 0, 0, 0, c.loc)
	end := time.Date(hi.Year(), hi.Month(), hi.Day(), 23, 59, 59, 999999000, c.loc)
	return start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)
}

// eventBody builds the wire representation of a shift.
func (c *GoogleClient) eventBody(shift schedule.Shift) *gcal.Event {
	return &gcal.Event{
		Summary:     shift.Title,
		Description: shift.Note,
		Start: &gcal.EventDateTime{
			DateTime: shift.Start.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: shift.End.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
	}
}

// toEvent converts an API event into the reconciler's view, with times
// in the configured zone.
func (c *GoogleClient) toEvent(item *gcal.Event) (*Event, error) {
	start, err := c.parseEventTime(item.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event start: %w", err)
	}
	end, err := c.parseEventTime(item.End)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event end: %w", err)
	}

	return &Event{
		ID:    item.Id,
		Title: item.Summary,
		Start: start,
		End:   end,
	}, nil
}

func (c *GoogleClient) parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(c.loc), nil
	}
	// All-day events carry a bare date.
	return time.ParseInLocation("2006-01-02", edt.Date, c.loc)
}

// doWithRetry runs an API call with exponential backoff and jitter.
// Client errors other than rate limiting are not retried.
func (c *GoogleClient) doWithRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err == nil {
				return nil
			}
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) &&
				apiErr.Code != http.StatusTooManyRequests &&
				apiErr.Code < http.StatusInternalServerError {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("Retrying calendar %s (attempt %d): %v", op, n+1, err)
		}),
	)
}
