// Package calendar provides access to the target calendar. The Google
// Calendar client is the primary backend; a CalDAV client implements the
// same interface for destinations like iCloud.
package calendar

import (
	"context"
	"time"

	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

// Event is the read-only view of an existing calendar entry that the
// reconciler needs for matching. ID is opaque to everything but the
// client that produced it.
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// Day returns the event's calendar day in the event's location.
func (e Event) Day() time.Time {
	return time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, e.Start.Location())
}

// Client is the calendar access contract the reconciler depends on.
// Query methods scope by whole calendar days in the configured zone;
// mutation methods are issued at most once per shift or stale event.
type Client interface {
	// FindManagedEvent looks for an event titled title on the calendar
	// day containing day. Returns nil, nil when there is none. When
	// several events share the day, the first one the backend returns
	// wins.
	FindManagedEvent(ctx context.Context, day time.Time, title string) (*Event, error)

	// FindManagedEventsInRange returns all events titled title whose day
	// falls within [minDay, maxDay], both inclusive.
	FindManagedEventsInRange(ctx context.Context, minDay, maxDay time.Time, title string) ([]Event, error)

	// CreateEvent creates a calendar entry for the shift.
	CreateEvent(ctx context.Context, shift schedule.Shift) (*Event, error)

	// UpdateEvent replaces the entry identified by eventID with the
	// shift's fields.
	UpdateEvent(ctx context.Context, eventID string, shift schedule.Shift) (*Event, error)

	// DeleteEvent removes the entry identified by eventID.
	DeleteEvent(ctx context.Context, eventID string) error
}
