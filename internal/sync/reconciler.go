// Package sync reconciles extracted shifts against the target calendar:
// create what is new, update what changed, delete what a later
// notification no longer lists.
package sync

import (
	"context"
	"log"
	"time"

	"github.com/ba1int/schedule-to-calendar/internal/calendar"
	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

const dayKey = "2006-01-02"

// Reconciler applies one batch of shifts (one notification's table) to
// the calendar. Failures of individual calendar calls are logged and
// skipped; they never abort the rest of the batch.
type Reconciler struct {
	client calendar.Client
}

// NewReconciler creates a Reconciler using the given calendar access.
func NewReconciler(client calendar.Client) *Reconciler {
	return &Reconciler{client: client}
}

// Reconcile synchronizes the calendar with one batch of shifts and
// reports how many events were created, updated and deleted.
//
// Each shift is matched against the managed event on its calendar day:
// a match is updated in place, otherwise a new event is created. After
// the per-shift pass, managed events inside the batch's day window
// [min day, max day] whose day the batch no longer mentions are deleted.
// Deletion never reaches outside that window, so a notification
// covering one week cannot remove shifts another notification created
// for the next.
func (r *Reconciler) Reconcile(ctx context.Context, shifts []schedule.Shift) (added, updated, deleted int) {
	if len(shifts) == 0 {
		return 0, 0, 0
	}

	// Days described by this batch; also the deletion window bounds.
	batchDays := make(map[string]bool, len(shifts))
	var minDay, maxDay time.Time
	for _, shift := range shifts {
		day := shift.Day()
		batchDays[day.Format(dayKey)] = true
		if minDay.IsZero() || day.Before(minDay) {
			minDay = day
		}
		if maxDay.IsZero() || day.After(maxDay) {
			maxDay = day
		}
	}

	for _, shift := range shifts {
		existing, err := r.client.FindManagedEvent(ctx, shift.Day(), shift.Title)
		if err != nil {
			log.Printf("Warning: failed to look up %s, skipping shift: %v", shift.Day().Format(dayKey), err)
			continue
		}

		if existing != nil {
			if _, err := r.client.UpdateEvent(ctx, existing.ID, shift); err != nil {
				log.Printf("Warning: failed to update event %s: %v", existing.ID, err)
				continue
			}
			updated++
		} else {
			if _, err := r.client.CreateEvent(ctx, shift); err != nil {
				log.Printf("Warning: failed to create event for %s: %v", shift.Start.Format(dayKey), err)
				continue
			}
			log.Printf("Added: %s - %s", shift.Start.Format("2006-01-02 15:04"), shift.Title)
			added++
		}
	}

	// Remove shifts the schedule no longer lists. The batch's title
	// scopes the query to managed events; unrelated calendar content
	// is never touched.
	title := shifts[0].Title
	existing, err := r.client.FindManagedEventsInRange(ctx, minDay, maxDay, title)
	if err != nil {
		log.Printf("Warning: failed to query window %s..%s, skipping stale-shift cleanup: %v",
			minDay.Format(dayKey), maxDay.Format(dayKey), err)
		return added, updated, deleted
	}

	for _, event := range existing {
		if batchDays[event.Day().Format(dayKey)] {
			continue
		}
		if err := r.client.DeleteEvent(ctx, event.ID); err != nil {
			log.Printf("Warning: failed to delete stale event %s: %v", event.ID, err)
			continue
		}
		log.Printf("Deleted stale shift on %s (event %s)", event.Day().Format(dayKey), event.ID)
		deleted++
	}

	return added, updated, deleted
}
