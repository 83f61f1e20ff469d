package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

// mockFetcher serves message bodies from a map; missing IDs fail.
type mockFetcher struct {
	bodies  map[string]string
	fetched []string
}

func (m *mockFetcher) FetchPayload(ctx context.Context, messageID string) (string, error) {
	m.fetched = append(m.fetched, messageID)
	body, ok := m.bodies[messageID]
	if !ok {
		return "", fmt.Errorf("no content for message %s", messageID)
	}
	return body, nil
}

// mockLedger is an in-memory Ledger.
type mockLedger struct {
	processed map[string]bool
	marked    []string
}

func newMockLedger() *mockLedger {
	return &mockLedger{processed: make(map[string]bool)}
}

func (m *mockLedger) IsProcessed(messageID string) (bool, error) {
	return m.processed[messageID], nil
}

func (m *mockLedger) MarkProcessed(messageID string) error {
	m.processed[messageID] = true
	m.marked = append(m.marked, messageID)
	return nil
}

func shiftRow(date, times string) string {
	return fmt.Sprintf("<tr><td>Hétfő</td><td>%s</td><td>%s</td></tr>", date, times)
}

func newTestProcessor(fetcher *mockFetcher, client *mockCalendarClient, ledger Ledger) *Processor {
	parser := schedule.NewParser(schedule.Options{})
	return NewProcessor(fetcher, parser, NewReconciler(client), ledger)
}

func TestProcess_AccumulatesCounters(t *testing.T) {
	fetcher := &mockFetcher{bodies: map[string]string{
		"msg-1": shiftRow("2025.11.06", "12:00-22:00"),
		"msg-2": shiftRow("2025.11.07", "12:00-22:00") + shiftRow("2025.11.08", "8:00-16:00"),
	}}
	mockClient := newMockCalendarClient()

	added, updated, deleted := newTestProcessor(fetcher, mockClient, nil).
		Process(context.Background(), []string{"msg-1", "msg-2"})

	if added != 3 || updated != 0 || deleted != 0 {
		t.Errorf("Expected (3, 0, 0) across both messages, got (%d, %d, %d)", added, updated, deleted)
	}
}

func TestProcess_FetchErrorDoesNotAbortRun(t *testing.T) {
	fetcher := &mockFetcher{bodies: map[string]string{
		"msg-2": shiftRow("2025.11.07", "12:00-22:00"),
	}}
	mockClient := newMockCalendarClient()

	added, _, _ := newTestProcessor(fetcher, mockClient, nil).
		Process(context.Background(), []string{"msg-1", "msg-2"})

	if added != 1 {
		t.Errorf("Expected the second message to be applied after a fetch error, got added=%d", added)
	}
	if len(fetcher.fetched) != 2 {
		t.Errorf("Expected both messages to be attempted, got %v", fetcher.fetched)
	}
}

func TestProcess_SkipsProcessedMessages(t *testing.T) {
	fetcher := &mockFetcher{bodies: map[string]string{
		"msg-1": shiftRow("2025.11.06", "12:00-22:00"),
		"msg-2": shiftRow("2025.11.07", "12:00-22:00"),
	}}
	mockClient := newMockCalendarClient()
	ledger := newMockLedger()
	ledger.processed["msg-1"] = true

	added, _, _ := newTestProcessor(fetcher, mockClient, ledger).
		Process(context.Background(), []string{"msg-1", "msg-2"})

	if added != 1 {
		t.Errorf("Expected only the unprocessed message to be applied, got added=%d", added)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "msg-2" {
		t.Errorf("Expected only msg-2 to be fetched, got %v", fetcher.fetched)
	}
	if len(ledger.marked) != 1 || ledger.marked[0] != "msg-2" {
		t.Errorf("Expected only msg-2 to be marked, got %v", ledger.marked)
	}
}

func TestProcess_MarksMessagesWithoutShifts(t *testing.T) {
	// A notification whose table holds only rest days still counts as
	// processed, so later runs do not refetch it.
	fetcher := &mockFetcher{bodies: map[string]string{
		"msg-1": shiftRow("2025.11.06", "PN"),
	}}
	mockClient := newMockCalendarClient()
	ledger := newMockLedger()

	added, updated, deleted := newTestProcessor(fetcher, mockClient, ledger).
		Process(context.Background(), []string{"msg-1"})

	if added != 0 || updated != 0 || deleted != 0 {
		t.Errorf("Expected (0, 0, 0) for a shift-free message, got (%d, %d, %d)", added, updated, deleted)
	}
	if len(mockClient.createdEvents) != 0 {
		t.Errorf("Expected no calendar calls for a shift-free message, got %d creates", len(mockClient.createdEvents))
	}
	if !ledger.processed["msg-1"] {
		t.Error("Expected the shift-free message to be marked processed")
	}
}

func TestProcess_LaterMessageSupersedesEarlier(t *testing.T) {
	// An updated notification moves the shift and drops a day; applying
	// oldest first leaves the calendar matching the newest table.
	fetcher := &mockFetcher{bodies: map[string]string{
		"msg-old": shiftRow("2025.11.27", "10:00-18:00") + shiftRow("2025.11.28", "10:00-18:00"),
		"msg-new": shiftRow("2025.11.27", "12:00-22:00") + shiftRow("2025.11.29", "12:00-22:00"),
	}}
	mockClient := newMockCalendarClient()

	added, updated, deleted := newTestProcessor(fetcher, mockClient, nil).
		Process(context.Background(), []string{"msg-old", "msg-new"})

	if added != 3 || updated != 1 || deleted != 1 {
		t.Errorf("Expected (3, 1, 1), got (%d, %d, %d)", added, updated, deleted)
	}
	if len(mockClient.events) != 2 {
		t.Fatalf("Expected 2 events to remain, got %d", len(mockClient.events))
	}
}
