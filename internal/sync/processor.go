package sync

import (
	"context"
	"log"

	"github.com/ba1int/schedule-to-calendar/internal/schedule"
)

// PayloadFetcher retrieves one message's decoded body.
type PayloadFetcher interface {
	FetchPayload(ctx context.Context, messageID string) (string, error)
}

// Ledger records which messages have already been applied, so repeated
// runs are incremental.
type Ledger interface {
	IsProcessed(messageID string) (bool, error)
	MarkProcessed(messageID string) error
}

// Processor runs the whole pipeline for a list of messages: fetch the
// body, extract shifts, reconcile the calendar. Messages must be
// supplied oldest first; the reconciler's deletion window relies on a
// newer notification always being applied after the older one it
// supersedes.
type Processor struct {
	fetcher    PayloadFetcher
	parser     *schedule.Parser
	reconciler *Reconciler
	ledger     Ledger // optional
}

// NewProcessor creates a Processor. ledger may be nil, in which case
// every message is processed on every run.
func NewProcessor(fetcher PayloadFetcher, parser *schedule.Parser, reconciler *Reconciler, ledger Ledger) *Processor {
	return &Processor{
		fetcher:    fetcher,
		parser:     parser,
		reconciler: reconciler,
		ledger:     ledger,
	}
}

// Process handles each message in order and returns the accumulated
// counters. A failure inside one message is logged and the loop moves
// on; one bad notification never blocks the rest of the run.
func (p *Processor) Process(ctx context.Context, messageIDs []string) (added, updated, deleted int) {
	total := len(messageIDs)
	log.Printf("Processing %d emails...", total)

	for i, id := range messageIDs {
		log.Printf("[%d/%d] Processing email ID: %s", i+1, total, id)

		if p.ledger != nil {
			done, err := p.ledger.IsProcessed(id)
			if err != nil {
				log.Printf("Warning: ledger lookup failed for %s: %v", id, err)
			} else if done {
				log.Printf("[%d/%d] Already processed, skipping", i+1, total)
				continue
			}
		}

		body, err := p.fetcher.FetchPayload(ctx, id)
		if err != nil {
			log.Printf("Error processing email %s: %v", id, err)
			continue
		}

		shifts := p.parser.Parse(body)
		if len(shifts) > 0 {
			a, u, d := p.reconciler.Reconcile(ctx, shifts)
			added += a
			updated += u
			deleted += d
		}

		if p.ledger != nil {
			if err := p.ledger.MarkProcessed(id); err != nil {
				log.Printf("Warning: failed to mark %s processed: %v", id, err)
			}
		}
	}

	return added, updated, deleted
}
