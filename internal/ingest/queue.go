package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/model"
)

// routeQueue assigns an unrouted ticket to a support queue. Single-queue
// accounts assign immediately; multi-queue accounts read the message body as
// a 1-based selection into the queue list and re-prompt (debounced) when it
// is invalid.
func (p *Pipeline) routeQueue(ctx context.Context, ev channel.Event, ticket *model.Ticket, contact *model.Contact, queues []model.Queue) error {
	if len(queues) == 1 {
		q := queues[0]
		chatbot, err := p.queueHasOptions(ctx, q.ID)
		if err != nil {
			return err
		}
		_, err = p.UpdateTicket(ctx, ticket.ID, TicketUpdate{
			QueueID:  &q.ID,
			SetQueue: true,
			Chatbot:  chatbot,
		})
		return err
	}

	if idx, ok := parseSelection(ev.Body, len(queues)); ok {
		q := queues[idx]
		chatbot, err := p.queueHasOptions(ctx, q.ID)
		if err != nil {
			return err
		}
		if _, err := p.UpdateTicket(ctx, ticket.ID, TicketUpdate{
			QueueID:  &q.ID,
			SetQueue: true,
			Chatbot:  chatbot,
		}); err != nil {
			return err
		}
		if !chatbot {
			// No menu behind this queue: greet right away.
			_, err := p.sendAndRecord(ctx, ev.AccountID, contact, ticket.ID, q.Greeting)
			return err
		}
		return nil
	}

	// Invalid or non-numeric selection: re-send the numbered queue list with
	// the account greeting. Debounced per ticket so repeated invalid
	// keystrokes within the window produce exactly one prompt.
	account, err := p.stores.Accounts.GetAccount(ctx, ev.AccountID)
	if err != nil {
		return err
	}

	var menu strings.Builder
	for i, q := range queues {
		fmt.Fprintf(&menu, "*%d* - %s\n", i+1, q.Name)
	}
	body := account.Greeting + "\n" + menu.String()

	p.scheduleReply(ev.AccountID, contact, ticket.ID, body)
	return nil
}

// parseSelection reads a 1-based numeric menu choice, returning the 0-based
// index.
func parseSelection(body string, n int) (int, bool) {
	sel, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil || sel < 1 || sel > n {
		return 0, false
	}
	return sel - 1, true
}

func (p *Pipeline) queueHasOptions(ctx context.Context, queueID uuid.UUID) (bool, error) {
	roots, err := p.stores.Queues.ListOptions(ctx, queueID, nil)
	if err != nil {
		return false, err
	}
	return len(roots) > 0, nil
}

// scheduleReply routes a rendered prompt through the debounce coalescer
// keyed by ticket id.
func (p *Pipeline) scheduleReply(accountID string, contact *model.Contact, ticketID uuid.UUID, body string) {
	p.debounce.Schedule(ticketID, func() {
		if _, err := p.sendAndRecord(context.Background(), accountID, contact, ticketID, body); err != nil {
			slog.Error("debounced reply failed",
				"account", accountID,
				"ticket", ticketID,
				"error", err)
		}
	})
}
