package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/dispatch"
	"github.com/nextlevelbuilder/deskgate/internal/model"
)

// SendText is the agent-initiated synchronous send path: deliver text on a
// ticket's conversation and record it at send time.
func (p *Pipeline) SendText(ctx context.Context, ticketID uuid.UUID, text string) (*model.Message, error) {
	t, err := p.stores.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	contact, err := p.stores.Contacts.GetByID(ctx, t.ContactID)
	if err != nil {
		return nil, err
	}
	return p.sendAndRecord(ctx, t.AccountID, contact, t.ID, text)
}

// EnqueueSend submits a send to the retrying outbound queue: fire and
// forget, at-least-once, up to three delivery attempts.
func (p *Pipeline) EnqueueSend(accountID, number, text, mediaPath string, ticketID uuid.UUID) {
	if p.outbound == nil {
		slog.Error("no outbound queue attached, dropping send", "ticket", ticketID)
		return
	}
	p.outbound.Submit(dispatch.Job{
		AccountID: accountID,
		Number:    number,
		Body:      SelfMarker + text,
		MediaPath: mediaPath,
		TicketID:  ticketID,
	})
}

// RecordDispatched is the dispatch queue's post-send hook: it records the
// message the queue just delivered, keyed by the native id the session
// returned. Duplicate deliveries collapse on that id.
func (p *Pipeline) RecordDispatched(ctx context.Context, job dispatch.Job, nativeID string) {
	ticket, err := p.stores.Tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		slog.Error("dispatched send for unknown ticket", "ticket", job.TicketID, "error", err)
		return
	}
	m := &model.Message{
		NativeID: nativeID,
		TicketID: ticket.ID,
		Body:     job.Body,
		FromMe:   true,
		Read:     true,
		MediaURL: job.MediaPath,
	}
	if _, err := p.record(ctx, ticket, m, job.Body); err != nil {
		slog.Error("failed to record dispatched send", "ticket", job.TicketID, "error", err)
	}
}
