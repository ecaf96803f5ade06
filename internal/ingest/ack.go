package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// handleAck applies a delivery-acknowledgment level to a recorded message.
// A short settle delay absorbs out-of-order ack/record races from the
// channel; an ack for a message that still isn't recorded afterwards is
// silently dropped: unknown acks are unobservable, not an error.
func (p *Pipeline) handleAck(ctx context.Context, ev channel.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.ackDelay):
	}

	m, err := p.stores.Messages.GetByNativeID(ctx, ev.NativeID)
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			return nil
		}
		return err
	}

	if err := p.stores.Messages.UpdateAck(ctx, m.ID, ev.Ack); err != nil {
		return err
	}
	m.Ack = ev.Ack

	p.events.Broadcast(bus.Event{
		Name:    bus.EventMessage,
		Action:  bus.ActionUpdate,
		Rooms:   []string{m.TicketID.String()},
		Payload: m,
	})
	return nil
}
