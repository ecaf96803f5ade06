package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// transferNotice is sent to the contact when an agent moves the ticket to a
// different queue.
const transferNotice = "You have been transferred, your service will begin shortly."

// resolveTicket returns the single non-closed ticket for (contact, account),
// creating one in pending status when none exists. Concurrent resolutions for
// the same pair are collapsed through singleflight so two inbound events can
// never race a duplicate open ticket into existence. For group chats the
// ticket is owned by the group contact.
func (p *Pipeline) resolveTicket(ctx context.Context, contact *model.Contact, accountID string, unread int, groupContact *model.Contact) (*model.Ticket, error) {
	owner := contact
	if groupContact != nil {
		owner = groupContact
	}

	key := owner.ID.String() + ":" + accountID
	v, err, _ := p.resolveG.Do(key, func() (any, error) {
		t, err := p.stores.Tickets.FindOpen(ctx, owner.ID, accountID)
		if err == nil {
			t.Unread = unread
			if err := p.stores.Tickets.Save(ctx, t); err != nil {
				return nil, err
			}
			return t, nil
		}
		if !errors.Is(err, store.ErrTicketNotFound) {
			return nil, err
		}

		t = &model.Ticket{
			ContactID: owner.ID,
			AccountID: accountID,
			Status:    model.TicketPending,
			Unread:    unread,
			IsGroup:   owner.IsGroup,
		}
		if err := p.stores.Tickets.Create(ctx, t); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	// Copy: singleflight shares one result across concurrent callers.
	cp := *(v.(*model.Ticket))
	return &cp, nil
}

// TicketUpdate describes an agent- or router-driven ticket mutation.
// Chatbot and OptionID always apply (an update that doesn't mention them
// resets them); Status, UserID, and QueueID apply only when set.
type TicketUpdate struct {
	Status   *model.TicketStatus
	UserID   *uuid.UUID
	QueueID  *uuid.UUID
	SetQueue bool // QueueID applies (a nil QueueID with SetQueue clears it)
	Chatbot  bool
	OptionID *uuid.UUID
}

// UpdateTicket applies the update and fans the result out to agent sessions:
// a delete to the old-status room when status or assignee changed, then an
// update to the new-status, notification, and ticket rooms. Closing clears
// queue, chatbot flag, and menu position. Moving between two queues notifies
// the contact through the channel.
func (p *Pipeline) UpdateTicket(ctx context.Context, ticketID uuid.UUID, upd TicketUpdate) (*model.Ticket, error) {
	t, err := p.stores.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := t.Status
	oldUser := t.UserID
	oldQueue := t.QueueID

	// Reopening: the single-open-ticket invariant must hold.
	if oldStatus == model.TicketClosed && upd.Status != nil && *upd.Status != model.TicketClosed {
		if other, err := p.stores.Tickets.FindOpen(ctx, t.ContactID, t.AccountID); err == nil && other.ID != t.ID {
			return nil, fmt.Errorf("%w: ticket %s", ErrOpenTicketExists, other.ID)
		}
	}

	// An agent touching the ticket marks its messages read.
	t.Unread = 0

	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.UserID != nil {
		t.UserID = upd.UserID
	}
	if upd.SetQueue {
		t.QueueID = upd.QueueID
	}
	t.Chatbot = upd.Chatbot
	t.OptionID = upd.OptionID

	if t.Status == model.TicketClosed {
		t.QueueID = nil
		t.Chatbot = false
		t.OptionID = nil
	}

	if oldQueue != nil && t.QueueID != nil && *oldQueue != *t.QueueID {
		if err := p.notifyTransfer(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := p.stores.Tickets.Save(ctx, t); err != nil {
		return nil, err
	}

	if t.Status != oldStatus || !sameUser(t.UserID, oldUser) {
		p.events.Broadcast(bus.Event{
			Name:    bus.EventTicket,
			Action:  bus.ActionDelete,
			Rooms:   []string{string(oldStatus)},
			Payload: map[string]any{"ticketId": t.ID},
		})
	}
	p.events.Broadcast(bus.Event{
		Name:    bus.EventTicket,
		Action:  bus.ActionUpdate,
		Rooms:   []string{string(t.Status), bus.RoomNotification, t.ID.String()},
		Payload: t,
	})

	return t, nil
}

func (p *Pipeline) notifyTransfer(ctx context.Context, t *model.Ticket) error {
	contact, err := p.stores.Contacts.GetByID(ctx, t.ContactID)
	if err != nil {
		return err
	}
	_, err = p.sendAndRecord(ctx, t.AccountID, contact, t.ID, transferNotice)
	return err
}

func sameUser(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
