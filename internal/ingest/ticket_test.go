package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/model"
)

func TestConcurrentResolutionYieldsOneTicket(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.pipe.HandleEvent(ctx, inbound("5511888880001", "burst"))
		}()
	}
	wg.Wait()

	if e.tickets.Count() != 1 {
		t.Fatalf("concurrent burst created %d tickets, want 1", e.tickets.Count())
	}
	if e.messages.Count() != n {
		t.Fatalf("recorded %d messages, want %d", e.messages.Count(), n)
	}
}

func TestNewTicketStartsPending(t *testing.T) {
	e := newEnv(t, Options{})
	e.pipe.HandleEvent(context.Background(), inbound("5511888880002", "hi"))

	tk := e.openTicket(t, "5511888880002")
	if tk.Status != model.TicketPending {
		t.Fatalf("new ticket status = %q, want pending", tk.Status)
	}
	if tk.UserID != nil || tk.QueueID != nil {
		t.Fatal("new ticket should be unassigned")
	}
}

func TestUpdateTicketCloseClearsRouting(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	q := e.addQueue("Support", "Support greeting", 0)
	e.addOption(q, nil, "1", "FAQ", "")

	e.pipe.HandleEvent(ctx, inbound("5511888880003", "hi"))
	tk := e.openTicket(t, "5511888880003")
	if tk.QueueID == nil || !tk.Chatbot {
		t.Fatalf("expected routed chatbot ticket, got %+v", tk)
	}

	closed := model.TicketClosed
	updated, err := e.pipe.UpdateTicket(ctx, tk.ID, TicketUpdate{Status: &closed})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.TicketClosed {
		t.Fatalf("status = %q", updated.Status)
	}
	if updated.QueueID != nil || updated.Chatbot || updated.OptionID != nil {
		t.Fatal("closing must clear queue, chatbot flag, and menu position")
	}
	if updated.Unread != 0 {
		t.Fatal("agent update must zero the unread counter")
	}
}

func TestUpdateTicketFanOutRooms(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	e.pipe.HandleEvent(ctx, inbound("5511888880004", "hi"))
	tk := e.openTicket(t, "5511888880004")

	agent := model.NewID()
	open := model.TicketOpen
	if _, err := e.pipe.UpdateTicket(ctx, tk.ID, TicketUpdate{Status: &open, UserID: &agent}); err != nil {
		t.Fatal(err)
	}

	deletes := e.events.filter(bus.EventTicket, bus.ActionDelete)
	if len(deletes) != 1 {
		t.Fatalf("status change should delete from the old room once, got %d", len(deletes))
	}
	if len(deletes[0].Rooms) != 1 || deletes[0].Rooms[0] != string(model.TicketPending) {
		t.Fatalf("delete rooms = %v, want [pending]", deletes[0].Rooms)
	}

	updates := e.events.filter(bus.EventTicket, bus.ActionUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 ticket update broadcast, got %d", len(updates))
	}
	rooms := updates[0].Rooms
	want := map[string]bool{string(model.TicketOpen): true, bus.RoomNotification: true, tk.ID.String(): true}
	if len(rooms) != 3 {
		t.Fatalf("update rooms = %v", rooms)
	}
	for _, r := range rooms {
		if !want[r] {
			t.Fatalf("unexpected update room %q", r)
		}
	}
}

func TestUpdateTicketNoDeleteWithoutStatusOrUserChange(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	e.pipe.HandleEvent(ctx, inbound("5511888880005", "hi"))
	tk := e.openTicket(t, "5511888880005")

	// Same status, no assignee: only an update should go out.
	pending := model.TicketPending
	if _, err := e.pipe.UpdateTicket(ctx, tk.ID, TicketUpdate{Status: &pending}); err != nil {
		t.Fatal(err)
	}
	if n := len(e.events.filter(bus.EventTicket, bus.ActionDelete)); n != 0 {
		t.Fatalf("unchanged status broadcast %d deletes, want 0", n)
	}
}

func TestReopenBlockedByExistingOpenTicket(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	e.pipe.HandleEvent(ctx, inbound("5511888880006", "first"))
	first := e.openTicket(t, "5511888880006")

	closed := model.TicketClosed
	if _, err := e.pipe.UpdateTicket(ctx, first.ID, TicketUpdate{Status: &closed}); err != nil {
		t.Fatal(err)
	}

	// Next inbound opens a fresh ticket for the same contact.
	e.pipe.HandleEvent(ctx, inbound("5511888880006", "second"))
	second := e.openTicket(t, "5511888880006")
	if second.ID == first.ID {
		t.Fatal("expected a new ticket after close")
	}

	open := model.TicketOpen
	_, err := e.pipe.UpdateTicket(ctx, first.ID, TicketUpdate{Status: &open})
	if !errors.Is(err, ErrOpenTicketExists) {
		t.Fatalf("reopening alongside an open ticket: err = %v, want ErrOpenTicketExists", err)
	}
}

func TestQueueTransferNotifiesContact(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	qa := e.addQueue("Sales", "Sales greeting", 0)
	qb := e.addQueue("Support", "Support greeting", 1)

	e.pipe.HandleEvent(ctx, inbound("5511888880007", "1"))
	tk := e.openTicket(t, "5511888880007")
	if tk.QueueID == nil || *tk.QueueID != qa.ID {
		t.Fatalf("expected ticket in first queue, got %v", tk.QueueID)
	}

	before := e.session.sentCount()
	if _, err := e.pipe.UpdateTicket(ctx, tk.ID, TicketUpdate{QueueID: &qb.ID, SetQueue: true}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return e.session.sentCount() > before })

	bodies := e.session.sentBodies()
	last := bodies[len(bodies)-1]
	if !strings.Contains(last, transferNotice) {
		t.Fatalf("transfer should notify the contact, last send = %q", last)
	}
	if !strings.HasPrefix(last, SelfMarker) {
		t.Fatal("system sends must carry the self marker prefix")
	}
}

func TestGroupMessageOwnsTicketByGroup(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	ev := inbound("5511888880008", "hello group")
	ev.IsGroup = true
	gc := inbound("group-1@g.us", "").Contact
	gc.IsGroup = true
	gc.Name = "Team Chat"
	ev.GroupContact = &gc
	e.pipe.HandleEvent(ctx, ev)

	tk := e.openTicket(t, "group-1@g.us")
	if !tk.IsGroup {
		t.Fatal("group ticket should be flagged as group")
	}
	// The sender's individual contact exists but holds no ticket.
	c, err := e.contacts.GetByNativeID(ctx, "5511888880008")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.tickets.FindOpen(ctx, c.ID, testAccount); err == nil {
		t.Fatal("sender contact must not own the group ticket")
	}
}
