package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/channel"
)

func ackEvent(nativeID string, ack int) channel.Event {
	return channel.Event{
		Type:      channel.EventAck,
		AccountID: testAccount,
		NativeID:  nativeID,
		Ack:       ack,
	}
}

func TestAckUpdatesMessage(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	msg := inbound("5511555550001", "hello")
	e.pipe.HandleEvent(ctx, msg)

	e.pipe.HandleEvent(ctx, ackEvent(msg.NativeID, 3))

	waitFor(t, func() bool {
		return len(e.events.filter(bus.EventMessage, bus.ActionUpdate)) == 1
	})

	m, err := e.messages.GetByNativeID(ctx, msg.NativeID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Ack != 3 {
		t.Fatalf("ack = %d, want 3", m.Ack)
	}
	updates := e.events.filter(bus.EventMessage, bus.ActionUpdate)
	if len(updates[0].Rooms) != 1 || updates[0].Rooms[0] != m.TicketID.String() {
		t.Fatalf("ack update rooms = %v, want the ticket room", updates[0].Rooms)
	}
}

func TestAckForUnknownMessageSilentlyDropped(t *testing.T) {
	e := newEnv(t, Options{})

	e.pipe.HandleEvent(context.Background(), ackEvent("never-recorded", 2))

	// Close waits for the detached settle to finish.
	e.pipe.Close()
	if n := len(e.events.all()); n != 0 {
		t.Fatalf("unknown ack broadcast %d events, want 0", n)
	}
}

func TestAckCancelledContext(t *testing.T) {
	e := newEnv(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context aborts the settle wait without side effects.
	e.pipe.HandleEvent(ctx, ackEvent("whatever", 1))
	e.pipe.Close()
	if n := len(e.events.all()); n != 0 {
		t.Fatalf("cancelled ack broadcast %d events", n)
	}
}

func TestAckDoesNotStallEventDelivery(t *testing.T) {
	e := newEnv(t, Options{AckDelay: 300 * time.Millisecond})
	ctx := context.Background()

	msg := inbound("5511555550002", "hello")
	e.pipe.HandleEvent(ctx, msg)

	// The settle delay belongs to the ack alone; the dispatch boundary must
	// hand the next event through without waiting it out.
	start := time.Now()
	e.pipe.HandleEvent(ctx, ackEvent(msg.NativeID, 2))
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("ack held the delivery path for %v", elapsed)
	}

	next := inbound("5511555550002", "right behind it")
	start = time.Now()
	e.pipe.HandleEvent(ctx, next)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("message behind an ack delayed %v", elapsed)
	}

	waitFor(t, func() bool {
		m, err := e.messages.GetByNativeID(ctx, msg.NativeID)
		return err == nil && m.Ack == 2
	})
}
