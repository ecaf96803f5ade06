// Package ingest is the message-ingestion and conversation-routing pipeline:
// it receives raw inbound channel events, deduplicates and classifies them,
// resolves the owning ticket, advances the per-ticket menu state machine, and
// schedules debounced, retried outbound replies.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/dispatch"
	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// SelfMarker is the zero-width character prefixed to every message the
// system sends. The channel protocol re-delivers self-sent messages; an
// inbound from-me event carrying this prefix was already recorded at send
// time and must be discarded.
const SelfMarker = "‎"

const defaultAckDelay = 500 * time.Millisecond

var (
	// ErrMediaDownload reports a failed media payload download. Non-fatal at
	// the ingestion boundary: the event is logged and dropped, the message is
	// not recorded. Media does not resend itself, so this is not retryable.
	ErrMediaDownload = errors.New("media download failed")

	// ErrOpenTicketExists reports an attempt to reopen a ticket while the
	// contact already has another non-closed one.
	ErrOpenTicketExists = errors.New("contact already has an open ticket")
)

// SaveMediaFunc persists a downloaded media payload under a filename.
// Storage itself is an external concern; failures here are logged, not fatal.
type SaveMediaFunc func(filename string, data []byte) error

// Pipeline wires the resolvers, recorder, router, chatbot engine, and
// debounce coalescer behind a single event handler.
type Pipeline struct {
	stores   *store.Stores
	sessions *channel.Manager
	events   bus.Publisher
	outbound *dispatch.Queue
	debounce *Debouncer

	resolveG  singleflight.Group
	ackDelay  time.Duration
	saveMedia SaveMediaFunc
	ackWG     sync.WaitGroup
}

// Options tune pipeline timing and media persistence. Zero values pick the
// production defaults.
type Options struct {
	DebounceDelay time.Duration
	AckDelay      time.Duration
	SaveMedia     SaveMediaFunc
}

// New creates a pipeline. Attach the outbound dispatch queue separately via
// AttachOutbound, since the queue needs the pipeline's record hook.
func New(stores *store.Stores, sessions *channel.Manager, events bus.Publisher, opts Options) *Pipeline {
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DebounceDelay
	}
	if opts.AckDelay <= 0 {
		opts.AckDelay = defaultAckDelay
	}
	if events == nil {
		events = bus.Nop{}
	}
	return &Pipeline{
		stores:    stores,
		sessions:  sessions,
		events:    events,
		debounce:  NewDebouncer(opts.DebounceDelay),
		ackDelay:  opts.AckDelay,
		saveMedia: opts.SaveMedia,
	}
}

// AttachOutbound wires the retrying dispatch queue used by EnqueueSend.
func (p *Pipeline) AttachOutbound(q *dispatch.Queue) {
	p.outbound = q
}

// Close stops pending debounce timers and waits for in-flight ack settles.
func (p *Pipeline) Close() {
	p.debounce.Flush()
	p.ackWG.Wait()
}

// HandleEvent is the top of the pipeline and the error boundary: a malformed
// or failing event is logged and dropped, never allowed to crash the session
// or block subsequent events.
func (p *Pipeline) HandleEvent(ctx context.Context, ev channel.Event) {
	switch ev.Type {
	case channel.EventAck:
		// Acks settle off the delivery path so the session's next event is
		// not stalled behind the settle delay. They touch no ticket state,
		// so per-ticket ordering is unaffected.
		p.ackWG.Add(1)
		go func() {
			defer p.ackWG.Done()
			logEventError(ev, p.handleAck(ctx, ev))
		}()
	case channel.EventMessage, channel.EventMediaReady:
		logEventError(ev, p.handleMessage(ctx, ev))
	default:
		slog.Debug("ignoring unknown channel event type", "type", ev.Type)
	}
}

func logEventError(ev channel.Event, err error) {
	if err == nil {
		return
	}
	slog.Error("error handling channel event",
		"account", ev.AccountID,
		"type", ev.Type,
		"native_id", ev.NativeID,
		"error", err)
}

// validMessage filters status-broadcast pseudo-messages and content types the
// desk does not handle.
func validMessage(ev channel.Event) bool {
	if ev.From == channel.StatusBroadcast {
		return false
	}
	switch ev.MsgType {
	case channel.TypeChat, channel.TypeAudio, channel.TypePTT, channel.TypeVideo,
		channel.TypeImage, channel.TypeDocument, channel.TypeVCard, channel.TypeSticker:
		return true
	}
	return false
}

func (p *Pipeline) handleMessage(ctx context.Context, ev channel.Event) error {
	if !validMessage(ev) {
		return nil
	}

	if ev.FromMe {
		// Self-echo suppression: our own sends come back prefixed with the
		// zero-width marker and were recorded at send time.
		if strings.HasPrefix(ev.Body, SelfMarker) {
			return nil
		}
		// Self-sent media first arrives without its payload; the media-ready
		// event for the same message follows and is handled then.
		if !ev.HasMedia && ev.MsgType != channel.TypeChat && ev.MsgType != channel.TypeVCard {
			return nil
		}
	}

	contact, err := p.resolveContact(ctx, ev.Contact)
	if err != nil {
		return err
	}

	var groupContact *model.Contact
	if ev.IsGroup && ev.GroupContact != nil {
		gc, err := p.resolveContact(ctx, *ev.GroupContact)
		if err != nil {
			return err
		}
		groupContact = gc
	}

	unread := ev.Unread
	if ev.FromMe {
		unread = 0
	}

	ticket, err := p.resolveTicket(ctx, contact, ev.AccountID, unread, groupContact)
	if err != nil {
		return err
	}

	if ev.HasMedia || ev.Type == channel.EventMediaReady {
		if _, err := p.recordMedia(ctx, ev, ticket, contact); err != nil {
			return err
		}
	} else {
		if _, err := p.recordText(ctx, ev, ticket, contact); err != nil {
			return err
		}
	}

	queues, err := p.stores.Queues.ListQueues(ctx, ev.AccountID)
	if err != nil {
		return err
	}

	// The body below may be consumed as a queue-number selection; the chatbot
	// engine must then not also consume it as a root option selection.
	skipFirstSelection := ticket.QueueID == nil

	if ticket.QueueID == nil && !ev.IsGroup && !ev.FromMe && ticket.UserID == nil && len(queues) >= 1 {
		if err := p.routeQueue(ctx, ev, ticket, contact, queues); err != nil {
			return err
		}
	}

	ticket, err = p.stores.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return err
	}

	if ticket.QueueID != nil && ticket.Chatbot && !ev.FromMe {
		if len(queues) == 1 {
			return p.handleChatbot(ctx, ev, ticket, contact, false)
		}
		if len(queues) > 1 {
			return p.handleChatbot(ctx, ev, ticket, contact, skipFirstSelection)
		}
	}
	return nil
}
