package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
	"github.com/nextlevelbuilder/deskgate/internal/store/memory"
)

// fakeSession records sends and serves canned media downloads.
type fakeSession struct {
	id string

	mu     sync.Mutex
	sent   []channel.Outbound
	sentTo []string
	seq    int

	sendErr  error
	media    *channel.Media
	mediaErr error
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(_ context.Context, chatNativeID string, out channel.Outbound) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.seq++
	s.sent = append(s.sent, out)
	s.sentTo = append(s.sentTo, chatNativeID)
	return fmt.Sprintf("sent-%s-%d", s.id, s.seq), nil
}

func (s *fakeSession) DownloadMedia(context.Context, string) (*channel.Media, error) {
	if s.mediaErr != nil {
		return nil, s.mediaErr
	}
	return s.media, nil
}

func (s *fakeSession) sentBodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, o := range s.sent {
		out[i] = o.Body
	}
	return out
}

func (s *fakeSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// recordingBus captures broadcasts for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (b *recordingBus) Broadcast(ev bus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) all() []bus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bus.Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBus) filter(name, action string) []bus.Event {
	var out []bus.Event
	for _, ev := range b.all() {
		if ev.Name == name && ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

// env bundles a pipeline over in-memory storage with one fake session.
type env struct {
	pipe     *Pipeline
	session  *fakeSession
	events   *recordingBus
	stores   *store.Stores
	contacts *memory.ContactStore
	tickets  *memory.TicketStore
	messages *memory.MessageStore
	queues   *memory.QueueStore
	accounts *memory.AccountStore
}

const testAccount = "acct-1"

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()

	e := &env{
		session:  &fakeSession{id: testAccount},
		events:   &recordingBus{},
		contacts: memory.NewContactStore(),
		tickets:  memory.NewTicketStore(),
		messages: memory.NewMessageStore(),
		queues:   memory.NewQueueStore(),
		accounts: memory.NewAccountStore(),
	}
	e.stores = &store.Stores{
		Contacts: e.contacts,
		Tickets:  e.tickets,
		Messages: e.messages,
		Queues:   e.queues,
		Accounts: e.accounts,
	}
	e.accounts.AddAccount(&model.Account{ID: testAccount, Name: "Test", Greeting: "Welcome! Pick a department:"})

	sessions := channel.NewManager()
	sessions.Register(e.session)

	if opts.DebounceDelay == 0 {
		opts.DebounceDelay = 20 * time.Millisecond
	}
	if opts.AckDelay == 0 {
		opts.AckDelay = 5 * time.Millisecond
	}
	e.pipe = New(e.stores, sessions, e.events, opts)
	t.Cleanup(e.pipe.Close)
	return e
}

// addQueue seeds a queue with a creation time offset so ListQueues ordering
// is deterministic.
func (e *env) addQueue(name, greeting string, order int) *model.Queue {
	q := &model.Queue{
		ID:        model.NewID(),
		AccountID: testAccount,
		Name:      name,
		Greeting:  greeting,
		CreatedAt: time.Unix(1700000000, 0).Add(time.Duration(order) * time.Second),
	}
	e.queues.AddQueue(q)
	return q
}

func (e *env) addOption(q *model.Queue, parent *model.QueueOption, label, title, message string) *model.QueueOption {
	o := &model.QueueOption{
		ID:      model.NewID(),
		QueueID: q.ID,
		Option:  label,
		Title:   title,
		Message: message,
	}
	if parent != nil {
		o.ParentID = &parent.ID
	}
	e.queues.AddOption(o)
	return o
}

var nativeSeq atomic.Int64

func nextNativeID() string {
	return fmt.Sprintf("native-%d", nativeSeq.Add(1))
}

// inbound builds a plain text message event from a contact.
func inbound(from, body string) channel.Event {
	return channel.Event{
		Type:      channel.EventMessage,
		AccountID: testAccount,
		NativeID:  nextNativeID(),
		From:      from,
		Body:      body,
		MsgType:   channel.TypeChat,
		Unread:    1,
		Contact:   channel.ContactInfo{NativeID: from, Name: "Contact " + from},
		Timestamp: time.Now(),
	}
}

// openTicket fetches the contact's current non-closed ticket.
func (e *env) openTicket(t *testing.T, from string) *model.Ticket {
	t.Helper()
	c, err := e.contacts.GetByNativeID(context.Background(), from)
	if err != nil {
		t.Fatalf("contact %s not stored: %v", from, err)
	}
	tk, err := e.tickets.FindOpen(context.Background(), c.ID, testAccount)
	if err != nil {
		t.Fatalf("no open ticket for %s: %v", from, err)
	}
	return tk
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
