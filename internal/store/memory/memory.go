// Package memory provides in-memory stores for standalone mode and tests.
// All stores are safe for concurrent use and return copies so callers can
// mutate results without racing the backing maps.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// NewStores creates a full in-memory store set.
func NewStores() *store.Stores {
	return &store.Stores{
		Contacts: NewContactStore(),
		Tickets:  NewTicketStore(),
		Messages: NewMessageStore(),
		Queues:   NewQueueStore(),
		Accounts: NewAccountStore(),
	}
}

// ContactStore implements store.ContactStore in memory.
type ContactStore struct {
	mu       sync.RWMutex
	byNative map[string]*model.Contact
}

func NewContactStore() *ContactStore {
	return &ContactStore{byNative: make(map[string]*model.Contact)}
}

func (s *ContactStore) GetByID(_ context.Context, id uuid.UUID) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byNative {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrContactNotFound
}

func (s *ContactStore) GetByNativeID(_ context.Context, nativeID string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byNative[nativeID]
	if !ok {
		return nil, store.ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *ContactStore) Upsert(_ context.Context, c *model.Contact) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.byNative[c.NativeID]; ok {
		existing.Name = c.Name
		existing.ProfilePic = c.ProfilePic
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	stored := *c
	if stored.ID == uuid.Nil {
		stored.ID = model.NewID()
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byNative[c.NativeID] = &stored
	cp := stored
	return &cp, nil
}

// TicketStore implements store.TicketStore in memory.
type TicketStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*model.Ticket
}

func NewTicketStore() *TicketStore {
	return &TicketStore{byID: make(map[uuid.UUID]*model.Ticket)}
}

func (s *TicketStore) GetByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, store.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TicketStore) FindOpen(_ context.Context, contactID uuid.UUID, accountID string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byID {
		if t.ContactID == contactID && t.AccountID == accountID && t.Status != model.TicketClosed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTicketNotFound
}

func (s *TicketStore) Create(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = model.NewID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *TicketStore) Save(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; !ok {
		return store.ErrTicketNotFound
	}
	t.UpdatedAt = time.Now()
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

// Count returns the number of stored tickets. Test helper.
func (s *TicketStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MessageStore implements store.MessageStore in memory.
type MessageStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*model.Message
	byNative map[string]*model.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:     make(map[uuid.UUID]*model.Message),
		byNative: make(map[string]*model.Message),
	}
}

func (s *MessageStore) GetByNativeID(_ context.Context, nativeID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byNative[nativeID]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MessageStore) Create(_ context.Context, m *model.Message) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byNative[m.NativeID]; ok {
		cp := *existing
		return &cp, nil
	}
	stored := *m
	if stored.ID == uuid.Nil {
		stored.ID = model.NewID()
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = &stored
	s.byNative[stored.NativeID] = &stored
	cp := stored
	return &cp, nil
}

func (s *MessageStore) UpdateAck(_ context.Context, id uuid.UUID, ack int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return store.ErrMessageNotFound
	}
	m.Ack = ack
	m.UpdatedAt = time.Now()
	return nil
}

// Count returns the number of stored messages. Test helper.
func (s *MessageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// QueueStore implements store.QueueStore in memory.
type QueueStore struct {
	mu      sync.RWMutex
	queues  map[uuid.UUID]*model.Queue
	options map[uuid.UUID]*model.QueueOption
}

func NewQueueStore() *QueueStore {
	return &QueueStore{
		queues:  make(map[uuid.UUID]*model.Queue),
		options: make(map[uuid.UUID]*model.QueueOption),
	}
}

// AddQueue stores a queue. Seeding helper for standalone mode and tests.
func (s *QueueStore) AddQueue(q *model.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = model.NewID()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	cp := *q
	s.queues[q.ID] = &cp
}

// AddOption stores a menu option. Seeding helper.
func (s *QueueStore) AddOption(o *model.QueueOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = model.NewID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	cp := *o
	s.options[o.ID] = &cp
}

func (s *QueueStore) GetQueue(_ context.Context, id uuid.UUID) (*model.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[id]
	if !ok {
		return nil, store.ErrQueueNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *QueueStore) ListQueues(_ context.Context, accountID string) ([]model.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Queue
	for _, q := range s.queues {
		if q.AccountID == accountID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *QueueStore) GetOption(_ context.Context, id uuid.UUID) (*model.QueueOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.options[id]
	if !ok {
		return nil, store.ErrQueueNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *QueueStore) ListOptions(_ context.Context, queueID uuid.UUID, parentID *uuid.UUID) ([]model.QueueOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.QueueOption
	for _, o := range s.options {
		if o.QueueID != queueID {
			continue
		}
		if parentID == nil && o.ParentID == nil {
			out = append(out, *o)
		} else if parentID != nil && o.ParentID != nil && *o.ParentID == *parentID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Option != out[j].Option {
			return out[i].Option < out[j].Option
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *QueueStore) CountOptions(_ context.Context, parentID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.options {
		if o.ParentID != nil && *o.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

// AccountStore implements store.AccountStore in memory.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*model.Account)}
}

// AddAccount stores an account. Seeding helper.
func (s *AccountStore) AddAccount(a *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
}

func (s *AccountStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}
