// Package store defines the storage interfaces for support-desk entities.
// Two backends exist: Postgres (internal/store/pg) for production and an
// in-memory implementation (internal/store/memory) for standalone mode and
// tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/model"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrQueueNotFound   = errors.New("queue not found")
	ErrAccountNotFound = errors.New("account not found")
)

// ContactStore persists channel-native identities.
type ContactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Contact, error)
	GetByNativeID(ctx context.Context, nativeID string) (*model.Contact, error)
	// Upsert creates the contact or updates the mutable fields (name,
	// profile pic) of an existing one, keyed by NativeID.
	Upsert(ctx context.Context, c *model.Contact) (*model.Contact, error)
}

// TicketStore persists conversation threads.
type TicketStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	// FindOpen returns the single non-closed ticket for (contact, account),
	// or ErrTicketNotFound.
	FindOpen(ctx context.Context, contactID uuid.UUID, accountID string) (*model.Ticket, error)
	Create(ctx context.Context, t *model.Ticket) error
	// Save writes back a mutated ticket. Callers serialize per ticket.
	Save(ctx context.Context, t *model.Ticket) error
}

// MessageStore persists conversation content, deduplicated by NativeID.
type MessageStore interface {
	GetByNativeID(ctx context.Context, nativeID string) (*model.Message, error)
	// Create inserts the message; inserting an already-recorded NativeID is
	// a no-op returning the existing row.
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	UpdateAck(ctx context.Context, id uuid.UUID, ack int) error
}

// QueueStore reads routing queues and their menu trees.
type QueueStore interface {
	GetQueue(ctx context.Context, id uuid.UUID) (*model.Queue, error)
	// ListQueues returns the account's queues in stored (creation) order.
	ListQueues(ctx context.Context, accountID string) ([]model.Queue, error)
	GetOption(ctx context.Context, id uuid.UUID) (*model.QueueOption, error)
	// ListOptions returns children of parentID (nil = roots of queueID),
	// ordered by option label ascending then creation time.
	ListOptions(ctx context.Context, queueID uuid.UUID, parentID *uuid.UUID) ([]model.QueueOption, error)
	CountOptions(ctx context.Context, parentID uuid.UUID) (int, error)
}

// AccountStore reads channel account configuration.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Contacts ContactStore
	Tickets  TicketStore
	Messages MessageStore
	Queues   QueueStore
	Accounts AccountStore
}
