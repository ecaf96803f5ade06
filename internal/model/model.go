// Package model defines the support-desk entities shared by the store,
// ingestion pipeline, and gateway.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketPending TicketStatus = "pending"
	TicketClosed  TicketStatus = "closed"
)

// Contact is one channel-native identity. Unique per NativeID.
type Contact struct {
	ID         uuid.UUID `json:"id"`
	NativeID   string    `json:"native_id"` // channel-native user id (e.g. phone number)
	Name       string    `json:"name"`
	IsGroup    bool      `json:"is_group"`
	ProfilePic string    `json:"profile_pic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Ticket is one open conversation thread for a (contact, account) pair.
// At most one non-closed ticket may exist per pair.
type Ticket struct {
	ID          uuid.UUID    `json:"id"`
	ContactID   uuid.UUID    `json:"contact_id"`
	AccountID   string       `json:"account_id"` // channel account this conversation belongs to
	Status      TicketStatus `json:"status"`
	UserID      *uuid.UUID   `json:"user_id,omitempty"`  // assigned human agent
	QueueID     *uuid.UUID   `json:"queue_id,omitempty"` // assigned routing queue
	Chatbot     bool         `json:"chatbot"`            // inbound bodies interpreted as menu input
	OptionID    *uuid.UUID   `json:"option_id,omitempty"` // current menu node, nil = queue root
	LastMessage string       `json:"last_message"`
	Unread      int          `json:"unread"`
	IsGroup     bool         `json:"is_group"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Message is one inbound or outbound unit of conversation content.
// NativeID is globally unique; re-delivery of the same id must not create a
// duplicate row.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	NativeID    string     `json:"native_id"`
	TicketID    uuid.UUID  `json:"ticket_id"`
	ContactID   *uuid.UUID `json:"contact_id,omitempty"` // nil for self-sent
	Body        string     `json:"body"`
	FromMe      bool       `json:"from_me"`
	Read        bool       `json:"read"`
	Ack         int        `json:"ack"` // channel delivery-acknowledgment level
	MediaURL    string     `json:"media_url,omitempty"`
	MediaType   string     `json:"media_type,omitempty"`
	QuotedMsgID *uuid.UUID `json:"quoted_msg_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Queue is a named routing bucket belonging to a channel account.
type Queue struct {
	ID        uuid.UUID `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Greeting  string    `json:"greeting"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueOption is one selectable node of a queue's menu tree.
// Root nodes have a nil ParentID. Siblings are ordered by Option (the typed
// label) ascending, then CreatedAt. Duplicate sibling labels are a
// data-quality issue and resolve to the first match in that order.
type QueueOption struct {
	ID        uuid.UUID  `json:"id"`
	QueueID   uuid.UUID  `json:"queue_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Option    string     `json:"option"` // selectable label the user types
	Title     string     `json:"title"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Account is one channel account (a live messaging connection identity) with
// its routing configuration.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Greeting string `json:"greeting"` // generic greeting shown above the queue menu
}

// NewID returns a time-ordered UUID for entity rows.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
