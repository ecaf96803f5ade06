package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// TicketStore implements store.TicketStore on Postgres. The
// single-open-ticket invariant is backed by a partial unique index on
// (contact_id, account_id) WHERE status <> 'closed'.
type TicketStore struct {
	db *sql.DB
}

func NewTicketStore(db *sql.DB) *TicketStore {
	return &TicketStore{db: db}
}

const ticketCols = `id, contact_id, account_id, status, user_id, queue_id, chatbot,
	option_id, last_message, unread, is_group, created_at, updated_at`

func (s *TicketStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM tickets WHERE id = $1`, id)
	return scanTicket(row)
}

func (s *TicketStore) FindOpen(ctx context.Context, contactID uuid.UUID, accountID string) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM tickets
		 WHERE contact_id = $1 AND account_id = $2 AND status <> 'closed'
		 ORDER BY created_at DESC LIMIT 1`,
		contactID, accountID)
	return scanTicket(row)
}

func (s *TicketStore) Create(ctx context.Context, t *model.Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = model.NewID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (`+ticketCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.ContactID, t.AccountID, t.Status, t.UserID, t.QueueID, t.Chatbot,
		t.OptionID, t.LastMessage, t.Unread, t.IsGroup, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *TicketStore) Save(ctx context.Context, t *model.Ticket) error {
	t.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = $2, user_id = $3, queue_id = $4, chatbot = $5,
		 option_id = $6, last_message = $7, unread = $8, updated_at = $9
		 WHERE id = $1`,
		t.ID, t.Status, t.UserID, t.QueueID, t.Chatbot,
		t.OptionID, t.LastMessage, t.Unread, t.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

func scanTicket(row *sql.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.ContactID, &t.AccountID, &t.Status, &t.UserID, &t.QueueID,
		&t.Chatbot, &t.OptionID, &t.LastMessage, &t.Unread, &t.IsGroup, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
