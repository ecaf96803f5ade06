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

// MessageStore implements store.MessageStore on Postgres. Inserts are
// idempotent by native_id via ON CONFLICT DO NOTHING plus a read-back of the
// existing row.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageCols = `id, native_id, ticket_id, contact_id, body, from_me, read,
	ack, media_url, media_type, quoted_msg_id, created_at, updated_at`

func (s *MessageStore) GetByNativeID(ctx context.Context, nativeID string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE native_id = $1`, nativeID)
	return scanMessage(row)
}

func (s *MessageStore) Create(ctx context.Context, m *model.Message) (*model.Message, error) {
	id := m.ID
	if id == uuid.Nil {
		id = model.NewID()
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (native_id) DO NOTHING`,
		id, m.NativeID, m.TicketID, m.ContactID, m.Body, m.FromMe, m.Read,
		m.Ack, m.MediaURL, m.MediaType, m.QuotedMsgID, now)
	if err != nil {
		return nil, err
	}
	// A re-delivered native id leaves the original row in place; either way
	// the recorded row is what callers get back.
	return s.GetByNativeID(ctx, m.NativeID)
}

func (s *MessageStore) UpdateAck(ctx context.Context, id uuid.UUID, ack int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET ack = $2, updated_at = $3 WHERE id = $1`,
		id, ack, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrMessageNotFound
	}
	return nil
}

func scanMessage(row *sql.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.NativeID, &m.TicketID, &m.ContactID, &m.Body, &m.FromMe,
		&m.Read, &m.Ack, &m.MediaURL, &m.MediaType, &m.QuotedMsgID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
