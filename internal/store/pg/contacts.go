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

// ContactStore implements store.ContactStore on Postgres.
type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

const contactCols = `id, native_id, name, is_group, profile_pic, created_at, updated_at`

func (s *ContactStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactCols+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

func (s *ContactStore) GetByNativeID(ctx context.Context, nativeID string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactCols+` FROM contacts WHERE native_id = $1`, nativeID)
	return scanContact(row)
}

func (s *ContactStore) Upsert(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	id := c.ID
	if id == uuid.Nil {
		id = model.NewID()
	}
	now := time.Now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (id, native_id, name, is_group, profile_pic, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (native_id) DO UPDATE
		 SET name = EXCLUDED.name, profile_pic = EXCLUDED.profile_pic, updated_at = EXCLUDED.updated_at
		 RETURNING `+contactCols,
		id, c.NativeID, c.Name, c.IsGroup, c.ProfilePic, now)
	return scanContact(row)
}

func scanContact(row *sql.Row) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.NativeID, &c.Name, &c.IsGroup, &c.ProfilePic, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
