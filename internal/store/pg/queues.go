package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// QueueStore implements store.QueueStore on Postgres. The menu tree is a
// flat table keyed by (queue_id, parent_id); traversal is by id lookup, no
// loaded object graph.
type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) GetQueue(ctx context.Context, id uuid.UUID) (*model.Queue, error) {
	var q model.Queue
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, name, greeting, created_at FROM queues WHERE id = $1`, id).
		Scan(&q.ID, &q.AccountID, &q.Name, &q.Greeting, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrQueueNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *QueueStore) ListQueues(ctx context.Context, accountID string) ([]model.Queue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, name, greeting, created_at FROM queues
		 WHERE account_id = $1 ORDER BY created_at ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Queue
	for rows.Next() {
		var q model.Queue
		if err := rows.Scan(&q.ID, &q.AccountID, &q.Name, &q.Greeting, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const optionCols = `id, queue_id, parent_id, option, title, message, created_at`

func (s *QueueStore) GetOption(ctx context.Context, id uuid.UUID) (*model.QueueOption, error) {
	var o model.QueueOption
	err := s.db.QueryRowContext(ctx,
		`SELECT `+optionCols+` FROM queue_options WHERE id = $1`, id).
		Scan(&o.ID, &o.QueueID, &o.ParentID, &o.Option, &o.Title, &o.Message, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrQueueNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *QueueStore) ListOptions(ctx context.Context, queueID uuid.UUID, parentID *uuid.UUID) ([]model.QueueOption, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+optionCols+` FROM queue_options
			 WHERE queue_id = $1 AND parent_id IS NULL
			 ORDER BY option ASC, created_at ASC`, queueID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+optionCols+` FROM queue_options
			 WHERE queue_id = $1 AND parent_id = $2
			 ORDER BY option ASC, created_at ASC`, queueID, *parentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QueueOption
	for rows.Next() {
		var o model.QueueOption
		if err := rows.Scan(&o.ID, &o.QueueID, &o.ParentID, &o.Option, &o.Title, &o.Message, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *QueueStore) CountOptions(ctx context.Context, parentID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_options WHERE parent_id = $1`, parentID).Scan(&n)
	return n, err
}

// AccountStore implements store.AccountStore on Postgres.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, greeting FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Greeting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
