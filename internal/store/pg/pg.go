// Package pg implements the entity stores on Postgres via database/sql over
// the pgx stdlib driver. Schema lives in migrations/ and is applied with the
// migrate subcommand.
package pg

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// OpenDB opens a pooled Postgres connection.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStores creates all stores backed by Postgres.
func NewStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	return &store.Stores{
		Contacts: NewContactStore(db),
		Tickets:  NewTicketStore(db),
		Messages: NewMessageStore(db),
		Queues:   NewQueueStore(db),
		Accounts: NewAccountStore(db),
	}, nil
}
