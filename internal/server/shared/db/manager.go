// Package db wires the repositories to a concrete database connection.
package db

import (
	"context"
	"database/sql"

	"github.com/lettera/lettera/internal/dbx"
	"github.com/lettera/lettera/internal/server/subscriptions"
	"github.com/lettera/lettera/internal/server/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Close() error
	Users() users.Repository
	// Subscriptions takes the handle explicitly so the signup flow can
	// bind a repository to a transaction.
	Subscriptions(db dbx.DBTX) subscriptions.Repository
}
