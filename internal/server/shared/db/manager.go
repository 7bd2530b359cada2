// Package db owns the database connection and hands out the entity stores.
package db

import (
	"context"
	"database/sql"

	"github.com/akhramovs/tempora/internal/server/store"
)

type StoreManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Close() error

	Calendars() *store.CalendarStore
	Events() *store.EventStore
	Tasks() *store.TaskStore
	Birthdays() *store.BirthdayStore
	Chats() *store.ChatStore
	Messages() *store.MessageStore
	Credits() *store.CreditStore
}
