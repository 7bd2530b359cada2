package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/akhramovs/tempora/internal/server/migrations"
	"github.com/akhramovs/tempora/internal/server/store"
)

type PostgresStoreManager struct {
	db *sql.DB

	calendars *store.CalendarStore
	events    *store.EventStore
	tasks     *store.TaskStore
	birthdays *store.BirthdayStore
	chats     *store.ChatStore
	messages  *store.MessageStore
	credits   *store.CreditStore
}

func (m *PostgresStoreManager) Conn() *sql.DB { return m.db }

func (m *PostgresStoreManager) Close() error { return m.db.Close() }

func (m *PostgresStoreManager) Calendars() *store.CalendarStore { return m.calendars }
func (m *PostgresStoreManager) Events() *store.EventStore       { return m.events }
func (m *PostgresStoreManager) Tasks() *store.TaskStore         { return m.tasks }
func (m *PostgresStoreManager) Birthdays() *store.BirthdayStore { return m.birthdays }
func (m *PostgresStoreManager) Chats() *store.ChatStore         { return m.chats }
func (m *PostgresStoreManager) Messages() *store.MessageStore   { return m.messages }
func (m *PostgresStoreManager) Credits() *store.CreditStore     { return m.credits }

func (m *PostgresStoreManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, m.db, ".")
}

func NewPostgresStoreManager(dsn string) (StoreManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresStoreManager{
		db:        db,
		calendars: store.NewCalendarStore(db),
		events:    store.NewEventStore(db),
		tasks:     store.NewTaskStore(db),
		birthdays: store.NewBirthdayStore(db),
		chats:     store.NewChatStore(db),
		messages:  store.NewMessageStore(db),
		credits:   store.NewCreditStore(db),
	}

	if err := m.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
