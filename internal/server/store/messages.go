package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/dbx"
	"github.com/akhramovs/tempora/internal/server/models"
)

const messageColumns = `id, user_id, chat_id, role, content, created_at, updated_at, deleted_at`

// MessageStore implements chat message persistence over a dbx.DBTX.
type MessageStore struct {
	db dbx.DBTX
}

// NewMessageStore constructs a store bound to the given DBTX.
func NewMessageStore(db dbx.DBTX) *MessageStore {
	return &MessageStore{db: db}
}

func scanMessage(s interface{ Scan(...any) error }) (models.Message, error) {
	var m models.Message
	err := s.Scan(&m.ID, &m.UserID, &m.ChatID, &m.Role, &m.Content,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	return m, err
}

func (r *MessageStore) SelectAll(ctx context.Context, userID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SelectByChat returns the messages of one chat in chronological order.
func (r *MessageStore) SelectByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to select chat messages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MessageStore) SelectByID(ctx context.Context, id string) (models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, common.ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to select message: %w", err)
	}
	return m, nil
}

func (r *MessageStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "messages", userID)
}

func (r *MessageStore) Insert(ctx context.Context, userID string, form models.MessageForm) (models.Message, error) {
	query := `
		INSERT INTO messages (id, user_id, chat_id, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns
	m, err := scanMessage(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, form.ChatID, form.Role, form.Content))
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return m, nil
}

func (r *MessageStore) InsertBulk(ctx context.Context, userID string, forms []models.MessageForm) ([]models.Message, error) {
	if len(forms) == 0 {
		return []models.Message{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO messages (id, user_id, chat_id, role, content) VALUES `)
	args := make([]any, 0, len(forms)*5)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, uuid.NewString(), userID, f.ChatID, f.Role, f.Content)
	}
	sb.WriteString(` RETURNING ` + messageColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert messages: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0, len(forms))
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MessageStore) Update(ctx context.Context, id string, patch models.MessagePatch) (models.Message, error) {
	query := `
		UPDATE messages SET
			content = COALESCE($2, content),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + messageColumns
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id, patch.Content))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, common.ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to update message: %w", err)
	}
	return m, nil
}

func (r *MessageStore) Delete(ctx context.Context, id string) (models.Message, error) {
	query := `DELETE FROM messages WHERE id = $1 RETURNING ` + messageColumns
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, common.ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to delete message: %w", err)
	}
	return m, nil
}

func (r *MessageStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
