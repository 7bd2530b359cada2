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

const chatColumns = `id, user_id, title, source, external_id, created_at, updated_at, deleted_at`

// ChatStore implements chat persistence over a dbx.DBTX.
type ChatStore struct {
	db dbx.DBTX
}

// NewChatStore constructs a store bound to the given DBTX.
func NewChatStore(db dbx.DBTX) *ChatStore {
	return &ChatStore{db: db}
}

func scanChat(s interface{ Scan(...any) error }) (models.Chat, error) {
	var c models.Chat
	err := s.Scan(&c.ID, &c.UserID, &c.Title, &c.Source, &c.ExternalID,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

func (r *ChatStore) SelectAll(ctx context.Context, userID string) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE user_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select chats: %w", err)
	}
	defer rows.Close()

	var result []models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ChatStore) SelectByID(ctx context.Context, id string) (models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	c, err := scanChat(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, common.ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("failed to select chat: %w", err)
	}
	return c, nil
}

func (r *ChatStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "chats", userID)
}

func (r *ChatStore) Insert(ctx context.Context, userID string, form models.ChatForm) (models.Chat, error) {
	query := `
		INSERT INTO chats (id, user_id, title, source)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + chatColumns
	c, err := scanChat(r.db.QueryRowContext(ctx, query, uuid.NewString(), userID, form.Title, "local"))
	if err != nil {
		return models.Chat{}, fmt.Errorf("failed to insert chat: %w", err)
	}
	return c, nil
}

func (r *ChatStore) InsertBulk(ctx context.Context, userID string, forms []models.ChatForm) ([]models.Chat, error) {
	if len(forms) == 0 {
		return []models.Chat{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO chats (id, user_id, title, source) VALUES `)
	args := make([]any, 0, len(forms)*4)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, uuid.NewString(), userID, f.Title, "local")
	}
	sb.WriteString(` RETURNING ` + chatColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert chats: %w", err)
	}
	defer rows.Close()

	result := make([]models.Chat, 0, len(forms))
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ChatStore) Update(ctx context.Context, id string, patch models.ChatPatch) (models.Chat, error) {
	query := `
		UPDATE chats SET
			title = COALESCE($2, title),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + chatColumns
	c, err := scanChat(r.db.QueryRowContext(ctx, query, id, patch.Title))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, common.ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("failed to update chat: %w", err)
	}
	return c, nil
}

func (r *ChatStore) Delete(ctx context.Context, id string) (models.Chat, error) {
	query := `DELETE FROM chats WHERE id = $1 RETURNING ` + chatColumns
	c, err := scanChat(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, common.ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("failed to delete chat: %w", err)
	}
	return c, nil
}

func (r *ChatStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete chats: %w", err)
	}
	return nil
}
