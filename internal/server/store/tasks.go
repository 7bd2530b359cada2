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

const taskColumns = `id, user_id, title, description, due_date, completed, source, external_id, created_at, updated_at, deleted_at`

// TaskStore implements task persistence over a dbx.DBTX.
type TaskStore struct {
	db dbx.DBTX
}

// NewTaskStore constructs a store bound to the given DBTX.
func NewTaskStore(db dbx.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(s interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueDate, &t.Completed,
		&t.Source, &t.ExternalID, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}

func (r *TaskStore) SelectAll(ctx context.Context, userID string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var result []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TaskStore) SelectByID(ctx context.Context, id string) (models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, common.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to select task: %w", err)
	}
	return t, nil
}

func (r *TaskStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "tasks", userID)
}

func (r *TaskStore) Insert(ctx context.Context, userID string, form models.TaskForm) (models.Task, error) {
	query := `
		INSERT INTO tasks (id, user_id, title, description, due_date, completed, source, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, form.Title, form.Description, form.DueDate, form.Completed,
		orLocal(form.Source), form.ExternalID))
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return t, nil
}

func (r *TaskStore) InsertBulk(ctx context.Context, userID string, forms []models.TaskForm) ([]models.Task, error) {
	if len(forms) == 0 {
		return []models.Task{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO tasks (id, user_id, title, description, due_date, completed, source, external_id) VALUES `)
	args := make([]any, 0, len(forms)*8)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
		args = append(args, uuid.NewString(), userID, f.Title, f.Description, f.DueDate, f.Completed,
			orLocal(f.Source), f.ExternalID)
	}
	sb.WriteString(` RETURNING ` + taskColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert tasks: %w", err)
	}
	defer rows.Close()

	result := make([]models.Task, 0, len(forms))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TaskStore) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	query := `
		UPDATE tasks SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			due_date = COALESCE($4, due_date),
			completed = COALESCE($5, completed),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id,
		patch.Title, patch.Description, patch.DueDate, patch.Completed))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, common.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

func (r *TaskStore) Delete(ctx context.Context, id string) (models.Task, error) {
	query := `DELETE FROM tasks WHERE id = $1 RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, common.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to delete task: %w", err)
	}
	return t, nil
}

func (r *TaskStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete tasks: %w", err)
	}
	return nil
}
