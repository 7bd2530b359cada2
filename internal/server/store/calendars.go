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

const calendarColumns = `id, user_id, name, color, is_default, source, external_id, created_at, updated_at, deleted_at`

// CalendarStore implements calendar persistence over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type CalendarStore struct {
	db dbx.DBTX
}

// NewCalendarStore constructs a store bound to the given DBTX.
func NewCalendarStore(db dbx.DBTX) *CalendarStore {
	return &CalendarStore{db: db}
}

func scanCalendar(s interface{ Scan(...any) error }) (models.Calendar, error) {
	var c models.Calendar
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.IsDefault, &c.Source,
		&c.ExternalID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

func (r *CalendarStore) SelectAll(ctx context.Context, userID string) ([]models.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select calendars: %w", err)
	}
	defer rows.Close()

	var result []models.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
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

func (r *CalendarStore) SelectByID(ctx context.Context, id string) (models.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE id = $1`
	c, err := scanCalendar(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Calendar{}, common.ErrNotFound
	}
	if err != nil {
		return models.Calendar{}, fmt.Errorf("failed to select calendar: %w", err)
	}
	return c, nil
}

func (r *CalendarStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "calendars", userID)
}

// SelectExternalIDs returns the provider-assigned ids of every imported
// calendar with the given source. Used by the sync diff.
func (r *CalendarStore) SelectExternalIDs(ctx context.Context, userID, source string) ([]string, error) {
	return selectExternalIDs(ctx, r.db, "calendars", userID, source)
}

func (r *CalendarStore) Insert(ctx context.Context, userID string, form models.CalendarForm) (models.Calendar, error) {
	query := `
		INSERT INTO calendars (id, user_id, name, color, is_default, source, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + calendarColumns
	c, err := scanCalendar(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, form.Name, form.Color, form.IsDefault, orLocal(form.Source), form.ExternalID))
	if err != nil {
		return models.Calendar{}, fmt.Errorf("failed to insert calendar: %w", err)
	}
	return c, nil
}

func (r *CalendarStore) InsertBulk(ctx context.Context, userID string, forms []models.CalendarForm) ([]models.Calendar, error) {
	if len(forms) == 0 {
		return []models.Calendar{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO calendars (id, user_id, name, color, is_default, source, external_id) VALUES `)
	args := make([]any, 0, len(forms)*7)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, uuid.NewString(), userID, f.Name, f.Color, f.IsDefault, orLocal(f.Source), f.ExternalID)
	}
	sb.WriteString(` RETURNING ` + calendarColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert calendars: %w", err)
	}
	defer rows.Close()

	result := make([]models.Calendar, 0, len(forms))
	for rows.Next() {
		c, err := scanCalendar(rows)
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

func (r *CalendarStore) Update(ctx context.Context, id string, patch models.CalendarPatch) (models.Calendar, error) {
	query := `
		UPDATE calendars SET
			name = COALESCE($2, name),
			color = COALESCE($3, color),
			is_default = COALESCE($4, is_default),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + calendarColumns
	c, err := scanCalendar(r.db.QueryRowContext(ctx, query, id, patch.Name, patch.Color, patch.IsDefault))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Calendar{}, common.ErrNotFound
	}
	if err != nil {
		return models.Calendar{}, fmt.Errorf("failed to update calendar: %w", err)
	}
	return c, nil
}

func (r *CalendarStore) Delete(ctx context.Context, id string) (models.Calendar, error) {
	query := `DELETE FROM calendars WHERE id = $1 RETURNING ` + calendarColumns
	c, err := scanCalendar(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Calendar{}, common.ErrNotFound
	}
	if err != nil {
		return models.Calendar{}, fmt.Errorf("failed to delete calendar: %w", err)
	}
	return c, nil
}

func (r *CalendarStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete calendars: %w", err)
	}
	return nil
}
