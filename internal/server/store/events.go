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

const eventColumns = `id, user_id, calendar_id, title, description, location, start_at, end_at, all_day, color, source, external_id, created_at, updated_at, deleted_at`

// EventStore implements event persistence over a dbx.DBTX.
type EventStore struct {
	db dbx.DBTX
}

// NewEventStore constructs a store bound to the given DBTX.
func NewEventStore(db dbx.DBTX) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(s interface{ Scan(...any) error }) (models.Event, error) {
	var e models.Event
	err := s.Scan(&e.ID, &e.UserID, &e.CalendarID, &e.Title, &e.Description, &e.Location,
		&e.Start, &e.End, &e.AllDay, &e.Color, &e.Source, &e.ExternalID,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	return e, err
}

func (r *EventStore) SelectAll(ctx context.Context, userID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1 ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *EventStore) SelectByID(ctx context.Context, id string) (models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, common.ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to select event: %w", err)
	}
	return e, nil
}

func (r *EventStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "events", userID)
}

// SelectExternalIDs returns the provider-assigned ids of every imported
// event with the given source. Used by the sync diff.
func (r *EventStore) SelectExternalIDs(ctx context.Context, userID, source string) ([]string, error) {
	return selectExternalIDs(ctx, r.db, "events", userID, source)
}

func (r *EventStore) Insert(ctx context.Context, userID string, form models.EventForm) (models.Event, error) {
	query := `
		INSERT INTO events (id, user_id, calendar_id, title, description, location, start_at, end_at, all_day, color, source, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, form.CalendarID, form.Title, form.Description, form.Location,
		form.Start, form.End, form.AllDay, form.Color, orLocal(form.Source), form.ExternalID))
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to insert event: %w", err)
	}
	return e, nil
}

func (r *EventStore) InsertBulk(ctx context.Context, userID string, forms []models.EventForm) ([]models.Event, error) {
	if len(forms) == 0 {
		return []models.Event{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO events (id, user_id, calendar_id, title, description, location, start_at, end_at, all_day, color, source, external_id) VALUES `)
	args := make([]any, 0, len(forms)*12)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 12
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11, n+12)
		args = append(args, uuid.NewString(), userID, f.CalendarID, f.Title, f.Description, f.Location,
			f.Start, f.End, f.AllDay, f.Color, orLocal(f.Source), f.ExternalID)
	}
	sb.WriteString(` RETURNING ` + eventColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert events: %w", err)
	}
	defer rows.Close()

	result := make([]models.Event, 0, len(forms))
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *EventStore) Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error) {
	query := `
		UPDATE events SET
			calendar_id = COALESCE($2, calendar_id),
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			location = COALESCE($5, location),
			start_at = COALESCE($6, start_at),
			end_at = COALESCE($7, end_at),
			all_day = COALESCE($8, all_day),
			color = COALESCE($9, color),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id,
		patch.CalendarID, patch.Title, patch.Description, patch.Location,
		patch.Start, patch.End, patch.AllDay, patch.Color))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, common.ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

func (r *EventStore) Delete(ctx context.Context, id string) (models.Event, error) {
	query := `DELETE FROM events WHERE id = $1 RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, common.ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to delete event: %w", err)
	}
	return e, nil
}

func (r *EventStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
