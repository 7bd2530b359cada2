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

const birthdayColumns = `id, user_id, name, date, notes, source, external_id, created_at, updated_at, deleted_at`

// BirthdayStore implements birthday persistence over a dbx.DBTX.
type BirthdayStore struct {
	db dbx.DBTX
}

// NewBirthdayStore constructs a store bound to the given DBTX.
func NewBirthdayStore(db dbx.DBTX) *BirthdayStore {
	return &BirthdayStore{db: db}
}

func scanBirthday(s interface{ Scan(...any) error }) (models.Birthday, error) {
	var b models.Birthday
	err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.Date, &b.Notes, &b.Source,
		&b.ExternalID, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	return b, err
}

func (r *BirthdayStore) SelectAll(ctx context.Context, userID string) ([]models.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays WHERE user_id = $1 ORDER BY date`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select birthdays: %w", err)
	}
	defer rows.Close()

	var result []models.Birthday
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BirthdayStore) SelectByID(ctx context.Context, id string) (models.Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays WHERE id = $1`
	b, err := scanBirthday(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Birthday{}, common.ErrNotFound
	}
	if err != nil {
		return models.Birthday{}, fmt.Errorf("failed to select birthday: %w", err)
	}
	return b, nil
}

func (r *BirthdayStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "birthdays", userID)
}

func (r *BirthdayStore) Insert(ctx context.Context, userID string, form models.BirthdayForm) (models.Birthday, error) {
	query := `
		INSERT INTO birthdays (id, user_id, name, date, notes, source, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + birthdayColumns
	b, err := scanBirthday(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, form.Name, form.Date, form.Notes, orLocal(form.Source), form.ExternalID))
	if err != nil {
		return models.Birthday{}, fmt.Errorf("failed to insert birthday: %w", err)
	}
	return b, nil
}

func (r *BirthdayStore) InsertBulk(ctx context.Context, userID string, forms []models.BirthdayForm) ([]models.Birthday, error) {
	if len(forms) == 0 {
		return []models.Birthday{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO birthdays (id, user_id, name, date, notes, source, external_id) VALUES `)
	args := make([]any, 0, len(forms)*7)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, uuid.NewString(), userID, f.Name, f.Date, f.Notes, orLocal(f.Source), f.ExternalID)
	}
	sb.WriteString(` RETURNING ` + birthdayColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert birthdays: %w", err)
	}
	defer rows.Close()

	result := make([]models.Birthday, 0, len(forms))
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BirthdayStore) Update(ctx context.Context, id string, patch models.BirthdayPatch) (models.Birthday, error) {
	query := `
		UPDATE birthdays SET
			name = COALESCE($2, name),
			date = COALESCE($3, date),
			notes = COALESCE($4, notes),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + birthdayColumns
	b, err := scanBirthday(r.db.QueryRowContext(ctx, query, id, patch.Name, patch.Date, patch.Notes))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Birthday{}, common.ErrNotFound
	}
	if err != nil {
		return models.Birthday{}, fmt.Errorf("failed to update birthday: %w", err)
	}
	return b, nil
}

func (r *BirthdayStore) Delete(ctx context.Context, id string) (models.Birthday, error) {
	query := `DELETE FROM birthdays WHERE id = $1 RETURNING ` + birthdayColumns
	b, err := scanBirthday(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Birthday{}, common.ErrNotFound
	}
	if err != nil {
		return models.Birthday{}, fmt.Errorf("failed to delete birthday: %w", err)
	}
	return b, nil
}

func (r *BirthdayStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM birthdays WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete birthdays: %w", err)
	}
	return nil
}
