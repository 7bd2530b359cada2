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

const creditColumns = `id, user_id, amount, reason, created_at, updated_at, deleted_at`

// CreditStore implements the assistant usage credit ledger over a dbx.DBTX.
type CreditStore struct {
	db dbx.DBTX
}

// NewCreditStore constructs a store bound to the given DBTX.
func NewCreditStore(db dbx.DBTX) *CreditStore {
	return &CreditStore{db: db}
}

func scanCredit(s interface{ Scan(...any) error }) (models.Credit, error) {
	var c models.Credit
	err := s.Scan(&c.ID, &c.UserID, &c.Amount, &c.Reason, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

func (r *CreditStore) SelectAll(ctx context.Context, userID string) ([]models.Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select credits: %w", err)
	}
	defer rows.Close()

	var result []models.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
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

// Balance returns the sum of the user's ledger entries.
func (r *CreditStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credits WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to sum credits: %w", err)
	}
	return balance, nil
}

func (r *CreditStore) SelectByID(ctx context.Context, id string) (models.Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE id = $1`
	c, err := scanCredit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credit{}, common.ErrNotFound
	}
	if err != nil {
		return models.Credit{}, fmt.Errorf("failed to select credit: %w", err)
	}
	return c, nil
}

func (r *CreditStore) SelectIDs(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db, "credits", userID)
}

func (r *CreditStore) Insert(ctx context.Context, userID string, form models.CreditForm) (models.Credit, error) {
	query := `
		INSERT INTO credits (id, user_id, amount, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + creditColumns
	c, err := scanCredit(r.db.QueryRowContext(ctx, query, uuid.NewString(), userID, form.Amount, form.Reason))
	if err != nil {
		return models.Credit{}, fmt.Errorf("failed to insert credit: %w", err)
	}
	return c, nil
}

func (r *CreditStore) InsertBulk(ctx context.Context, userID string, forms []models.CreditForm) ([]models.Credit, error) {
	if len(forms) == 0 {
		return []models.Credit{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO credits (id, user_id, amount, reason) VALUES `)
	args := make([]any, 0, len(forms)*4)
	for i, f := range forms {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, uuid.NewString(), userID, f.Amount, f.Reason)
	}
	sb.WriteString(` RETURNING ` + creditColumns)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert credits: %w", err)
	}
	defer rows.Close()

	result := make([]models.Credit, 0, len(forms))
	for rows.Next() {
		c, err := scanCredit(rows)
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

func (r *CreditStore) Update(ctx context.Context, id string, patch models.CreditPatch) (models.Credit, error) {
	query := `
		UPDATE credits SET
			reason = COALESCE($2, reason),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + creditColumns
	c, err := scanCredit(r.db.QueryRowContext(ctx, query, id, patch.Reason))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credit{}, common.ErrNotFound
	}
	if err != nil {
		return models.Credit{}, fmt.Errorf("failed to update credit: %w", err)
	}
	return c, nil
}

func (r *CreditStore) Delete(ctx context.Context, id string) (models.Credit, error) {
	query := `DELETE FROM credits WHERE id = $1 RETURNING ` + creditColumns
	c, err := scanCredit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credit{}, common.ErrNotFound
	}
	if err != nil {
		return models.Credit{}, fmt.Errorf("failed to delete credit: %w", err)
	}
	return c, nil
}

func (r *CreditStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credits WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete credits: %w", err)
	}
	return nil
}
