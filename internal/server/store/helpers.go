package store

import (
	"context"
	"fmt"

	"github.com/akhramovs/tempora/internal/dbx"
)

// selectIDs returns the primary keys of every row the user owns in table.
// The table name is always a package-internal constant, never caller input.
func selectIDs(ctx context.Context, db dbx.DBTX, table, userID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE user_id = $1`, table)
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s ids: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// selectExternalIDs returns the non-null provider ids of the user's rows
// imported from source.
func selectExternalIDs(ctx context.Context, db dbx.DBTX, table, userID, source string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT external_id FROM %s WHERE user_id = $1 AND source = $2 AND external_id IS NOT NULL`, table)
	rows, err := db.QueryContext(ctx, query, userID, source)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s external ids: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
