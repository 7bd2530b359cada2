package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/akhramovs/tempora/internal/dbx"
)

// embedBatchSize bounds the number of texts sent to the embedding provider
// in one call, respecting its rate and payload limits.
const embedBatchSize = 50

// Item is one row to index: the relational row's id, its owner, and the
// deterministic textual projection of its fields.
type Item struct {
	ID     string
	UserID string
	Text   string
}

// Filter restricts a query to one owner. It is bound to SQL parameters, so
// caller-supplied values cannot alter the query shape.
type Filter struct {
	UserID string
}

// Match is one ranked query result.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Index stores embeddings in the vector_entries table, partitioned by
// namespace so one entity type's vectors never mix with another's.
type Index struct {
	db        dbx.DBTX
	namespace string
	embedder  Embedder
}

// NewIndex returns an Index writing to the given namespace.
func NewIndex(db dbx.DBTX, namespace string, embedder Embedder) *Index {
	return &Index{db: db, namespace: namespace, embedder: embedder}
}

// Namespace returns the logical partition this index writes to.
func (ix *Index) Namespace() string { return ix.namespace }

// Upsert embeds the item's text and inserts or refreshes its vector entry.
func (ix *Index) Upsert(ctx context.Context, item Item) error {
	return ix.UpsertBulk(ctx, []Item{item})
}

// UpsertBulk embeds and stores many items, calling the embedding provider in
// batches of 50. A no-op on empty input.
func (ix *Index) UpsertBulk(ctx context.Context, items []Item) error {
	for start := 0; start < len(items); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.Text
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}

		if err := ix.storeBatch(ctx, batch, vectors); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) storeBatch(ctx context.Context, batch []Item, vectors [][]float32) error {
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO vector_entries (id, namespace, user_id, embedding)
		VALUES `)
	args := make([]any, 0, len(batch)*4)
	for i, it := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, it.ID, ix.namespace, it.UserID, pgvector.NewVector(vectors[i]))
	}
	sb.WriteString(`
		ON CONFLICT (id, namespace)
		DO UPDATE SET user_id = EXCLUDED.user_id, embedding = EXCLUDED.embedding;
	`)

	if _, err := ix.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}

// Delete removes the entries with the given ids from this namespace.
// Unknown ids are ignored.
func (ix *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, ix.namespace)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM vector_entries WHERE namespace = $1 AND id IN (%s)`,
		strings.Join(placeholders, ", "))
	if _, err := ix.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}
	return nil
}

// Query embeds text and returns the topK nearest entries in this namespace
// owned by filter.UserID, ranked by cosine similarity (best first).
func (ix *Index) Query(ctx context.Context, text string, filter Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, 1 - (embedding <=> $1) AS score FROM vector_entries
		WHERE namespace = $2 AND user_id = $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := ix.db.QueryContext(ctx, query, pgvector.NewVector(vectors[0]), ix.namespace, filter.UserID, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var result []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
