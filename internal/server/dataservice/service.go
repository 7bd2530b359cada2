// Package dataservice composes relational CRUD, the collection cache, and
// the vector index into one uniform, owner-scoped interface per entity type.
//
// Side effects are never transactional across the three stores: the
// relational write is ordered before cache invalidation and vector upsert,
// but those two race each other. The cache is a derived projection that is
// always safe to invalidate and rebuild; the vector index is an eventually
// consistent secondary.
package dataservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/logging"
	"github.com/akhramovs/tempora/internal/server/cache"
	"github.com/akhramovs/tempora/internal/server/store"
	"github.com/akhramovs/tempora/internal/server/vector"
)

// defaultSearchLimit caps search results when the caller does not set one.
const defaultSearchLimit = 10

// VectorIndex is the slice of the vector client the data service needs.
// *vector.Index satisfies it.
type VectorIndex interface {
	Upsert(ctx context.Context, item vector.Item) error
	UpsertBulk(ctx context.Context, items []vector.Item) error
	Delete(ctx context.Context, ids ...string) error
	Query(ctx context.Context, text string, filter vector.Filter, topK int) ([]vector.Match, error)
}

// Service is the generic data service for entity type T with create form F
// and patch P. Caching and vector indexing are optional; a Service without
// them degrades to plain relational CRUD.
type Service[T store.Row, F any, P any] struct {
	store      store.Store[T, F, P]
	log        logging.Logger
	collection string

	cache *cache.Cache
	ttl   time.Duration

	index  VectorIndex
	textFn func(T) string

	hooks Hooks
}

// Option configures a Service.
type Option[T store.Row, F any, P any] func(*Service[T, F, P])

// WithCache enables the collection snapshot cache. A non-positive ttl falls
// back to the cache default.
func WithCache[T store.Row, F any, P any](c *cache.Cache, ttl time.Duration) Option[T, F, P] {
	return func(s *Service[T, F, P]) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithVector enables semantic indexing. textFn is the deterministic textual
// projection of a row; nil falls back to DefaultTextFn.
func WithVector[T store.Row, F any, P any](index VectorIndex, textFn func(T) string) Option[T, F, P] {
	return func(s *Service[T, F, P]) {
		s.index = index
		if textFn == nil {
			textFn = DefaultTextFn[T]()
		}
		s.textFn = textFn
	}
}

// WithHooks installs constructor-level hooks.
func WithHooks[T store.Row, F any, P any](h Hooks) Option[T, F, P] {
	return func(s *Service[T, F, P]) {
		s.hooks.Merge(h)
	}
}

// New constructs a Service over st. The collection name scopes cache keys
// and appears in log fields.
func New[T store.Row, F any, P any](collection string, st store.Store[T, F, P], log logging.Logger, opts ...Option[T, F, P]) *Service[T, F, P] {
	s := &Service[T, F, P]{
		store:      st,
		log:        log.With("collection", collection),
		collection: collection,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddHooks merges additional before/after hooks, distinct from the
// constructor-supplied ones. Later registrations run later.
func (s *Service[T, F, P]) AddHooks(h Hooks) {
	s.hooks.Merge(h)
}

// Collection returns the cache/log scope name of this service.
func (s *Service[T, F, P]) Collection() string { return s.collection }

// VectorEnabled reports whether this service maintains a vector index.
func (s *Service[T, F, P]) VectorEnabled() bool { return s.index != nil }

// GetAll returns every row owned by userID, consulting the cache first.
// Cache presence is explicit: a cached empty collection is served without a
// relational query.
func (s *Service[T, F, P]) GetAll(ctx context.Context, userID string) ([]T, error) {
	if err := s.hooks.runBefore(ctx, OpGetAll, userID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		payload, present, err := s.cache.GetCollection(ctx, s.collection, userID)
		if err != nil {
			return nil, err
		}
		if present {
			var rows []T
			if err := json.Unmarshal(payload, &rows); err == nil {
				if err := s.hooks.runAfter(ctx, OpGetAll, userID, rows); err != nil {
					return nil, err
				}
				return rows, nil
			}
			// Corrupt snapshot: fall through to a relational rebuild.
			s.log.Warn(ctx, "discarding undecodable cache snapshot", "userID", userID)
		}
	}

	rows, err := s.store.SelectAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}

	if s.cache != nil {
		payload, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("encode %s snapshot: %w", s.collection, err)
		}
		if err := s.cache.SetCollection(ctx, s.collection, userID, payload, s.ttl); err != nil {
			return nil, err
		}
	}

	if err := s.hooks.runAfter(ctx, OpGetAll, userID, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Get fetches a single row by primary key. The owner is inferred from the
// row itself and cannot be spoofed by the caller.
func (s *Service[T, F, P]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := s.hooks.runBefore(ctx, OpGet, id); err != nil {
		return zero, err
	}
	row, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := s.hooks.runAfter(ctx, OpGet, id, row); err != nil {
		return zero, err
	}
	return row, nil
}

// Create inserts a row with userID injected, then invalidates the user's
// cache entry and, if vector-enabled, upserts the row's embedding.
func (s *Service[T, F, P]) Create(ctx context.Context, userID string, form F) (T, error) {
	var zero T
	if err := s.hooks.runBefore(ctx, OpCreate, form); err != nil {
		return zero, err
	}

	row, err := s.store.Insert(ctx, userID, form)
	if err != nil {
		return zero, err
	}
	if err := s.afterWrite(ctx, userID, []T{row}); err != nil {
		return zero, err
	}

	if err := s.hooks.runAfter(ctx, OpCreate, form, row); err != nil {
		return zero, err
	}
	return row, nil
}

// CreateBulk inserts many rows in one relational statement. Empty input is
// a complete no-op: no insert, no cache invalidation, no vector calls.
func (s *Service[T, F, P]) CreateBulk(ctx context.Context, userID string, forms []F) ([]T, error) {
	if err := s.hooks.runBefore(ctx, OpCreateBulk, forms); err != nil {
		return nil, err
	}

	if len(forms) == 0 {
		if err := s.hooks.runAfter(ctx, OpCreateBulk, forms, []T{}); err != nil {
			return nil, err
		}
		return []T{}, nil
	}

	rows, err := s.store.InsertBulk(ctx, userID, forms)
	if err != nil {
		return nil, err
	}
	if err := s.afterWrite(ctx, userID, rows); err != nil {
		return nil, err
	}

	if err := s.hooks.runAfter(ctx, OpCreateBulk, forms, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update applies a partial patch by id, invalidates the owner's cache and
// refreshes the row's vector entry.
func (s *Service[T, F, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var zero T
	if err := s.hooks.runBefore(ctx, OpUpdate, patch); err != nil {
		return zero, err
	}

	row, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return zero, err
	}
	if err := s.afterWrite(ctx, row.RowUserID(), []T{row}); err != nil {
		return zero, err
	}

	if err := s.hooks.runAfter(ctx, OpUpdate, patch, row); err != nil {
		return zero, err
	}
	return row, nil
}

// Delete hard-deletes by id, invalidates the owner's cache and removes the
// vector entry.
func (s *Service[T, F, P]) Delete(ctx context.Context, id string) (T, error) {
	var zero T
	if err := s.hooks.runBefore(ctx, OpDelete, id); err != nil {
		return zero, err
	}

	row, err := s.store.Delete(ctx, id)
	if err != nil {
		return zero, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.invalidate(gctx, row.RowUserID()) })
	if s.index != nil {
		g.Go(func() error { return s.index.Delete(gctx, id) })
	}
	if err := g.Wait(); err != nil {
		return zero, err
	}

	if err := s.hooks.runAfter(ctx, OpDelete, id, row); err != nil {
		return zero, err
	}
	return row, nil
}

// DeleteAll removes every row owned by userID and clears the cache entry.
// Vector entries are removed per id, best-effort: the relational delete is
// already committed, so an index failure is logged and not returned.
func (s *Service[T, F, P]) DeleteAll(ctx context.Context, userID string) error {
	if err := s.hooks.runBefore(ctx, OpDeleteAll, userID); err != nil {
		return err
	}

	var ids []string
	if s.index != nil {
		var err error
		ids, err = s.store.SelectIDs(ctx, userID)
		if err != nil {
			return err
		}
	}

	if err := s.store.DeleteAll(ctx, userID); err != nil {
		return err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		return err
	}

	if s.index != nil && len(ids) > 0 {
		if err := s.index.Delete(ctx, ids...); err != nil {
			s.log.Warn(ctx, "vector cleanup failed after deleteAll", "userID", userID, "error", err)
		}
	}

	return s.hooks.runAfter(ctx, OpDeleteAll, userID, nil)
}

// ClearCache drops the user's cached snapshot without touching underlying
// data.
func (s *Service[T, F, P]) ClearCache(ctx context.Context, userID string) error {
	return s.invalidate(ctx, userID)
}

// Search embeds query, runs a nearest-neighbor lookup scoped to userID, and
// re-hydrates the matches from the relational store, preserving the vector
// ranking order. Ids with no surviving relational row are silently dropped.
func (s *Service[T, F, P]) Search(ctx context.Context, userID, query string, limit int) ([]T, error) {
	if err := s.hooks.runBefore(ctx, OpSearch, query); err != nil {
		return nil, err
	}

	matches, err := s.SearchVector(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0, len(matches))
	for _, m := range matches {
		row, err := s.store.SelectByID(ctx, m.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if row.RowUserID() != userID {
			continue
		}
		rows = append(rows, row)
	}

	if err := s.hooks.runAfter(ctx, OpSearch, query, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchVector is the lower-level variant returning raw ranked id/score
// pairs without relational hydration.
func (s *Service[T, F, P]) SearchVector(ctx context.Context, query, userID string, limit int) ([]vector.Match, error) {
	if s.index == nil {
		return nil, common.ErrVectorNotConfigured
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.index.Query(ctx, query, vector.Filter{UserID: userID}, limit)
}

// afterWrite performs the post-write side effects for rows just inserted or
// updated: cache invalidation and vector upsert, concurrently.
func (s *Service[T, F, P]) afterWrite(ctx context.Context, userID string, rows []T) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.invalidate(gctx, userID) })
	if s.index != nil {
		items := make([]vector.Item, len(rows))
		for i, row := range rows {
			items[i] = vector.Item{ID: row.RowID(), UserID: row.RowUserID(), Text: s.textFn(row)}
		}
		g.Go(func() error { return s.index.UpsertBulk(gctx, items) })
	}
	return g.Wait()
}

func (s *Service[T, F, P]) invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, s.collection, userID)
}

