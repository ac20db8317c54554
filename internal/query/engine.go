package query

import (
	"context"

	"bank_panel_backend/internal/models"

	"golang.org/x/sync/errgroup"
)

// ClientStore is the slice of the persistence gateway the engine needs.
// A nil sort means store-default order (ascending id).
type ClientStore interface {
	FindClients(ctx context.Context, pred Predicate, sort *Sort, skip, take int) ([]models.Client, error)
	CountClients(ctx context.Context, pred Predicate) (int, error)
}

// Engine executes filter criteria against a ClientStore.
type Engine struct {
	store ClientStore
}

func NewEngine(store ClientStore) *Engine {
	return &Engine{store: store}
}

// Query returns the requested page of matching clients and the total number of
// matches ignoring paging. Page and count are fetched concurrently; a failure
// of either discards both.
func (e *Engine) Query(ctx context.Context, criteria models.FilterCriteria) ([]models.Client, int, error) {
	criteria, err := Normalize(criteria)
	if err != nil {
		return nil, 0, err
	}

	pred := Build(criteria)
	var sortPtr *Sort
	if s, ok := ParseSort(criteria.SortBy, criteria.SortDescending); ok {
		sortPtr = &s
	}
	skip, take := Page(criteria)

	var (
		items []models.Client
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = e.store.FindClients(gctx, pred, sortPtr, skip, take)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = e.store.CountClients(gctx, pred)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.Client{}
	}
	return items, total, nil
}
