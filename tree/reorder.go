package tree

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/store"
)

const (
	// MaxBatchSize bounds the number of siblings reordered in one call.
	MaxBatchSize = 1000

	// TempOrderOffset starts the temporary order numbers of the first phase,
	// just above content.MaxOrderNumber, so the two ranges never meet.
	TempOrderOffset = 10 * MaxBatchSize
)

// Position is the requested order number of one sibling.
type Position struct {
	ID          string `json:"id"`
	OrderNumber int    `json:"orderNumber"`
}

// ReorderResult is the outcome of a reorder.
type ReorderResult struct {
	// Matched and Modified count the final phase only.
	Matched  int
	Modified int
}

// Reorderer renumbers siblings without ever asking two of them to hold the
// same order number at once.
type Reorderer struct {
	catalog *Catalog
	cache   *ListingCache
	log     zerolog.Logger
}

// NewReorderer creates a Reorderer. cache may be nil.
func NewReorderer(catalog *Catalog, cache *ListingCache, log zerolog.Logger) *Reorderer {
	return &Reorderer{
		catalog: catalog,
		cache:   cache,
		log:     log.With().Str("engine", "reorder").Logger(),
	}
}

// Reorder assigns each position's order number to its document.
//
// Every document must exist and all must share one sibling scope; both are
// checked before any write. The write happens in two phases: first every
// document moves to TempOrderOffset+index, then to its target. A direct
// swap would briefly need two siblings holding the same number, which the
// store's unique constraint rejects.
func (r *Reorderer) Reorder(ctx context.Context, kind store.Kind, positions []Position) (*ReorderResult, error) {
	info, err := r.catalog.Kind(kind)
	if err != nil {
		return nil, err
	}
	if !info.Ordered {
		return nil, invalid("%s cannot be reordered", kind)
	}
	if err := validatePositions(positions); err != nil {
		return nil, err
	}
	repo, err := r.catalog.Repository(kind)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(positions))
	for i, p := range positions {
		ids[i] = p.ID
	}
	items, err := repo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load %s batch: %w", kind, err)
	}
	if missing := missingIDs(ids, items); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, strings.Join(missing, ", "))
	}

	registry := r.catalog.Registry()
	scope := registry.ScopeKey(kind, items[0])
	for _, item := range items[1:] {
		if registry.ScopeKey(kind, item) != scope {
			return nil, fmt.Errorf("%w: %s %s is not a sibling of %s", ErrConflictScope, kind, item.ID, items[0].ID)
		}
	}
	defer r.invalidate(info, items[0])

	log := r.log.With().Str("kind", string(kind)).Str("scope", scope).Int("batch", len(positions)).Logger()

	temp := make([]store.UpdateOp, len(positions))
	for i, p := range positions {
		temp[i] = store.UpdateOp{ID: p.ID, Set: orderSet(TempOrderOffset + i)}
	}
	if res, err := repo.BulkWrite(ctx, temp); err != nil {
		log.Error().Err(err).Int("applied", res.Matched).Msg("reorder phase 1 failed")
		return nil, &PartialReorderError{Phase: 1, Applied: res.Matched, Err: err}
	}

	final := make([]store.UpdateOp, len(positions))
	for i, p := range positions {
		final[i] = store.UpdateOp{ID: p.ID, Set: orderSet(p.OrderNumber)}
	}
	res, err := repo.BulkWrite(ctx, final)
	if err != nil {
		log.Error().Err(err).Int("applied", res.Matched).Msg("reorder phase 2 failed, batch left on temporary numbers")
		return nil, &PartialReorderError{Phase: 2, Applied: res.Matched, Err: err}
	}

	log.Info().Int("modified", res.Modified).Msg("siblings reordered")
	return &ReorderResult{Matched: res.Matched, Modified: res.Modified}, nil
}

func (r *Reorderer) invalidate(info store.KindInfo, sample *store.Item) {
	if info.ParentKeyAttr == "" {
		r.cache.InvalidateKind(info.Kind)
		return
	}
	r.cache.Invalidate(info.Kind, sample.StringAttr(info.ParentKeyAttr))
}

func orderSet(n int) store.Fields {
	return store.Fields{content.AttrOrderNumber: store.Int(int64(n))}
}

// validatePositions checks the batch shape without touching the store.
func validatePositions(positions []Position) error {
	if len(positions) == 0 {
		return invalid("empty reorder batch")
	}
	if len(positions) > MaxBatchSize {
		return invalid("reorder batch of %d exceeds %d", len(positions), MaxBatchSize)
	}
	ids := make(map[string]bool, len(positions))
	numbers := make(map[int]string, len(positions))
	for i, p := range positions {
		if p.ID == "" {
			return invalid("element %d: missing id", i)
		}
		if p.OrderNumber < 1 || p.OrderNumber > content.MaxOrderNumber {
			return invalid("element %d: orderNumber must be between 1 and %d", i, content.MaxOrderNumber)
		}
		if ids[p.ID] {
			return invalid("element %d: duplicate id %s", i, p.ID)
		}
		if other, ok := numbers[p.OrderNumber]; ok {
			return invalid("element %d: orderNumber %d already requested for %s", i, p.OrderNumber, other)
		}
		ids[p.ID] = true
		numbers[p.OrderNumber] = p.ID
	}
	return nil
}

func missingIDs(ids []string, items []*store.Item) []string {
	found := make(map[string]bool, len(items))
	for _, item := range items {
		found[item.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
