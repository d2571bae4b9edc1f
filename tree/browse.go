package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/store"
)

// Browser serves reads and deletes of single documents and child listings.
type Browser struct {
	catalog *Catalog
	cache   *ListingCache
	log     zerolog.Logger
}

// NewBrowser creates a Browser. cache may be nil.
func NewBrowser(catalog *Catalog, cache *ListingCache, log zerolog.Logger) *Browser {
	return &Browser{catalog: catalog, cache: cache, log: log}
}

// Get returns one document.
func (b *Browser) Get(ctx context.Context, kind store.Kind, id string) (*store.Item, error) {
	if id == "" {
		return nil, invalid("missing id")
	}
	repo, err := b.catalog.Repository(kind)
	if err != nil {
		return nil, err
	}
	item, err := repo.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return item, err
}

// Children lists the documents of kind under parentID, ordered by orderNumber.
func (b *Browser) Children(ctx context.Context, kind store.Kind, parentID string) ([]*store.Item, error) {
	info, err := b.catalog.Kind(kind)
	if err != nil {
		return nil, err
	}
	if info.ParentKeyAttr == "" {
		return nil, invalid("%s has no parent", kind)
	}
	if parentID == "" {
		return nil, invalid("missing parent id")
	}

	if items, ok := b.cache.Get(kind, info.ParentKeyAttr, parentID); ok {
		return items, nil
	}
	repo, err := b.catalog.Repository(kind)
	if err != nil {
		return nil, err
	}
	items, err := repo.FindByParent(ctx, info.ParentKeyAttr, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s of %s: %w", kind, parentID, err)
	}
	sortByOrder(items)
	b.cache.Put(kind, info.ParentKeyAttr, parentID, items)
	return items, nil
}

// Delete removes a document and its subtree. With protect set it removes
// only a document without live children and fails otherwise.
func (b *Browser) Delete(ctx context.Context, kind store.Kind, id string, protect bool) error {
	if id == "" {
		return invalid("missing id")
	}
	repo, err := b.catalog.Repository(kind)
	if err != nil {
		return err
	}
	err = repo.Delete(ctx, id, store.DeleteOptions{Cascade: !protect, OrphanProtect: protect})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if errors.Is(err, store.ErrHasChildren) {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidInput, kind, id, err)
	}
	if err != nil {
		return err
	}

	b.cache.InvalidateKind(kind)
	for _, gen := range b.catalog.Registry().Generations(kind) {
		for _, rel := range gen {
			b.cache.InvalidateKind(rel.ChildType)
		}
	}
	b.log.Info().Str("kind", string(kind)).Str("id", id).Msg("deleted")
	return nil
}

func sortByOrder(items []*store.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		oi, _ := items[i].IntAttr(content.AttrOrderNumber)
		oj, _ := items[j].IntAttr(content.AttrOrderNumber)
		if oi != oj {
			return oi < oj
		}
		return items[i].ID < items[j].ID
	})
}
