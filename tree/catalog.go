// Package tree holds the engines that keep the content and practice
// hierarchies consistent: the status cascade and the sibling reorder.
package tree

import (
	"context"
	"fmt"

	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/store/memstore"
)

// Repository is the entity store surface the engines use for one kind.
type Repository interface {
	FindByID(ctx context.Context, id string) (*store.Item, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]*store.Item, error)
	FindByParent(ctx context.Context, attr, parentID string) ([]*store.Item, error)
	UpdateByID(ctx context.Context, id string, set store.Fields) (*store.Item, error)
	UpdateWhereIn(ctx context.Context, attr string, parentIDs []string, set store.Fields) (store.UpdateResult, error)
	BulkWrite(ctx context.Context, ops []store.UpdateOp) (store.BulkResult, error)
	Delete(ctx context.Context, id string, opts store.DeleteOptions) error
}

// Catalog maps every registered kind to its repository. It is built once
// at startup.
type Catalog struct {
	registry *store.Registry
	repos    map[store.Kind]Repository
}

// NewCatalog opens a repository for every kind of registry.
func NewCatalog(registry *store.Registry, open func(store.Kind) (Repository, error)) (*Catalog, error) {
	c := &Catalog{
		registry: registry,
		repos:    make(map[store.Kind]Repository),
	}
	for _, info := range registry.Kinds() {
		repo, err := open(info.Kind)
		if err != nil {
			return nil, fmt.Errorf("open %s repository: %w", info.Kind, err)
		}
		c.repos[info.Kind] = repo
	}
	return c, nil
}

// DynamoCatalog builds a catalog over the DynamoDB store.
func DynamoCatalog(s *store.Store) (*Catalog, error) {
	return NewCatalog(s.Registry(), func(k store.Kind) (Repository, error) {
		repo, err := s.Repository(k)
		if err != nil {
			return nil, err
		}
		return repo, nil
	})
}

// MemoryCatalog builds a catalog over the in-memory store.
func MemoryCatalog(db *memstore.DB) (*Catalog, error) {
	return NewCatalog(db.Registry(), func(k store.Kind) (Repository, error) {
		repo, err := db.Repository(k)
		if err != nil {
			return nil, err
		}
		return repo, nil
	})
}

// Registry returns the hierarchy descriptor.
func (c *Catalog) Registry() *store.Registry {
	return c.registry
}

// Repository returns the repository of kind, or ErrInvalidInput for an unknown kind.
func (c *Catalog) Repository(kind store.Kind) (Repository, error) {
	repo, ok := c.repos[kind]
	if !ok {
		return nil, invalid("unknown kind %q", kind)
	}
	return repo, nil
}

// Kind returns the descriptor of kind, or ErrInvalidInput for an unknown kind.
func (c *Catalog) Kind(kind store.Kind) (store.KindInfo, error) {
	info, ok := c.registry.Kind(kind)
	if !ok {
		return store.KindInfo{}, invalid("unknown kind %q", kind)
	}
	return info, nil
}
