package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/store"
)

// GenerationResult is the outcome of one descendant kind at one depth.
type GenerationResult struct {
	Depth    int        `json:"depth"`
	Kind     store.Kind `json:"kind"`
	Matched  int        `json:"matched"`
	Modified int        `json:"modified"`
}

// CascadeResult is the outcome of a status cascade.
type CascadeResult struct {
	Root        *store.Item
	Generations []GenerationResult
}

// Modified returns the number of descendants whose status changed.
func (r *CascadeResult) Modified() int {
	n := 0
	for _, g := range r.Generations {
		n += g.Modified
	}
	return n
}

// Cascader propagates a status change from one document to its whole subtree.
type Cascader struct {
	catalog *Catalog
	cache   *ListingCache
	log     zerolog.Logger
}

// NewCascader creates a Cascader. cache may be nil.
func NewCascader(catalog *Catalog, cache *ListingCache, log zerolog.Logger) *Cascader {
	return &Cascader{
		catalog: catalog,
		cache:   cache,
		log:     log.With().Str("engine", "cascade").Logger(),
	}
}

// SetStatus sets status on the document and then, generation by generation,
// on every descendant. Each generation is selected by the ids matched in the
// generation above it, whether or not their write changed anything.
//
// Writes are not transactional: when a deeper generation fails the
// shallower ones stay updated and a *PartialCascadeError is returned.
func (c *Cascader) SetStatus(ctx context.Context, kind store.Kind, id string, status content.Status) (*CascadeResult, error) {
	if !status.Valid() {
		return nil, invalid("status must be %q or %q, got %q", content.Active, content.Inactive, status)
	}
	if id == "" {
		return nil, invalid("missing id")
	}
	repo, err := c.catalog.Repository(kind)
	if err != nil {
		return nil, err
	}

	set := store.Fields{content.AttrStatus: store.String(string(status))}
	root, err := repo.UpdateByID(ctx, id, set)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}

	log := c.log.With().Str("kind", string(kind)).Str("id", id).Str("status", string(status)).Logger()
	res := &CascadeResult{Root: root}
	touched := []store.Kind{kind}
	defer func() {
		for _, k := range touched {
			c.cache.InvalidateKind(k)
		}
	}()

	matched := map[store.Kind][]string{kind: {id}}
	for depth, gen := range c.catalog.Registry().Generations(kind) {
		for _, rel := range gen {
			g := GenerationResult{Depth: depth + 1, Kind: rel.ChildType}
			parents := matched[rel.ParentType]
			if len(parents) == 0 {
				// nothing above: never turn an empty id set into a query
				res.Generations = append(res.Generations, g)
				continue
			}

			childRepo, err := c.catalog.Repository(rel.ChildType)
			if err != nil {
				return res, &PartialCascadeError{Kind: rel.ChildType, Depth: g.Depth, Completed: res.Generations, Err: err}
			}
			touched = append(touched, rel.ChildType)

			upd, err := childRepo.UpdateWhereIn(ctx, rel.ParentKeyAttr, parents, set)
			matched[rel.ChildType] = append(matched[rel.ChildType], upd.Matched...)
			if err != nil {
				log.Error().Err(err).
					Str("generation", string(rel.ChildType)).
					Int("depth", g.Depth).
					Int("modified", upd.Modified).
					Msg("status cascade stopped")
				return res, &PartialCascadeError{Kind: rel.ChildType, Depth: g.Depth, Completed: res.Generations, Err: err}
			}

			g.Matched = len(upd.Matched)
			g.Modified = upd.Modified
			res.Generations = append(res.Generations, g)
			log.Debug().
				Str("generation", string(rel.ChildType)).
				Int("depth", g.Depth).
				Int("matched", g.Matched).
				Int("modified", g.Modified).
				Msg("generation updated")
		}
	}

	log.Info().Int("descendants_modified", res.Modified()).Msg("status cascaded")
	return res, nil
}
