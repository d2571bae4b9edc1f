package tree

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jacentio/syllabus/store"
)

// ListingCache caches children listings keyed by (kind, parent attribute,
// parent id). A nil *ListingCache caches nothing.
type ListingCache struct {
	entries *lru.Cache[string, []*store.Item]
}

// NewListingCache creates a cache holding at most size listings.
func NewListingCache(size int) (*ListingCache, error) {
	entries, err := lru.New[string, []*store.Item](size)
	if err != nil {
		return nil, err
	}
	return &ListingCache{entries: entries}, nil
}

func listingKey(kind store.Kind, attr, parentID string) string {
	return string(kind) + "|" + attr + "|" + parentID
}

// Get returns a copy of a cached listing.
func (c *ListingCache) Get(kind store.Kind, attr, parentID string) ([]*store.Item, bool) {
	if c == nil {
		return nil, false
	}
	items, ok := c.entries.Get(listingKey(kind, attr, parentID))
	if !ok {
		return nil, false
	}
	return cloneItems(items), true
}

// Put stores a copy of items.
func (c *ListingCache) Put(kind store.Kind, attr, parentID string, items []*store.Item) {
	if c == nil {
		return
	}
	c.entries.Add(listingKey(kind, attr, parentID), cloneItems(items))
}

// cloneItems copies a listing so callers never share cached documents.
func cloneItems(items []*store.Item) []*store.Item {
	if items == nil {
		return nil
	}
	out := make([]*store.Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Invalidate drops every listing of kind under parentID.
func (c *ListingCache) Invalidate(kind store.Kind, parentID string) {
	if c == nil {
		return
	}
	prefix := string(kind) + "|"
	suffix := "|" + parentID
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			c.entries.Remove(key)
		}
	}
}

// InvalidateKind drops every listing of kind.
func (c *ListingCache) InvalidateKind(kind store.Kind) {
	if c == nil {
		return
	}
	prefix := string(kind) + "|"
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
}

// Len returns the number of cached listings.
func (c *ListingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
