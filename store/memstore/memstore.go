// Package memstore is an in-memory entity store with the same semantics as
// the DynamoDB store: parent validation on create, unique attributes within
// a sibling scope, per-document atomic writes and non-atomic batches.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/syllabus/store"
)

// DeleteHook is called for every document removed by a delete, descendants included.
type DeleteHook func(kind store.Kind, id string)

// DB holds every collection in memory.
type DB struct {
	mu       sync.RWMutex
	registry *store.Registry
	docs     map[store.Kind]map[string]map[string]types.AttributeValue
	hooks    []DeleteHook
}

// New creates an empty DB for the kinds in registry.
func New(registry *store.Registry) *DB {
	db := &DB{
		registry: registry,
		docs:     make(map[store.Kind]map[string]map[string]types.AttributeValue),
	}
	for _, info := range registry.Kinds() {
		db.docs[info.Kind] = make(map[string]map[string]types.AttributeValue)
	}
	return db
}

// OnDelete registers a hook run after each removed document.
func (db *DB) OnDelete(hook DeleteHook) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.hooks = append(db.hooks, hook)
}

// Registry returns the hierarchy the DB was built for.
func (db *DB) Registry() *store.Registry {
	return db.registry
}

// Create inserts a new document after checking its parent and unique attributes.
func (db *DB) Create(_ context.Context, entity store.Entity, item map[string]types.AttributeValue) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	kind := entity.EntityType()
	coll, ok := db.docs[kind]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownKind, kind)
	}

	raw := copyRaw(item)
	id := store.IDOfRef(entity.EntityRef())
	raw["id"] = store.String(id)

	if checker, ok := entity.(store.ParentChecker); ok {
		if ref := checker.ParentRef(); ref != "" {
			parents := db.docs[store.KindOfRef(ref)]
			if _, ok := parents[store.IDOfRef(ref)]; !ok {
				return store.ErrParentNotFound
			}
			raw["parent_ref"] = store.String(ref)
		}
	}
	if _, exists := coll[id]; exists {
		return store.ErrAlreadyExists
	}
	if db.violatesUnique(kind, id, raw) {
		return store.ErrDuplicateValue
	}

	now := time.Now().UTC().Format(time.RFC3339)
	raw["entity_ref"] = store.String(entity.EntityRef())
	raw["version"] = store.Int(1)
	raw["created_at"] = store.String(now)
	raw["updated_at"] = store.String(now)
	coll[id] = raw
	return nil
}

// violatesUnique reports whether raw would share a unique attribute value
// with a live sibling other than id. Callers hold the lock.
func (db *DB) violatesUnique(kind store.Kind, id string, raw map[string]types.AttributeValue) bool {
	info, ok := db.registry.Kind(kind)
	if !ok || len(info.UniqueAttrs) == 0 {
		return false
	}
	candidate := store.NewItem(raw)
	scope := db.registry.ScopeKey(kind, candidate)
	for otherID, other := range db.docs[kind] {
		if otherID == id {
			continue
		}
		sibling := store.NewItem(other)
		if db.registry.ScopeKey(kind, sibling) != scope {
			continue
		}
		for _, attr := range info.UniqueAttrs {
			v, ok := raw[attr]
			if !ok {
				continue
			}
			if !store.Differs(other, store.Fields{attr: v}) {
				return true
			}
		}
	}
	return false
}

// Collection is the per-kind view of a DB.
type Collection struct {
	db   *DB
	info store.KindInfo
}

// Repository returns the collection for a registered kind.
func (db *DB) Repository(kind store.Kind) (*Collection, error) {
	info, ok := db.registry.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownKind, kind)
	}
	return &Collection{db: db, info: info}, nil
}

// Kind returns the descriptor of the collection's kind.
func (c *Collection) Kind() store.KindInfo {
	return c.info
}

// FindByID returns a copy of a document or store.ErrNotFound.
func (c *Collection) FindByID(_ context.Context, id string) (*store.Item, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	raw, ok := c.db.docs[c.info.Kind][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.NewItem(copyRaw(raw)), nil
}

// FindManyByIDs returns copies of the existing documents among ids, in request order.
func (c *Collection) FindManyByIDs(_ context.Context, ids []string) ([]*store.Item, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var items []*store.Item
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if raw, ok := c.db.docs[c.info.Kind][id]; ok {
			items = append(items, store.NewItem(copyRaw(raw)))
		}
	}
	return items, nil
}

// FindByParent returns copies of the documents whose attr equals parentID,
// sorted by orderNumber then id.
func (c *Collection) FindByParent(_ context.Context, attr, parentID string) ([]*store.Item, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return c.findByParent(attr, parentID), nil
}

func (c *Collection) findByParent(attr, parentID string) []*store.Item {
	var items []*store.Item
	for _, raw := range c.db.docs[c.info.Kind] {
		if v, ok := raw[attr].(*types.AttributeValueMemberS); ok && v.Value == parentID {
			items = append(items, store.NewItem(copyRaw(raw)))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		oi, _ := items[i].IntAttr("orderNumber")
		oj, _ := items[j].IntAttr("orderNumber")
		if oi != oj {
			return oi < oj
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// UpdateByID applies set to one document.
func (c *Collection) UpdateByID(_ context.Context, id string, set store.Fields) (*store.Item, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	item, _, err := c.update(id, set)
	return item, err
}

// update applies set to one document. Callers hold the write lock.
func (c *Collection) update(id string, set store.Fields) (*store.Item, bool, error) {
	current, ok := c.db.docs[c.info.Kind][id]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if !store.Differs(current, set) {
		return store.NewItem(copyRaw(current)), false, nil
	}

	next := copyRaw(current)
	for k, v := range set {
		next[k] = v
	}
	if c.db.violatesUnique(c.info.Kind, id, next) {
		return nil, false, store.ErrDuplicateValue
	}

	version, _ := store.NewItem(current).IntAttr("version")
	next["version"] = store.Int(version + 1)
	next["updated_at"] = store.String(time.Now().UTC().Format(time.RFC3339))
	c.db.docs[c.info.Kind][id] = next
	return store.NewItem(copyRaw(next)), true, nil
}

// UpdateWhereIn applies set to every document whose attr is one of parentIDs.
// The lock is taken per document so concurrent writers may interleave.
func (c *Collection) UpdateWhereIn(_ context.Context, attr string, parentIDs []string, set store.Fields) (store.UpdateResult, error) {
	var res store.UpdateResult
	for _, parentID := range parentIDs {
		c.db.mu.RLock()
		children := c.findByParent(attr, parentID)
		c.db.mu.RUnlock()

		for _, child := range children {
			res.Matched = append(res.Matched, child.ID)
			c.db.mu.Lock()
			_, modified, err := c.update(child.ID, set)
			c.db.mu.Unlock()
			if err == store.ErrNotFound {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("update %s %s: %w", c.info.Kind, child.ID, err)
			}
			if modified {
				res.Modified++
			}
		}
	}
	return res, nil
}

// BulkWrite applies ops in order, stopping at the first failure.
func (c *Collection) BulkWrite(_ context.Context, ops []store.UpdateOp) (store.BulkResult, error) {
	var res store.BulkResult
	for _, op := range ops {
		c.db.mu.Lock()
		_, modified, err := c.update(op.ID, op.Set)
		c.db.mu.Unlock()
		if err != nil {
			return res, fmt.Errorf("update %s %s: %w", c.info.Kind, op.ID, err)
		}
		res.Matched++
		if modified {
			res.Modified++
		}
	}
	return res, nil
}

// Delete removes a document. With opts.Cascade every descendant is removed
// too; with opts.OrphanProtect the delete fails while children exist.
func (c *Collection) Delete(_ context.Context, id string, opts store.DeleteOptions) error {
	c.db.mu.Lock()
	if _, ok := c.db.docs[c.info.Kind][id]; !ok {
		c.db.mu.Unlock()
		return store.ErrNotFound
	}
	if opts.OrphanProtect && !opts.Cascade && c.db.hasChildren(c.info.Kind, id) {
		c.db.mu.Unlock()
		return store.ErrHasChildren
	}

	removed := []removal{{c.info.Kind, id}}
	delete(c.db.docs[c.info.Kind], id)
	if opts.Cascade {
		removed = append(removed, c.db.removeDescendants(c.info.Kind, []string{id})...)
	}
	hooks := c.db.hooks
	c.db.mu.Unlock()

	for _, r := range removed {
		for _, hook := range hooks {
			hook(r.kind, r.id)
		}
	}
	return nil
}

type removal struct {
	kind store.Kind
	id   string
}

func (db *DB) hasChildren(kind store.Kind, id string) bool {
	for _, rel := range db.registry.ChildrenOf(kind) {
		for _, raw := range db.docs[rel.ChildType] {
			if v, ok := raw[rel.ParentKeyAttr].(*types.AttributeValueMemberS); ok && v.Value == id {
				return true
			}
		}
	}
	return false
}

// removeDescendants deletes every document below ids. Callers hold the lock.
func (db *DB) removeDescendants(kind store.Kind, ids []string) []removal {
	var removed []removal
	parents := map[store.Kind]map[string]bool{kind: set(ids)}
	for _, gen := range db.registry.Generations(kind) {
		for _, rel := range gen {
			for childID, raw := range db.docs[rel.ChildType] {
				v, ok := raw[rel.ParentKeyAttr].(*types.AttributeValueMemberS)
				if !ok || !parents[rel.ParentType][v.Value] {
					continue
				}
				delete(db.docs[rel.ChildType], childID)
				removed = append(removed, removal{rel.ChildType, childID})
				if parents[rel.ChildType] == nil {
					parents[rel.ChildType] = make(map[string]bool)
				}
				parents[rel.ChildType][childID] = true
			}
		}
	}
	return removed
}

func set(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func copyRaw(raw map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
