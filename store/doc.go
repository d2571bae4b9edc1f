// Package store provides the DynamoDB entity store for the content and
// practice hierarchies.
//
// # Hierarchy
//
// A [Registry] is the hierarchy descriptor. Each [KindInfo] names a kind,
// its table, the attribute referencing its immediate parent, the attributes
// defining its sibling scope and the attributes unique within that scope:
//
//	reg := store.NewRegistry()
//	reg.RegisterKind(store.KindInfo{
//	    Kind:          "chapter",
//	    TableName:     "chapters",
//	    Parent:        "unit",
//	    ParentKeyAttr: "unitId",
//	    ScopeAttrs:    []string{"unitId"},
//	    UniqueAttrs:   []string{"orderNumber"},
//	    Ordered:       true,
//	})
//
// [Registry.Generations] lists the descendant relationships of a kind
// grouped by depth; the status cascade walks it level by level.
//
// # Repositories
//
// [Store.Repository] returns a per-kind [Repository] exposing FindByID,
// FindManyByIDs, FindByParent (GSI "<attr>-index"), UpdateByID,
// UpdateWhereIn, BulkWrite and Delete. Every single-document write is
// atomic; multi-document operations are not.
//
// # Unique constraints
//
// Unique attributes are claimed through records in the unique table,
// written in the same transaction as the document. Changing a unique
// attribute releases the old record and claims the new one atomically, so
// two live siblings can never hold the same value, even transiently.
//
// # Deletes
//
// Deletes set a TTL. Children are found through the relationship table
// and receive the same TTL from the stream handler. With
// [DeleteOptions].OrphanProtect a parent kind is deleted only when no shard
// holds a live child.
//
// # Errors
//
//   - [ErrNotFound] - entity doesn't exist or is deleted
//   - [ErrParentNotFound] - parent validation failed
//   - [ErrAlreadyExists] - entity with ID already exists
//   - [ErrHasChildren] - cannot delete entity with children
//   - [ErrConcurrentModification] - entity vanished or changed mid-transaction
//   - [ErrDuplicateValue] - unique constraint violated
//   - [ErrUnknownKind] - kind missing from the registry
package store
