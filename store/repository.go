package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// batchGetLimit is the maximum number of keys per BatchGetItem request.
const batchGetLimit = 100

// Repository is the per-kind view of the store used by the engines.
type Repository struct {
	store *Store
	info  KindInfo
}

// Repository returns the repository for a registered kind.
func (s *Store) Repository(kind Kind) (*Repository, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: %s (no registry)", ErrUnknownKind, kind)
	}
	info, ok := s.registry.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return &Repository{store: s, info: info}, nil
}

// Kind returns the descriptor of the repository's kind.
func (r *Repository) Kind() KindInfo {
	return r.info
}

// FindByID returns a live document or ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id string) (*Item, error) {
	return r.store.Get(ctx, r.info.TableName, IDKey(id))
}

// FindManyByIDs returns the live documents among ids, in request order.
// Missing or deleted ids are simply absent from the result.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []string) ([]*Item, error) {
	table := r.store.config.Table(r.info.TableName)
	found := make(map[string]*Item, len(ids))

	seen := make(map[string]bool, len(ids))
	var keys []map[string]types.AttributeValue
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, IDKey(id))
	}

	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}
		pending := map[string]types.KeysAndAttributes{
			table: {Keys: keys[start:end], ConsistentRead: aws.Bool(true)},
		}
		for len(pending) > 0 {
			out, err := r.store.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, err
			}
			for _, raw := range out.Responses[table] {
				if IsDeleted(raw) {
					continue
				}
				item := unmarshalItem(raw)
				found[item.ID] = item
			}
			pending = out.UnprocessedKeys
		}
	}

	items := make([]*Item, 0, len(found))
	for _, id := range ids {
		if item, ok := found[id]; ok {
			items = append(items, item)
			delete(found, id)
		}
	}
	return items, nil
}

// FindByParent returns the live documents whose attr equals parentID,
// using the attribute's GSI.
func (r *Repository) FindByParent(ctx context.Context, attr, parentID string) ([]*Item, error) {
	return r.store.Query(ctx, QueryInput{
		TableName:                 r.info.TableName,
		IndexName:                 r.store.config.ParentIndex(attr),
		KeyConditionExpression:    "#parent = :parent",
		ExpressionAttributeNames:  map[string]string{"#parent": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":parent": String(parentID)},
	})
}

// UpdateByID applies set to one document and returns it.
func (r *Repository) UpdateByID(ctx context.Context, id string, set Fields) (*Item, error) {
	item, _, err := r.store.update(ctx, r.spec(id, set))
	return item, err
}

// UpdateWhereIn applies set to every live document whose attr is one of
// parentIDs. An empty parentIDs matches nothing and issues no request.
// Each document write is atomic on its own; on error the result reports
// what was done so far.
func (r *Repository) UpdateWhereIn(ctx context.Context, attr string, parentIDs []string, set Fields) (UpdateResult, error) {
	var res UpdateResult
	for _, parentID := range parentIDs {
		children, err := r.FindByParent(ctx, attr, parentID)
		if err != nil {
			return res, fmt.Errorf("query %s by %s: %w", r.info.Kind, attr, err)
		}
		for _, child := range children {
			res.Matched = append(res.Matched, child.ID)
			if !Differs(child.Raw, set) {
				continue
			}
			_, modified, err := r.store.update(ctx, r.spec(child.ID, set))
			if errors.Is(err, ErrNotFound) {
				// deleted since the query
				continue
			}
			if err != nil {
				return res, fmt.Errorf("update %s %s: %w", r.info.Kind, child.ID, err)
			}
			if modified {
				res.Modified++
			}
		}
	}
	return res, nil
}

// BulkWrite applies ops in order, stopping at the first failure.
// Each op is atomic per document; the batch is not.
func (r *Repository) BulkWrite(ctx context.Context, ops []UpdateOp) (BulkResult, error) {
	var res BulkResult
	for _, op := range ops {
		_, modified, err := r.store.update(ctx, r.spec(op.ID, op.Set))
		if err != nil {
			return res, fmt.Errorf("update %s %s: %w", r.info.Kind, op.ID, err)
		}
		res.Matched++
		if modified {
			res.Modified++
		}
	}
	return res, nil
}

// Delete soft-deletes a document; descendants follow through the stream handler.
func (r *Repository) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	return r.store.deleteByKey(ctx, r.info.TableName, IDKey(id), EntityRef(r.info.Kind, id), opts)
}

func (r *Repository) spec(id string, set Fields) updateSpec {
	return updateSpec{
		kind:  r.info.Kind,
		table: r.info.TableName,
		key:   IDKey(id),
		ref:   EntityRef(r.info.Kind, id),
		set:   set,
	}
}
