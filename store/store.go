package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/syllabus/internal/shard"
)

// Client is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// managedAttrs are maintained by the store and never taken from callers.
var managedAttrs = map[string]bool{
	"id": true, "entity_ref": true, "parent_ref": true, "version": true,
	"created_at": true, "updated_at": true, "ttl": true, "_unique_pks": true,
}

// Store provides DynamoDB operations with hierarchical entity support.
type Store struct {
	client   Client
	config   Config
	registry *Registry
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewWithRegistry creates a new Store instance with a hierarchy registry.
func NewWithRegistry(client Client, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// Registry returns the hierarchy registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated store configuration.
func (s *Store) Config() Config {
	return s.config
}

// relationshipPK computes the sharded partition key for a relationship record.
func (s *Store) relationshipPK(parentRef, childRef string) string {
	return shard.RelationshipPK(parentRef, childRef, s.config.NumShards)
}

// scopeOf returns the sibling scope used for unique constraints of a document.
// Kinds unknown to the registry fall back to the parent reference.
func (s *Store) scopeOf(kind Kind, raw map[string]types.AttributeValue, parentRef string) string {
	if s.registry != nil {
		if _, ok := s.registry.Kind(kind); ok {
			return s.registry.ScopeKey(kind, &Item{Raw: raw})
		}
	}
	return parentRef
}

// Create creates a new entity with parent validation and unique constraints.
func (s *Store) Create(ctx context.Context, entity Entity, item map[string]types.AttributeValue) error {
	items := []types.TransactWriteItem{}
	now := time.Now()
	nowUnix := now.Unix()
	nowISO := now.UTC().Format(time.RFC3339)

	// Track item indices for error mapping
	parentCheckIndex := -1
	entityPutIndex := -1

	// 1. Parent must exist and not be deleted
	if checker, ok := entity.(ParentChecker); ok {
		if check := checker.ParentCheck(); check != nil {
			parentCheckIndex = len(items)
			condExpr := check.ConditionExpr
			if condExpr == "" {
				condExpr = ParentExistsCondition()
			}
			items = append(items, types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 aws.String(s.config.Table(check.TableName)),
					Key:                       check.Key,
					ConditionExpression:       aws.String(condExpr),
					ExpressionAttributeNames:  TTLFilterNames(),
					ExpressionAttributeValues: map[string]types.AttributeValue{":now": Int(nowUnix)},
				},
			})
		}
	}

	// 2. Store-managed fields
	item["entity_ref"] = String(entity.EntityRef())
	item["version"] = Int(1)
	item["created_at"] = String(nowISO)
	item["updated_at"] = String(nowISO)

	var parentRef string
	if checker, ok := entity.(ParentChecker); ok {
		parentRef = checker.ParentRef()
		if parentRef != "" {
			item["parent_ref"] = String(parentRef)
		}
	}

	// 3. Unique constraints within the sibling scope
	var uniquePKs []string
	if uf, ok := entity.(UniqueFielder); ok {
		entityType := entity.EntityType()
		scope := s.scopeOf(entityType, item, parentRef)
		if scope != "" {
			for field, value := range uf.UniqueFields() {
				constraintPK := shard.UniqueConstraintPK(scope, string(entityType), field, value)
				uniquePKs = append(uniquePKs, constraintPK)
				items = append(items, s.constraintPut(constraintPK, scope, entityType, field, value, entity.EntityRef(), nowUnix))
			}
		}
	}

	if len(uniquePKs) > 0 {
		uniquePKsAttr, _ := attributevalue.MarshalList(uniquePKs)
		item["_unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
	}

	// 4. The entity itself
	entityPutIndex = len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.config.Table(entity.TableName())),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	// 5. Relationship record so deletes can find the child
	if parentRef != "" {
		childRef := entity.EntityRef()
		keyAttr := map[string]types.AttributeValue(entity.GetKey())

		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.Table(s.config.RelationshipTable)),
				Item: map[string]types.AttributeValue{
					"pk":          String(s.relationshipPK(parentRef, childRef)),
					"child_ref":   String(childRef),
					"parent_ref":  String(parentRef),
					"child_table": String(s.config.Table(entity.TableName())),
					"child_key":   &types.AttributeValueMemberM{Value: keyAttr},
				},
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	return s.mapCreateTransactionError(err, parentCheckIndex, entityPutIndex)
}

// constraintPut builds the conditional put claiming a unique value.
func (s *Store) constraintPut(pk, scope string, kind Kind, field, value, entityRef string, nowUnix int64) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.Table(s.config.UniqueTable)),
			Item: map[string]types.AttributeValue{
				"pk":          String(pk),
				"sk":          String("CONSTRAINT"),
				"scope":       String(scope),
				"entity_type": String(string(kind)),
				"field_name":  String(field),
				"field_value": String(value),
				"entity_ref":  String(entityRef),
			},
			// Fails if a live entity already holds this value
			ConditionExpression:       aws.String(ConstraintFreeCondition()),
			ExpressionAttributeNames:  TTLFilterNames(),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": Int(nowUnix)},
		},
	}
}

// Get retrieves an entity by key, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table(table)),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, ErrNotFound
	}
	return unmarshalItem(result.Item), nil
}

// Query queries entities with automatic TTL filtering.
func (s *Store) Query(ctx context.Context, input QueryInput) ([]*Item, error) {
	filterExpr := TTLFilterExpr()
	if input.FilterExpression != "" {
		filterExpr = fmt.Sprintf("(%s) AND (%s)", input.FilterExpression, filterExpr)
	}

	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.Table(input.TableName)),
		KeyConditionExpression:    aws.String(input.KeyConditionExpression),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  mergeExpr(TTLFilterNames(), input.ExpressionAttributeNames),
		ExpressionAttributeValues: mergeExpr(TTLFilterValues(), input.ExpressionAttributeValues),
	}
	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(input.Limit)
	}
	if input.ScanIndexForward != nil {
		queryInput.ScanIndexForward = input.ScanIndexForward
	}

	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, unmarshalItem(raw))
		}
	}

	return items, nil
}

// updateSpec describes one single-document update.
type updateSpec struct {
	kind  Kind
	table string
	key   PK
	ref   string
	set   Fields
}

// update applies spec and returns the resulting document and whether any
// attribute changed.
func (s *Store) update(ctx context.Context, spec updateSpec) (*Item, bool, error) {
	set := make(Fields, len(spec.set))
	for k, v := range spec.set {
		if !managedAttrs[k] {
			set[k] = v
		}
	}

	if attrs := s.uniqueAttrsIn(spec.kind, set); len(attrs) > 0 {
		return s.updateWithUniqueConstraints(ctx, spec, set)
	}
	return s.updateSimple(ctx, spec, set)
}

// uniqueAttrsIn returns the kind's unique attributes, when set touches any of them.
func (s *Store) uniqueAttrsIn(kind Kind, set Fields) []string {
	if s.registry == nil {
		return nil
	}
	info, ok := s.registry.Kind(kind)
	if !ok {
		return nil
	}
	for _, attr := range info.UniqueAttrs {
		if _, ok := set[attr]; ok {
			return info.UniqueAttrs
		}
	}
	return nil
}

// setExpression renders SET clauses for set plus the managed bookkeeping fields.
func setExpression(set Fields, now string) (string, map[string]string, map[string]types.AttributeValue) {
	exprNames := map[string]string{
		"#updated_at": "updated_at",
		"#version":    "version",
		"#ttl":        AttrTTL,
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at": String(now),
		":one":        Int(1),
	}

	var setClauses []string
	i := 0
	for k, v := range set {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = v
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}
	setClauses = append(setClauses, "#updated_at = :updated_at", "#version = #version + :one")

	return "SET " + strings.Join(setClauses, ", "), exprNames, exprValues
}

// updateSimple performs a single conditional UpdateItem.
func (s *Store) updateSimple(ctx context.Context, spec updateSpec, set Fields) (*Item, bool, error) {
	now := time.Now()
	updateExpr, exprNames, exprValues := setExpression(set, now.UTC().Format(time.RFC3339))
	exprValues[":now"] = Int(now.Unix())

	cond := "attribute_exists(id) AND (" + TTLFilterExpr() + ")"

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.Table(spec.table)),
		Key:                       spec.key,
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	old := out.Attributes
	modified := Differs(old, set)
	return mergedItem(old, set, now), modified, nil
}

// updateWithUniqueConstraints handles updates where unique attributes may change.
func (s *Store) updateWithUniqueConstraints(ctx context.Context, spec updateSpec, set Fields) (*Item, bool, error) {
	current, err := s.Get(ctx, spec.table, spec.key)
	if err != nil {
		return nil, false, err
	}
	if !Differs(current.Raw, set) {
		return current, false, nil
	}

	now := time.Now()
	next := mergedItem(current.Raw, set, now)
	info, _ := s.registry.Kind(spec.kind)
	oldScope := s.registry.ScopeKey(spec.kind, current)
	newScope := s.registry.ScopeKey(spec.kind, next)

	items := []types.TransactWriteItem{}
	var newUniquePKs []string
	for _, field := range info.UniqueAttrs {
		oldValue := attrString(current.Raw[field])
		newValue := attrString(next.Raw[field])
		if newValue != "" {
			newUniquePKs = append(newUniquePKs, shard.UniqueConstraintPK(newScope, string(spec.kind), field, newValue))
		}
		if oldValue == newValue && oldScope == newScope {
			continue
		}

		// Release the old value
		if oldValue != "" {
			oldPK := shard.UniqueConstraintPK(oldScope, string(spec.kind), field, oldValue)
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(s.config.Table(s.config.UniqueTable)),
					Key: map[string]types.AttributeValue{
						"pk": String(oldPK),
						"sk": String("CONSTRAINT"),
					},
				},
			})
		}

		// Claim the new value
		if newValue != "" {
			newPK := shard.UniqueConstraintPK(newScope, string(spec.kind), field, newValue)
			items = append(items, s.constraintPut(newPK, newScope, spec.kind, field, newValue, spec.ref, now.Unix()))
		}
	}

	updateExpr, exprNames, exprValues := setExpression(set, now.UTC().Format(time.RFC3339))
	exprNames["#unique_pks"] = "_unique_pks"
	uniquePKsAttr, _ := attributevalue.MarshalList(newUniquePKs)
	exprValues[":unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
	exprValues[":expected_version"] = Int(current.Version)
	updateExpr += ", #unique_pks = :unique_pks"

	entityIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.config.Table(spec.table)),
			Key:                       spec.key,
			UpdateExpression:          aws.String(updateExpr),
			ConditionExpression:       aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames:  exprNames,
			ExpressionAttributeValues: exprValues,
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := s.mapUpdateTransactionError(err, entityIndex); err != nil {
		return nil, false, err
	}
	next.Version = current.Version + 1
	next.Raw["version"] = Int(next.Version)
	return next, true, nil
}

// mergedItem returns raw with set applied and the bookkeeping fields bumped.
func mergedItem(raw map[string]types.AttributeValue, set Fields, now time.Time) *Item {
	merged := make(map[string]types.AttributeValue, len(raw)+len(set))
	for k, v := range raw {
		merged[k] = v
	}
	for k, v := range set {
		merged[k] = v
	}
	merged["updated_at"] = String(now.UTC().Format(time.RFC3339))
	return unmarshalItem(merged)
}

// attrString renders a scalar attribute as a string; other types yield "".
func attrString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

// DeleteOptions configures delete behavior.
type DeleteOptions struct {
	// Cascade enables cascading delete of children via TTL.
	Cascade bool

	// OrphanProtect fails the delete if active children exist.
	OrphanProtect bool
}

func (s *Store) deleteByKey(ctx context.Context, table string, key PK, ref string, opts DeleteOptions) error {
	if opts.OrphanProtect && !opts.Cascade && s.mayHaveChildren(KindOfRef(ref)) {
		hasChildren, err := s.HasActiveChildren(ctx, ref)
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrHasChildren
		}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.Table(table)),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     AttrTTL,
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": Int(time.Now().Unix()),
			":one": Int(1),
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

// mayHaveChildren is false only for kinds the registry knows to be leaves.
func (s *Store) mayHaveChildren(kind Kind) bool {
	if s.registry == nil {
		return true
	}
	if _, ok := s.registry.Kind(kind); !ok {
		return true
	}
	return s.registry.HasChildren(kind)
}

// HasActiveChildren checks if an entity has any active (non-deleted) children.
func (s *Store) HasActiveChildren(ctx context.Context, entityRef string) (bool, error) {
	now := time.Now().Unix()
	numShards := s.config.NumShards

	if numShards == 1 {
		return s.hasActiveChildrenInShard(ctx, shard.Key(entityRef, 0), now)
	}

	// Multi-shard fan-out with early cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan bool, 1)
	errs := make(chan error, numShards)
	var wg sync.WaitGroup

	for _, shardPK := range shard.Keys(entityRef, numShards) {
		wg.Add(1)
		go func(shardPK string) {
			defer wg.Done()

			has, err := s.hasActiveChildrenInShard(ctx, shardPK, now)
			if err != nil {
				errs <- err
				return
			}
			if has {
				select {
				case found <- true:
					cancel()
				default:
				}
			}
		}(shardPK)
	}

	wg.Wait()
	close(found)
	close(errs)

	if <-found {
		return true, nil
	}
	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}
	return false, nil
}

// hasActiveChildrenInShard pages through one shard until it meets a live
// relationship record. The filter runs after the read, so a page may come
// back empty while later pages still hold live children.
func (s *Store) hasActiveChildrenInShard(ctx context.Context, shardPK string, now int64) (bool, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.config.Table(s.config.RelationshipTable)),
		KeyConditionExpression:   aws.String("pk = :pk"),
		FilterExpression:         aws.String(TTLFilterExpr()),
		ExpressionAttributeNames: TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  String(shardPK),
			":now": Int(now),
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		if len(page.Items) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// QueryAllChildren returns all children of an entity (including deleted ones).
// This is used by cascade delete to propagate TTL to all children.
func (s *Store) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	var children []ChildRef
	for _, shardPK := range shard.Keys(parentRef, s.config.NumShards) {
		paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
			TableName:              aws.String(s.config.Table(s.config.RelationshipTable)),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": String(shardPK),
			},
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("shard %s: %w", shardPK, err)
			}
			for _, item := range page.Items {
				children = append(children, unmarshalChildRef(item, shardPK))
			}
		}
	}
	return children, nil
}

// SetTTLByKey sets TTL on a document by physical table and key.
// Used by cascade delete to propagate TTL to children.
func (s *Store) SetTTLByKey(ctx context.Context, physicalTable string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(physicalTable),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     AttrTTL,
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": Int(ttl),
			":one": Int(1),
		},
	})
	return ignoreConditionFailure(err)
}

// SetRelationshipTTL sets TTL on a relationship record.
func (s *Store) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.Table(s.config.RelationshipTable)),
		Key: map[string]types.AttributeValue{
			"pk":        String(s.relationshipPK(parentRef, childRef)),
			"child_ref": String(childRef),
		},
		UpdateExpression:         aws.String("SET #ttl = :ttl"),
		ConditionExpression:      aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": Int(ttl),
		},
	})
	return ignoreConditionFailure(err)
}

// SetUniqueConstraintTTL sets TTL on a unique constraint record.
func (s *Store) SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.Table(s.config.UniqueTable)),
		Key: map[string]types.AttributeValue{
			"pk": String(pk),
			"sk": String("CONSTRAINT"),
		},
		UpdateExpression:         aws.String("SET #ttl = :ttl"),
		ConditionExpression:      aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": Int(ttl),
		},
	})
	return ignoreConditionFailure(err)
}

// ignoreConditionFailure treats a failed condition (already has TTL, or
// never existed) as success so cascades stay idempotent.
func ignoreConditionFailure(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// mapCreateTransactionError maps DynamoDB transaction errors for Create operations.
// parentCheckIndex is the index of the parent check item (-1 if none).
// entityPutIndex is the index of the entity put item.
func (s *Store) mapCreateTransactionError(err error, parentCheckIndex, entityPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == parentCheckIndex {
					return ErrParentNotFound
				}
				if i == entityPutIndex {
					return ErrAlreadyExists
				}
				// Must be a unique constraint
				return ErrDuplicateValue
			}
		}
	}

	return err
}

// mapUpdateTransactionError maps DynamoDB transaction errors for Update operations.
// entityIndex is the index of the entity update item.
func (s *Store) mapUpdateTransactionError(err error, entityIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == entityIndex {
					return ErrConcurrentModification
				}
				return ErrDuplicateValue
			}
		}
	}

	return err
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["id"].(*types.AttributeValueMemberS); ok {
		item.ID = v.Value
	}
	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_ref"].(*types.AttributeValueMemberS); ok {
		item.ParentRef = v.Value
	}

	return item
}

// NewItem wraps a raw document the way the store does after a read.
func NewItem(raw map[string]types.AttributeValue) *Item {
	return unmarshalItem(raw)
}

// unmarshalChildRef converts a relationship item to a ChildRef.
func unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}

	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["child_table"].(*types.AttributeValueMemberS); ok {
		ref.TableName = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}

	return ref
}
