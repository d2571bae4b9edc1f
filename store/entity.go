package store

import (
	"maps"
	"reflect"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// IDKey returns the primary key of a document keyed by its "id" attribute.
func IDKey(id string) PK {
	return PK{"id": &types.AttributeValueMemberS{Value: id}}
}

// Fields is a set of attribute assignments applied by an update.
type Fields map[string]types.AttributeValue

// Entity is the base interface for all storable types.
type Entity interface {
	// TableName returns the unprefixed table name for this entity type.
	TableName() string

	// GetKey returns the primary key for this entity.
	GetKey() PK

	// EntityRef returns the type-qualified reference (e.g., "unit#uuid").
	EntityRef() string

	// EntityType returns the entity kind (e.g., "unit").
	EntityType() Kind
}

// ParentChecker is implemented by entities that have a parent.
type ParentChecker interface {
	// ParentCheck returns the condition check for parent validation.
	// Returns nil for root entities or when parent validation should be skipped.
	ParentCheck() *ConditionCheck

	// ParentRef returns the parent's entity reference (e.g., "subject#uuid").
	// Returns empty string for root entities.
	ParentRef() string
}

// ConditionCheck defines a parent existence check for transactions.
type ConditionCheck struct {
	// TableName is the unprefixed table holding the parent.
	TableName string
	Key       PK

	// ConditionExpr is an optional custom condition expression.
	// If empty, ParentExistsCondition() is used (checks existence and not deleted).
	ConditionExpr string
}

// UniqueFielder is implemented by entities with unique field constraints.
type UniqueFielder interface {
	// UniqueFields returns field name to value mappings for fields
	// that must be unique within the sibling scope.
	UniqueFields() map[string]string
}

// Item represents a retrieved document with common fields.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// ID is the document id.
	ID string

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityRef is the type-qualified entity reference.
	EntityRef string

	// ParentRef is the parent's entity reference (empty for root entities).
	ParentRef string
}

// StringAttr returns a string attribute, or "" when absent or of another type.
func (i *Item) StringAttr(attr string) string {
	if v, ok := i.Raw[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// IntAttr returns a numeric attribute.
func (i *Item) IntAttr(attr string) (int64, bool) {
	v, ok := i.Raw[attr].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Clone returns a deep-enough copy of the item for callers that mutate Raw.
func (i *Item) Clone() *Item {
	c := *i
	if i.Raw != nil {
		c.Raw = make(map[string]types.AttributeValue, len(i.Raw))
		maps.Copy(c.Raw, i.Raw)
	}
	return &c
}

// Differs reports whether applying set to raw would change any attribute.
func Differs(raw map[string]types.AttributeValue, set Fields) bool {
	for k, v := range set {
		if !reflect.DeepEqual(raw[k], v) {
			return true
		}
	}
	return false
}

// String builds a string attribute value.
func String(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// Int builds a number attribute value.
func Int(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

// UpdateOp is a single-document update inside a bulk write.
type UpdateOp struct {
	ID  string
	Set Fields
}

// UpdateResult reports the outcome of a filtered multi-document update.
type UpdateResult struct {
	// Matched holds the ids of every document the filter selected,
	// whether or not the write changed it.
	Matched []string

	// Modified counts the documents whose attributes actually changed.
	Modified int
}

// BulkResult reports the outcome of an ordered bulk write.
type BulkResult struct {
	Matched  int
	Modified int
}

// ChildRef represents a reference to a child entity in the relationship table.
type ChildRef struct {
	// Ref is the child's entity reference.
	Ref string

	// TableName is the (prefixed) DynamoDB table containing the child.
	TableName string

	// Key is the primary key to locate the child.
	Key PK

	// ShardPK is the relationship table partition key (for TTL updates).
	ShardPK string
}

// QueryInput defines parameters for querying entities.
type QueryInput struct {
	// TableName is the unprefixed table to query.
	TableName string

	// IndexName is the optional GSI/LSI to query.
	IndexName string

	// KeyConditionExpression is the DynamoDB key condition.
	KeyConditionExpression string

	// FilterExpression is an optional filter (TTL filter is automatically merged).
	FilterExpression string

	// ExpressionAttributeNames maps expression attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues maps expression attribute value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue

	// Limit is the maximum number of items to return (0 = no limit).
	Limit int32

	// ScanIndexForward determines sort order (true = ascending, false = descending).
	ScanIndexForward *bool
}
