package store

import (
	"maps"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttrTTL holds the epoch second after which a document counts as deleted.
const AttrTTL = "ttl"

// TTLOf returns the item's ttl, if it carries a well-formed one.
func TTLOf(item map[string]types.AttributeValue) (int64, bool) {
	n, ok := item[AttrTTL].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return ttl, true
}

// IsDeleted reports whether the item's ttl has passed.
func IsDeleted(item map[string]types.AttributeValue) bool {
	ttl, ok := TTLOf(item)
	return ok && ttl <= time.Now().Unix()
}

// TTLFilterExpr keeps live items. Pair it with TTLFilterNames and
// TTLFilterValues.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

func TTLFilterNames() map[string]string {
	return map[string]string{"#ttl": AttrTTL}
}

func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{":now": Int(time.Now().Unix())}
}

// ParentExistsCondition holds when the checked item exists and is live.
func ParentExistsCondition() string {
	return "attribute_exists(id) AND (" + TTLFilterExpr() + ")"
}

// ConstraintFreeCondition holds when a unique constraint record is absent
// or belongs to a deleted entity.
func ConstraintFreeCondition() string {
	return "attribute_not_exists(pk) OR #ttl <= :now"
}

// mergeExpr combines expression attribute maps; later maps win.
func mergeExpr[V any](ms ...map[string]V) map[string]V {
	out := make(map[string]V)
	for _, m := range ms {
		maps.Copy(out, m)
	}
	return out
}
