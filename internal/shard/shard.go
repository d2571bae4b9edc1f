// Package shard derives partition keys for the relationship and unique
// constraint tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
)

// Key is the partition key of shard n under parentRef.
func Key(parentRef string, n int) string {
	return fmt.Sprintf("%s#%02x", parentRef, n)
}

// Keys lists every shard partition key of parentRef, in shard order.
func Keys(parentRef string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	keys := make([]string, numShards)
	for n := range keys {
		keys[n] = Key(parentRef, n)
	}
	return keys
}

// RelationshipPK places the relationship record of childRef in one of
// parentRef's shards. A single shard always yields "#00".
func RelationshipPK(parentRef, childRef string, numShards int) string {
	if numShards <= 1 {
		return Key(parentRef, 0)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(childRef))
	return Key(parentRef, int(h.Sum32()%uint32(numShards)))
}

// UniqueConstraintPK is the record key claiming value for field among
// entities of entityType in one sibling scope.
func UniqueConstraintPK(scope, entityType, field, value string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{scope, entityType, field, value}, "#")))
	return hex.EncodeToString(sum[:16])
}
