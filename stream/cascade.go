// Package stream handles the DynamoDB stream of the content tables: when a
// document is soft-deleted its TTL is copied onto its children, its
// relationship and constraint records, and its details record is removed.
package stream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/store"
)

// Store is the part of *store.Store the handler needs.
type Store interface {
	Registry() *store.Registry
	QueryAllChildren(ctx context.Context, parentRef string) ([]store.ChildRef, error)
	SetTTLByKey(ctx context.Context, physicalTable string, key store.PK, ttl int64) error
	SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error
	SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error
}

// DetailsRemover deletes the details record of a document.
type DetailsRemover interface {
	Delete(ctx context.Context, ownerID string) error
}

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store   Store
	details DetailsRemover
	log     zerolog.Logger
}

// NewHandler creates a stream handler. details may be nil.
func NewHandler(s Store, details DetailsRemover, log zerolog.Logger) *Handler {
	return &Handler{
		store:   s,
		details: details,
		log:     log.With().Str("component", "stream").Logger(),
	}
}

// HandleCascadeDelete is the Lambda entry point. A failing record fails the
// batch so Lambda retries it; every step is idempotent.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.log.Error().Err(err).Str("event_id", record.EventID).Msg("failed to process record")
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "MODIFY" {
		return nil
	}

	// only the write that first sets the TTL starts a cascade
	oldTTL := getNumberAttr(record.Change.OldImage, store.AttrTTL)
	newTTL := getNumberAttr(record.Change.NewImage, store.AttrTTL)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	parentRef := getStringAttr(record.Change.NewImage, "parent_ref")
	uniquePKs := getStringListAttr(record.Change.NewImage, "_unique_pks")
	if entityRef == "" {
		return nil
	}
	log := h.log.With().Str("entity", entityRef).Int64("ttl", newTTL).Logger()

	children, err := h.store.QueryAllChildren(ctx, entityRef)
	if err != nil {
		return fmt.Errorf("query children of %s: %w", entityRef, err)
	}

	// each child's own stream record carries the cascade one level further
	for _, child := range children {
		if err := h.store.SetTTLByKey(ctx, child.TableName, child.Key, newTTL); err != nil {
			log.Warn().Err(err).Str("child", child.Ref).Msg("failed to set TTL on child")
		}
	}

	if parentRef != "" {
		if err := h.store.SetRelationshipTTL(ctx, entityRef, parentRef, newTTL); err != nil {
			log.Warn().Err(err).Str("parent", parentRef).Msg("failed to set relationship TTL")
		}
	}

	for _, pk := range uniquePKs {
		if err := h.store.SetUniqueConstraintTTL(ctx, pk, newTTL); err != nil {
			log.Warn().Err(err).Str("pk", pk).Msg("failed to set unique constraint TTL")
		}
	}

	if err := h.removeDetails(ctx, entityRef); err != nil {
		return err
	}

	log.Info().
		Int("children", len(children)).
		Int("unique_constraints", len(uniquePKs)).
		Msg("cascade delete completed")
	return nil
}

func (h *Handler) removeDetails(ctx context.Context, entityRef string) error {
	if h.details == nil {
		return nil
	}
	kind := store.KindOfRef(entityRef)
	if reg := h.store.Registry(); reg != nil {
		if info, ok := reg.Kind(kind); !ok || !info.HasDetails {
			return nil
		}
	}
	if err := h.details.Delete(ctx, store.IDOfRef(entityRef)); err != nil {
		return fmt.Errorf("delete details of %s: %w", entityRef, err)
	}
	return nil
}

func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		n, _ := strconv.ParseInt(v.Number(), 10, 64)
		return n
	}
	return 0
}

func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var result []string
	for _, item := range v.List() {
		if item.DataType() == events.DataTypeString {
			result = append(result, item.String())
		}
	}
	return result
}
