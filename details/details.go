// Package details stores the long-form companion record of a content
// document: body text and SEO metadata, one record per owner.
package details

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/tree"
)

// ErrNotFound is returned by backends when no record exists for an owner.
var ErrNotFound = errors.New("details: not found")

// Details is the side record of one document.
type Details struct {
	OwnerID        string     `dynamodbav:"ownerId" json:"ownerId"`
	OwnerKind      store.Kind `dynamodbav:"ownerKind" json:"ownerKind"`
	Content        string     `dynamodbav:"content,omitempty" json:"content"`
	SEOTitle       string     `dynamodbav:"seoTitle,omitempty" json:"seoTitle"`
	SEODescription string     `dynamodbav:"seoDescription,omitempty" json:"seoDescription"`
	Keywords       []string   `dynamodbav:"keywords,omitempty" json:"keywords"`
	CanonicalURL   string     `dynamodbav:"canonicalUrl,omitempty" json:"canonicalUrl"`
	UpdatedAt      string     `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Input is the writable part of Details.
type Input struct {
	Content        string   `json:"content" validate:"max=200000"`
	SEOTitle       string   `json:"seoTitle" validate:"max=200"`
	SEODescription string   `json:"seoDescription" validate:"max=500"`
	Keywords       []string `json:"keywords" validate:"max=50,dive,max=100"`
	CanonicalURL   string   `json:"canonicalUrl" validate:"omitempty,url"`
}

// Backend persists Details keyed by owner id.
type Backend interface {
	// Get returns ErrNotFound when the owner has no record.
	Get(ctx context.Context, ownerID string) (*Details, error)
	Put(ctx context.Context, d *Details) error
	// Delete succeeds when no record exists.
	Delete(ctx context.Context, ownerID string) error
}

// Service validates owners and kinds before touching the backend.
type Service struct {
	backend Backend
	catalog *tree.Catalog
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(backend Backend, catalog *tree.Catalog, log zerolog.Logger) *Service {
	return &Service{
		backend: backend,
		catalog: catalog,
		log:     log.With().Str("component", "details").Logger(),
		now:     time.Now,
	}
}

// Get returns the owner's record, or an empty one carrying only the owner
// reference when none was stored.
func (s *Service) Get(ctx context.Context, kind store.Kind, ownerID string) (*Details, error) {
	if err := s.checkKind(kind, ownerID); err != nil {
		return nil, err
	}
	d, err := s.backend.Get(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return &Details{OwnerID: ownerID, OwnerKind: kind}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get details of %s %s: %w", kind, ownerID, err)
	}
	return d, nil
}

// Upsert creates or replaces the owner's record. The owner must exist.
func (s *Service) Upsert(ctx context.Context, kind store.Kind, ownerID string, in Input) (*Details, error) {
	if err := s.checkKind(kind, ownerID); err != nil {
		return nil, err
	}
	repo, err := s.catalog.Repository(kind)
	if err != nil {
		return nil, err
	}
	if _, err := repo.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", tree.ErrNotFound, kind, ownerID)
		}
		return nil, fmt.Errorf("load %s %s: %w", kind, ownerID, err)
	}

	d := &Details{
		OwnerID:        ownerID,
		OwnerKind:      kind,
		Content:        in.Content,
		SEOTitle:       in.SEOTitle,
		SEODescription: in.SEODescription,
		Keywords:       in.Keywords,
		CanonicalURL:   in.CanonicalURL,
		UpdatedAt:      s.now().UTC().Format(time.RFC3339),
	}
	if err := s.backend.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("put details of %s %s: %w", kind, ownerID, err)
	}
	s.log.Debug().Str("kind", string(kind)).Str("id", ownerID).Msg("details saved")
	return d, nil
}

// Delete removes the owner's record if any.
func (s *Service) Delete(ctx context.Context, kind store.Kind, ownerID string) error {
	if err := s.checkKind(kind, ownerID); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("delete details of %s %s: %w", kind, ownerID, err)
	}
	return nil
}

func (s *Service) checkKind(kind store.Kind, ownerID string) error {
	info, err := s.catalog.Kind(kind)
	if err != nil {
		return err
	}
	if !info.HasDetails {
		return fmt.Errorf("%w: %s has no details", tree.ErrInvalidInput, kind)
	}
	if ownerID == "" {
		return fmt.Errorf("%w: missing id", tree.ErrInvalidInput)
	}
	return nil
}
