// Package app assembles the engines over the configured backend.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/details"
	"github.com/jacentio/syllabus/internal/config"
	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/store/memstore"
	"github.com/jacentio/syllabus/tree"
)

// App holds the wired components.
type App struct {
	Registry *store.Registry
	Catalog  *tree.Catalog
	Cache    *tree.ListingCache

	// Creator persists new documents into the selected backend.
	Creator content.Creator

	Cascader  *tree.Cascader
	Reorderer *tree.Reorderer
	Browser   *tree.Browser
	Details   *details.Service

	// Store is nil for the memory backend.
	Store *store.Store
	// DetailsBackend is shared with the stream handler.
	DetailsBackend details.Backend
}

// NewDynamoClient loads AWS configuration from the environment and cfg.
func NewDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	}), nil
}

// StoreConfig maps process configuration to store configuration.
func StoreConfig(cfg *config.Config) store.Config {
	sc := store.DefaultConfig()
	sc.TablePrefix = cfg.TablePrefix
	sc.NumShards = cfg.NumShards
	return sc
}

// New wires the engines over the backend named by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(cfg, log)
	case config.BackendDynamoDB:
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDynamo(client, cfg, log)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// NewDynamo wires the engines over DynamoDB.
func NewDynamo(client store.Client, cfg *config.Config, log zerolog.Logger) (*App, error) {
	reg := content.Hierarchy()
	sc := StoreConfig(cfg)
	s := store.NewWithRegistry(client, sc, reg)
	catalog, err := tree.DynamoCatalog(s)
	if err != nil {
		return nil, err
	}
	a := &App{
		Registry:       reg,
		Catalog:        catalog,
		Creator:        s,
		Store:          s,
		DetailsBackend: details.NewDynamoBackend(client, s.Config().Table(details.DefaultTable)),
	}
	return a, a.finish(cfg, log)
}

// NewMemory wires the engines over the in-memory store. Removed documents
// take their details with them through a delete hook.
func NewMemory(cfg *config.Config, log zerolog.Logger) (*App, error) {
	reg := content.Hierarchy()
	db := memstore.New(reg)
	catalog, err := tree.MemoryCatalog(db)
	if err != nil {
		return nil, err
	}
	backend := details.NewMemoryBackend()
	db.OnDelete(backend.Forget)

	a := &App{
		Registry:       reg,
		Catalog:        catalog,
		Creator:        db,
		DetailsBackend: backend,
	}
	return a, a.finish(cfg, log)
}

func (a *App) finish(cfg *config.Config, log zerolog.Logger) error {
	cache, err := tree.NewListingCache(cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("listing cache: %w", err)
	}
	a.Cache = cache
	a.Cascader = tree.NewCascader(a.Catalog, cache, log)
	a.Reorderer = tree.NewReorderer(a.Catalog, cache, log)
	a.Browser = tree.NewBrowser(a.Catalog, cache, log)
	a.Details = details.NewService(a.DetailsBackend, a.Catalog, log)
	return nil
}
