package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
	TenantExists(ctx context.Context, className, tenant string) (bool, error)
	CreateTenants(ctx context.Context, className string, tenants ...models.Tenant) error
}

// EnsureSchema checks if the required class exists and creates it if not.
// The class is multi-tenant so each crawl namespace gets its own isolated
// shard, and Vectorizer is "none" because embeddings are computed upstream.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassPageChunk)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "address",
			DataType: []string{"string"}, // canonical URL (exact match)
		},
		{
			Name:     "title",
			DataType: []string{"text"},
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "snippet",
			DataType: []string{"text"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassPageChunk,
			Description: "One embedded chunk of a crawled page",
			Vectorizer:  "none",
			Properties:  properties,
			MultiTenancyConfig: &models.MultiTenancyConfig{
				Enabled: true,
			},
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassPageChunk)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassPageChunk, p); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnsureTenant creates the namespace's tenant on the chunk class when it
// does not exist yet. Creating is not idempotent on the Weaviate side, so
// existence is checked first.
func EnsureTenant(ctx context.Context, client SchemaClient, tenant string) error {
	exists, err := client.TenantExists(ctx, ClassPageChunk, tenant)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.CreateTenants(ctx, ClassPageChunk, models.Tenant{Name: tenant})
}
