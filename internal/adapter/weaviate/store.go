package weaviate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"sitedex/internal/retry"
	"sitedex/internal/vector"
)

// UpsertBatchSize bounds per-call payload and latency; records beyond it
// are split into further batches.
const UpsertBatchSize = 100

const (
	batchTimeout = 30 * time.Second
	queryTimeout = 15 * time.Second
)

// Store persists chunk vectors into Weaviate, one tenant per namespace.
// Batches already committed stay committed when a later batch fails, so a
// partially ingested crawl is visible to queries.
type Store struct {
	client *weaviate.Client
	schema vector.SchemaClient
	policy retry.Policy

	mu      sync.Mutex
	tenants map[string]bool
}

func NewStore(client *weaviate.Client) *Store {
	return NewStoreWithPolicy(client, retry.DefaultPolicy)
}

func NewStoreWithPolicy(client *weaviate.Client, policy retry.Policy) *Store {
	return &Store{
		client:  client,
		schema:  vector.NewWeaviateClientAdapter(client),
		policy:  policy,
		tenants: make(map[string]bool),
	}
}

// EnsureSchema creates the chunk class if the instance does not have it
// yet, adding any missing properties to an existing class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, s.schema)
}

// Upsert writes records into the namespace's tenant in batches of
// UpsertBatchSize, each batch retried independently. It returns how many
// records were accepted; on error that count covers the batches committed
// before the failing one.
func (s *Store) Upsert(ctx context.Context, records []vector.Record, namespace string) (int, error) {
	if namespace == "" {
		return 0, &vector.InvalidVectorError{Index: -1, Reason: "empty namespace"}
	}
	if err := vector.ValidateRecords(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.ensureTenant(ctx, namespace); err != nil {
		return 0, &vector.StoreError{Op: "ensure tenant", Err: err}
	}

	upserted := 0
	for start := 0; start < len(records); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		objects := batchObjects(records[start:end], namespace)

		err := s.policy.Do(ctx, func(ctx context.Context) error {
			return s.upsertBatch(ctx, objects)
		})
		if err != nil {
			return upserted, &vector.StoreError{Op: "upsert", Err: err}
		}
		upserted += len(objects)
	}
	return upserted, nil
}

func (s *Store) upsertBatch(ctx context.Context, objects []*models.Object) error {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("object %s rejected: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Query runs a nearest-neighbor search in the namespace's tenant and
// returns matches ordered by similarity, highest first. Filters match
// stored string properties exactly and are combined with And.
func (s *Store) Query(ctx context.Context, queryVector []float32, topK *int, namespace string, filter map[string]string) ([]vector.Match, error) {
	if namespace == "" {
		return nil, &vector.InvalidVectorError{Index: -1, Reason: "empty namespace"}
	}
	if len(queryVector) == 0 {
		return nil, &vector.InvalidVectorError{Index: -1, Reason: "empty query vector"}
	}
	limit := vector.ClampTopK(topK)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "address"},
		{Name: "title"},
		{Name: "chunkIndex"},
		{Name: "snippet"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}, {Name: "distance"}}},
	}

	builder := s.client.GraphQL().Get().
		WithClassName(vector.ClassPageChunk).
		WithTenant(namespace).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)

	if len(filter) > 0 {
		builder = builder.WithWhere(whereEqual(filter))
	}

	res, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (*models.GraphQLResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		return builder.Do(ctx)
	})
	if err != nil {
		return nil, &vector.StoreError{Op: "query", Err: err}
	}
	if len(res.Errors) > 0 {
		return nil, &vector.StoreError{Op: "query", Err: fmt.Errorf("graphql error: %v", graphqlMessages(res.Errors))}
	}

	return decodeMatches(res), nil
}

// ensureTenant creates the namespace's tenant on first use and remembers
// it, so repeat upserts into the same namespace skip the schema roundtrip.
func (s *Store) ensureTenant(ctx context.Context, namespace string) error {
	s.mu.Lock()
	known := s.tenants[namespace]
	s.mu.Unlock()
	if known {
		return nil
	}

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		return vector.EnsureTenant(ctx, s.schema, namespace)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tenants[namespace] = true
	s.mu.Unlock()
	return nil
}

func batchObjects(records []vector.Record, namespace string) []*models.Object {
	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class:  vector.ClassPageChunk,
			ID:     strfmt.UUID(r.ID),
			Tenant: namespace,
			Vector: models.C11yVector(r.Vector),
			Properties: map[string]interface{}{
				"address":    r.Metadata.Address,
				"title":      r.Metadata.Title,
				"chunkIndex": r.Metadata.ChunkIndex,
				"snippet":    r.Metadata.Snippet,
			},
		}
	}
	return objects
}

func whereEqual(filter map[string]string) *filters.WhereBuilder {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return equalClause(keys[0], filter[keys[0]])
	}

	operands := make([]*filters.WhereBuilder, len(keys))
	for i, k := range keys {
		operands[i] = equalClause(k, filter[k])
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

func equalClause(path, value string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{path}).
		WithOperator(filters.Equal).
		WithValueString(value)
}

func graphqlMessages(errs []*models.GraphQLError) []string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func decodeMatches(res *models.GraphQLResponse) []vector.Match {
	var matches []vector.Match
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches
	}
	raw, ok := data[vector.ClassPageChunk].([]interface{})
	if !ok {
		return matches
	}
	for _, entry := range raw {
		props, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		var m vector.Match
		if v, ok := props["address"].(string); ok {
			m.Metadata.Address = v
		}
		if v, ok := props["title"].(string); ok {
			m.Metadata.Title = v
		}
		if v, ok := props["chunkIndex"].(float64); ok {
			m.Metadata.ChunkIndex = int(v)
		}
		if v, ok := props["snippet"].(string); ok {
			m.Metadata.Snippet = v
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				m.ID = id
			}
			// Certainty is only reported for cosine distance; fall back to
			// inverting the raw distance when it is absent.
			if certainty, ok := additional["certainty"].(float64); ok {
				m.Score = certainty
			} else if distance, ok := additional["distance"].(float64); ok {
				m.Score = 1 - distance
			}
		}
		matches = append(matches, m)
	}
	return matches
}
