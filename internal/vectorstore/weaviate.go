package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig is the connection config for the weaviate backend.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`
}

// WeaviateStore is a Store backed by one weaviate class per run. Vectors are
// computed client-side; the class is created with no vectorizer.
type WeaviateStore struct {
	client   *weaviate.Client
	class    string
	embedder embeddings.Embedder
}

var _ Store = (*WeaviateStore)(nil)

// ClassName turns a collection name into a valid weaviate class name, which
// must start with an upper-case letter.
func ClassName(collection string) string {
	if collection == "" {
		return collection
	}
	return strings.ToUpper(collection[:1]) + collection[1:]
}

// NewWeaviate connects to weaviate and ensures the collection's class
// exists.
func NewWeaviate(ctx context.Context, cfg WeaviateConfig, collection string, embedder embeddings.Embedder) (*WeaviateStore, error) {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	client := weaviate.New(weaviate.Config{Host: cfg.Host, Scheme: scheme})

	s := &WeaviateStore{
		client:   client,
		class:    ClassName(collection),
		embedder: embedder,
	}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking class %s: %w", s.class, err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      s.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: FieldText, DataType: []string{"text"}},
			{Name: FieldFilepath, DataType: []string{"text"}},
			{Name: FieldServiceName, DataType: []string{"text"}},
			{Name: FieldCodeContent, DataType: []string{"text"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("creating class %s: %w", s.class, err)
	}
	slog.Debug("created vector collection", "class", s.class)
	return nil
}

// recordID maps an arbitrary document id onto the UUID weaviate requires.
// UUIDs pass through; anything else (the content-derived hashes) maps
// deterministically so repeat runs address the same record.
func recordID(id string) strfmt.UUID {
	if id == "" {
		return strfmt.UUID(uuid.NewString())
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return strfmt.UUID(parsed.String())
	}
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

func (s *WeaviateStore) AddData(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	objects := make([]*models.Object, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		id := recordID(d.ID)
		ids[i] = string(id)
		objects[i] = &models.Object{
			Class: s.class,
			ID:    id,
			Properties: map[string]any{
				FieldText:        d.Text,
				FieldFilepath:    d.Filepath,
				FieldServiceName: d.ServiceName,
				FieldCodeContent: d.CodeContent,
			},
			Vector: vectors[i],
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch insert into %s: %w", s.class, err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return nil, fmt.Errorf("batch insert into %s: %s", s.class, r.Result.Errors.Error[0].Message)
		}
	}
	return ids, nil
}

func (s *WeaviateStore) DeleteData(ctx context.Context, ids []string) error {
	for _, id := range ids {
		rid := recordID(id)
		exists, err := s.client.Data().Checker().
			WithClassName(s.class).WithID(string(rid)).Do(ctx)
		if err != nil {
			return fmt.Errorf("checking record %s: %w", id, err)
		}
		if !exists {
			continue
		}
		if err := s.client.Data().Deleter().
			WithClassName(s.class).WithID(string(rid)).Do(ctx); err != nil {
			return fmt.Errorf("deleting record %s: %w", id, err)
		}
	}
	return nil
}

func (s *WeaviateStore) GetDataCount(ctx context.Context, filter map[string]string) (int, error) {
	// An id filter is an existence check, not an aggregate.
	if id, ok := filter[FilterID]; ok && len(filter) == 1 {
		exists, err := s.client.Data().Checker().
			WithClassName(s.class).WithID(string(recordID(id))).Do(ctx)
		if err != nil {
			return 0, fmt.Errorf("checking record %s: %w", id, err)
		}
		if exists {
			return 1, nil
		}
		return 0, nil
	}

	agg := s.client.GraphQL().Aggregate().WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if where := buildWhere(filter); where != nil {
		agg = agg.WithWhere(where)
	}
	resp, err := agg.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting records in %s: %w", s.class, err)
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("counting records in %s: %s", s.class, resp.Errors[0].Message)
	}

	rows, err := classRows(resp, "Aggregate", s.class)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	meta, _ := rows[0]["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func (s *WeaviateStore) RetrieveData(ctx context.Context, query string, topK int, filter map[string]string, searchMode string) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	// Diversity re-ranking ("mmr") is not natively supported; every mode is
	// served as plain vector similarity.
	_ = searchMode

	get := s.client.GraphQL().Get().WithClassName(s.class).
		WithFields(
			graphql.Field{Name: FieldText},
			graphql.Field{Name: FieldFilepath},
			graphql.Field{Name: FieldServiceName},
			graphql.Field{Name: FieldCodeContent},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithLimit(topK)

	if where := buildWhere(filter); where != nil {
		get = get.WithWhere(where)
	}
	if query != "" {
		vec, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		get = get.WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec))
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving from %s: %w", s.class, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("retrieving from %s: %s", s.class, resp.Errors[0].Message)
	}

	rows, err := classRows(resp, "Get", s.class)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc := Document{
			Text:        stringProp(row, FieldText),
			Filepath:    stringProp(row, FieldFilepath),
			ServiceName: stringProp(row, FieldServiceName),
			CodeContent: stringProp(row, FieldCodeContent),
		}
		if add, ok := row["_additional"].(map[string]any); ok {
			doc.ID = stringProp(add, "id")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func buildWhere(filter map[string]string) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	for key, value := range filter {
		operands = append(operands, filters.Where().
			WithPath([]string{key}).
			WithOperator(filters.Equal).
			WithValueText(value))
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

// classRows digs the per-class result rows out of a GraphQL response.
func classRows(resp *models.GraphQLResponse, section, class string) ([]map[string]any, error) {
	sectionData, ok := resp.Data[section].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed %s response", section)
	}
	raw, _ := sectionData[class].([]any)
	rows := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows, nil
}

func stringProp(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
