// Package vectorstore stores file interpretations for the RAG stage and
// retrieves them by semantic similarity.
package vectorstore

import "context"

// Property names of a stored document. The interpretation text is the
// embedded content; the rest travels alongside as metadata.
const (
	FieldText        = "text"
	FieldFilepath    = "filepath"
	FieldServiceName = "service_name"
	FieldCodeContent = "code_content"
)

// FilterID filters on the record id rather than a document property.
const FilterID = "id"

// Document is one embedded file interpretation.
type Document struct {
	ID          string
	Text        string
	Filepath    string
	ServiceName string
	CodeContent string
}

// Store is a run-scoped vector collection. Filters are flat equality
// conditions on the field names above, combined conjunctively; the special
// key FilterID matches the record id.
type Store interface {
	// AddData embeds and stores the documents, returning the assigned ids.
	// Documents without an id get a random one.
	AddData(ctx context.Context, docs []Document) ([]string, error)

	// DeleteData removes the records with the given ids. Unknown ids are
	// not an error.
	DeleteData(ctx context.Context, ids []string) error

	// GetDataCount counts the records matching the filter.
	GetDataCount(ctx context.Context, filter map[string]string) (int, error)

	// RetrieveData returns up to topK documents matching the filter, ranked
	// by similarity to query. An empty query ranks arbitrarily.
	RetrieveData(ctx context.Context, query string, topK int, filter map[string]string, searchMode string) ([]Document, error)
}
