// Package docstore provides the document persistence layer: JSON
// documents grouped into named collections, with single-document writes
// and declarative aggregation reads. Two engines implement the
// contract, one on PostgreSQL JSONB and one in memory.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viewtube/backend/internal/pipeline"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("document conflict")
)

// Document is a decoded JSON object. Every stored document carries a
// string "_id" field.
type Document = map[string]any

// Filter selects documents by field equality. Keys may use dot paths.
type Filter map[string]any

// Update describes a partial mutation of a single document. Operations
// apply in the order Set, Unset, Push, AddToSet, Pull.
type Update struct {
	// Set writes field values. Keys may use dot paths.
	Set map[string]any
	// Unset removes top-level fields.
	Unset []string
	// Push appends a value to an array field, creating it when absent.
	Push map[string]any
	// AddToSet appends a value to an array field only when no equal
	// element is already present.
	AddToSet map[string]any
	// Pull removes all elements equal to the value from an array field.
	Pull map[string]any
}

// IsZero reports whether the update carries no operations.
func (u Update) IsZero() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Push) == 0 &&
		len(u.AddToSet) == 0 && len(u.Pull) == 0
}

// Collection exposes the per-collection operations of the store.
type Collection interface {
	// InsertOne persists a new document. ErrConflict on a uniqueness violation.
	InsertOne(ctx context.Context, doc Document) error
	// FindOne returns the first document matching the filter, or ErrNotFound.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// UpdateOne applies the update to the first matching document and
	// returns the updated document, or ErrNotFound.
	UpdateOne(ctx context.Context, filter Filter, update Update) (Document, error)
	// DeleteOne removes the first matching document and returns it, or ErrNotFound.
	DeleteOne(ctx context.Context, filter Filter) (Document, error)
	// Aggregate runs the pipeline over the collection.
	Aggregate(ctx context.Context, p pipeline.Pipeline) ([]Document, error)
}

// Store groups named collections backed by one engine.
type Store interface {
	Collection(name string) Collection
}

// Encode converts a model struct into a document via its JSON form.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Decode converts a document back into a model struct.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll converts a result set into model structs.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
