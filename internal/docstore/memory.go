package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/viewtube/backend/internal/pipeline"
)

// NewMemoryStore returns a Store backed by in-memory maps, used by
// tests and local development. Documents keep insertion order, which is
// the baseline order pipelines see before any Sort stage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
		unique:      make(map[string][]string),
	}
}

// MemoryStore implements Store without external dependencies.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
	unique      map[string][]string
}

// EnsureUnique declares fields that must stay unique within a
// collection, mirroring the unique indexes of the PostgreSQL engine.
func (s *MemoryStore) EnsureUnique(collection string, fields ...string) {
	s.mu.Lock()
	s.unique[collection] = append(s.unique[collection], fields...)
	s.mu.Unlock()
}

// Collection returns a handle for the named collection.
func (s *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: s, name: name}
}

type memoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *memoryCollection) InsertOne(_ context.Context, doc Document) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	for _, field := range c.store.unique[c.name] {
		value, ok := pipeline.GetPath(doc, field)
		if !ok {
			continue
		}
		for _, existing := range c.store.collections[c.name] {
			if current, ok := pipeline.GetPath(existing, field); ok && valuesEqual(current, value) {
				return ErrConflict
			}
		}
	}

	c.store.collections[c.name] = append(c.store.collections[c.name], copyDocument(doc))
	return nil
}

func (c *memoryCollection) FindOne(_ context.Context, filter Filter) (Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	for _, doc := range c.store.collections[c.name] {
		if matchesFilter(doc, filter) {
			return copyDocument(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) UpdateOne(_ context.Context, filter Filter, update Update) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.name]
	for i, doc := range docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		updated := copyDocument(doc)
		applyUpdate(updated, update)

		for _, field := range c.store.unique[c.name] {
			value, ok := pipeline.GetPath(updated, field)
			if !ok {
				continue
			}
			for j, other := range docs {
				if j == i {
					continue
				}
				if current, ok := pipeline.GetPath(other, field); ok && valuesEqual(current, value) {
					return nil, ErrConflict
				}
			}
		}

		docs[i] = updated
		return copyDocument(updated), nil
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) DeleteOne(_ context.Context, filter Filter) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.name]
	for i, doc := range docs {
		if matchesFilter(doc, filter) {
			c.store.collections[c.name] = append(docs[:i:i], docs[i+1:]...)
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) Aggregate(_ context.Context, p pipeline.Pipeline) ([]Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	working := make([]Document, 0, len(c.store.collections[c.name]))
	for _, doc := range c.store.collections[c.name] {
		working = append(working, copyDocument(doc))
	}

	for _, stage := range p {
		var err error
		working, err = c.store.applyStageLocked(working, stage)
		if err != nil {
			return nil, err
		}
	}
	return working, nil
}

func (s *MemoryStore) applyStageLocked(docs []Document, stage pipeline.Stage) ([]Document, error) {
	switch st := stage.(type) {
	case pipeline.Match:
		out := docs[:0]
		for _, doc := range docs {
			if matchesFilter(doc, st.Filter) && hasFields(doc, st.Exists) {
				out = append(out, doc)
			}
		}
		return out, nil

	case pipeline.Skip:
		if st.N >= len(docs) {
			return nil, nil
		}
		return docs[st.N:], nil

	case pipeline.Limit:
		if st.N < len(docs) {
			return docs[:st.N], nil
		}
		return docs, nil

	case pipeline.Sort:
		sort.SliceStable(docs, func(i, j int) bool {
			a, _ := pipeline.GetPath(docs[i], st.Field)
			b, _ := pipeline.GetPath(docs[j], st.Field)
			if st.Desc {
				return lessValue(b, a)
			}
			return lessValue(a, b)
		})
		return docs, nil

	case pipeline.Lookup:
		foreign := s.collections[st.From]
		for _, doc := range docs {
			local, _ := pipeline.GetPath(doc, st.LocalField)
			joined := make([]any, 0)
			for _, candidate := range foreign {
				fv, ok := pipeline.GetPath(candidate, st.ForeignField)
				if !ok || !valuesEqual(fv, local) {
					continue
				}
				match := copyDocument(candidate)
				if len(st.Project) > 0 {
					match = projectInclude(match, st.Project)
				}
				joined = append(joined, match)
			}
			pipeline.SetPath(doc, st.As, joined)
		}
		return docs, nil

	case pipeline.Unwind:
		out := make([]Document, 0, len(docs))
		for _, doc := range docs {
			value, ok := pipeline.GetPath(doc, st.Field)
			if !ok {
				continue
			}
			elements, ok := value.([]any)
			if !ok {
				continue
			}
			for _, element := range elements {
				clone := copyDocument(doc)
				pipeline.SetPath(clone, st.Field, copyValue(element))
				out = append(out, clone)
			}
		}
		return out, nil

	case pipeline.Flatten:
		for _, doc := range docs {
			value, ok := pipeline.GetPath(doc, st.Field)
			if !ok {
				continue
			}
			elements, ok := value.([]any)
			if !ok {
				continue
			}
			if len(elements) == 0 {
				pipeline.DeletePath(doc, st.Field)
				continue
			}
			pipeline.SetPath(doc, st.Field, elements[0])
		}
		return docs, nil

	case pipeline.AddCount:
		for _, doc := range docs {
			n := 0
			if value, ok := pipeline.GetPath(doc, st.Of); ok {
				if elements, ok := value.([]any); ok {
					n = len(elements)
				}
			}
			pipeline.SetPath(doc, st.Field, float64(n))
		}
		return docs, nil

	case pipeline.Contains:
		for _, doc := range docs {
			found := false
			if value, ok := pipeline.GetPath(doc, st.In); ok {
				if elements, ok := value.([]any); ok {
					for _, element := range elements {
						obj, ok := element.(Document)
						if !ok {
							continue
						}
						if candidate, ok := pipeline.GetPath(obj, st.Key); ok && valuesEqual(candidate, st.Value) {
							found = true
							break
						}
					}
				}
			}
			pipeline.SetPath(doc, st.Field, found)
		}
		return docs, nil

	case pipeline.Set:
		for _, doc := range docs {
			if value, ok := pipeline.GetPath(doc, st.From); ok {
				pipeline.SetPath(doc, st.Field, copyValue(value))
			}
		}
		return docs, nil

	case pipeline.ReplaceRoot:
		out := docs[:0]
		for _, doc := range docs {
			value, ok := pipeline.GetPath(doc, st.Field)
			if !ok {
				continue
			}
			root, ok := value.(Document)
			if !ok {
				continue
			}
			out = append(out, root)
		}
		return out, nil

	case pipeline.Project:
		for i, doc := range docs {
			if len(st.Include) > 0 {
				docs[i] = projectInclude(doc, st.Include)
				continue
			}
			for _, field := range st.Exclude {
				pipeline.DeletePath(doc, field)
			}
		}
		return docs, nil

	case pipeline.Count:
		return []Document{{st.As: float64(len(docs))}}, nil

	case pipeline.Sum:
		total := 0.0
		for _, doc := range docs {
			if value, ok := pipeline.GetPath(doc, st.Field); ok {
				if n, ok := value.(float64); ok {
					total += n
				}
			}
		}
		return []Document{{st.As: total}}, nil

	default:
		return nil, fmt.Errorf("unsupported pipeline stage %T", stage)
	}
}

func matchesFilter(doc Document, filter Filter) bool {
	for field, expected := range filter {
		value, ok := pipeline.GetPath(doc, field)
		if !ok || !valuesEqual(value, expected) {
			return false
		}
	}
	return true
}

func hasFields(doc Document, fields []string) bool {
	for _, field := range fields {
		if _, ok := pipeline.GetPath(doc, field); !ok {
			return false
		}
	}
	return true
}

func projectInclude(doc Document, fields []string) Document {
	out := make(Document, len(fields))
	for _, field := range fields {
		if value, ok := doc[field]; ok {
			out[field] = value
		}
	}
	return out
}

func applyUpdate(doc Document, update Update) {
	for field, value := range update.Set {
		pipeline.SetPath(doc, field, copyValue(value))
	}
	for _, field := range update.Unset {
		pipeline.DeletePath(doc, field)
	}
	for field, value := range update.Push {
		doc[field] = append(arrayField(doc, field), copyValue(value))
	}
	for field, value := range update.AddToSet {
		elements := arrayField(doc, field)
		present := false
		for _, element := range elements {
			if valuesEqual(element, value) {
				present = true
				break
			}
		}
		if !present {
			doc[field] = append(elements, copyValue(value))
		}
	}
	for field, value := range update.Pull {
		elements := arrayField(doc, field)
		kept := make([]any, 0, len(elements))
		for _, element := range elements {
			if !valuesEqual(element, value) {
				kept = append(kept, element)
			}
		}
		doc[field] = kept
	}
}

func arrayField(doc Document, field string) []any {
	if elements, ok := doc[field].([]any); ok {
		return elements
	}
	return nil
}

func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func lessValue(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af < bf
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for key, value := range doc {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case Document:
		return copyDocument(v)
	case []any:
		out := make([]any, len(v))
		for i, element := range v {
			out[i] = copyValue(element)
		}
		return out
	default:
		return v
	}
}
