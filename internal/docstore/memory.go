package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory implements Store with in-process concurrency safety. It backs tests
// and single-node deployments without a configured database.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Fields)}
}

func (m *Memory) Get(ctx context.Context, path Path) (Document, error) {
	if !path.Valid() {
		return Document{}, ErrInvalidPath
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.collections[path.Collection][path.ID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{Path: path, Fields: cloneFields(fields)}, nil
}

func (m *Memory) Set(ctx context.Context, path Path, fields Fields) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[path.Collection]
	if !ok {
		coll = make(map[string]Fields)
		m.collections[path.Collection] = coll
	}
	coll[path.ID] = cloneFields(fields)
	return nil
}

func (m *Memory) Update(ctx context.Context, path Path, partial Fields) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.collections[path.Collection][path.ID]
	if !ok {
		return ErrNotFound
	}
	for k, v := range partial {
		fields[k] = v
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, path Path) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[path.Collection]
	if _, exists := coll[path.ID]; !ok || !exists {
		return ErrNotFound
	}
	delete(coll, path.ID)
	return nil
}

func (m *Memory) QueryEquals(ctx context.Context, collection, field string, value any) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []Document
	for id, fields := range m.collections[collection] {
		if fmt.Sprint(fields[field]) == fmt.Sprint(value) {
			docs = append(docs, Document{
				Path:   Path{Collection: collection, ID: id},
				Fields: cloneFields(fields),
			})
		}
	}
	sortDocs(docs)
	return docs, nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []Document
	for id, fields := range m.collections[collection] {
		docs = append(docs, Document{
			Path:   Path{Collection: collection, ID: id},
			Fields: cloneFields(fields),
		})
	}
	sortDocs(docs)
	return docs, nil
}

func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path.ID < docs[j].Path.ID })
}

func cloneFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
