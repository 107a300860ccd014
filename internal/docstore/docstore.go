// Package docstore provides the narrow document-store capability the rest of
// the service is written against: point lookups and writes keyed by collection
// path and record id, plus single-field equality queries. Semantics are best
// effort, last write wins; no versioning layer is added on top.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("docstore: not found")
	ErrInvalidPath = errors.New("docstore: invalid path")
	ErrUnavailable = errors.New("docstore: backend unavailable")
)

// Fields is the schemaless payload of a document.
type Fields map[string]any

// Path addresses one record inside a collection. Collection may itself be a
// slash-joined path (organization → sub-collection).
type Path struct {
	Collection string
	ID         string
}

// NewPath builds a Path from one or more collection segments and a record id.
func NewPath(id string, collection ...string) Path {
	return Path{Collection: strings.Join(collection, "/"), ID: id}
}

func (p Path) Valid() bool {
	return strings.TrimSpace(p.Collection) != "" && strings.TrimSpace(p.ID) != ""
}

func (p Path) String() string {
	return p.Collection + "/" + p.ID
}

// Document is one stored record together with its address.
type Document struct {
	Path   Path
	Fields Fields
}

// String returns the field as a string, or "" when absent or differently typed.
func (d Document) String(field string) string {
	v, _ := d.Fields[field].(string)
	return v
}

// Bool returns the field as a bool; absent fields read as false.
func (d Document) Bool(field string) bool {
	v, _ := d.Fields[field].(bool)
	return v
}

// Store is the document-store capability. Absence of a record is ErrNotFound;
// transport faults are wrapped in ErrUnavailable by implementations.
type Store interface {
	// Get returns the record at path.
	Get(ctx context.Context, path Path) (Document, error)
	// Set writes the full document, creating or replacing it.
	Set(ctx context.Context, path Path, fields Fields) error
	// Update merges partial fields into an existing document.
	Update(ctx context.Context, path Path, partial Fields) error
	// Delete removes the record permanently.
	Delete(ctx context.Context, path Path) error
	// QueryEquals returns all documents in collection whose field equals value.
	QueryEquals(ctx context.Context, collection, field string, value any) ([]Document, error)
	// List returns every document in collection.
	List(ctx context.Context, collection string) ([]Document, error)
}
