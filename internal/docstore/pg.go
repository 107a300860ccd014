package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PG implements Store on PostgreSQL. All documents live in a single JSONB
// table keyed by (collection, id); equality queries go through doc->>field.
type PG struct {
	db *sql.DB
}

var _ Store = (*PG)(nil)

func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

func (s *PG) Get(ctx context.Context, path Path) (Document, error) {
	if !path.Valid() {
		return Document{}, ErrInvalidPath
	}
	row := s.db.QueryRowContext(ctx,
		`select doc from documents where collection=$1 and id=$2`,
		path.Collection, path.ID,
	)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, wrapUnavailable(err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{Path: path, Fields: fields}, nil
}

func (s *PG) Set(ctx context.Context, path Path, fields Fields) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into documents(collection, id, doc) values($1,$2,$3)
		 on conflict (collection, id) do update set doc=excluded.doc, updated_at=now()`,
		path.Collection, path.ID, raw,
	)
	return wrapUnavailable(err)
}

func (s *PG) Update(ctx context.Context, path Path, partial Fields) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`update documents set doc = doc || $3, updated_at=now() where collection=$1 and id=$2`,
		path.Collection, path.ID, raw,
	)
	if err != nil {
		return wrapUnavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) Delete(ctx context.Context, path Path) error {
	if !path.Valid() {
		return ErrInvalidPath
	}
	res, err := s.db.ExecContext(ctx,
		`delete from documents where collection=$1 and id=$2`,
		path.Collection, path.ID,
	)
	if err != nil {
		return wrapUnavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) QueryEquals(ctx context.Context, collection, field string, value any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, doc from documents where collection=$1 and doc->>$2 = $3 order by id`,
		collection, field, fmt.Sprint(value),
	)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()
	return scanDocs(collection, rows)
}

func (s *PG) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, doc from documents where collection=$1 order by id`, collection)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()
	return scanDocs(collection, rows)
}

func scanDocs(collection string, rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, wrapUnavailable(err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Path: Path{Collection: collection, ID: id}, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return docs, nil
}

func decodeFields(raw []byte) (Fields, error) {
	fields := Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
