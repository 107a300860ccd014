package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select doc from documents").
		WithArgs("organizations", "ST-2024").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"code":"ST-2024","name":"State University"}`)))

	s := NewPG(db)
	doc, err := s.Get(context.Background(), NewPath("ST-2024", "organizations"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.String("code") != "ST-2024" {
		t.Fatalf("unexpected doc: %v", doc.Fields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select doc from documents").
		WithArgs("organizations", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	s := NewPG(db)
	if _, err := s.Get(context.Background(), NewPath("missing", "organizations")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGSetUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into documents").
		WithArgs("jobs/ST-2024", "job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPG(db)
	if err := s.Set(context.Background(), NewPath("job-1", "jobs", "ST-2024"), Fields{"title": "Registrar"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update documents set doc").
		WithArgs("jobs/ST-2024", "job-x", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPG(db)
	err = s.Update(context.Background(), NewPath("job-x", "jobs", "ST-2024"), Fields{"isDeleted": true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGQueryEquals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "doc"}).
		AddRow("org-1", []byte(`{"code":"ST-2024"}`))
	mock.ExpectQuery("select id, doc from documents where collection=.* and doc").
		WithArgs("organizations", "code", "ST-2024").
		WillReturnRows(rows)

	s := NewPG(db)
	docs, err := s.QueryEquals(context.Background(), "organizations", "code", "ST-2024")
	if err != nil {
		t.Fatalf("QueryEquals: %v", err)
	}
	if len(docs) != 1 || docs[0].Path.ID != "org-1" {
		t.Fatalf("unexpected result: %v", docs)
	}
}

func TestPGUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select doc from documents").
		WillReturnError(errors.New("connection refused"))

	s := NewPG(db)
	_, err = s.Get(context.Background(), NewPath("x", "organizations"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
