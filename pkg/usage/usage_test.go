package usage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresSource_Counts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(countCategoriesQuery)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(countTransactionsQuery)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(14))

	got, err := NewPostgresSource(db).Counts(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if got != (Counts{Categories: 3, Transactions: 14}) {
		t.Errorf("unexpected counts %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(countCategoriesQuery)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(countTransactionsQuery)).
		WithArgs("user-1").
		WillReturnError(boom)

	_, err = NewPostgresSource(db).Counts(context.Background(), "user-1")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped query error, got %v", err)
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource()
	src.Set("u1", Counts{Categories: 2, Transactions: 5})

	got, _ := src.Counts(context.Background(), "u1")
	if got.Categories != 2 || got.Transactions != 5 {
		t.Errorf("unexpected counts %+v", got)
	}

	unknown, _ := src.Counts(context.Background(), "nobody")
	if unknown != (Counts{}) {
		t.Errorf("unknown user should have zero counts, got %+v", unknown)
	}
}
