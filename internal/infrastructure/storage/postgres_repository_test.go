package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"ProSocialFlow/internal/domain"
)

// topicsArg matches a text[] argument by decoding it the way Postgres would.
type topicsArg []string

func (a topicsArg) Match(v driver.Value) bool {
	var got pq.StringArray
	if err := got.Scan(v); err != nil {
		return false
	}
	return fmt.Sprint([]string(got)) == fmt.Sprint([]string(a))
}

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewPostgresRepository(db, 0)
	repo.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return repo, mock
}

func TestPostgresReadMissingRow(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT recent_topics FROM topic_history WHERE category = $1")).
		WithArgs("STEM").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Read(context.Background(), "STEM")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresReadExistingRow(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery("FROM topic_history").
		WithArgs("STEM").
		WillReturnRows(sqlmock.NewRows([]string{"recent_topics"}).AddRow(`{"b","a"}`))

	got, err := repo.Read(context.Background(), "STEM")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if fmt.Sprint(got) != "[b a]" {
		t.Fatalf("unexpected topics: %v", got)
	}
}

func expectSeed(mock sqlmock.Sqlmock, category string) *sqlmock.ExpectedExec {
	return mock.ExpectExec(regexp.QuoteMeta("INSERT INTO topic_history (category,recent_topics,updated_at) VALUES ($1,$2,$3) ON CONFLICT (category) DO NOTHING")).
		WithArgs(category, topicsArg{}, sqlmock.AnyArg())
}

func TestPostgresRecordMergesUnderLock(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	expectSeed(mock, "STEM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT recent_topics FROM topic_history WHERE category = $1 FOR UPDATE")).
		WithArgs("STEM").
		WillReturnRows(sqlmock.NewRows([]string{"recent_topics"}).AddRow(`{"older"}`))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE topic_history SET recent_topics = $1, updated_at = $2 WHERE category = $3")).
		WithArgs(topicsArg{"newest", "older"}, sqlmock.AnyArg(), "STEM").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Record(context.Background(), "STEM", "newest"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecordSeedsFirstRowBeforeLocking(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	expectSeed(mock, "Sports").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").WithArgs("Sports").
		WillReturnRows(sqlmock.NewRows([]string{"recent_topics"}).AddRow(`{}`))
	mock.ExpectExec("UPDATE topic_history").
		WithArgs(topicsArg{"Chess boxing league expands"}, sqlmock.AnyArg(), "Sports").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Record(context.Background(), "Sports", "Chess boxing league expands"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecordSeedFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	expectSeed(mock, "STEM").WillReturnError(errors.New("read-only transaction"))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), "STEM", "x")
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "seed history" {
		t.Fatalf("expected seed StoreError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecordRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	expectSeed(mock, "STEM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WithArgs("STEM").WillReturnRows(sqlmock.NewRows([]string{"recent_topics"}).AddRow(`{}`))
	mock.ExpectExec("UPDATE topic_history").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), "STEM", "x")
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Category != "STEM" {
		t.Fatalf("unexpected category on error: %+v", storeErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresReadAll(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, recent_topics FROM topic_history ORDER BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category", "recent_topics"}).
			AddRow("STEM", `{"a","b"}`).
			AddRow("Sports", `{}`))

	got, err := repo.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll returned error: %v", err)
	}
	if len(got) != 2 || len(got["STEM"]) != 2 || len(got["Sports"]) != 0 {
		t.Fatalf("unexpected history: %v", got)
	}
}

func TestPostgresReadAllFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery("FROM topic_history").WillReturnError(errors.New("connection reset"))

	if _, err := repo.ReadAll(context.Background()); !domain.IsStore(err) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}
