package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*ConcertRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewConcertRepo(db), mock
}

func verifyExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConcertRepo_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("count readback shares the decrement's transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE concerts").
			WithArgs(2, 7, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT available_tickets").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"available_tickets"}).AddRow(5))
		mock.ExpectCommit()

		remaining, err := repo.Reserve(ctx, 7, 2)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if remaining != 5 {
			t.Fatalf("expected 5 remaining, got %d", remaining)
		}
		verifyExpectations(t, mock)
	})

	t.Run("exhausted pool reports the observed count", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE concerts").
			WithArgs(3, 7, 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT available_tickets").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"available_tickets"}).AddRow(1))
		mock.ExpectCommit()

		remaining, err := repo.Reserve(ctx, 7, 3)
		if !errors.Is(err, ErrInsufficientTickets) {
			t.Fatalf("expected ErrInsufficientTickets, got %v", err)
		}
		if remaining != 1 {
			t.Fatalf("expected the observed count 1, got %d", remaining)
		}
		verifyExpectations(t, mock)
	})

	t.Run("missing concert rolls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE concerts").
			WithArgs(1, 999, 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT available_tickets").
			WithArgs(999).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		if _, err := repo.Reserve(ctx, 999, 1); !errors.Is(err, ErrConcertNotFound) {
			t.Fatalf("expected ErrConcertNotFound, got %v", err)
		}
		verifyExpectations(t, mock)
	})
}

func TestConcertRepo_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("count readback shares the increment's transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE concerts").
			WithArgs(2, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT available_tickets").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"available_tickets"}).AddRow(10))
		mock.ExpectCommit()

		remaining, err := repo.Release(ctx, 7, 2)
		if err != nil {
			t.Fatalf("release: %v", err)
		}
		if remaining != 10 {
			t.Fatalf("expected 10 remaining, got %d", remaining)
		}
		verifyExpectations(t, mock)
	})

	t.Run("missing concert rolls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE concerts").
			WithArgs(1, 999).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT available_tickets").
			WithArgs(999).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		if _, err := repo.Release(ctx, 999, 1); !errors.Is(err, ErrConcertNotFound) {
			t.Fatalf("expected ErrConcertNotFound, got %v", err)
		}
		verifyExpectations(t, mock)
	})
}
