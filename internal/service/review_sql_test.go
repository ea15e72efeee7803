package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// On MySQL the tour row is locked before the review row changes, and the
// ratings are re-read with a locking read, so concurrent review writes on
// one tour cannot overwrite each other's aggregate.
func TestReviewDeleteRecomputesUnderTourLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Now().UTC()
	cols := []string{"id", "booking_id", "tourist_id", "tour_id", "guide_id", "rating", "comment", "helpful", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM reviews WHERE id=\?`).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(8, 1, 2, 4, 3, 1, "meh", 0, now, now))
	mock.ExpectQuery(`SELECT id FROM tours WHERE id=\? FOR UPDATE`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectExec(`DELETE FROM reviews WHERE id=\?`).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT rating FROM reviews WHERE tour_id=\? LOCK IN SHARE MODE`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4))
	mock.ExpectExec(`UPDATE tours SET rating=\?, review_count=\? WHERE id=\?`).
		WithArgs(4.5, 2, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewReviewService(repository.NewSQLStore(db), nil)
	if err := svc.Delete(context.Background(), Actor{ID: 2, Role: model.RoleTourist}, 8); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
