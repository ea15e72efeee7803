package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/tour-booking/internal/model"
)

// ReviewRepo is the MySQL ReviewRepository.
type ReviewRepo struct {
	q       querier
	locking bool
}

const reviewColumns = `id, booking_id, tourist_id, tour_id, guide_id, rating, comment, helpful, created_at, updated_at`

// Create inserts the review.  The booking_id unique index turns a second
// review of the same booking into ErrDuplicate.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO reviews (booking_id, tourist_id, tour_id, guide_id, rating, comment)
		 VALUES (?,?,?,?,?,?)`,
		rv.BookingID, rv.TouristID, rv.TourID, rv.GuideID, rv.Rating, rv.Comment)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (*model.Review, error) {
	return scanReview(r.q.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id=?", id))
}

func (r *ReviewRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Review, error) {
	return scanReview(r.q.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE booking_id=?", bookingID))
}

func (r *ReviewRepo) Update(ctx context.Context, id uint64, rating int, comment string) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE reviews SET rating=?, comment=? WHERE id=?", rating, comment, id))
}

func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	return expectOne(r.q.ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id))
}

// List pages through the reviews matching f, newest first.
func (r *ReviewRepo) List(ctx context.Context, f model.ReviewFilter, p model.Page) ([]model.Review, int64, error) {
	p = p.Normalize()
	where := []string{"1=1"}
	args := []any{}
	if f.TourID != 0 {
		where = append(where, "tour_id=?")
		args = append(args, f.TourID)
	}
	if f.GuideID != 0 {
		where = append(where, "guide_id=?")
		args = append(args, f.GuideID)
	}
	if f.TouristID != 0 {
		where = append(where, "tourist_id=?")
		args = append(args, f.TouristID)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, p.Limit, p.Offset())
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE "+cond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rv)
	}
	return out, total, rows.Err()
}

// RatingsForTour returns every rating currently stored for the tour.
// Inside a transaction it is a locking read, so it sees the latest
// committed rows rather than the transaction's snapshot.
func (r *ReviewRepo) RatingsForTour(ctx context.Context, tourID uint64) ([]int, error) {
	query := "SELECT rating FROM reviews WHERE tour_id=?"
	if r.locking {
		query += " LOCK IN SHARE MODE"
	}
	rows, err := r.q.QueryContext(ctx, query, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *ReviewRepo) IncrementHelpful(ctx context.Context, id uint64) error {
	return expectOne(r.q.ExecContext(ctx, "UPDATE reviews SET helpful=helpful+1 WHERE id=?", id))
}

func scanReview(row rowScanner) (*model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.BookingID, &rv.TouristID, &rv.TourID, &rv.GuideID, &rv.Rating,
		&rv.Comment, &rv.Helpful, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &rv, nil
}
