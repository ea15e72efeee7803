package repository

import (
	"context"

	"github.com/iliyamo/tour-booking/internal/model"
)

// WishlistRepo is the MySQL WishlistRepository.
type WishlistRepo struct{ q querier }

func (r *WishlistRepo) Add(ctx context.Context, e *model.WishlistEntry) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO wishlists (user_id, tour_id) VALUES (?,?)", e.UserID, e.TourID)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

func (r *WishlistRepo) Remove(ctx context.Context, userID, tourID uint64) error {
	return expectOne(r.q.ExecContext(ctx,
		"DELETE FROM wishlists WHERE user_id=? AND tour_id=?", userID, tourID))
}

func (r *WishlistRepo) Exists(ctx context.Context, userID, tourID uint64) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM wishlists WHERE user_id=? AND tour_id=?", userID, tourID).Scan(&n)
	return n > 0, err
}

// ListByUser returns the user's entries with a summary of each active
// tour.  Entries whose tour was deleted are skipped.
func (r *WishlistRepo) ListByUser(ctx context.Context, userID uint64) ([]model.WishlistEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT w.id, w.user_id, w.tour_id, w.created_at,
			t.slug, t.title, t.location, t.fee_cents, t.rating, t.review_count
		 FROM wishlists w JOIN tours t ON t.id = w.tour_id
		 WHERE w.user_id=? AND t.lifecycle='ACTIVE'
		 ORDER BY w.created_at DESC, w.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WishlistEntry{}
	for rows.Next() {
		var (
			e model.WishlistEntry
			s model.TourSummary
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.TourID, &e.CreatedAt,
			&s.Slug, &s.Title, &s.Location, &s.FeeCents, &s.Rating, &s.ReviewCount); err != nil {
			return nil, err
		}
		s.ID = e.TourID
		e.Tour = &s
		out = append(out, e)
	}
	return out, rows.Err()
}
