package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/tour-booking/internal/model"
)

// TourRepo is the MySQL TourRepository.
type TourRepo struct {
	q       querier
	locking bool
}

const tourColumns = `t.id, t.guide_id, t.slug, t.title, t.description, t.category, t.location,
	t.meeting_point, t.fee_cents, t.max_duration_hrs, t.max_group_size, t.images, t.itinerary,
	t.available_dates, t.rating, t.review_count, t.booking_count, t.lifecycle, t.created_at, t.updated_at`

// Create inserts the tour.  A taken slug yields ErrDuplicate.
func (r *TourRepo) Create(ctx context.Context, t *model.Tour) error {
	if t.Lifecycle == "" {
		t.Lifecycle = model.LifecycleActive
	}
	images, itinerary, dates, err := tourJSON(t)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO tours (guide_id, slug, title, description, category, location, meeting_point,
			fee_cents, max_duration_hrs, max_group_size, images, itinerary, available_dates, lifecycle)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.GuideID, t.Slug, t.Title, t.Description, string(t.Category), t.Location, t.MeetingPoint,
		t.FeeCents, t.MaxDurationHrs, t.MaxGroupSize, images, itinerary, dates, string(t.Lifecycle))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func (r *TourRepo) GetByID(ctx context.Context, id uint64) (*model.Tour, error) {
	return scanTour(r.q.QueryRowContext(ctx,
		"SELECT "+tourColumns+" FROM tours t WHERE t.id=? AND t.lifecycle='ACTIVE'", id))
}

func (r *TourRepo) GetBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	return scanTour(r.q.QueryRowContext(ctx,
		"SELECT "+tourColumns+" FROM tours t WHERE t.slug=? AND t.lifecycle='ACTIVE'", slug))
}

func (r *TourRepo) GetByIDUnscoped(ctx context.Context, id uint64) (*model.Tour, error) {
	return scanTour(r.q.QueryRowContext(ctx,
		"SELECT "+tourColumns+" FROM tours t WHERE t.id=?", id))
}

// SlugExists checks every tour, deleted ones included, because the unique
// index covers them too.
func (r *TourRepo) SlugExists(ctx context.Context, slug string, excludeID uint64) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tours WHERE slug=? AND id<>?", slug, excludeID).Scan(&n)
	return n > 0, err
}

// Update writes the editable columns of t.  Aggregates are left alone.
func (r *TourRepo) Update(ctx context.Context, t *model.Tour) error {
	images, itinerary, dates, err := tourJSON(t)
	if err != nil {
		return err
	}
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE tours SET slug=?, title=?, description=?, category=?, location=?, meeting_point=?,
			fee_cents=?, max_duration_hrs=?, max_group_size=?, images=?, itinerary=?, available_dates=?
		 WHERE id=? AND lifecycle='ACTIVE'`,
		t.Slug, t.Title, t.Description, string(t.Category), t.Location, t.MeetingPoint,
		t.FeeCents, t.MaxDurationHrs, t.MaxGroupSize, images, itinerary, dates, t.ID))
}

func (r *TourRepo) SoftDelete(ctx context.Context, id uint64) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE tours SET lifecycle='DELETED' WHERE id=? AND lifecycle='ACTIVE'", id))
}

// Search returns a page of active tours and the total number of matches.
// Text search goes through the FULLTEXT index.
func (r *TourRepo) Search(ctx context.Context, q model.TourSearch) ([]model.Tour, int64, error) {
	q.Normalize()
	where := []string{"t.lifecycle='ACTIVE'"}
	args := []any{}
	if q.Category != "" {
		where = append(where, "t.category=?")
		args = append(args, string(q.Category))
	}
	if q.Location != "" {
		where = append(where, "LOWER(t.location) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Location)+"%")
	}
	if q.MinFeeCents > 0 {
		where = append(where, "t.fee_cents>=?")
		args = append(args, q.MinFeeCents)
	}
	if q.MaxFeeCents > 0 {
		where = append(where, "t.fee_cents<=?")
		args = append(args, q.MaxFeeCents)
	}
	if q.MinRating > 0 {
		where = append(where, "t.rating>=?")
		args = append(args, q.MinRating)
	}
	if q.MaxDuration > 0 {
		where = append(where, "t.max_duration_hrs<=?")
		args = append(args, q.MaxDuration)
	}
	if q.Text != "" {
		where = append(where, "MATCH(t.title, t.description, t.location) AGAINST (? IN NATURAL LANGUAGE MODE)")
		args = append(args, q.Text)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tours t WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "t.created_at"
	switch q.SortBy {
	case "price":
		order = "t.fee_cents"
	case "rating":
		order = "t.rating"
	case "duration":
		order = "t.max_duration_hrs"
	}
	dir := " DESC"
	if q.SortAsc {
		dir = " ASC"
	}
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+tourColumns+" FROM tours t WHERE "+cond+" ORDER BY "+order+dir+", t.id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	tours, err := scanTours(rows)
	return tours, total, err
}

func (r *TourRepo) ListByGuide(ctx context.Context, guideID uint64) ([]model.Tour, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+tourColumns+" FROM tours t WHERE t.guide_id=? AND t.lifecycle='ACTIVE' ORDER BY t.created_at DESC", guideID)
	if err != nil {
		return nil, err
	}
	return scanTours(rows)
}

// LockForUpdate only checks existence outside a transaction.
func (r *TourRepo) LockForUpdate(ctx context.Context, id uint64) error {
	query := "SELECT id FROM tours WHERE id=?"
	if r.locking {
		query += " FOR UPDATE"
	}
	var got uint64
	return translate(r.q.QueryRowContext(ctx, query, id).Scan(&got))
}

func (r *TourRepo) SetRating(ctx context.Context, id uint64, rating float64, count int) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE tours SET rating=?, review_count=? WHERE id=?", rating, count, id))
}

func (r *TourRepo) IncrementBookingCount(ctx context.Context, id uint64) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE tours SET booking_count=booking_count+1 WHERE id=?", id))
}

func tourJSON(t *model.Tour) (images, itinerary, dates any, err error) {
	if images, err = jsonColumn(t.Images); err != nil {
		return
	}
	if itinerary, err = jsonColumn(t.Itinerary); err != nil {
		return
	}
	dates, err = jsonColumn(t.AvailableDates)
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTour(row rowScanner) (*model.Tour, error) {
	var (
		t                         model.Tour
		category, lifecycle       string
		images, itinerary, dates  []byte
	)
	err := row.Scan(&t.ID, &t.GuideID, &t.Slug, &t.Title, &t.Description, &category, &t.Location,
		&t.MeetingPoint, &t.FeeCents, &t.MaxDurationHrs, &t.MaxGroupSize, &images, &itinerary,
		&dates, &t.Rating, &t.ReviewCount, &t.BookingCount, &lifecycle, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	t.Category = model.TourCategory(category)
	t.Lifecycle = model.Lifecycle(lifecycle)
	if err := decodeJSON(images, &t.Images); err != nil {
		return nil, err
	}
	if err := decodeJSON(itinerary, &t.Itinerary); err != nil {
		return nil, err
	}
	if err := decodeJSON(dates, &t.AvailableDates); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTours(rows *sql.Rows) ([]model.Tour, error) {
	defer rows.Close()
	out := []model.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
