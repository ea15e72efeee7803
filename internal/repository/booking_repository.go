package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/tour-booking/internal/model"
)

// BookingRepo is the MySQL BookingRepository.  When locking is set (inside
// Store.InTx) GetByIDForUpdate takes a row lock.
type BookingRepo struct {
	q       querier
	locking bool
}

const bookingColumns = `id, tourist_id, tour_id, guide_id, payment_id, booking_date, booking_time,
	number_of_guests, total_amount_cents, status, created_at, updated_at`

func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO bookings (tourist_id, tour_id, guide_id, booking_date, booking_time,
			number_of_guests, total_amount_cents, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		b.TouristID, b.TourID, b.GuideID, b.BookingDate, b.BookingTime,
		b.NumberOfGuests, b.TotalAmountCents, string(b.Status))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.q.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=?", id))
}

func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE id=?"
	if r.locking {
		query += " FOR UPDATE"
	}
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE bookings SET status=? WHERE id=?", string(status), id))
}

func (r *BookingRepo) SetPayment(ctx context.Context, id, paymentID uint64) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE bookings SET payment_id=? WHERE id=?", paymentID, id))
}

// Touch bumps updated_at without changing anything else.
func (r *BookingRepo) Touch(ctx context.Context, id uint64) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE bookings SET updated_at=UTC_TIMESTAMP() WHERE id=?", id))
}

// List returns the bookings matching f, newest first.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.TouristID != 0 {
		where = append(where, "tourist_id=?")
		args = append(args, f.TouristID)
	}
	if f.GuideID != 0 {
		where = append(where, "guide_id=?")
		args = append(args, f.GuideID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b         model.Booking
		paymentID sql.NullInt64
		status    string
	)
	err := row.Scan(&b.ID, &b.TouristID, &b.TourID, &b.GuideID, &paymentID, &b.BookingDate, &b.BookingTime,
		&b.NumberOfGuests, &b.TotalAmountCents, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if paymentID.Valid {
		id := uint64(paymentID.Int64)
		b.PaymentID = &id
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}
