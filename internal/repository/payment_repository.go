package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
)

// PaymentRepo is the MySQL PaymentRepository.
type PaymentRepo struct {
	q       querier
	locking bool
}

const paymentColumns = `id, booking_id, transaction_id, status, amount_cents, gateway_data,
	paid_at, created_at, updated_at`

// Create inserts the payment.  A second payment for the same booking, or a
// reused transaction id, yields ErrDuplicate.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentUnpaid
	}
	data, err := jsonColumn(p.GatewayData)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (booking_id, transaction_id, status, amount_cents, gateway_data, paid_at)
		 VALUES (?,?,?,?,?,?)`,
		p.BookingID, p.TransactionID, string(p.Status), p.AmountCents, data, p.PaidAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	return scanPayment(r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id=?", id))
}

func (r *PaymentRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return scanPayment(r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE booking_id=?", bookingID))
}

// GetByTransactionIDForUpdate locks the payment row when running inside a
// transaction, which serializes concurrent callbacks for the same id.
func (r *PaymentRepo) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*model.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE transaction_id=?"
	if r.locking {
		query += " FOR UPDATE"
	}
	return scanPayment(r.q.QueryRowContext(ctx, query, transactionID))
}

func (r *PaymentRepo) Settle(ctx context.Context, id uint64, status model.PaymentStatus, gatewayData json.RawMessage, paidAt *time.Time) error {
	data, err := jsonColumn(gatewayData)
	if err != nil {
		return err
	}
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE payments SET status=?, gateway_data=?, paid_at=? WHERE id=?",
		string(status), data, paidAt, id))
}

func (r *PaymentRepo) Reissue(ctx context.Context, id uint64, transactionID string) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE payments SET transaction_id=?, status='UNPAID', gateway_data=NULL, paid_at=NULL WHERE id=?",
		transactionID, id))
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var (
		p      model.Payment
		status string
		data   []byte
		paidAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.TransactionID, &status, &p.AmountCents, &data,
		&paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	p.Status = model.PaymentStatus(status)
	if len(data) > 0 {
		p.GatewayData = json.RawMessage(data)
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
