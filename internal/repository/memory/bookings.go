package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type bookings struct{ u unit }

func (r bookings) Create(_ context.Context, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	return r.u.with(func(d *state) error {
		b.ID = d.id()
		b.CreatedAt, b.UpdatedAt = now(), now()
		d.bookings[b.ID] = *b
		return nil
	})
}

func (r bookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	var out *model.Booking
	err := r.u.with(func(d *state) error {
		b, ok := d.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: a transaction already holds the
// store lock.
func (r bookings) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookings) update(id uint64, fn func(b *model.Booking)) error {
	return r.u.with(func(d *state) error {
		b, ok := d.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		fn(&b)
		b.UpdatedAt = now()
		d.bookings[id] = b
		return nil
	})
}

func (r bookings) UpdateStatus(_ context.Context, id uint64, status model.BookingStatus) error {
	return r.update(id, func(b *model.Booking) { b.Status = status })
}

func (r bookings) SetPayment(_ context.Context, id, paymentID uint64) error {
	return r.update(id, func(b *model.Booking) { b.PaymentID = &paymentID })
}

func (r bookings) Touch(_ context.Context, id uint64) error {
	return r.update(id, func(*model.Booking) {})
}

func (r bookings) List(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	out := []model.Booking{}
	err := r.u.with(func(d *state) error {
		for _, b := range d.bookings {
			if f.TouristID != 0 && b.TouristID != f.TouristID {
				continue
			}
			if f.GuideID != 0 && b.GuideID != f.GuideID {
				continue
			}
			if f.Status != "" && b.Status != f.Status {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

type payments struct{ u unit }

func (r payments) Create(_ context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentUnpaid
	}
	return r.u.with(func(d *state) error {
		for _, existing := range d.payments {
			if existing.BookingID == p.BookingID || existing.TransactionID == p.TransactionID {
				return repository.ErrDuplicate
			}
		}
		p.ID = d.id()
		p.CreatedAt, p.UpdatedAt = now(), now()
		d.payments[p.ID] = *p
		return nil
	})
}

func (r payments) find(match func(model.Payment) bool) (*model.Payment, error) {
	var out *model.Payment
	err := r.u.with(func(d *state) error {
		for _, p := range d.payments {
			if match(p) {
				p := p
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r payments) GetByID(_ context.Context, id uint64) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.ID == id })
}

func (r payments) GetByBookingID(_ context.Context, bookingID uint64) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.BookingID == bookingID })
}

func (r payments) GetByTransactionIDForUpdate(_ context.Context, transactionID string) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.TransactionID == transactionID })
}

func (r payments) Settle(_ context.Context, id uint64, status model.PaymentStatus, gatewayData json.RawMessage, paidAt *time.Time) error {
	return r.u.with(func(d *state) error {
		p, ok := d.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		p.Status = status
		p.GatewayData = append(json.RawMessage(nil), gatewayData...)
		p.PaidAt = paidAt
		p.UpdatedAt = now()
		d.payments[id] = p
		return nil
	})
}

func (r payments) Reissue(_ context.Context, id uint64, transactionID string) error {
	return r.u.with(func(d *state) error {
		p, ok := d.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		for _, other := range d.payments {
			if other.ID != id && other.TransactionID == transactionID {
				return repository.ErrDuplicate
			}
		}
		p.TransactionID = transactionID
		p.Status = model.PaymentUnpaid
		p.GatewayData = nil
		p.PaidAt = nil
		p.UpdatedAt = now()
		d.payments[id] = p
		return nil
	})
}
