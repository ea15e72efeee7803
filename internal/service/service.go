// Package service holds the business rules: the booking state machine,
// payment reconciliation, rating aggregation and the smaller CRUD flows
// around them.  Services depend on repository.Store for persistence and
// on small interfaces for the payment gateway, the event publisher and
// the cache, so each can be replaced in tests.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/queue"
)

// Actor is the verified identity behind a request.
type Actor struct {
	ID    uint64
	Email string
	Role  model.Role
}

func (a Actor) Is(r model.Role) bool { return a.Role == r }

// PaymentGateway opens hosted checkout sessions.
type PaymentGateway interface {
	Init(ctx context.Context, r gateway.InitRequest) (*gateway.Session, error)
}

// EventPublisher delivers domain events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Invalidator bumps cache version counters.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...cache.Scope)
}

const publishTimeout = 3 * time.Second

// publish sends ev after a commit.  Delivery is best effort: failures are
// logged and never reach the caller.
func publish(ctx context.Context, p EventPublisher, ev queue.Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		log.Warnf("event %s for booking %d not published: %v", ev.Type, ev.BookingID, err)
	}
}

func bump(ctx context.Context, inv Invalidator, scopes ...cache.Scope) {
	if inv == nil {
		return
	}
	inv.Bump(context.WithoutCancel(ctx), scopes...)
}

// NewTransactionID returns a fresh gateway transaction id.
func NewTransactionID() string {
	return "tran_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
