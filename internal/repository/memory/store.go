// Package memory is an in-process implementation of repository.Store.  It
// backs the "memory" database driver for local runs and doubles as the
// store used by service and handler tests.  It enforces the same unique
// constraints as the MySQL schema and hides soft-deleted rows the same way.
//
// A single mutex serializes every call.  InTx holds that mutex for the
// whole callback, snapshots the data first and restores the snapshot when
// the callback fails or the context is done, so a transaction either
// applies completely or not at all.  Code running inside InTx must use the
// Unit it is handed; calling the Store directly from within the callback
// would deadlock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type tokenRow struct {
	userID  uint64
	expires time.Time
	revoked bool
}

type state struct {
	nextID        uint64
	users         map[uint64]model.User
	tokens        map[string]tokenRow
	tours         map[uint64]model.Tour
	bookings      map[uint64]model.Booking
	payments      map[uint64]model.Payment
	reviews       map[uint64]model.Review
	wishlists     map[uint64]model.WishlistEntry
	conversations map[uint64]model.Conversation
	messages      map[uint64]model.Message
}

func newState() *state {
	return &state{
		users:         map[uint64]model.User{},
		tokens:        map[string]tokenRow{},
		tours:         map[uint64]model.Tour{},
		bookings:      map[uint64]model.Booking{},
		payments:      map[uint64]model.Payment{},
		reviews:       map[uint64]model.Review{},
		wishlists:     map[uint64]model.WishlistEntry{},
		conversations: map[uint64]model.Conversation{},
		messages:      map[uint64]model.Message{},
	}
}

// clone copies every table.  Stored values are never mutated in place, so
// copying the maps is enough.
func (s *state) clone() *state {
	c := &state{nextID: s.nextID}
	c.users = copyMap(s.users)
	c.tokens = copyMap(s.tokens)
	c.tours = copyMap(s.tours)
	c.bookings = copyMap(s.bookings)
	c.payments = copyMap(s.payments)
	c.reviews = copyMap(s.reviews)
	c.wishlists = copyMap(s.wishlists)
	c.conversations = copyMap(s.conversations)
	c.messages = copyMap(s.messages)
	return c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

// Store is the in-memory repository.Store.
type Store struct {
	mu   sync.Mutex
	data *state
	unit
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{data: newState()}
	s.unit = unit{s: s}
	return s
}

// InTx runs fn while holding the store lock and rolls every change back
// when fn fails or ctx is done.
func (s *Store) InTx(ctx context.Context, fn func(u repository.Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(unit{s: s, tx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// unit hands out repositories.  tx is set for units created by InTx,
// which already hold the lock.
type unit struct {
	s  *Store
	tx bool
}

func (u unit) with(fn func(d *state) error) error {
	if !u.tx {
		u.s.mu.Lock()
		defer u.s.mu.Unlock()
	}
	return fn(u.s.data)
}

func (u unit) Users() repository.UserRepository         { return users{u} }
func (u unit) Tokens() repository.TokenRepository       { return tokens{u} }
func (u unit) Tours() repository.TourRepository         { return tours{u} }
func (u unit) Bookings() repository.BookingRepository   { return bookings{u} }
func (u unit) Payments() repository.PaymentRepository   { return payments{u} }
func (u unit) Reviews() repository.ReviewRepository     { return reviews{u} }
func (u unit) Wishlists() repository.WishlistRepository { return wishlists{u} }
func (u unit) Messages() repository.MessageRepository   { return messages{u} }

func now() time.Time { return time.Now().UTC() }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
