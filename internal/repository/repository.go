package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
)

// Unit groups the repositories that can take part in one atomic unit of
// work.  Values obtained from a Unit passed to Store.InTx run inside the
// transaction; values obtained from the Store itself run on the pool.
type Unit interface {
	Users() UserRepository
	Tokens() TokenRepository
	Tours() TourRepository
	Bookings() BookingRepository
	Payments() PaymentRepository
	Reviews() ReviewRepository
	Wishlists() WishlistRepository
	Messages() MessageRepository
}

// Store is the persistent store.  InTx runs fn inside a single
// transaction: it commits when fn returns nil and rolls back otherwise
// (including when ctx is done before commit).  The error returned by fn is
// passed through unchanged.
type Store interface {
	Unit
	InTx(ctx context.Context, fn func(u Unit) error) error
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id uint64, p model.ProfileUpdate) error
	SetLifecycle(ctx context.Context, id uint64, l model.Lifecycle) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	// List pages through every account that is not deleted, newest first.
	List(ctx context.Context, p model.Page) ([]model.User, int64, error)
}

// TokenRepository persists/validates refresh tokens (hash only).
type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type TourRepository interface {
	Create(ctx context.Context, t *model.Tour) error
	// GetByID and GetBySlug exclude soft-deleted tours.
	GetByID(ctx context.Context, id uint64) (*model.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tour, error)
	// GetByIDUnscoped also returns soft-deleted tours; used to hydrate
	// historical bookings.
	GetByIDUnscoped(ctx context.Context, id uint64) (*model.Tour, error)
	SlugExists(ctx context.Context, slug string, excludeID uint64) (bool, error)
	Update(ctx context.Context, t *model.Tour) error
	SoftDelete(ctx context.Context, id uint64) error
	Search(ctx context.Context, q model.TourSearch) ([]model.Tour, int64, error)
	ListByGuide(ctx context.Context, guideID uint64) ([]model.Tour, error)
	// LockForUpdate holds the tour's row lock until the surrounding
	// transaction ends.  Writers of the tour's reviews take it first so
	// that rating recomputes serialize.
	LockForUpdate(ctx context.Context, id uint64) error
	SetRating(ctx context.Context, id uint64, rating float64, count int) error
	IncrementBookingCount(ctx context.Context, id uint64) error
}

type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	// GetByIDForUpdate locks the row until the surrounding transaction
	// ends.  Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error
	SetPayment(ctx context.Context, id, paymentID uint64) error
	Touch(ctx context.Context, id uint64) error
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error)
	GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*model.Payment, error)
	// Settle records the gateway outcome for the payment.
	Settle(ctx context.Context, id uint64, status model.PaymentStatus, gatewayData json.RawMessage, paidAt *time.Time) error
	// Reissue rotates the transaction id and resets the status to UNPAID.
	Reissue(ctx context.Context, id uint64, transactionID string) error
}

type ReviewRepository interface {
	Create(ctx context.Context, r *model.Review) error
	GetByID(ctx context.Context, id uint64) (*model.Review, error)
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.Review, error)
	Update(ctx context.Context, id uint64, rating int, comment string) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f model.ReviewFilter, p model.Page) ([]model.Review, int64, error)
	RatingsForTour(ctx context.Context, tourID uint64) ([]int, error)
	IncrementHelpful(ctx context.Context, id uint64) error
}

type WishlistRepository interface {
	Add(ctx context.Context, e *model.WishlistEntry) error
	Remove(ctx context.Context, userID, tourID uint64) error
	Exists(ctx context.Context, userID, tourID uint64) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.WishlistEntry, error)
}

type MessageRepository interface {
	FindConversation(ctx context.Context, low, high uint64) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id uint64) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID uint64) ([]model.Conversation, error)
	Append(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID uint64) ([]model.Message, error)
}
