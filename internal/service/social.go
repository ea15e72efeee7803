package service

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// WishlistService keeps the tours a user saved for later.
type WishlistService struct {
	store repository.Store
}

func NewWishlistService(store repository.Store) *WishlistService {
	return &WishlistService{store: store}
}

func (s *WishlistService) List(ctx context.Context, actor Actor) ([]model.WishlistEntry, error) {
	return s.store.Wishlists().ListByUser(ctx, actor.ID)
}

// Add saves an active tour.  Saving the same tour twice is AlreadyExists.
func (s *WishlistService) Add(ctx context.Context, actor Actor, tourID uint64) (*model.WishlistEntry, error) {
	t, err := s.store.Tours().GetByID(ctx, tourID)
	if err != nil {
		return nil, fromRepo(err, "tour")
	}
	e := &model.WishlistEntry{UserID: actor.ID, TourID: t.ID}
	if err := s.store.Wishlists().Add(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newErr(KindAlreadyExists, "tour is already in your wishlist")
		}
		return nil, err
	}
	sum := t.Summary()
	e.Tour = &sum
	return e, nil
}

func (s *WishlistService) Remove(ctx context.Context, actor Actor, tourID uint64) error {
	if err := s.store.Wishlists().Remove(ctx, actor.ID, tourID); err != nil {
		return fromRepo(err, "wishlist entry")
	}
	return nil
}

func (s *WishlistService) Contains(ctx context.Context, actor Actor, tourID uint64) (bool, error) {
	return s.store.Wishlists().Exists(ctx, actor.ID, tourID)
}

// MessageService stores direct messages between two users.  The
// real-time relay lives outside this service.
type MessageService struct {
	store repository.Store
}

func NewMessageService(store repository.Store) *MessageService {
	return &MessageService{store: store}
}

// Send appends a message to the conversation of the sender and receiver,
// creating the conversation on first contact.
func (s *MessageService) Send(ctx context.Context, actor Actor, receiverID uint64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalidOp("message must not be empty")
	}
	if receiverID == actor.ID {
		return nil, invalidOp("you cannot message yourself")
	}
	if _, err := s.store.Users().GetByID(ctx, receiverID); err != nil {
		return nil, fromRepo(err, "receiver")
	}
	m := &model.Message{SenderID: actor.ID, ReceiverID: receiverID, Body: body}
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		low, high := model.ConversationPair(actor.ID, receiverID)
		conv, err := u.Messages().FindConversation(ctx, low, high)
		if errors.Is(err, repository.ErrNotFound) {
			conv = &model.Conversation{UserLow: low, UserHigh: high}
			err = u.Messages().CreateConversation(ctx, conv)
		}
		if err != nil {
			return err
		}
		m.ConversationID = conv.ID
		return u.Messages().Append(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Conversations lists the caller's conversations with companion
// summaries.
func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]model.ConversationView, error) {
	convs, err := s.store.Messages().ListConversations(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	h := newHydrator(s.store)
	out := make([]model.ConversationView, 0, len(convs))
	for _, c := range convs {
		companion, err := h.user(ctx, c.Companion(actor.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, model.ConversationView{ID: c.ID, Companion: companion})
	}
	return out, nil
}

// Messages returns a conversation to one of its participants.
func (s *MessageService) Messages(ctx context.Context, actor Actor, conversationID uint64) ([]model.Message, error) {
	c, err := s.store.Messages().GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fromRepo(err, "conversation")
	}
	if !c.Has(actor.ID) {
		return nil, forbidden("you are not part of this conversation")
	}
	return s.store.Messages().ListMessages(ctx, conversationID)
}

// UserService covers self-service profile changes and the admin's
// account management.
type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Me(ctx context.Context, actor Actor) (*model.User, error) {
	u, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	return u, nil
}

// UpdateProfile applies p.  Guide-only fields (expertise, daily rate) and
// tourist-only fields (travel preferences) are refused for other roles.
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, p model.ProfileUpdate) (*model.User, error) {
	if (p.Expertise != nil || p.DailyRateCents != nil) && !actor.Is(model.RoleGuide) {
		return nil, invalidOp("expertise and dailyRate are guide-only fields")
	}
	if p.TravelPreferences != nil && !actor.Is(model.RoleTourist) {
		return nil, invalidOp("travelPreferences is a tourist-only field")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, invalidOp("name must not be empty")
	}
	if p.DailyRateCents != nil && *p.DailyRateCents < 0 {
		return nil, invalidOp("dailyRate must not be negative")
	}
	if err := s.store.Users().UpdateProfile(ctx, actor.ID, p); err != nil {
		return nil, fromRepo(err, "user")
	}
	return s.Me(ctx, actor)
}

// UserPage is one page of accounts.
type UserPage struct {
	Users      []model.User     `json:"users"`
	Pagination model.Pagination `json:"pagination"`
}

// All lists every account that is not deleted.  Admin only.
func (s *UserService) All(ctx context.Context, actor Actor, p model.Page) (*UserPage, error) {
	if !actor.Is(model.RoleAdmin) {
		return nil, forbidden("admin only")
	}
	p = p.Normalize()
	list, total, err := s.store.Users().List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: list, Pagination: model.NewPagination(p, total)}, nil
}

// SetLifecycle moves another account to l.  An account that can no longer
// sign in loses its refresh sessions in the same transaction; access
// tokens already issued run until they expire.
func (s *UserService) SetLifecycle(ctx context.Context, actor Actor, id uint64, l model.Lifecycle) (*model.User, error) {
	if !actor.Is(model.RoleAdmin) {
		return nil, forbidden("admin only")
	}
	if id == actor.ID {
		return nil, invalidOp("you cannot change your own account state")
	}
	var out model.User
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		usr, err := u.Users().GetByID(ctx, id)
		if err != nil {
			return fromRepo(err, "user")
		}
		if err := u.Users().SetLifecycle(ctx, id, l); err != nil {
			return fromRepo(err, "user")
		}
		if !l.CanSignIn() {
			if err := u.Tokens().RevokeAllForUser(ctx, id); err != nil {
				return err
			}
		}
		usr.Lifecycle = l
		out = *usr
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("user %d: lifecycle %s by admin %d", id, l, actor.ID)
	return &out, nil
}
