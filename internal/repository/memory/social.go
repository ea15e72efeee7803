package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type reviews struct{ u unit }

func (r reviews) Create(_ context.Context, rv *model.Review) error {
	return r.u.with(func(d *state) error {
		for _, existing := range d.reviews {
			if existing.BookingID == rv.BookingID {
				return repository.ErrDuplicate
			}
		}
		rv.ID = d.id()
		rv.CreatedAt, rv.UpdatedAt = now(), now()
		d.reviews[rv.ID] = *rv
		return nil
	})
}

func (r reviews) GetByID(_ context.Context, id uint64) (*model.Review, error) {
	var out *model.Review
	err := r.u.with(func(d *state) error {
		rv, ok := d.reviews[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rv
		return nil
	})
	return out, err
}

func (r reviews) GetByBookingID(_ context.Context, bookingID uint64) (*model.Review, error) {
	var out *model.Review
	err := r.u.with(func(d *state) error {
		for _, rv := range d.reviews {
			if rv.BookingID == bookingID {
				rv := rv
				out = &rv
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r reviews) Update(_ context.Context, id uint64, rating int, comment string) error {
	return r.u.with(func(d *state) error {
		rv, ok := d.reviews[id]
		if !ok {
			return repository.ErrNotFound
		}
		rv.Rating, rv.Comment = rating, comment
		rv.UpdatedAt = now()
		d.reviews[id] = rv
		return nil
	})
}

func (r reviews) Delete(_ context.Context, id uint64) error {
	return r.u.with(func(d *state) error {
		if _, ok := d.reviews[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.reviews, id)
		return nil
	})
}

func (r reviews) List(_ context.Context, f model.ReviewFilter, p model.Page) ([]model.Review, int64, error) {
	p = p.Normalize()
	var all []model.Review
	err := r.u.with(func(d *state) error {
		for _, rv := range d.reviews {
			if f.TourID != 0 && rv.TourID != f.TourID {
				continue
			}
			if f.GuideID != 0 && rv.GuideID != f.GuideID {
				continue
			}
			if f.TouristID != 0 && rv.TouristID != f.TouristID {
				continue
			}
			all = append(all, rv)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return window(all, p), int64(len(all)), nil
}

// window copies out page p of all.
func window[T any](all []T, p model.Page) []T {
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]T{}, all[start:end]...)
}

func (r reviews) RatingsForTour(_ context.Context, tourID uint64) ([]int, error) {
	out := []int{}
	err := r.u.with(func(d *state) error {
		for _, rv := range d.reviews {
			if rv.TourID == tourID {
				out = append(out, rv.Rating)
			}
		}
		return nil
	})
	return out, err
}

func (r reviews) IncrementHelpful(_ context.Context, id uint64) error {
	return r.u.with(func(d *state) error {
		rv, ok := d.reviews[id]
		if !ok {
			return repository.ErrNotFound
		}
		rv.Helpful++
		d.reviews[id] = rv
		return nil
	})
}

type wishlists struct{ u unit }

func (r wishlists) Add(_ context.Context, e *model.WishlistEntry) error {
	return r.u.with(func(d *state) error {
		for _, existing := range d.wishlists {
			if existing.UserID == e.UserID && existing.TourID == e.TourID {
				return repository.ErrDuplicate
			}
		}
		e.ID = d.id()
		e.CreatedAt = now()
		stored := *e
		stored.Tour = nil
		d.wishlists[e.ID] = stored
		return nil
	})
}

func (r wishlists) Remove(_ context.Context, userID, tourID uint64) error {
	return r.u.with(func(d *state) error {
		for id, e := range d.wishlists {
			if e.UserID == userID && e.TourID == tourID {
				delete(d.wishlists, id)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r wishlists) Exists(_ context.Context, userID, tourID uint64) (bool, error) {
	found := false
	err := r.u.with(func(d *state) error {
		for _, e := range d.wishlists {
			if e.UserID == userID && e.TourID == tourID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r wishlists) ListByUser(_ context.Context, userID uint64) ([]model.WishlistEntry, error) {
	out := []model.WishlistEntry{}
	err := r.u.with(func(d *state) error {
		for _, e := range d.wishlists {
			if e.UserID != userID {
				continue
			}
			t, ok := d.tours[e.TourID]
			if !ok || t.Lifecycle != model.LifecycleActive {
				continue
			}
			s := t.Summary()
			e.Tour = &s
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

type messages struct{ u unit }

func (r messages) FindConversation(_ context.Context, low, high uint64) (*model.Conversation, error) {
	var out *model.Conversation
	err := r.u.with(func(d *state) error {
		for _, c := range d.conversations {
			if c.UserLow == low && c.UserHigh == high {
				c := c
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r messages) CreateConversation(_ context.Context, c *model.Conversation) error {
	return r.u.with(func(d *state) error {
		for _, existing := range d.conversations {
			if existing.UserLow == c.UserLow && existing.UserHigh == c.UserHigh {
				return repository.ErrDuplicate
			}
		}
		c.ID = d.id()
		c.CreatedAt = now()
		d.conversations[c.ID] = *c
		return nil
	})
}

func (r messages) GetConversation(_ context.Context, id uint64) (*model.Conversation, error) {
	var out *model.Conversation
	err := r.u.with(func(d *state) error {
		c, ok := d.conversations[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r messages) ListConversations(_ context.Context, userID uint64) ([]model.Conversation, error) {
	out := []model.Conversation{}
	err := r.u.with(func(d *state) error {
		for _, c := range d.conversations {
			if c.Has(userID) {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r messages) Append(_ context.Context, m *model.Message) error {
	return r.u.with(func(d *state) error {
		if _, ok := d.conversations[m.ConversationID]; !ok {
			return repository.ErrNotFound
		}
		m.ID = d.id()
		m.CreatedAt = now()
		d.messages[m.ID] = *m
		return nil
	})
}

func (r messages) ListMessages(_ context.Context, conversationID uint64) ([]model.Message, error) {
	out := []model.Message{}
	err := r.u.with(func(d *state) error {
		for _, m := range d.messages {
			if m.ConversationID == conversationID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
