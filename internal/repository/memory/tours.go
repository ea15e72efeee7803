package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type tours struct{ u unit }

func (r tours) Create(_ context.Context, t *model.Tour) error {
	if t.Lifecycle == "" {
		t.Lifecycle = model.LifecycleActive
	}
	return r.u.with(func(d *state) error {
		for _, existing := range d.tours {
			if existing.Slug == t.Slug {
				return repository.ErrDuplicate
			}
		}
		t.ID = d.id()
		t.CreatedAt, t.UpdatedAt = now(), now()
		d.tours[t.ID] = *t
		return nil
	})
}

func (r tours) get(id uint64, includeDeleted bool) (*model.Tour, error) {
	var out *model.Tour
	err := r.u.with(func(d *state) error {
		t, ok := d.tours[id]
		if !ok || (!includeDeleted && t.Lifecycle != model.LifecycleActive) {
			return repository.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r tours) GetByID(_ context.Context, id uint64) (*model.Tour, error) {
	return r.get(id, false)
}

func (r tours) GetByIDUnscoped(_ context.Context, id uint64) (*model.Tour, error) {
	return r.get(id, true)
}

func (r tours) GetBySlug(_ context.Context, slug string) (*model.Tour, error) {
	var out *model.Tour
	err := r.u.with(func(d *state) error {
		for _, t := range d.tours {
			if t.Slug == slug && t.Lifecycle == model.LifecycleActive {
				t := t
				out = &t
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r tours) SlugExists(_ context.Context, slug string, excludeID uint64) (bool, error) {
	found := false
	err := r.u.with(func(d *state) error {
		for _, t := range d.tours {
			if t.Slug == slug && t.ID != excludeID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r tours) Update(_ context.Context, t *model.Tour) error {
	return r.u.with(func(d *state) error {
		cur, ok := d.tours[t.ID]
		if !ok || cur.Lifecycle != model.LifecycleActive {
			return repository.ErrNotFound
		}
		for _, other := range d.tours {
			if other.ID != t.ID && other.Slug == t.Slug {
				return repository.ErrDuplicate
			}
		}
		cur.Slug, cur.Title, cur.Description = t.Slug, t.Title, t.Description
		cur.Category, cur.Location, cur.MeetingPoint = t.Category, t.Location, t.MeetingPoint
		cur.FeeCents, cur.MaxDurationHrs, cur.MaxGroupSize = t.FeeCents, t.MaxDurationHrs, t.MaxGroupSize
		cur.Images = cloneStrings(t.Images)
		cur.Itinerary = append([]model.ItineraryItem(nil), t.Itinerary...)
		cur.AvailableDates = append([]model.AvailableDate(nil), t.AvailableDates...)
		cur.UpdatedAt = now()
		d.tours[t.ID] = cur
		return nil
	})
}

func (r tours) SoftDelete(_ context.Context, id uint64) error {
	return r.u.with(func(d *state) error {
		t, ok := d.tours[id]
		if !ok || t.Lifecycle != model.LifecycleActive {
			return repository.ErrNotFound
		}
		t.Lifecycle = model.LifecycleDeleted
		t.UpdatedAt = now()
		d.tours[id] = t
		return nil
	})
}

func (r tours) Search(_ context.Context, q model.TourSearch) ([]model.Tour, int64, error) {
	q.Normalize()
	var matched []model.Tour
	err := r.u.with(func(d *state) error {
		loc := strings.ToLower(q.Location)
		text := strings.ToLower(q.Text)
		for _, t := range d.tours {
			switch {
			case t.Lifecycle != model.LifecycleActive,
				q.Category != "" && t.Category != q.Category,
				loc != "" && !strings.Contains(strings.ToLower(t.Location), loc),
				q.MinFeeCents > 0 && t.FeeCents < q.MinFeeCents,
				q.MaxFeeCents > 0 && t.FeeCents > q.MaxFeeCents,
				q.MinRating > 0 && t.Rating < q.MinRating,
				q.MaxDuration > 0 && t.MaxDurationHrs > q.MaxDuration:
				continue
			}
			if text != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Description+" "+t.Location), text) {
				continue
			}
			matched = append(matched, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	key := func(t model.Tour) float64 {
		switch q.SortBy {
		case "price":
			return float64(t.FeeCents)
		case "rating":
			return t.Rating
		case "duration":
			return float64(t.MaxDurationHrs)
		}
		return float64(t.CreatedAt.UnixNano())
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := key(matched[i]), key(matched[j])
		if a == b {
			return matched[i].ID > matched[j].ID
		}
		if q.SortAsc {
			return a < b
		}
		return a > b
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return append([]model.Tour{}, matched[start:end]...), total, nil
}

func (r tours) ListByGuide(_ context.Context, guideID uint64) ([]model.Tour, error) {
	out := []model.Tour{}
	err := r.u.with(func(d *state) error {
		for _, t := range d.tours {
			if t.GuideID == guideID && t.Lifecycle == model.LifecycleActive {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

// LockForUpdate only checks the tour exists; transactions are already
// serialized.
func (r tours) LockForUpdate(_ context.Context, id uint64) error {
	_, err := r.get(id, true)
	return err
}

func (r tours) SetRating(_ context.Context, id uint64, rating float64, count int) error {
	return r.u.with(func(d *state) error {
		t, ok := d.tours[id]
		if !ok {
			return repository.ErrNotFound
		}
		t.Rating, t.ReviewCount = rating, count
		d.tours[id] = t
		return nil
	})
}

func (r tours) IncrementBookingCount(_ context.Context, id uint64) error {
	return r.u.with(func(d *state) error {
		t, ok := d.tours[id]
		if !ok {
			return repository.ErrNotFound
		}
		t.BookingCount++
		d.tours[id] = t
		return nil
	})
}
