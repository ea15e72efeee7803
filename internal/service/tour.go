package service

import (
	"context"
	"strings"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/utils"
)

// TourInput is the editable part of a tour.
type TourInput struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       model.TourCategory    `json:"category"`
	Location       string                `json:"location"`
	MeetingPoint   string                `json:"meetingPoint"`
	FeeCents       int64                 `json:"feeCents"`
	MaxDurationHrs int                   `json:"maxDurationHrs"`
	MaxGroupSize   int                   `json:"maxGroupSize"`
	Images         []string              `json:"images"`
	Itinerary      []model.ItineraryItem `json:"itinerary"`
	AvailableDates []model.AvailableDate `json:"availableDates"`
}

func (in *TourInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = model.TourCategory(strings.ToUpper(string(in.Category)))
	switch {
	case in.Title == "":
		return invalidOp("title is required")
	case utils.Slugify(in.Title) == "":
		return invalidOp("title must contain letters or digits")
	case !in.Category.Valid():
		return invalidOp("unknown category %q", in.Category)
	case strings.TrimSpace(in.Location) == "":
		return invalidOp("location is required")
	case in.FeeCents <= 0:
		return invalidOp("feeCents must be positive")
	case in.MaxGroupSize < 1:
		return invalidOp("maxGroupSize must be at least 1")
	case in.MaxDurationHrs < 1:
		return invalidOp("maxDurationHrs must be at least 1")
	}
	return nil
}

func (in TourInput) apply(t *model.Tour) {
	t.Title, t.Description, t.Category = in.Title, in.Description, in.Category
	t.Location, t.MeetingPoint = strings.TrimSpace(in.Location), in.MeetingPoint
	t.FeeCents, t.MaxDurationHrs, t.MaxGroupSize = in.FeeCents, in.MaxDurationHrs, in.MaxGroupSize
	t.Images, t.Itinerary, t.AvailableDates = in.Images, in.Itinerary, in.AvailableDates
}

// TourPage is one page of search results.
type TourPage struct {
	Tours      []model.Tour     `json:"tours"`
	Pagination model.Pagination `json:"pagination"`
}

// TourService manages listings.  Every write bumps the cache scopes of
// the tour and of the listing.
type TourService struct {
	store repository.Store
	cache Invalidator
}

func NewTourService(store repository.Store, inv Invalidator) *TourService {
	return &TourService{store: store, cache: inv}
}

// Create adds a tour owned by the calling guide.  The slug comes from the
// title and must be unused.
func (s *TourService) Create(ctx context.Context, actor Actor, in TourInput) (*model.Tour, error) {
	if !actor.Is(model.RoleGuide) {
		return nil, forbidden("only guides can create tours")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	slug := utils.Slugify(in.Title)
	if err := s.ensureSlugFree(ctx, slug, 0); err != nil {
		return nil, err
	}
	t := &model.Tour{GuideID: actor.ID, Slug: slug}
	in.apply(t)
	if err := s.store.Tours().Create(ctx, t); err != nil {
		return nil, fromRepo(err, "a tour with this title")
	}
	bump(ctx, s.cache, cache.AllTours(), cache.Tour(t.ID))
	return t, nil
}

// Update rewrites a tour.  The owning guide or an admin may do so.
func (s *TourService) Update(ctx context.Context, actor Actor, id uint64, in TourInput) (*model.Tour, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	slug := utils.Slugify(in.Title)
	if slug != t.Slug {
		if err := s.ensureSlugFree(ctx, slug, t.ID); err != nil {
			return nil, err
		}
		t.Slug = slug
	}
	in.apply(t)
	if err := s.store.Tours().Update(ctx, t); err != nil {
		return nil, fromRepo(err, "a tour with this title")
	}
	bump(ctx, s.cache, cache.AllTours(), cache.Tour(t.ID))
	return t, nil
}

// Delete soft-deletes a tour.  Its bookings and reviews stay.
func (s *TourService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.Tours().SoftDelete(ctx, id); err != nil {
		return fromRepo(err, "tour")
	}
	bump(ctx, s.cache, cache.AllTours(), cache.Tour(id))
	return nil
}

// Mine lists the calling guide's active tours.
func (s *TourService) Mine(ctx context.Context, actor Actor) ([]model.Tour, error) {
	if !actor.Is(model.RoleGuide) {
		return nil, forbidden("only guides own tours")
	}
	return s.store.Tours().ListByGuide(ctx, actor.ID)
}

// Search returns a page of active tours.
func (s *TourService) Search(ctx context.Context, q model.TourSearch) (*TourPage, error) {
	q.Normalize()
	list, total, err := s.store.Tours().Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return &TourPage{Tours: list, Pagination: model.NewPagination(model.Page{Page: q.Page, Limit: q.PageSize}, total)}, nil
}

// BySlug returns an active tour.
func (s *TourService) BySlug(ctx context.Context, slug string) (*model.Tour, error) {
	t, err := s.store.Tours().GetBySlug(ctx, slug)
	if err != nil {
		return nil, fromRepo(err, "tour")
	}
	return t, nil
}

func (s *TourService) owned(ctx context.Context, actor Actor, id uint64) (*model.Tour, error) {
	t, err := s.store.Tours().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "tour")
	}
	switch {
	case actor.Is(model.RoleAdmin):
	case actor.Is(model.RoleGuide) && t.GuideID == actor.ID:
	default:
		return nil, forbidden("you do not own this tour")
	}
	return t, nil
}

func (s *TourService) ensureSlugFree(ctx context.Context, slug string, excludeID uint64) error {
	taken, err := s.store.Tours().SlugExists(ctx, slug, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return newErr(KindAlreadyExists, "a tour with this title already exists")
	}
	return nil
}
