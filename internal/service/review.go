package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// AggregateRating returns the mean of ratings rounded to one decimal
// place, and the count.  No ratings gives (0, 0).
func AggregateRating(ratings []int) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10, len(ratings)
}

// lockTour takes the tour's row lock ahead of any review write.  A tour
// that is gone has no aggregates to protect.
func lockTour(ctx context.Context, u repository.Unit, tourID uint64) error {
	if err := u.Tours().LockForUpdate(ctx, tourID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lock tour: %w", err)
	}
	return nil
}

// recomputeRating rewrites the tour aggregates from every stored review.
// The caller must hold the tour lock (see lockTour).
func recomputeRating(ctx context.Context, u repository.Unit, tourID uint64) error {
	ratings, err := u.Reviews().RatingsForTour(ctx, tourID)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	rating, count := AggregateRating(ratings)
	if err := u.Tours().SetRating(ctx, tourID, rating, count); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("store rating: %w", err)
	}
	return nil
}

// ReviewListCache is the read side of the cache used for review listings.
type ReviewListCache interface {
	Invalidator
	Key(ctx context.Context, s cache.Scope, variant string) string
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any)
}

// ReviewService manages reviews and keeps tour ratings current.
type ReviewService struct {
	store repository.Store
	cache ReviewListCache
}

func NewReviewService(store repository.Store, c ReviewListCache) *ReviewService {
	return &ReviewService{store: store, cache: c}
}

// ReviewInput carries a new or edited review.
type ReviewInput struct {
	BookingID uint64
	Rating    int
	Comment   string
}

func (in ReviewInput) validate() error {
	if in.Rating < 1 || in.Rating > 5 {
		return invalidOp("rating must be between 1 and 5")
	}
	if strings.TrimSpace(in.Comment) == "" {
		return invalidOp("comment is required")
	}
	return nil
}

// ReviewPage is one page of reviews.
type ReviewPage struct {
	Reviews    []model.Review   `json:"reviews"`
	Pagination model.Pagination `json:"pagination"`
}

// Create adds the tourist's review of a completed booking and recomputes
// the tour rating in the same transaction.
func (s *ReviewService) Create(ctx context.Context, actor Actor, in ReviewInput) (*model.Review, error) {
	if !actor.Is(model.RoleTourist) {
		return nil, forbidden("only tourists can write reviews")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	rv := &model.Review{BookingID: in.BookingID, TouristID: actor.ID, Rating: in.Rating, Comment: strings.TrimSpace(in.Comment)}
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		b, err := u.Bookings().GetByID(ctx, in.BookingID)
		if err != nil {
			return fromRepo(err, "booking")
		}
		if b.TouristID != actor.ID {
			return forbidden("you can only review your own bookings")
		}
		if b.Status != model.BookingCompleted {
			return invalidOp("only completed bookings can be reviewed")
		}
		if _, err := u.Reviews().GetByBookingID(ctx, b.ID); err == nil {
			return invalidOp("this booking has already been reviewed")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		rv.TourID, rv.GuideID = b.TourID, b.GuideID
		if err := lockTour(ctx, u, b.TourID); err != nil {
			return err
		}
		if err := u.Reviews().Create(ctx, rv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return invalidOp("this booking has already been reviewed")
			}
			return err
		}
		return recomputeRating(ctx, u, b.TourID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, rv)
	return rv, nil
}

// Update edits the author's review.
func (s *ReviewService) Update(ctx context.Context, actor Actor, id uint64, rating int, comment string) (*model.Review, error) {
	if err := (ReviewInput{Rating: rating, Comment: comment}).validate(); err != nil {
		return nil, err
	}
	var out model.Review
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		rv, err := u.Reviews().GetByID(ctx, id)
		if err != nil {
			return fromRepo(err, "review")
		}
		if rv.TouristID != actor.ID {
			return forbidden("you can only edit your own reviews")
		}
		if err := lockTour(ctx, u, rv.TourID); err != nil {
			return err
		}
		comment = strings.TrimSpace(comment)
		if err := u.Reviews().Update(ctx, id, rating, comment); err != nil {
			return fromRepo(err, "review")
		}
		rv.Rating, rv.Comment = rating, comment
		out = *rv
		return recomputeRating(ctx, u, rv.TourID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, &out)
	return &out, nil
}

// Delete removes a review.  The author or an admin may do so.
func (s *ReviewService) Delete(ctx context.Context, actor Actor, id uint64) error {
	var gone model.Review
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		rv, err := u.Reviews().GetByID(ctx, id)
		if err != nil {
			return fromRepo(err, "review")
		}
		if rv.TouristID != actor.ID && !actor.Is(model.RoleAdmin) {
			return forbidden("you can only delete your own reviews")
		}
		if err := lockTour(ctx, u, rv.TourID); err != nil {
			return err
		}
		if err := u.Reviews().Delete(ctx, id); err != nil {
			return fromRepo(err, "review")
		}
		gone = *rv
		return recomputeRating(ctx, u, rv.TourID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, &gone)
	return nil
}

// MarkHelpful counts one more helpful vote.
func (s *ReviewService) MarkHelpful(ctx context.Context, id uint64) (*model.Review, error) {
	if err := s.store.Reviews().IncrementHelpful(ctx, id); err != nil {
		return nil, fromRepo(err, "review")
	}
	rv, err := s.store.Reviews().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "review")
	}
	bump(ctx, s.cache, cache.TourReviews(rv.TourID), cache.GuideReviews(rv.GuideID))
	return rv, nil
}

// ForTour lists a tour's reviews.  Pages are cached per version of the
// tour's review scope.
func (s *ReviewService) ForTour(ctx context.Context, tourID uint64, p model.Page) (*ReviewPage, error) {
	if _, err := s.store.Tours().GetByID(ctx, tourID); err != nil {
		return nil, fromRepo(err, "tour")
	}
	return s.cached(ctx, cache.TourReviews(tourID), model.ReviewFilter{TourID: tourID}, p)
}

// ForGuide lists the reviews written about a guide's tours.
func (s *ReviewService) ForGuide(ctx context.Context, guideID uint64, p model.Page) (*ReviewPage, error) {
	return s.cached(ctx, cache.GuideReviews(guideID), model.ReviewFilter{GuideID: guideID}, p)
}

// Mine lists the caller's own reviews.
func (s *ReviewService) Mine(ctx context.Context, actor Actor, p model.Page) (*ReviewPage, error) {
	return s.page(ctx, model.ReviewFilter{TouristID: actor.ID}, p)
}

// All lists every review.  Admin only.
func (s *ReviewService) All(ctx context.Context, actor Actor, p model.Page) (*ReviewPage, error) {
	if !actor.Is(model.RoleAdmin) {
		return nil, forbidden("admin only")
	}
	return s.page(ctx, model.ReviewFilter{}, p)
}

func (s *ReviewService) cached(ctx context.Context, scope cache.Scope, f model.ReviewFilter, p model.Page) (*ReviewPage, error) {
	p = p.Normalize()
	if s.cache == nil {
		return s.page(ctx, f, p)
	}
	key := s.cache.Key(ctx, scope, fmt.Sprintf("page=%d:limit=%d", p.Page, p.Limit))
	var hit ReviewPage
	if s.cache.GetJSON(ctx, key, &hit) {
		return &hit, nil
	}
	out, err := s.page(ctx, f, p)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, out)
	return out, nil
}

func (s *ReviewService) page(ctx context.Context, f model.ReviewFilter, p model.Page) (*ReviewPage, error) {
	p = p.Normalize()
	list, total, err := s.store.Reviews().List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return &ReviewPage{Reviews: list, Pagination: model.NewPagination(p, total)}, nil
}

func (s *ReviewService) invalidate(ctx context.Context, rv *model.Review) {
	if s.cache == nil {
		return
	}
	bump(ctx, s.cache,
		cache.TourReviews(rv.TourID),
		cache.GuideReviews(rv.GuideID),
		cache.Tour(rv.TourID),
		cache.AllTours(),
	)
}
