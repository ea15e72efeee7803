package model

import "time"

// Review is a tourist's rating of a completed booking.  At most one review
// exists per booking.
type Review struct {
    ID        uint64    `json:"id"`         // reviews.id
    BookingID uint64    `json:"booking_id"` // reviews.booking_id (unique)
    TouristID uint64    `json:"tourist_id"` // reviews.tourist_id
    TourID    uint64    `json:"tour_id"`    // reviews.tour_id
    GuideID   uint64    `json:"guide_id"`   // reviews.guide_id
    Rating    int       `json:"rating"`     // reviews.rating (1..5)
    Comment   string    `json:"comment"`    // reviews.comment
    Helpful   int       `json:"helpful"`    // reviews.helpful
    CreatedAt time.Time `json:"created_at"` // reviews.created_at
    UpdatedAt time.Time `json:"updated_at"` // reviews.updated_at
}

// ReviewFilter narrows review listings.  Zero values match everything.
type ReviewFilter struct {
    TourID    uint64
    GuideID   uint64
    TouristID uint64
}

// Page is a generic page request.
type Page struct {
    Page  int `json:"page"`
    Limit int `json:"limit"`
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Normalize clamps the request to sane bounds.
func (p Page) Normalize() Page {
    if p.Page < 1 {
        p.Page = 1
    }
    if p.Limit < 1 {
        p.Limit = 10
    }
    if p.Limit > 100 {
        p.Limit = 100
    }
    return p
}

// Pagination is returned alongside paged listings.
type Pagination struct {
    Page  int   `json:"page"`
    Limit int   `json:"limit"`
    Total int64 `json:"total"`
    Pages int64 `json:"pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(p Page, total int64) Pagination {
    pages := int64(0)
    if p.Limit > 0 {
        pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
    }
    return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
