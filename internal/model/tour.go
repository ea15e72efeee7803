package model

import "time"

// TourCategory groups listings for browsing.
type TourCategory string

const (
    CategoryAdventure TourCategory = "ADVENTURE"
    CategoryCultural  TourCategory = "CULTURAL"
    CategoryFood      TourCategory = "FOOD"
    CategoryHistory   TourCategory = "HISTORY"
    CategoryNature    TourCategory = "NATURE"
    CategoryCity      TourCategory = "CITY"
    CategoryOther     TourCategory = "OTHER"
)

// Valid reports whether c is one of the known categories.
func (c TourCategory) Valid() bool {
    switch c {
    case CategoryAdventure, CategoryCultural, CategoryFood, CategoryHistory, CategoryNature, CategoryCity, CategoryOther:
        return true
    }
    return false
}

// ItineraryItem is one stop of a tour's schedule.
type ItineraryItem struct {
    Time        string `json:"time"`
    Title       string `json:"title"`
    Description string `json:"description"`
    Location    string `json:"location,omitempty"`
}

// AvailableDate lists the start times offered on a calendar date
// (YYYY-MM-DD).
type AvailableDate struct {
    Date  string   `json:"date"`
    Times []string `json:"times"`
}

// Offers reports whether the tour can start at the given date and time.
// A tour with no availability windows accepts any slot.
func (t Tour) Offers(date, at string) bool {
    if len(t.AvailableDates) == 0 {
        return true
    }
    for _, d := range t.AvailableDates {
        if d.Date != date {
            continue
        }
        for _, tm := range d.Times {
            if tm == at {
                return true
            }
        }
    }
    return false
}

// Tour is a bookable listing owned by exactly one guide.  Rating,
// ReviewCount and BookingCount are aggregates maintained by the services;
// they are never taken from client input.
//
// Fields:
//  ID            – primary key identifier.
//  GuideID       – owning guide.
//  Slug          – unique url-safe identifier derived from the title.
//  FeeCents      – price per guest in cents.
//  MaxGroupSize  – upper bound for numberOfGuests on a booking.
//  Lifecycle     – ACTIVE or DELETED (soft delete).
type Tour struct {
    ID              uint64          `json:"id"`               // tours.id
    GuideID         uint64          `json:"guide_id"`         // tours.guide_id
    Slug            string          `json:"slug"`             // tours.slug
    Title           string          `json:"title"`            // tours.title
    Description     string          `json:"description"`      // tours.description
    Category        TourCategory    `json:"category"`         // tours.category
    Location        string          `json:"location"`         // tours.location
    MeetingPoint    string          `json:"meeting_point"`    // tours.meeting_point
    FeeCents        int64           `json:"fee_cents"`        // tours.fee_cents
    MaxDurationHrs  int             `json:"max_duration_hrs"` // tours.max_duration_hrs
    MaxGroupSize    int             `json:"max_group_size"`   // tours.max_group_size
    Images          []string        `json:"images"`           // tours.images (JSON)
    Itinerary       []ItineraryItem `json:"itinerary"`        // tours.itinerary (JSON)
    AvailableDates  []AvailableDate `json:"available_dates"`  // tours.available_dates (JSON)
    Rating          float64         `json:"rating"`           // tours.rating
    ReviewCount     int             `json:"review_count"`     // tours.review_count
    BookingCount    int             `json:"booking_count"`    // tours.booking_count
    Lifecycle       Lifecycle       `json:"lifecycle"`        // tours.lifecycle
    CreatedAt       time.Time       `json:"created_at"`       // tours.created_at
    UpdatedAt       time.Time       `json:"updated_at"`       // tours.updated_at
}

// Summary returns the subset of the tour embedded in bookings, reviews and
// wishlist entries.
func (t Tour) Summary() TourSummary {
    return TourSummary{ID: t.ID, Slug: t.Slug, Title: t.Title, Location: t.Location, FeeCents: t.FeeCents, Rating: t.Rating, ReviewCount: t.ReviewCount}
}

// TourSummary is the hydrated form of a tour reference.
type TourSummary struct {
    ID          uint64  `json:"id"`
    Slug        string  `json:"slug"`
    Title       string  `json:"title"`
    Location    string  `json:"location,omitempty"`
    FeeCents    int64   `json:"fee_cents"`
    Rating      float64 `json:"rating"`
    ReviewCount int     `json:"review_count"`
}

// TourSearch holds the browse filters.  Zero values disable a filter.
type TourSearch struct {
    Category     TourCategory
    Location     string
    Text         string
    MinFeeCents  int64
    MaxFeeCents  int64
    MinRating    float64
    MaxDuration  int // hours
    SortBy       string // created_at (default), price, rating, duration
    SortAsc      bool
    Page         int
    PageSize     int
}

// Normalize clamps paging to sane bounds.
func (q *TourSearch) Normalize() {
    if q.Page < 1 {
        q.Page = 1
    }
    if q.PageSize < 1 {
        q.PageSize = 10
    }
    if q.PageSize > 100 {
        q.PageSize = 100
    }
}
