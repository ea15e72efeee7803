package model

import "time"

// WishlistEntry is a tour saved for later by a user.  The (UserID, TourID)
// pair is unique.
type WishlistEntry struct {
    ID        uint64      `json:"id"`             // wishlists.id
    UserID    uint64      `json:"user_id"`        // wishlists.user_id
    TourID    uint64      `json:"tour_id"`        // wishlists.tour_id
    Tour      *TourSummary `json:"tour,omitempty"` // hydrated on listing
    CreatedAt time.Time   `json:"created_at"`     // wishlists.created_at
}
