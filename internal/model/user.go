package model

import (
    "fmt"
    "strings"
    "time"
)

// Role is the closed set of account roles.  The zero value is not a
// valid role; use ParseRole to convert untrusted input.
type Role string

const (
    RoleTourist Role = "TOURIST"
    RoleGuide   Role = "GUIDE"
    RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes s and returns the matching Role.
func ParseRole(s string) (Role, error) {
    switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
    case RoleTourist, RoleGuide, RoleAdmin:
        return r, nil
    default:
        return "", fmt.Errorf("unknown role %q", s)
    }
}

func (r Role) String() string { return string(r) }

// Lifecycle replaces the loose isActive/isDeleted/isBlocked flags with a
// single explicit account state.  Repositories filter out LifecycleDeleted
// rows unless a method says otherwise.
type Lifecycle string

const (
    LifecycleActive   Lifecycle = "ACTIVE"
    LifecycleInactive Lifecycle = "INACTIVE"
    LifecycleBlocked  Lifecycle = "BLOCKED"
    LifecycleDeleted  Lifecycle = "DELETED"
)

// ParseLifecycle normalizes s and returns the matching Lifecycle.
func ParseLifecycle(s string) (Lifecycle, error) {
    switch l := Lifecycle(strings.ToUpper(strings.TrimSpace(s))); l {
    case LifecycleActive, LifecycleInactive, LifecycleBlocked, LifecycleDeleted:
        return l, nil
    default:
        return "", fmt.Errorf("unknown lifecycle %q", s)
    }
}

// CanSignIn reports whether an account in this state may obtain tokens.
func (l Lifecycle) CanSignIn() bool { return l == LifecycleActive }

// User represents an account row in the `users` table.  Role-specific
// profile fields are only meaningful for the matching role: Expertise and
// DailyRateCents for guides, TravelPreferences for tourists.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Name              – display name.
//  Email             – unique, normalized email address.
//  PasswordHash      – bcrypt hashed password.
//  Role              – TOURIST, GUIDE or ADMIN.
//  Phone, Address    – contact details required before booking.
//  Lifecycle         – ACTIVE, INACTIVE, BLOCKED or DELETED.
type User struct {
    ID                uint64    `json:"id"`                           // users.id
    Name              string    `json:"name"`                         // users.name
    Email             string    `json:"email"`                        // users.email
    PasswordHash      string    `json:"-"`                            // users.password_hash
    Role              Role      `json:"role"`                         // users.role
    Image             string    `json:"image,omitempty"`              // users.image
    Phone             string    `json:"phone,omitempty"`              // users.phone
    Address           string    `json:"address,omitempty"`            // users.address
    Bio               string    `json:"bio,omitempty"`                // users.bio
    Languages         []string  `json:"languages,omitempty"`          // users.languages (JSON)
    Expertise         []string  `json:"expertise,omitempty"`          // users.expertise (JSON)
    DailyRateCents    int64     `json:"daily_rate_cents,omitempty"`   // users.daily_rate_cents
    TravelPreferences []string  `json:"travel_preferences,omitempty"` // users.travel_preferences (JSON)
    Lifecycle         Lifecycle `json:"lifecycle"`                    // users.lifecycle
    CreatedAt         time.Time `json:"created_at"`                   // users.created_at
    UpdatedAt         time.Time `json:"updated_at"`                   // users.updated_at
}

// Summary returns the public subset of the user embedded in other
// resources.
func (u User) Summary() UserSummary {
    return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image, Phone: u.Phone, Address: u.Address}
}

// UserSummary is the hydrated form of a user reference.
type UserSummary struct {
    ID      uint64 `json:"id"`
    Name    string `json:"name"`
    Email   string `json:"email,omitempty"`
    Image   string `json:"image,omitempty"`
    Phone   string `json:"phone,omitempty"`
    Address string `json:"address,omitempty"`
}

// ProfileUpdate carries the self-service profile fields.  Nil pointers
// leave the stored value untouched.
type ProfileUpdate struct {
    Name              *string
    Image             *string
    Phone             *string
    Address           *string
    Bio               *string
    Languages         []string
    Expertise         []string
    DailyRateCents    *int64
    TravelPreferences []string
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
