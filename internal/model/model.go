package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	EventStatusUpcoming  = "upcoming"
	EventStatusLive      = "live"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

const (
	TicketStatusConfirmed = "confirmed"
	TicketStatusCancelled = "cancelled"
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Event struct {
	ID               int64
	Title            string
	Description      string
	Venue            string
	Date             time.Time
	TotalTickets     int
	AvailableTickets int
	Price            float64
	Status           string
	CreatedBy        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OnSale reports whether tickets for the event can currently be purchased.
func (e Event) OnSale() bool {
	return e.Status == EventStatusUpcoming || e.Status == EventStatusLive
}

type Ticket struct {
	ID            int64
	EventID       int64
	UserID        *int64
	Quantity      int
	PurchasePrice float64
	Status        string
	CreatedAt     time.Time
}

// Session is one ledger row per issued token. Only the SHA-256 hash of the
// raw token is stored; a session is honored iff it is not revoked and has
// not passed its expiry.
type Session struct {
	ID         string
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	IsRevoked  bool
	RevokedAt  *time.Time
	DeviceInfo *string
	IPAddress  *string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Valid reports whether the session should still be honored at the given
// instant, independent of the token's own signed expiry.
func (s Session) Valid(now time.Time) bool {
	return !s.IsRevoked && s.ExpiresAt.After(now)
}

func IsValidEventStatus(status string) bool {
	switch status {
	case EventStatusUpcoming, EventStatusLive, EventStatusCompleted, EventStatusCancelled:
		return true
	default:
		return false
	}
}
