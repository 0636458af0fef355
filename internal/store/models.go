package store

import "time"

// User is an identity-provider record. Claims are named boolean
// authorization signals (admin, institution); everything else about the
// user is opaque to the operation catalog.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Claims       map[string]bool
	CreatedAt    time.Time
}

// Profile is keyed by its human-chosen handle, which is globally unique and
// immutable once claimed. A caller owns at most one profile.
type Profile struct {
	Handle      string
	UserID      string
	PetsWatched []string
	CreatedAt   time.Time
}

type Pet struct {
	ID            string
	Species       string
	Name          string
	Lead          string
	Description   string
	Filters       map[string]any
	ImageURL      string
	InstitutionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Institution is keyed by the identity id of the institution account it
// was created for. Name and city are lowercased at write time.
type Institution struct {
	ID        string
	Name      string
	Email     string
	City      string
	CreatedAt time.Time
}
