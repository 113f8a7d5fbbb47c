package models

import "time"

type CategoryStatus string

const (
	CategoryStatusRegistration CategoryStatus = "registration"
	CategoryStatusOngoing      CategoryStatus = "ongoing"
	CategoryStatusCompleted    CategoryStatus = "completed"
)

// Category groups teams of one division inside a league. Eligibility fields are
// only read by the external registration validator.
type Category struct {
	ID        int            `json:"id" db:"id"`
	LeagueID  int            `json:"league_id" db:"league_id"`
	Name      string         `json:"name" db:"name"`
	MaxTeam   int            `json:"max_team" db:"max_team"`
	Gender    *string        `json:"gender,omitempty" db:"gender"`
	MinAge    *int           `json:"min_age,omitempty" db:"min_age"`
	MaxAge    *int           `json:"max_age,omitempty" db:"max_age"`
	Status    CategoryStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
