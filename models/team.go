package models

import "time"

type TeamStatus string

const (
	TeamStatusPending  TeamStatus = "pending"
	TeamStatusAccepted TeamStatus = "accepted"
	TeamStatusRejected TeamStatus = "rejected"
)

// Team is a team registered into a single category. Counters are maintained by
// score entry, the flags and rank by the progression engine.
type Team struct {
	ID         int        `json:"id" db:"id"`
	CategoryID int        `json:"category_id" db:"category_id"`
	Name       string     `json:"name" db:"name"`
	Status     TeamStatus `json:"status" db:"status"`

	Wins   int `json:"wins" db:"wins"`
	Losses int `json:"losses" db:"losses"`
	Draws  int `json:"draws" db:"draws"`
	Points int `json:"points" db:"points"`

	IsEliminated      bool `json:"is_eliminated" db:"is_eliminated"`
	IsChampion        bool `json:"is_champion" db:"is_champion"`
	FinalRank         *int `json:"final_rank,omitempty" db:"final_rank"`
	EliminatedInRound *int `json:"eliminated_in_round,omitempty" db:"eliminated_in_round"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ClearProgress drops everything the engine has written on the team.
func (t *Team) ClearProgress() {
	t.IsEliminated = false
	t.IsChampion = false
	t.FinalRank = nil
	t.EliminatedInRound = nil
}

// TeamFilter narrows category team listings.
type TeamFilter struct {
	AcceptedOnly  bool
	NotEliminated bool
}
