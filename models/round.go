package models

import "time"

type RoundStatus string

const (
	RoundStatusUpcoming  RoundStatus = "Upcoming"
	RoundStatusOngoing   RoundStatus = "Ongoing"
	RoundStatusFinished  RoundStatus = "Finished"
	RoundStatusCancelled RoundStatus = "Cancelled"
	RoundStatusPostponed RoundStatus = "Postponed"
)

type Round struct {
	ID               int         `json:"id" db:"id"`
	CategoryID       int         `json:"category_id" db:"category_id"`
	Name             string      `json:"name" db:"name"`
	RoundOrder       int         `json:"round_order" db:"round_order"`
	FormatID         *int        `json:"format_id,omitempty" db:"format_id"`
	Status           RoundStatus `json:"round_status" db:"round_status"`
	MatchesGenerated bool        `json:"matches_generated" db:"matches_generated"`
	CurrentStage     int         `json:"current_stage" db:"current_stage"`
	TotalStages      int         `json:"total_stages" db:"total_stages"`
	NextRoundID      *int        `json:"next_round_id,omitempty" db:"next_round_id"`
	HasThirdPlace    bool        `json:"has_third_place" db:"has_third_place"`
	ByeTeamIDs       []int       `json:"bye_team_ids" db:"bye_team_ids"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`

	Format *Format  `json:"format,omitempty" db:"-"`
	Groups []*Group `json:"groups,omitempty" db:"-"`
}

// IsTerminalStatus reports whether the round accepts no further engine writes
// until it is reset.
func (r *Round) IsTerminalStatus() bool {
	switch r.Status {
	case RoundStatusFinished, RoundStatusCancelled, RoundStatusPostponed:
		return true
	}
	return false
}

// Group is a labelled partition of a round's teams.
type Group struct {
	ID      int    `json:"id" db:"id"`
	RoundID int    `json:"round_id" db:"round_id"`
	Label   string `json:"label" db:"label"`
	TeamIDs []int  `json:"team_ids" db:"team_ids"`
}

// DisplayName is "Group A", or "Elimination Round" when the round is not split.
func (g *Group) DisplayName(groupCount int) string {
	if groupCount <= 1 {
		return "Elimination Round"
	}
	return "Group " + g.Label
}
