package models

import "time"

type MatchStatus string

const (
	MatchStatusUnscheduled MatchStatus = "Unscheduled"
	MatchStatusScheduled   MatchStatus = "Scheduled"
	MatchStatusInProgress  MatchStatus = "InProgress"
	MatchStatusCompleted   MatchStatus = "Completed"
	MatchStatusCancelled   MatchStatus = "Cancelled"
	MatchStatusPostponed   MatchStatus = "Postponed"
)

type GeneratedBy string

const (
	GeneratedBySystem GeneratedBy = "system"
	GeneratedByManual GeneratedBy = "manual"
	GeneratedByAI     GeneratedBy = "ai"
)

type BracketSide string

const (
	BracketSideWinners BracketSide = "winners"
	BracketSideLosers  BracketSide = "losers"
)

type Match struct {
	ID         int    `json:"id" db:"id"`
	CategoryID int    `json:"category_id" db:"category_id"`
	RoundID    int    `json:"round_id" db:"round_id"`
	GroupID    *int   `json:"group_id,omitempty" db:"group_id"`
	BracketUID string `json:"bracket_uid" db:"bracket_uid"`

	HomeTeamID *int `json:"home_team_id,omitempty" db:"home_team_id"`
	AwayTeamID *int `json:"away_team_id,omitempty" db:"away_team_id"`
	HomeScore  *int `json:"home_score,omitempty" db:"home_score"`
	AwayScore  *int `json:"away_score,omitempty" db:"away_score"`
	WinnerID   *int `json:"winner_id,omitempty" db:"winner_id"`
	LoserID    *int `json:"loser_id,omitempty" db:"loser_id"`

	Status        MatchStatus  `json:"status" db:"status"`
	StageNumber   int          `json:"stage_number" db:"stage_number"`
	IsFinal       bool         `json:"is_final" db:"is_final"`
	IsThirdPlace  bool         `json:"is_third_place" db:"is_third_place"`
	IsElimination bool         `json:"is_elimination" db:"is_elimination"`
	IsRunnerUp    bool         `json:"is_runner_up" db:"is_runner_up"`
	DependsOn     []int        `json:"depends_on" db:"depends_on"`
	GeneratedBy   GeneratedBy  `json:"generated_by" db:"generated_by"`
	BracketSide   *BracketSide `json:"bracket_side,omitempty" db:"bracket_side"`
	DisplayName   string       `json:"display_name" db:"display_name"`

	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

func (m *Match) IsCompleted() bool { return m.Status == MatchStatusCompleted }

func (m *Match) IsCancelled() bool { return m.Status == MatchStatusCancelled }

// IsResolved is true once a completed match has a decided winner.
func (m *Match) IsResolved() bool {
	return m.IsCompleted() && m.WinnerID != nil && m.LoserID != nil
}

// HasTeam reports whether teamID occupies either slot.
func (m *Match) HasTeam(teamID int) bool {
	return (m.HomeTeamID != nil && *m.HomeTeamID == teamID) ||
		(m.AwayTeamID != nil && *m.AwayTeamID == teamID)
}

// ApplyScore stores the scores and derives winner and loser. Equal scores leave
// both unset.
func (m *Match) ApplyScore(home, away int) {
	m.HomeScore = &home
	m.AwayScore = &away
	m.WinnerID, m.LoserID = nil, nil
	if m.HomeTeamID == nil || m.AwayTeamID == nil {
		return
	}
	switch {
	case home > away:
		w, l := *m.HomeTeamID, *m.AwayTeamID
		m.WinnerID, m.LoserID = &w, &l
	case away > home:
		w, l := *m.AwayTeamID, *m.HomeTeamID
		m.WinnerID, m.LoserID = &w, &l
	}
}

// Clone returns a copy that shares no pointers with m.
func (m *Match) Clone() *Match {
	c := *m
	c.GroupID = cloneInt(m.GroupID)
	c.HomeTeamID = cloneInt(m.HomeTeamID)
	c.AwayTeamID = cloneInt(m.AwayTeamID)
	c.HomeScore = cloneInt(m.HomeScore)
	c.AwayScore = cloneInt(m.AwayScore)
	c.WinnerID = cloneInt(m.WinnerID)
	c.LoserID = cloneInt(m.LoserID)
	if m.DependsOn != nil {
		c.DependsOn = append([]int(nil), m.DependsOn...)
	}
	if m.BracketSide != nil {
		s := *m.BracketSide
		c.BracketSide = &s
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a small helper for optional ids.
func IntPtr(v int) *int { return &v }
