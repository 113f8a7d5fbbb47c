package brackets

import (
	"sort"

	"github.com/Dosada05/league-engine/models"
)

// Points awarded per game when a round robin ranks on points.
const (
	PointsForWin  = 2
	PointsForDraw = 1
	PointsForLoss = 1
)

// PointsFor returns the points a team earns for a finished game.
func PointsFor(scored, conceded int) int {
	switch {
	case scored > conceded:
		return PointsForWin
	case scored == conceded:
		return PointsForDraw
	}
	return PointsForLoss
}

type Standing struct {
	TeamID   int `json:"team_id"`
	Played   int `json:"played"`
	Wins     int `json:"wins"`
	Draws    int `json:"draws"`
	Losses   int `json:"losses"`
	Points   int `json:"points"`
	Scored   int `json:"scored"`
	Conceded int `json:"conceded"`
}

func (s Standing) Differential() int { return s.Scored - s.Conceded }

// ComputeStandings ranks teamIDs on the completed, non-cancelled matches among
// them. Unplayed games are ignored rather than counted as losses.
func ComputeStandings(teamIDs []int, matches []*models.Match, usePoints bool) []Standing {
	index := make(map[int]int, len(teamIDs))
	table := make([]Standing, len(teamIDs))
	for i, id := range teamIDs {
		index[id] = i
		table[i].TeamID = id
	}

	for _, m := range matches {
		if !m.IsCompleted() || m.HomeTeamID == nil || m.AwayTeamID == nil || m.HomeScore == nil || m.AwayScore == nil {
			continue
		}
		hi, okH := index[*m.HomeTeamID]
		ai, okA := index[*m.AwayTeamID]
		if !okH || !okA {
			continue
		}
		record(&table[hi], *m.HomeScore, *m.AwayScore)
		record(&table[ai], *m.AwayScore, *m.HomeScore)
	}

	if usePoints {
		sort.SliceStable(table, func(i, j int) bool {
			a, b := table[i], table[j]
			if a.Points != b.Points {
				return a.Points > b.Points
			}
			if a.Differential() != b.Differential() {
				return a.Differential() > b.Differential()
			}
			return a.Scored > b.Scored
		})
		applyHeadToHead(table, matches)
		return table
	}

	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Draws != b.Draws {
			return a.Draws > b.Draws
		}
		return a.Losses > b.Losses
	})
	return table
}

func record(s *Standing, scored, conceded int) {
	s.Played++
	s.Scored += scored
	s.Conceded += conceded
	s.Points += PointsFor(scored, conceded)
	switch {
	case scored > conceded:
		s.Wins++
	case scored == conceded:
		s.Draws++
	default:
		s.Losses++
	}
}

// applyHeadToHead reorders every run of teams level on points by the games
// they won against each other. Teams that never met keep their order.
func applyHeadToHead(table []Standing, matches []*models.Match) {
	for i := 0; i < len(table); {
		j := i + 1
		for j < len(table) && table[j].Points == table[i].Points {
			j++
		}
		if j-i > 1 {
			run := table[i:j]
			tied := make(map[int]bool, len(run))
			for _, s := range run {
				tied[s.TeamID] = true
			}
			h2h := make(map[int]int, len(run))
			for _, m := range matches {
				if !m.IsResolved() || !tied[*m.WinnerID] || !tied[*m.LoserID] {
					continue
				}
				h2h[*m.WinnerID]++
			}
			sort.SliceStable(run, func(a, b int) bool {
				return h2h[run[a].TeamID] > h2h[run[b].TeamID]
			})
		}
		i = j
	}
}
