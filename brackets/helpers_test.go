package brackets

import (
	"time"

	"github.com/Dosada05/league-engine/models"
)

const testCategoryID = 1

var baseTime = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func testRound() *models.Round {
	return &models.Round{ID: 10, CategoryID: testCategoryID, CurrentStage: 1, TotalStages: 1, Status: models.RoundStatusOngoing}
}

func testTeams(ids ...int) []*models.Team {
	teams := make([]*models.Team, len(ids))
	for i, id := range ids {
		teams[i] = &models.Team{ID: id, CategoryID: testCategoryID, Name: "Team", Status: models.TeamStatusAccepted}
	}
	return teams
}

func seqTeams(n int) []*models.Team {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return testTeams(ids...)
}

func pending(id, home, away int) *models.Match {
	return &models.Match{
		ID:          id,
		CategoryID:  testCategoryID,
		RoundID:     10,
		HomeTeamID:  models.IntPtr(home),
		AwayTeamID:  models.IntPtr(away),
		Status:      models.MatchStatusScheduled,
		StageNumber: 1,
	}
}

// played returns a completed match; completion times follow the id.
func played(id, home, away, homeScore, awayScore int) *models.Match {
	m := pending(id, home, away)
	m.ApplyScore(homeScore, awayScore)
	m.Status = models.MatchStatusCompleted
	at := baseTime.Add(time.Duration(id) * time.Minute)
	m.CompletedAt = &at
	return m
}

// fromBracket turns generated matches into stored ones with sequential ids.
func fromBracket(out *GeneratedBracket, firstID int) []*models.Match {
	matches := make([]*models.Match, len(out.Matches))
	for i, bm := range out.Matches {
		m := bm.Match.Clone()
		m.ID = firstID + i
		matches[i] = m
	}
	return matches
}

func complete(m *models.Match, homeScore, awayScore int) {
	m.ApplyScore(homeScore, awayScore)
	m.Status = models.MatchStatusCompleted
	at := baseTime.Add(time.Duration(m.ID) * time.Minute)
	m.CompletedAt = &at
}
