package brackets

import (
	"math/rand/v2"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

func shuffleTeams(r *rand.Rand, teams []*models.Team) []*models.Team {
	out := make([]*models.Team, len(teams))
	copy(out, teams)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// rankTeams orders teams by (points, wins, draws, losses), each descending.
// Equal teams keep their input order.
func rankTeams(teams []*models.Team) []*models.Team {
	out := make([]*models.Team, len(teams))
	copy(out, teams)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Draws != b.Draws {
			return a.Draws > b.Draws
		}
		return a.Losses > b.Losses
	})
	return out
}

func orderBySeeding(r *rand.Rand, teams []*models.Team, seeding Seeding) []*models.Team {
	if seeding == SeedingRanking {
		return rankTeams(teams)
	}
	return shuffleTeams(r, teams)
}

// partition deals teams into groupCount groups one at a time. More groups than
// teams collapses into a single group.
func partition(teams []*models.Team, groupCount int) [][]*models.Team {
	if groupCount < 1 || groupCount > len(teams) {
		groupCount = 1
	}
	groups := make([][]*models.Team, groupCount)
	for i, t := range teams {
		groups[i%groupCount] = append(groups[i%groupCount], t)
	}
	return groups
}

// groupLabel maps 0, 1, ... 25, 26 to A, B, ... Z, AA.
func groupLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}

func teamIDs(teams []*models.Team) []int {
	ids := make([]int, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return ids
}

type pairing struct {
	home, away int
}

// pairUp pairs (0,1), (2,3), ... and returns the unpaired last id, if any.
func pairUp(ids []int) ([]pairing, *int) {
	pairs := make([]pairing, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		pairs = append(pairs, pairing{home: ids[i], away: ids[i+1]})
	}
	if len(ids)%2 == 1 {
		bye := ids[len(ids)-1]
		return pairs, &bye
	}
	return pairs, nil
}

func groupsFrom(round *models.Round, dealt [][]*models.Team) []*models.Group {
	groups := make([]*models.Group, len(dealt))
	for i, members := range dealt {
		groups[i] = &models.Group{
			RoundID: round.ID,
			Label:   groupLabel(i),
			TeamIDs: teamIDs(members),
		}
	}
	return groups
}
