package brackets

import (
	"fmt"

	"github.com/Dosada05/league-engine/models"
)

// Placement pins a team to a fixed final rank.
type Placement struct {
	TeamID   int  `json:"team_id"`
	Rank     int  `json:"rank"`
	Champion bool `json:"champion"`
}

type FinalizeParams struct {
	// RoundID is recorded as eliminated_in_round; zero leaves it unset.
	RoundID int
	// Teams are all accepted teams of the category.
	Teams      []*models.Team
	Placements []Placement
	// Eliminated in elimination order; each gets the worst free rank.
	Eliminated []int
}

type FinalizeResult struct {
	Updated []*models.Team
	Ranked  int
}

// PlacementsFor turns a decided final and third-place series into fixed ranks.
func PlacementsFor(final, thirdPlace *SeriesResult) []Placement {
	var out []Placement
	if final != nil {
		if r, ok := final.Resolved(); ok {
			out = append(out,
				Placement{TeamID: r.Winner, Rank: 1, Champion: true},
				Placement{TeamID: r.Loser, Rank: 2})
		}
	}
	if thirdPlace != nil {
		if r, ok := thirdPlace.Resolved(); ok {
			out = append(out,
				Placement{TeamID: r.Winner, Rank: 3},
				Placement{TeamID: r.Loser, Rank: 4})
		}
	}
	return out
}

// Finalize writes ranks and flags. Fixed placements go first, then each
// eliminated team receives the highest free rank, which is total minus the
// number of teams already ranked while ranks fill from the bottom. Teams that
// already hold a rank are left as they are.
func Finalize(params FinalizeParams) (*FinalizeResult, error) {
	teams := make(map[int]*models.Team, len(params.Teams))
	taken := make(map[int]int)
	championID := 0
	for _, t := range params.Teams {
		c := *t
		teams[t.ID] = &c
		if t.FinalRank != nil {
			taken[*t.FinalRank] = t.ID
		}
		if t.IsChampion {
			championID = t.ID
		}
	}
	total := len(params.Teams)

	res := &FinalizeResult{}
	touched := make(map[int]bool)
	order := make([]int, 0)
	touch := func(id int) {
		if !touched[id] {
			touched[id] = true
			order = append(order, id)
		}
	}
	assign := func(t *models.Team, rank int) error {
		if rank < 1 || rank > total {
			return fmt.Errorf("%w: rank %d outside 1..%d for team %d", ErrInternalInvariant, rank, total, t.ID)
		}
		if holder, ok := taken[rank]; ok && holder != t.ID {
			return fmt.Errorf("%w: rank %d already held by team %d", ErrInternalInvariant, rank, holder)
		}
		t.FinalRank = models.IntPtr(rank)
		taken[rank] = t.ID
		res.Ranked++
		return nil
	}
	needsElimination := func(t *models.Team) bool {
		return !t.IsEliminated || (t.EliminatedInRound == nil && params.RoundID != 0)
	}
	eliminate := func(t *models.Team) {
		t.IsEliminated = true
		if t.EliminatedInRound == nil && params.RoundID != 0 {
			t.EliminatedInRound = models.IntPtr(params.RoundID)
		}
	}

	placed := make(map[int]bool, len(params.Placements))
	for _, p := range params.Placements {
		t, ok := teams[p.TeamID]
		if !ok {
			return nil, fmt.Errorf("%w: team %d", ErrTeamNotInCategory, p.TeamID)
		}
		placed[p.TeamID] = true
		changed := false
		switch {
		case t.FinalRank == nil:
			if err := assign(t, p.Rank); err != nil {
				return nil, err
			}
			changed = true
		case *t.FinalRank != p.Rank:
			return nil, fmt.Errorf("%w: team %d already ranked %d, cannot place %d", ErrInternalInvariant, t.ID, *t.FinalRank, p.Rank)
		}
		if p.Champion {
			if championID != 0 && championID != t.ID {
				return nil, fmt.Errorf("%w: team %d is already champion", ErrInternalInvariant, championID)
			}
			if !t.IsChampion {
				t.IsChampion = true
				championID = t.ID
				changed = true
			}
		} else if needsElimination(t) {
			eliminate(t)
			changed = true
		}
		if changed {
			touch(t.ID)
		}
	}

	for _, id := range params.Eliminated {
		if placed[id] {
			continue
		}
		t, ok := teams[id]
		if !ok {
			return nil, fmt.Errorf("%w: team %d", ErrTeamNotInCategory, id)
		}
		if t.IsChampion {
			return nil, fmt.Errorf("%w: champion %d cannot be eliminated", ErrInternalInvariant, id)
		}
		if t.FinalRank == nil {
			rank := total
			for rank > 0 && taken[rank] != 0 {
				rank--
			}
			if err := assign(t, rank); err != nil {
				return nil, err
			}
			touch(id)
		}
		if needsElimination(t) {
			eliminate(t)
			touch(id)
		}
	}

	for _, id := range order {
		res.Updated = append(res.Updated, teams[id])
	}
	return res, nil
}
