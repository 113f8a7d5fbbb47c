package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return string(FormatDoubleElimination)
}

// GenerateBracket draws stage 1: a shuffled winners bracket per group. Later
// stages come from ContinueStage once the current one is decided.
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error) {
	if err := checkParams(params, FormatDoubleElimination); err != nil {
		return nil, err
	}
	cfg := params.Config.DoubleElimination
	out := &GeneratedBracket{TotalStages: 1}
	if len(params.Teams) < 2 {
		return out, nil
	}

	dealt := partition(shuffleTeams(params.Rand, params.Teams), cfg.GroupCount)
	out.Groups = groupsFrom(params.Round, dealt)
	for _, group := range out.Groups {
		pairs, bye := pairUp(group.TeamIDs)
		if bye != nil {
			out.Byes = append(out.Byes, *bye)
		}
		for i, p := range pairs {
			out.Matches = append(out.Matches, deMatch(params.Round, 1, group.Label, len(out.Groups), models.BracketSideWinners, i+1, p))
		}
	}
	return out, nil
}

// ContinueStage draws the next stage from loss counts: winners-bracket teams
// meet each other, losers-bracket teams meet each other, and the last team
// of each side meet in the grand final.
func (g *DoubleEliminationGenerator) ContinueStage(ctx context.Context, params ContinueStageParams) (*GeneratedBracket, error) {
	cfg := params.Config.DoubleElimination
	stage := params.Round.CurrentStage + 1
	out := &GeneratedBracket{TotalStages: stage}

	states := doubleEliminationStates(params.Groups, params.Matches, cfg.MaxLoss)
	for _, st := range states {
		survivors := st.survivors()
		if len(survivors) <= cfg.AdvancesPerGroup {
			continue
		}
		var winners, losers []int
		for _, id := range survivors {
			if st.losses[id] == 0 {
				winners = append(winners, id)
			} else {
				losers = append(losers, id)
			}
		}
		sort.SliceStable(losers, func(i, j int) bool { return st.losses[losers[i]] < st.losses[losers[j]] })

		deciding := len(states) == 1 && cfg.AdvancesPerGroup == 1 && len(survivors) == 2
		if len(winners) == 1 && len(losers) == 1 {
			uid := fmt.Sprintf("S%d-%s-GF", stage, st.label)
			m := newSystemMatch(params.Round, stage, uid, prefixGroup(st.label, len(states), "Grand Final"), winners[0], losers[0])
			m.IsElimination = true
			m.IsFinal = deciding
			out.Matches = append(out.Matches, &BracketMatch{UID: uid, GroupLabel: st.label, Match: m})
			continue
		}
		if len(winners) >= 2 {
			pairs, _ := pairUp(winners)
			for i, p := range pairs {
				out.Matches = append(out.Matches, deMatch(params.Round, stage, st.label, len(states), models.BracketSideWinners, i+1, p))
			}
		}
		if len(losers) >= 2 {
			pairs, _ := pairUp(losers)
			for i, p := range pairs {
				bm := deMatch(params.Round, stage, st.label, len(states), models.BracketSideLosers, i+1, p)
				bm.Match.IsFinal = deciding && len(winners) == 0
				out.Matches = append(out.Matches, bm)
			}
		}
	}
	if len(out.Matches) == 0 {
		return nil, fmt.Errorf("%w: round %d has no further double elimination stage", ErrInternalInvariant, params.Round.ID)
	}
	return out, nil
}

func deMatch(round *models.Round, stage int, label string, groupCount int, side models.BracketSide, n int, p pairing) *BracketMatch {
	short, name := "W", "Winners Bracket"
	if side == models.BracketSideLosers {
		short, name = "L", "Losers Bracket"
	}
	uid := fmt.Sprintf("S%d-%s-%s%d", stage, label, short, n)
	display := prefixGroup(label, groupCount, fmt.Sprintf("%s - Match %d", name, n))
	m := newSystemMatch(round, stage, uid, display, p.home, p.away)
	m.IsElimination = true
	s := side
	m.BracketSide = &s
	return &BracketMatch{UID: uid, GroupLabel: label, Match: m}
}

func prefixGroup(label string, groupCount int, name string) string {
	if groupCount > 1 {
		return fmt.Sprintf("Group %s %s", label, name)
	}
	return name
}

type doubleEliminationState struct {
	label      string
	order      []int
	losses     map[int]int
	eliminated []int
	maxLoss    int
}

func (s *doubleEliminationState) survivors() []int {
	out := make([]int, 0, len(s.order))
	for _, id := range s.order {
		if s.losses[id] < s.maxLoss {
			out = append(out, id)
		}
	}
	return out
}

// doubleEliminationStates replays the decided matches of each group in
// resolution order. Teams are eliminated the moment they reach maxLoss.
func doubleEliminationStates(groups []*models.Group, matches []*models.Match, maxLoss int) []*doubleEliminationState {
	buckets := bucketByGroup(groups, matches)
	states := make([]*doubleEliminationState, 0, len(buckets))
	for _, b := range buckets {
		st := &doubleEliminationState{
			label:   b.label,
			order:   b.teams,
			losses:  make(map[int]int, len(b.teams)),
			maxLoss: maxLoss,
		}
		for _, m := range resolutionOrder(b.matches) {
			st.losses[*m.LoserID]++
			if st.losses[*m.LoserID] == maxLoss {
				st.eliminated = append(st.eliminated, *m.LoserID)
			}
		}
		states = append(states, st)
	}
	return states
}
