package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

type KnockoutGenerator struct{}

func NewKnockoutGenerator() BracketGenerator {
	return &KnockoutGenerator{}
}

func (g *KnockoutGenerator) GetName() string {
	return string(FormatKnockout)
}

// GenerateBracket deals teams into groups and pairs them by seed inside each
// group. A twice-to-beat series
// config produces two games per pairing; the second depends on the first.
func (g *KnockoutGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error) {
	if err := checkParams(params, FormatKnockout); err != nil {
		return nil, err
	}
	cfg := params.Config.Knockout
	out := &GeneratedBracket{TotalStages: 1}
	if len(params.Teams) < 2 {
		return out, nil
	}

	// Groups are dealt from a shuffle; seeding only orders teams inside a group.
	dealt := partition(shuffleTeams(params.Rand, params.Teams), cfg.GroupCount)
	for i := range dealt {
		dealt[i] = orderBySeeding(params.Rand, dealt[i], cfg.Seeding)
	}
	out.Groups = groupsFrom(params.Round, dealt)

	type groupPairs struct {
		label string
		pairs []pairing
	}
	all := make([]groupPairs, 0, len(out.Groups))
	totalPairs := 0
	for _, group := range out.Groups {
		pairs, bye := pairUp(group.TeamIDs)
		if bye != nil {
			out.Byes = append(out.Byes, *bye)
		}
		all = append(all, groupPairs{label: group.Label, pairs: pairs})
		totalPairs += len(pairs)
	}

	thirdPlace := params.Round.HasThirdPlace && totalPairs == 2 && len(out.Groups) == 1 &&
		len(out.Byes) == 0 && !cfg.IsTwiceToBeatSeries()
	if thirdPlace {
		out.TotalStages = 2
	}

	for _, gp := range all {
		for i, p := range gp.pairs {
			display := knockoutDisplay(gp.label, len(out.Groups), i+1, thirdPlace)
			uid := matchUID(1, gp.label, i+1)
			if !cfg.IsTwiceToBeatSeries() {
				m := newSystemMatch(params.Round, 1, uid, display, p.home, p.away)
				m.IsElimination = true
				m.IsFinal = totalPairs == 1 && len(out.Byes) == 0
				out.Matches = append(out.Matches, &BracketMatch{UID: uid, GroupLabel: gp.label, Match: m})
				continue
			}
			out.Matches = append(out.Matches, twiceToBeatSeries(params.Round, uid, display, gp.label, p)...)
		}
	}
	return out, nil
}

// ContinueStage adds the final and the third-place game once both semifinals
// of a third-place round are decided.
func (g *KnockoutGenerator) ContinueStage(ctx context.Context, params ContinueStageParams) (*GeneratedBracket, error) {
	if params.Round.CurrentStage >= params.Round.TotalStages {
		return nil, fmt.Errorf("%w: round %d has no stage after %d", ErrInternalInvariant, params.Round.ID, params.Round.CurrentStage)
	}
	semis := make([]*models.Match, 0, 2)
	for _, m := range params.Matches {
		if m.StageNumber == 1 && !m.IsCancelled() {
			semis = append(semis, m)
		}
	}
	sort.Slice(semis, func(i, j int) bool { return semis[i].ID < semis[j].ID })
	if len(semis) != 2 || !semis[0].IsResolved() || !semis[1].IsResolved() {
		return nil, fmt.Errorf("%w: third-place stage needs two decided semifinals", ErrInternalInvariant)
	}

	label := "A"
	if len(params.Groups) > 0 {
		label = params.Groups[0].Label
	}
	finalUID := matchUID(2, label, 1)
	final := newSystemMatch(params.Round, 2, finalUID, "Final", *semis[0].WinnerID, *semis[1].WinnerID)
	final.IsFinal = true
	final.IsElimination = true
	final.DependsOn = []int{semis[0].ID, semis[1].ID}

	thirdUID := matchUID(2, label, 2)
	third := newSystemMatch(params.Round, 2, thirdUID, "Third Place", *semis[0].LoserID, *semis[1].LoserID)
	third.IsThirdPlace = true
	third.IsElimination = true
	third.DependsOn = []int{semis[0].ID, semis[1].ID}

	return &GeneratedBracket{
		Matches: []*BracketMatch{
			{UID: finalUID, GroupLabel: label, Match: final},
			{UID: thirdUID, GroupLabel: label, Match: third},
		},
		TotalStages: params.Round.TotalStages,
	}, nil
}

func knockoutDisplay(label string, groupCount, n int, semifinal bool) string {
	switch {
	case semifinal:
		return fmt.Sprintf("Semifinal %d", n)
	case groupCount > 1:
		return fmt.Sprintf("Group %s - Match %d", label, n)
	}
	return fmt.Sprintf("Match %d", n)
}

func twiceToBeatSeries(round *models.Round, uid, display, label string, p pairing) []*BracketMatch {
	first := newSystemMatch(round, 1, uid+"-G1", display+" - Game 1", p.home, p.away)
	first.IsElimination = true
	second := newSystemMatch(round, 1, uid+"-G2", display+" - Game 2", p.home, p.away)
	second.IsElimination = true
	second.IsFinal = true
	return []*BracketMatch{
		{UID: first.BracketUID, GroupLabel: label, Match: first},
		{UID: second.BracketUID, GroupLabel: label, DependsOn: []string{first.BracketUID}, Match: second},
	}
}
