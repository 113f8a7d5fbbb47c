package brackets

import (
	"context"
	"fmt"
)

type BestOfGenerator struct{}

func NewBestOfGenerator() BracketGenerator {
	return &BestOfGenerator{}
}

func (g *BestOfGenerator) GetName() string {
	return string(FormatBestOf)
}

// GenerateBracket schedules every game of every series up front. Games left
// unplayed once a series is decided are cancelled on progression.
func (g *BestOfGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error) {
	if err := checkParams(params, FormatBestOf); err != nil {
		return nil, err
	}
	cfg := params.Config.BestOf
	out := &GeneratedBracket{TotalStages: 1}
	if len(params.Teams) < 2 {
		return out, nil
	}

	dealt := partition(shuffleTeams(params.Rand, params.Teams), cfg.GroupCount)
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
	// Only a lone series with nobody on a bye decides the category.
	soleSeries := totalPairs == 1 && len(out.Byes) == 0

	multiplePairs := len(params.Teams) > 3
	for _, gp := range all {
		for pi, p := range gp.pairs {
			var prev string
			for k := 1; k <= cfg.Games; k++ {
				uid := fmt.Sprintf("%s-G%d", matchUID(1, gp.label, pi+1), k)
				display := fmt.Sprintf("Game %d", k)
				if multiplePairs {
					display = fmt.Sprintf("%s - Game %d", knockoutDisplay(gp.label, len(out.Groups), pi+1, false), k)
				}
				m := newSystemMatch(params.Round, 1, uid, display, p.home, p.away)
				m.IsElimination = true
				m.IsFinal = soleSeries && k == cfg.Games
				bm := &BracketMatch{UID: uid, GroupLabel: gp.label, Match: m}
				if prev != "" {
					bm.DependsOn = []string{prev}
				}
				out.Matches = append(out.Matches, bm)
				prev = uid
			}
		}
	}
	return out, nil
}
