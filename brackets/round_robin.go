package brackets

import (
	"context"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return string(FormatRoundRobin)
}

// GenerateBracket deals shuffled teams into groups and schedules every
// unordered pair inside each group once.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error) {
	if err := checkParams(params, FormatRoundRobin); err != nil {
		return nil, err
	}
	out := &GeneratedBracket{TotalStages: 1}
	if len(params.Teams) < 2 {
		return out, nil
	}

	dealt := partition(shuffleTeams(params.Rand, params.Teams), params.Config.RoundRobin.GroupCount)
	out.Groups = groupsFrom(params.Round, dealt)

	for _, group := range out.Groups {
		display := group.DisplayName(len(out.Groups))
		n := 0
		for i := 0; i < len(group.TeamIDs); i++ {
			for j := i + 1; j < len(group.TeamIDs); j++ {
				n++
				uid := matchUID(1, group.Label, n)
				out.Matches = append(out.Matches, &BracketMatch{
					UID:        uid,
					GroupLabel: group.Label,
					Match:      newSystemMatch(params.Round, 1, uid, display, group.TeamIDs[i], group.TeamIDs[j]),
				})
			}
		}
	}
	return out, nil
}
