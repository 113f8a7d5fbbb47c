package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/league-engine/models"
)

const twiceToBeatDisplay = "Twice-to-Beat Finals"

type TwiceToBeatGenerator struct{}

func NewTwiceToBeatGenerator() BracketGenerator {
	return &TwiceToBeatGenerator{}
}

func (g *TwiceToBeatGenerator) GetName() string {
	return string(FormatTwiceToBeat)
}

// GenerateBracket creates game 1 between the advantaged team (home) and the
// challenger. Game 2 only exists if the challenger takes game 1.
func (g *TwiceToBeatGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error) {
	if err := checkParams(params, FormatTwiceToBeat); err != nil {
		return nil, err
	}
	cfg := params.Config.TwiceToBeat
	present := make(map[int]bool, len(params.Teams))
	for _, t := range params.Teams {
		present[t.ID] = true
	}
	for _, id := range []int{cfg.AdvantagedTeam, cfg.ChallengerTeam} {
		if !present[id] {
			return nil, fmt.Errorf("%w: team %d is not an eligible team of category %d",
				ErrTeamNotInCategory, id, params.Round.CategoryID)
		}
	}

	uid := "S1-TTB-G1"
	m := newSystemMatch(params.Round, 1, uid, twiceToBeatDisplay, cfg.AdvantagedTeam, cfg.ChallengerTeam)
	m.IsFinal = true
	m.IsElimination = true
	return &GeneratedBracket{
		Matches:     []*BracketMatch{{UID: uid, Match: m}},
		TotalStages: cfg.MaxGames,
	}, nil
}

// ContinueStage creates the deciding game after the challenger won game 1.
func (g *TwiceToBeatGenerator) ContinueStage(ctx context.Context, params ContinueStageParams) (*GeneratedBracket, error) {
	cfg := params.Config.TwiceToBeat
	var first *models.Match
	for _, m := range params.Matches {
		if m.IsCancelled() {
			continue
		}
		if m.StageNumber > 1 {
			return nil, fmt.Errorf("%w: twice-to-beat decider already exists", ErrInternalInvariant)
		}
		first = m
	}
	if first == nil || !first.IsResolved() || *first.WinnerID != cfg.ChallengerTeam {
		return nil, fmt.Errorf("%w: decider requires a challenger win in game 1", ErrInternalInvariant)
	}

	uid := "S2-TTB-G2"
	m := newSystemMatch(params.Round, 2, uid, twiceToBeatDisplay+" - Game 2", cfg.AdvantagedTeam, cfg.ChallengerTeam)
	m.IsFinal = true
	m.IsElimination = true
	m.DependsOn = []int{first.ID}
	return &GeneratedBracket{
		Matches:     []*BracketMatch{{UID: uid, Match: m}},
		TotalStages: cfg.MaxGames,
	}, nil
}
