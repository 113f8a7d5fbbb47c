package brackets

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/Dosada05/league-engine/models"
)

type GenerateBracketParams struct {
	LeagueID int
	Round    *models.Round
	Config   FormatConfig
	Teams    []*models.Team
	Rand     *rand.Rand
}

// BracketMatch is a match produced by a generator before it has a database id.
// DependsOn references other matches of the same output by UID.
type BracketMatch struct {
	UID        string
	GroupLabel string
	DependsOn  []string
	Match      *models.Match
}

type GeneratedBracket struct {
	Groups      []*models.Group
	Matches     []*BracketMatch
	Byes        []int
	TotalStages int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*GeneratedBracket, error)

	GetName() string
}

// ContinueStageParams carries a started round back into its generator.
type ContinueStageParams struct {
	Round   *models.Round
	Config  FormatConfig
	Groups  []*models.Group
	Matches []*models.Match
	Rand    *rand.Rand
}

// StageContinuer is implemented by formats whose rounds grow after the first
// stage: twice-to-beat deciders, third-place stages and double elimination.
type StageContinuer interface {
	ContinueStage(ctx context.Context, params ContinueStageParams) (*GeneratedBracket, error)
}

// NewGenerator returns the generator for a format type.
func NewGenerator(formatType FormatType) (BracketGenerator, error) {
	switch formatType {
	case FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	case FormatKnockout:
		return NewKnockoutGenerator(), nil
	case FormatBestOf:
		return NewBestOfGenerator(), nil
	case FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case FormatTwiceToBeat:
		return NewTwiceToBeatGenerator(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, formatType)
}

// NewSeededRand builds the random source generators shuffle with.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func checkParams(params GenerateBracketParams, want FormatType) error {
	if params.Round == nil {
		return fmt.Errorf("%w: round is required", ErrInternalInvariant)
	}
	if params.Config.Type != want || params.Config.variant() == nil {
		return fmt.Errorf("%w: %s generator got %q config", ErrInvalidFormatConfig, want, params.Config.Type)
	}
	if params.Rand == nil {
		return fmt.Errorf("%w: random source is required", ErrInternalInvariant)
	}
	seen := make(map[int]bool, len(params.Teams))
	for _, t := range params.Teams {
		if t.CategoryID != params.Round.CategoryID {
			return fmt.Errorf("%w: team %d is registered in category %d, round %d belongs to %d",
				ErrTeamNotInCategory, t.ID, t.CategoryID, params.Round.ID, params.Round.CategoryID)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: team %d listed twice", ErrInternalInvariant, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// newSystemMatch fills the fields every generated match shares.
func newSystemMatch(round *models.Round, stage int, uid, display string, home, away int) *models.Match {
	return &models.Match{
		CategoryID:  round.CategoryID,
		RoundID:     round.ID,
		BracketUID:  uid,
		HomeTeamID:  models.IntPtr(home),
		AwayTeamID:  models.IntPtr(away),
		Status:      models.MatchStatusUnscheduled,
		StageNumber: stage,
		GeneratedBy: models.GeneratedBySystem,
		DisplayName: display,
	}
}

func matchUID(stage int, group string, n int) string {
	return fmt.Sprintf("S%d-%s-M%d", stage, group, n)
}
