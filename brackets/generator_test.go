package brackets

import (
	"context"
	"testing"

	"github.com/Dosada05/league-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rrConfig(groups, advances int) FormatConfig {
	return FormatConfig{Type: FormatRoundRobin, RoundRobin: &RoundRobinConfig{GroupCount: groups, AdvancesPerGroup: advances}}
}

func knockoutConfig(seeding Seeding, series bool) FormatConfig {
	cfg := &KnockoutConfig{GroupCount: 1, Seeding: seeding}
	if series {
		cfg.SeriesConfig = &SeriesConfig{Type: FormatTwiceToBeat}
	}
	return FormatConfig{Type: FormatKnockout, Knockout: cfg}
}

func generate(t *testing.T, cfg FormatConfig, round *models.Round, teams []*models.Team, seed uint64) *GeneratedBracket {
	t.Helper()
	gen, err := NewGenerator(cfg.Type)
	require.NoError(t, err)
	out, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{
		Round: round, Config: cfg, Teams: teams, Rand: NewSeededRand(seed),
	})
	require.NoError(t, err)
	return out
}

func assertNoSelfMatches(t *testing.T, out *GeneratedBracket) {
	t.Helper()
	for _, bm := range out.Matches {
		require.NotNil(t, bm.Match.HomeTeamID)
		require.NotNil(t, bm.Match.AwayTeamID)
		assert.NotEqual(t, *bm.Match.HomeTeamID, *bm.Match.AwayTeamID, bm.UID)
		assert.Equal(t, models.MatchStatusUnscheduled, bm.Match.Status)
		assert.Equal(t, models.GeneratedBySystem, bm.Match.GeneratedBy)
	}
}

func TestRoundRobinGenerator_SingleGroup(t *testing.T) {
	out := generate(t, rrConfig(1, 2), testRound(), seqTeams(5), 7)

	require.Len(t, out.Matches, 10)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "A", out.Groups[0].Label)
	assert.Empty(t, out.Byes)
	assertNoSelfMatches(t, out)

	pairs := make(map[[2]int]int)
	for _, bm := range out.Matches {
		assert.Equal(t, "Elimination Round", bm.Match.DisplayName)
		assert.False(t, bm.Match.IsElimination)
		pairs[pairKey(*bm.Match.HomeTeamID, *bm.Match.AwayTeamID)]++
	}
	assert.Len(t, pairs, 10)
	for _, n := range pairs {
		assert.Equal(t, 1, n)
	}
}

func TestRoundRobinGenerator_Groups(t *testing.T) {
	out := generate(t, rrConfig(2, 1), testRound(), seqTeams(8), 3)

	require.Len(t, out.Groups, 2)
	assert.Equal(t, "A", out.Groups[0].Label)
	assert.Equal(t, "B", out.Groups[1].Label)
	assert.Len(t, out.Groups[0].TeamIDs, 4)
	assert.Len(t, out.Groups[1].TeamIDs, 4)
	require.Len(t, out.Matches, 12)
	for _, bm := range out.Matches {
		assert.Equal(t, "Group "+bm.GroupLabel, bm.Match.DisplayName)
	}
}

func TestRoundRobinGenerator_MoreGroupsThanTeams(t *testing.T) {
	out := generate(t, rrConfig(9, 1), testRound(), seqTeams(4), 1)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "A", out.Groups[0].Label)
	assert.Len(t, out.Matches, 6)
}

func TestGenerators_DeterministicForSeed(t *testing.T) {
	pairsOf := func(out *GeneratedBracket) [][2]int {
		var p [][2]int
		for _, bm := range out.Matches {
			p = append(p, [2]int{*bm.Match.HomeTeamID, *bm.Match.AwayTeamID})
		}
		return p
	}
	for _, cfg := range []FormatConfig{rrConfig(2, 1), knockoutConfig(SeedingRandom, false)} {
		a := generate(t, cfg, testRound(), seqTeams(9), 42)
		b := generate(t, cfg, testRound(), seqTeams(9), 42)
		assert.Equal(t, pairsOf(a), pairsOf(b))
		assert.Equal(t, a.Byes, b.Byes)
	}
}

func TestGenerators_FewerThanTwoTeams(t *testing.T) {
	out := generate(t, knockoutConfig(SeedingRandom, false), testRound(), seqTeams(1), 1)
	assert.Empty(t, out.Matches)
	out = generate(t, rrConfig(1, 1), testRound(), nil, 1)
	assert.Empty(t, out.Matches)
}

func TestGenerators_RejectForeignTeam(t *testing.T) {
	teams := seqTeams(4)
	teams[2].CategoryID = 99
	_, err := NewKnockoutGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Round: testRound(), Config: knockoutConfig(SeedingRandom, false), Teams: teams, Rand: NewSeededRand(1),
	})
	assert.ErrorIs(t, err, ErrTeamNotInCategory)
}

func TestKnockoutGenerator_RankingSeeding(t *testing.T) {
	teams := seqTeams(8)
	for _, tm := range teams {
		tm.Points = tm.ID * 3
	}
	out := generate(t, knockoutConfig(SeedingRanking, false), testRound(), teams, 1)

	require.Len(t, out.Matches, 4)
	want := [][2]int{{8, 7}, {6, 5}, {4, 3}, {2, 1}}
	for i, bm := range out.Matches {
		assert.Equal(t, want[i], [2]int{*bm.Match.HomeTeamID, *bm.Match.AwayTeamID})
		assert.True(t, bm.Match.IsElimination)
		assert.False(t, bm.Match.IsFinal)
	}
}

func TestKnockoutGenerator_RankingSeedingInsideGroups(t *testing.T) {
	teams := seqTeams(8)
	for _, tm := range teams {
		tm.Points = tm.ID * 3
	}
	cfg := knockoutConfig(SeedingRanking, false)
	cfg.Knockout.GroupCount = 2

	out := generate(t, cfg, testRound(), teams, 3)
	require.Len(t, out.Groups, 2)
	byUID := make(map[string]*models.Match, len(out.Matches))
	for _, bm := range out.Matches {
		byUID[bm.UID] = bm.Match
	}
	for _, group := range out.Groups {
		require.Len(t, group.TeamIDs, 4)
		for i := 1; i < len(group.TeamIDs); i++ {
			assert.Greater(t, group.TeamIDs[i-1], group.TeamIDs[i], "group %s is not in seed order", group.Label)
		}
		first := byUID[matchUID(1, group.Label, 1)]
		require.NotNil(t, first)
		assert.Equal(t, [2]int{group.TeamIDs[0], group.TeamIDs[1]}, [2]int{*first.HomeTeamID, *first.AwayTeamID})
	}
}

func TestKnockoutGenerator_OddCountGetsBye(t *testing.T) {
	out := generate(t, knockoutConfig(SeedingRandom, false), testRound(), seqTeams(5), 11)
	assert.Len(t, out.Matches, 2)
	require.Len(t, out.Byes, 1)
	for _, bm := range out.Matches {
		assert.False(t, bm.Match.HasTeam(out.Byes[0]))
	}
}

func TestKnockoutGenerator_SinglePairingIsFinal(t *testing.T) {
	out := generate(t, knockoutConfig(SeedingRandom, false), testRound(), seqTeams(2), 1)
	require.Len(t, out.Matches, 1)
	assert.True(t, out.Matches[0].Match.IsFinal)
}

func TestKnockoutGenerator_SinglePairingWithByeIsNotFinal(t *testing.T) {
	teams := seqTeams(3)
	for _, tm := range teams {
		tm.Points = 10 - tm.ID
	}
	out := generate(t, knockoutConfig(SeedingRanking, false), testRound(), teams, 1)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, []int{3}, out.Byes)
	assert.False(t, out.Matches[0].Match.IsFinal)
}

func TestKnockoutGenerator_TwiceToBeatSeries(t *testing.T) {
	out := generate(t, knockoutConfig(SeedingRanking, true), testRound(), seqTeams(4), 1)

	require.Len(t, out.Matches, 4)
	for i := 0; i < 4; i += 2 {
		first, second := out.Matches[i], out.Matches[i+1]
		assert.Empty(t, first.DependsOn)
		assert.Equal(t, []string{first.UID}, second.DependsOn)
		assert.False(t, first.Match.IsFinal)
		assert.True(t, second.Match.IsFinal)
		assert.Equal(t, *first.Match.HomeTeamID, *second.Match.HomeTeamID)
	}
}

func TestKnockoutGenerator_ThirdPlaceStage(t *testing.T) {
	round := testRound()
	round.HasThirdPlace = true
	out := generate(t, knockoutConfig(SeedingRanking, false), round, seqTeams(4), 1)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, 2, out.TotalStages)
	assert.Equal(t, "Semifinal 1", out.Matches[0].Match.DisplayName)

	matches := fromBracket(out, 100)
	complete(matches[0], 80, 70)
	complete(matches[1], 60, 75)
	round.TotalStages = out.TotalStages

	next, err := NewKnockoutGenerator().(StageContinuer).ContinueStage(context.Background(), ContinueStageParams{
		Round: round, Config: knockoutConfig(SeedingRanking, false), Matches: matches,
	})
	require.NoError(t, err)
	require.Len(t, next.Matches, 2)

	final, third := next.Matches[0].Match, next.Matches[1].Match
	assert.True(t, final.IsFinal)
	assert.Equal(t, 2, final.StageNumber)
	assert.Equal(t, []int{*matches[0].WinnerID, *matches[1].WinnerID}, []int{*final.HomeTeamID, *final.AwayTeamID})
	assert.True(t, third.IsThirdPlace)
	assert.Equal(t, []int{*matches[0].LoserID, *matches[1].LoserID}, []int{*third.HomeTeamID, *third.AwayTeamID})
}

func TestBestOfGenerator(t *testing.T) {
	cfg := FormatConfig{Type: FormatBestOf, BestOf: &BestOfConfig{GroupCount: 1, Games: 3, AdvancesPerGroup: 1}}

	out := generate(t, cfg, testRound(), seqTeams(2), 5)
	require.Len(t, out.Matches, 3)
	for i, bm := range out.Matches {
		assert.Equal(t, []string{"Game 1", "Game 2", "Game 3"}[i], bm.Match.DisplayName)
		assert.Equal(t, i == 2, bm.Match.IsFinal)
	}
	assert.Equal(t, []string{out.Matches[1].UID}, out.Matches[2].DependsOn)

	out = generate(t, cfg, testRound(), seqTeams(5), 5)
	assert.Len(t, out.Matches, 6)
	assert.Len(t, out.Byes, 1)
	assertNoSelfMatches(t, out)
	for _, bm := range out.Matches {
		assert.False(t, bm.Match.IsFinal, bm.Match.DisplayName)
	}

	out = generate(t, cfg, testRound(), seqTeams(3), 5)
	require.Len(t, out.Matches, 3)
	require.Len(t, out.Byes, 1)
	for _, bm := range out.Matches {
		assert.False(t, bm.Match.IsFinal, bm.Match.DisplayName)
	}
}

func TestTwiceToBeatGenerator(t *testing.T) {
	cfg := FormatConfig{Type: FormatTwiceToBeat, TwiceToBeat: &TwiceToBeatConfig{AdvantagedTeam: 3, ChallengerTeam: 1, MaxGames: 2}}
	round := testRound()

	out := generate(t, cfg, round, seqTeams(4), 1)
	require.Len(t, out.Matches, 1)
	m := out.Matches[0].Match
	assert.Equal(t, "Twice-to-Beat Finals", m.DisplayName)
	assert.Equal(t, 3, *m.HomeTeamID)
	assert.Equal(t, 1, *m.AwayTeamID)
	assert.True(t, m.IsFinal)

	stored := fromBracket(out, 40)
	complete(stored[0], 70, 72)
	next, err := NewTwiceToBeatGenerator().(StageContinuer).ContinueStage(context.Background(), ContinueStageParams{
		Round: round, Config: cfg, Matches: stored,
	})
	require.NoError(t, err)
	require.Len(t, next.Matches, 1)
	assert.Equal(t, []int{40}, next.Matches[0].Match.DependsOn)
	assert.Equal(t, 2, next.Matches[0].Match.StageNumber)

	_, err = NewTwiceToBeatGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Round: round, Config: cfg, Teams: seqTeams(2), Rand: NewSeededRand(1),
	})
	assert.ErrorIs(t, err, ErrTeamNotInCategory)
}

func TestDoubleEliminationGenerator_FirstStage(t *testing.T) {
	cfg := FormatConfig{Type: FormatDoubleElimination, DoubleElimination: &DoubleEliminationConfig{GroupCount: 1, MaxLoss: 2, AdvancesPerGroup: 1}}
	out := generate(t, cfg, testRound(), seqTeams(6), 9)

	require.Len(t, out.Matches, 3)
	assertNoSelfMatches(t, out)
	for _, bm := range out.Matches {
		require.NotNil(t, bm.Match.BracketSide)
		assert.Equal(t, models.BracketSideWinners, *bm.Match.BracketSide)
	}
}

func TestNewGenerator_Unknown(t *testing.T) {
	_, err := NewGenerator(FormatType("Swiss"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
