package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

type EvaluateParams struct {
	Round   *models.Round
	Config  FormatConfig
	Groups  []*models.Group
	Matches []*models.Match
	// Manual rounds are routed by graph edges; the evaluator never asks for
	// further stages for them.
	Manual bool
}

// AdvancementSet is what a round decided. Eliminated is in elimination order:
// the first entry is ranked lowest.
type AdvancementSet struct {
	Advancing      []int                 `json:"advancing"`
	Eliminated     []int                 `json:"eliminated"`
	Series         []*SeriesResult       `json:"series,omitempty"`
	Standings      map[string][]Standing `json:"standings,omitempty"`
	Final          *SeriesResult         `json:"final,omitempty"`
	ThirdPlace     *SeriesResult         `json:"third_place,omitempty"`
	NeedsNextStage bool                  `json:"needs_next_stage"`
	Open           int                   `json:"open"`
	Tied           int                   `json:"tied"`
}

// Decided is true when advancement is final for the round.
func (a *AdvancementSet) Decided() bool {
	return a.Open == 0 && a.Tied == 0 && !a.NeedsNextStage
}

// Evaluate interprets the round's results under its format.
func Evaluate(params EvaluateParams) (*AdvancementSet, error) {
	if params.Round == nil || params.Config.variant() == nil {
		return nil, fmt.Errorf("%w: round and config are required", ErrInternalInvariant)
	}
	switch params.Config.Type {
	case FormatRoundRobin:
		return evaluateRoundRobin(params), nil
	case FormatKnockout, FormatBestOf, FormatTwiceToBeat:
		return evaluateSeries(params)
	case FormatDoubleElimination:
		return evaluateDoubleElimination(params), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, params.Config.Type)
}

func evaluateRoundRobin(params EvaluateParams) *AdvancementSet {
	cfg := params.Config.RoundRobin
	set := &AdvancementSet{Standings: make(map[string][]Standing)}

	buckets := bucketByGroup(params.Groups, params.Matches)
	tables := make([][]Standing, len(buckets))
	for i, b := range buckets {
		for _, m := range b.matches {
			if !m.IsCancelled() && !m.IsCompleted() {
				set.Open++
			}
		}
		tables[i] = ComputeStandings(b.teams, b.matches, cfg.UsePointSystem)
		set.Standings[b.label] = tables[i]
		for pos := 0; pos < len(tables[i]) && pos < cfg.AdvancesPerGroup; pos++ {
			set.Advancing = append(set.Advancing, tables[i][pos].TeamID)
		}
	}

	// Worst positions first, across groups in label order.
	longest := 0
	for _, t := range tables {
		if len(t) > longest {
			longest = len(t)
		}
	}
	for pos := longest - 1; pos >= cfg.AdvancesPerGroup; pos-- {
		for _, t := range tables {
			if pos < len(t) {
				set.Eliminated = append(set.Eliminated, t[pos].TeamID)
			}
		}
	}
	return set
}

func evaluateSeries(params EvaluateParams) (*AdvancementSet, error) {
	set := &AdvancementSet{}
	round := params.Round
	cfg := params.Config

	for _, b := range bucketByGroup(params.Groups, params.Matches) {
		series, open := collectSeries(b)
		set.Open += open
		for _, s := range series {
			needsDecider := false
			switch {
			case cfg.Type == FormatTwiceToBeat:
				games := s.games
				s.result.Status = twiceToBeatStatus(games, cfg.TwiceToBeat.AdvantagedTeam, cfg.TwiceToBeat.ChallengerTeam)
				if _, isOpen := s.result.Status.(SeriesOpen); isOpen && len(games) == 1 && games[0].IsResolved() {
					needsDecider = true
					set.NeedsNextStage = true
				}
			case cfg.Type == FormatKnockout && cfg.Knockout.IsTwiceToBeatSeries():
				s.result.Status = twiceToBeatStatus(s.games, s.result.HomeTeamID, s.result.AwayTeamID)
			case cfg.Type == FormatBestOf:
				s.result.Status = bestOfStatus(s.games, cfg.BestOf.WinsNeeded())
			default:
				s.result.Status = singleGameStatus(s.games)
			}
			s.result.decidedBy = decidingKey(s.games)
			if _, ok := s.result.Resolved(); ok {
				for _, m := range s.games {
					if !m.IsCompleted() {
						s.result.Unplayed = append(s.result.Unplayed, m.ID)
					}
				}
			}
			switch s.result.Status.(type) {
			case SeriesOpen:
				if !needsDecider {
					set.Open++
				}
			case SeriesTied:
				set.Tied++
			}
			set.Series = append(set.Series, s.result)
		}
	}

	latest := round.CurrentStage
	for _, s := range set.Series {
		if s.Stage > latest {
			latest = s.Stage
		}
	}
	thirdPlaceRound := round.TotalStages > 1 && cfg.Type == FormatKnockout
	if thirdPlaceRound && latest < round.TotalStages && set.Open == 0 && set.Tied == 0 {
		set.NeedsNextStage = true
	}
	if !set.Decided() {
		return set, nil
	}

	decided := make([]*SeriesResult, 0, len(set.Series))
	finals := make([]*SeriesResult, 0, 1)
	current := 0
	for _, s := range set.Series {
		if thirdPlaceRound && s.Stage < latest {
			continue
		}
		if s.IsThirdPlace {
			set.ThirdPlace = s
		} else {
			current++
			if s.IsFinal {
				finals = append(finals, s)
			}
			r, _ := s.Resolved()
			set.Advancing = append(set.Advancing, r.Winner)
		}
		decided = append(decided, s)
	}
	set.Advancing = append(set.Advancing, round.ByeTeamIDs...)
	// A bye team is still unbeaten, so no match of this round is the final.
	if len(finals) == 1 && current == 1 && len(round.ByeTeamIDs) == 0 {
		set.Final = finals[0]
	}

	sort.SliceStable(decided, func(i, j int) bool {
		return decided[i].decidedBy.less(decided[j].decidedBy)
	})
	if set.ThirdPlace != nil {
		r, _ := set.ThirdPlace.Resolved()
		set.Eliminated = append(set.Eliminated, r.Loser, r.Winner)
	}
	for _, s := range decided {
		if s.IsThirdPlace {
			continue
		}
		r, _ := s.Resolved()
		set.Eliminated = append(set.Eliminated, r.Loser)
	}
	return set, nil
}

func evaluateDoubleElimination(params EvaluateParams) *AdvancementSet {
	cfg := params.Config.DoubleElimination
	set := &AdvancementSet{}

	for _, m := range params.Matches {
		if m.IsCancelled() {
			continue
		}
		res := &SeriesResult{MatchIDs: []int{m.ID}, Stage: m.StageNumber, IsFinal: m.IsFinal}
		if m.HomeTeamID != nil {
			res.HomeTeamID = *m.HomeTeamID
		}
		if m.AwayTeamID != nil {
			res.AwayTeamID = *m.AwayTeamID
		}
		res.Status = singleGameStatus([]*models.Match{m})
		switch res.Status.(type) {
		case SeriesOpen:
			set.Open++
		case SeriesTied:
			set.Tied++
		}
		set.Series = append(set.Series, res)
	}

	states := doubleEliminationStates(params.Groups, params.Matches, cfg.MaxLoss)
	if set.Open == 0 && set.Tied == 0 && !params.Manual {
		for _, st := range states {
			if len(st.survivors()) > cfg.AdvancesPerGroup {
				set.NeedsNextStage = true
			}
		}
	}
	if !set.Decided() {
		return set
	}

	losses := make(map[int]int)
	for _, m := range resolutionOrder(params.Matches) {
		losses[*m.LoserID]++
		if losses[*m.LoserID] == cfg.MaxLoss {
			set.Eliminated = append(set.Eliminated, *m.LoserID)
		}
	}
	for _, st := range states {
		set.Advancing = append(set.Advancing, st.survivors()...)
	}
	if len(states) == 1 && cfg.AdvancesPerGroup == 1 && len(set.Advancing) == 1 && len(set.Eliminated) > 0 {
		champion, runnerUp := set.Advancing[0], set.Eliminated[len(set.Eliminated)-1]
		set.Final = &SeriesResult{
			HomeTeamID: champion,
			AwayTeamID: runnerUp,
			Status:     SeriesResolved{Winner: champion, Loser: runnerUp},
			IsFinal:    true,
		}
	}
	return set
}

func singleGameStatus(games []*models.Match) SeriesStatus {
	var last *models.Match
	for _, m := range games {
		if !m.IsCancelled() {
			last = m
		}
	}
	if last == nil || !last.IsCompleted() || last.HomeTeamID == nil || last.AwayTeamID == nil {
		return SeriesOpen{}
	}
	if last.WinnerID == nil {
		return SeriesTied{}
	}
	return SeriesResolved{Winner: *last.WinnerID, Loser: *last.LoserID}
}

// twiceToBeatStatus: the advantaged team needs one win, the challenger two.
func twiceToBeatStatus(games []*models.Match, advantaged, challenger int) SeriesStatus {
	played := make([]*models.Match, 0, 2)
	for _, m := range games {
		if !m.IsCancelled() {
			played = append(played, m)
		}
	}
	if len(played) == 0 || !played[0].IsCompleted() {
		return SeriesOpen{}
	}
	first := played[0]
	if first.WinnerID == nil {
		return SeriesTied{}
	}
	if *first.WinnerID == advantaged {
		return SeriesResolved{Winner: advantaged, Loser: challenger}
	}
	if len(played) < 2 || !played[1].IsCompleted() {
		return SeriesOpen{}
	}
	second := played[1]
	if second.WinnerID == nil {
		return SeriesTied{}
	}
	if *second.WinnerID == challenger {
		return SeriesResolved{Winner: challenger, Loser: advantaged}
	}
	return SeriesResolved{Winner: advantaged, Loser: challenger}
}

func bestOfStatus(games []*models.Match, winsNeeded int) SeriesStatus {
	wins := make(map[int]int, 2)
	remaining := 0
	var home, away int
	for _, m := range games {
		if m.IsCancelled() {
			continue
		}
		if m.HomeTeamID != nil && m.AwayTeamID != nil {
			home, away = *m.HomeTeamID, *m.AwayTeamID
		}
		if !m.IsCompleted() {
			remaining++
			continue
		}
		if m.WinnerID != nil {
			wins[*m.WinnerID]++
		}
	}
	switch {
	case wins[home] >= winsNeeded:
		return SeriesResolved{Winner: home, Loser: away}
	case wins[away] >= winsNeeded:
		return SeriesResolved{Winner: away, Loser: home}
	case remaining > 0:
		return SeriesOpen{}
	}
	return SeriesTied{}
}

type groupBucket struct {
	label   string
	teams   []int
	matches []*models.Match
}

// bucketByGroup assigns matches to groups by group id, falling back to team
// membership. Without groups everything lands in a single bucket "A".
func bucketByGroup(groups []*models.Group, matches []*models.Match) []groupBucket {
	sorted := make([]*models.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if len(groups) == 0 {
		b := groupBucket{label: "A", matches: sorted}
		seen := make(map[int]bool)
		for _, m := range sorted {
			for _, id := range []*int{m.HomeTeamID, m.AwayTeamID} {
				if id != nil && !seen[*id] {
					seen[*id] = true
					b.teams = append(b.teams, *id)
				}
			}
		}
		return []groupBucket{b}
	}

	ordered := make([]*models.Group, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Label < ordered[j].Label })

	buckets := make([]groupBucket, len(ordered))
	byID := make(map[int]int, len(ordered))
	member := make(map[int]int)
	for i, g := range ordered {
		buckets[i] = groupBucket{label: g.Label, teams: append([]int(nil), g.TeamIDs...)}
		if g.ID != 0 {
			byID[g.ID] = i
		}
		for _, id := range g.TeamIDs {
			member[id] = i
		}
	}
	for _, m := range sorted {
		if m.GroupID != nil {
			if i, ok := byID[*m.GroupID]; ok {
				buckets[i].matches = append(buckets[i].matches, m)
				continue
			}
		}
		idx := 0
		if m.HomeTeamID != nil {
			if i, ok := member[*m.HomeTeamID]; ok {
				idx = i
			}
		}
		buckets[idx].matches = append(buckets[idx].matches, m)
	}
	return buckets
}

type seriesGames struct {
	result *SeriesResult
	games  []*models.Match
}

// collectSeries groups a bucket's matches by unordered team pair, in order of
// first appearance. Matches missing a team are counted as open.
func collectSeries(b groupBucket) ([]*seriesGames, int) {
	var out []*seriesGames
	index := make(map[[2]int]*seriesGames)
	open := 0
	for _, m := range b.matches {
		if m.HomeTeamID == nil || m.AwayTeamID == nil {
			if !m.IsCancelled() {
				open++
			}
			continue
		}
		key := pairKey(*m.HomeTeamID, *m.AwayTeamID)
		s, ok := index[key]
		if !ok {
			s = &seriesGames{result: &SeriesResult{
				GroupLabel: b.label,
				HomeTeamID: *m.HomeTeamID,
				AwayTeamID: *m.AwayTeamID,
				Stage:      m.StageNumber,
			}}
			index[key] = s
			out = append(out, s)
		}
		s.games = append(s.games, m)
		s.result.MatchIDs = append(s.result.MatchIDs, m.ID)
		if m.IsFinal {
			s.result.IsFinal = true
		}
		if m.IsThirdPlace {
			s.result.IsThirdPlace = true
		}
		if m.StageNumber > s.result.Stage {
			s.result.Stage = m.StageNumber
		}
	}
	return out, open
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// resolutionOrder returns the resolved matches ordered by completion time,
// then by creation order.
func resolutionOrder(matches []*models.Match) []*models.Match {
	out := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.IsResolved() {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return keyOf(out[i]).less(keyOf(out[j]))
	})
	return out
}

func keyOf(m *models.Match) *matchKey {
	k := &matchKey{id: m.ID}
	if m.CompletedAt != nil {
		k.completedAt = m.CompletedAt.UnixNano()
	}
	return k
}

func decidingKey(games []*models.Match) *matchKey {
	var best *matchKey
	for _, m := range games {
		if !m.IsCompleted() {
			continue
		}
		k := keyOf(m)
		if best == nil || best.less(k) {
			best = k
		}
	}
	if best == nil {
		return &matchKey{}
	}
	return best
}

// less orders by completion time; a missing time sorts after any known one.
func (k *matchKey) less(o *matchKey) bool {
	if k.completedAt != o.completedAt {
		if k.completedAt == 0 {
			return false
		}
		if o.completedAt == 0 {
			return true
		}
		return k.completedAt < o.completedAt
	}
	return k.id < o.id
}
