package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/metrics"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
	"github.com/google/uuid"
)

type GenerateResult struct {
	OperationID    string `json:"operation_id"`
	RoundID        int    `json:"round_id"`
	MatchesCreated int    `json:"matches_created"`
	GroupsCreated  int    `json:"groups_created"`
	ByeTeamIDs     []int  `json:"bye_team_ids"`
	TotalStages    int    `json:"total_stages"`
}

// RankedTeam is an eliminated team and the rank it ended with.
type RankedTeam struct {
	TeamID int  `json:"team_id"`
	Rank   *int `json:"final_rank"`
}

type ProgressResult struct {
	OperationID      string                    `json:"operation_id"`
	RoundID          int                       `json:"round_id"`
	StageAdvanced    bool                      `json:"stage_advanced"`
	CurrentStage     int                       `json:"current_stage"`
	MatchesCreated   int                       `json:"matches_created,omitempty"`
	Advancing        []int                     `json:"advancing"`
	Eliminated       []RankedTeam              `json:"eliminated"`
	ChampionID       *int                      `json:"champion_id,omitempty"`
	CancelledMatches []int                     `json:"cancelled_matches,omitempty"`
	Assignments      []brackets.SlotAssignment `json:"slot_assignments,omitempty"`
	NextRoundID      *int                      `json:"next_round_id,omitempty"`
	NextRoundOpened  bool                      `json:"next_round_opened"`
}

type ResetResult struct {
	OperationID    string `json:"operation_id"`
	RoundID        int    `json:"round_id"`
	MatchesDeleted int    `json:"matches_deleted"`
	GroupsDeleted  int    `json:"groups_deleted"`
	EdgesDeleted   int    `json:"edges_deleted"`
	SlotsCleared   int    `json:"slots_cleared"`
	TeamsReset     int    `json:"teams_reset"`
}

type SynchronizeResult struct {
	OperationID     string `json:"operation_id"`
	CategoryID      int    `json:"category_id"`
	TeamsProgressed int    `json:"teams_progressed"`
	TeamsRanked     int    `json:"teams_ranked"`
}

// ProgressionService drives rounds through generate, progress and reset, and
// repairs a category with synchronize. Every call runs under the category lock
// in a single transaction.
type ProgressionService interface {
	Generate(ctx context.Context, roundID int) (*GenerateResult, error)
	Progress(ctx context.Context, roundID int, autoProceed bool) (*ProgressResult, error)
	Reset(ctx context.Context, roundID int) (*ResetResult, error)
	Synchronize(ctx context.Context, categoryID int) (*SynchronizeResult, error)
}

type ProgressionDeps struct {
	Tx         TxManager
	Categories repositories.CategoryRepository
	Rounds     repositories.RoundRepository
	Groups     repositories.GroupRepository
	Matches    repositories.MatchRepository
	Teams      repositories.TeamRepository
	Edges      repositories.EdgeRepository
	Formats    repositories.FormatRepository
	Events     events.Publisher
	Logger     *slog.Logger
	// Seed feeds the generators' random source. Defaults to a random seed.
	Seed func() uint64
}

type progressionService struct {
	tx         TxManager
	categories repositories.CategoryRepository
	rounds     repositories.RoundRepository
	groups     repositories.GroupRepository
	matches    repositories.MatchRepository
	teams      repositories.TeamRepository
	edges      repositories.EdgeRepository
	formats    repositories.FormatRepository
	events     events.Publisher
	logger     *slog.Logger
	seed       func() uint64
}

func NewProgressionService(deps ProgressionDeps) ProgressionService {
	seed := deps.Seed
	if seed == nil {
		seed = rand.Uint64
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &progressionService{
		tx:         deps.Tx,
		categories: deps.Categories,
		rounds:     deps.Rounds,
		groups:     deps.Groups,
		matches:    deps.Matches,
		teams:      deps.Teams,
		edges:      deps.Edges,
		formats:    deps.Formats,
		events:     publisher,
		logger:     deps.Logger,
		seed:       seed,
	}
}

func (s *progressionService) Generate(ctx context.Context, roundID int) (res *GenerateResult, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("generate", started, err) }()

	categoryID, err := s.categoryOf(ctx, roundID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithCategoryLock(ctx, categoryID, func(exec repositories.SQLExecutor) error {
		round, err := s.rounds.GetByID(ctx, exec, roundID)
		if err != nil {
			return mapRepositoryError(err)
		}
		res, err = s.generateRound(ctx, exec, round)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round generated",
		slog.String("operation_id", res.OperationID),
		slog.Int("round_id", roundID),
		slog.Int("matches_created", res.MatchesCreated),
	)
	s.publish(ctx, events.Event{ID: res.OperationID, Type: events.RoundGenerated, CategoryID: categoryID, RoundID: roundID, Payload: res})
	return res, nil
}

func (s *progressionService) Progress(ctx context.Context, roundID int, autoProceed bool) (res *ProgressResult, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("progress", started, err) }()

	categoryID, err := s.categoryOf(ctx, roundID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithCategoryLock(ctx, categoryID, func(exec repositories.SQLExecutor) error {
		var err error
		res, err = s.progressRound(ctx, exec, roundID, autoProceed)
		return err
	})
	if err != nil {
		return nil, err
	}

	evtType := events.RoundProgressed
	if res.StageAdvanced {
		evtType = events.StageAdvanced
	}
	s.logger.Info("round progressed",
		slog.String("operation_id", res.OperationID),
		slog.Int("round_id", roundID),
		slog.Bool("stage_advanced", res.StageAdvanced),
		slog.Int("advancing", len(res.Advancing)),
		slog.Int("eliminated", len(res.Eliminated)),
	)
	s.publish(ctx, events.Event{ID: res.OperationID, Type: evtType, CategoryID: categoryID, RoundID: roundID, Payload: res})
	if res.ChampionID != nil {
		s.publish(ctx, events.Event{Type: events.ChampionCrowned, CategoryID: categoryID, RoundID: roundID, Payload: map[string]int{"team_id": *res.ChampionID}})
	}
	return res, nil
}

func (s *progressionService) Reset(ctx context.Context, roundID int) (res *ResetResult, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("reset", started, err) }()

	categoryID, err := s.categoryOf(ctx, roundID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithCategoryLock(ctx, categoryID, func(exec repositories.SQLExecutor) error {
		var err error
		res, err = s.resetRound(ctx, exec, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round reset",
		slog.String("operation_id", res.OperationID),
		slog.Int("round_id", roundID),
		slog.Int("matches_deleted", res.MatchesDeleted),
		slog.Int("teams_reset", res.TeamsReset),
	)
	s.publish(ctx, events.Event{ID: res.OperationID, Type: events.RoundReset, CategoryID: categoryID, RoundID: roundID, Payload: res})
	return res, nil
}

func (s *progressionService) Synchronize(ctx context.Context, categoryID int) (res *SynchronizeResult, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("synchronize", started, err) }()

	if _, err := s.categories.GetByID(ctx, nil, categoryID); err != nil {
		return nil, mapRepositoryError(err)
	}
	var champion *int
	err = s.tx.WithCategoryLock(ctx, categoryID, func(exec repositories.SQLExecutor) error {
		var err error
		res, champion, err = s.synchronizeCategory(ctx, exec, categoryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.TeamsProgressed > 0 || res.TeamsRanked > 0 {
		s.logger.Info("category synchronized",
			slog.String("operation_id", res.OperationID),
			slog.Int("category_id", categoryID),
			slog.Int("teams_progressed", res.TeamsProgressed),
			slog.Int("teams_ranked", res.TeamsRanked),
		)
		s.publish(ctx, events.Event{ID: res.OperationID, Type: events.CategorySynchronized, CategoryID: categoryID, Payload: res})
	}
	if champion != nil {
		s.publish(ctx, events.Event{Type: events.ChampionCrowned, CategoryID: categoryID, Payload: map[string]int{"team_id": *champion}})
	}
	return res, nil
}

func (s *progressionService) generateRound(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) (*GenerateResult, error) {
	if round.MatchesGenerated {
		return nil, fmt.Errorf("%w: round %d", ErrAlreadyGenerated, round.ID)
	}
	if round.Status != models.RoundStatusUpcoming {
		return nil, fmt.Errorf("%w: round %d is %s", ErrRoundClosed, round.ID, round.Status)
	}
	cfg, err := s.loadConfig(ctx, exec, round)
	if err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, exec, round.CategoryID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	teams, err := s.teams.ListByCategory(ctx, exec, round.CategoryID, models.TeamFilter{AcceptedOnly: true, NotEliminated: true})
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: %d eligible in category %d", ErrInsufficientTeams, len(teams), round.CategoryID)
	}

	gen, err := brackets.NewGenerator(cfg.Type)
	if err != nil {
		return nil, err
	}
	out, err := gen.GenerateBracket(ctx, brackets.GenerateBracketParams{
		LeagueID: category.LeagueID,
		Round:    round,
		Config:   cfg,
		Teams:    teams,
		Rand:     s.newRand(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Matches) == 0 {
		return nil, fmt.Errorf("%w: generator produced no matches for round %d", ErrInsufficientTeams, round.ID)
	}

	created, err := s.persistBracket(ctx, exec, round, out, nil)
	if err != nil {
		return nil, err
	}
	round.MatchesGenerated = true
	round.Status = models.RoundStatusOngoing
	round.CurrentStage = 1
	round.TotalStages = max(out.TotalStages, 1)
	round.ByeTeamIDs = out.Byes
	if err := s.rounds.UpdateProgress(ctx, exec, round); err != nil {
		return nil, mapRepositoryError(err)
	}
	metrics.RecordMatchesGenerated(string(cfg.Type), created)

	byes := out.Byes
	if byes == nil {
		byes = []int{}
	}
	return &GenerateResult{
		OperationID:    uuid.NewString(),
		RoundID:        round.ID,
		MatchesCreated: created,
		GroupsCreated:  len(out.Groups),
		ByeTeamIDs:     byes,
		TotalStages:    round.TotalStages,
	}, nil
}

// persistBracket inserts groups and matches, then rewrites depends_on from
// bracket UIDs to database ids once every match has one.
func (s *progressionService) persistBracket(ctx context.Context, exec repositories.SQLExecutor, round *models.Round, out *brackets.GeneratedBracket, existing []*models.Group) (int, error) {
	groupIDs := make(map[string]int, len(existing)+len(out.Groups))
	for _, g := range existing {
		groupIDs[g.Label] = g.ID
	}
	for _, g := range out.Groups {
		g.RoundID = round.ID
		if err := s.groups.Create(ctx, exec, g); err != nil {
			return 0, mapRepositoryError(err)
		}
		groupIDs[g.Label] = g.ID
	}

	uidToID := make(map[string]int, len(out.Matches))
	for _, bm := range out.Matches {
		if id, ok := groupIDs[bm.GroupLabel]; ok {
			bm.Match.GroupID = models.IntPtr(id)
		}
		if err := s.matches.Create(ctx, exec, bm.Match); err != nil {
			return 0, fmt.Errorf("failed to create match %s: %w", bm.UID, err)
		}
		uidToID[bm.UID] = bm.Match.ID
	}

	for _, bm := range out.Matches {
		if len(bm.DependsOn) == 0 {
			continue
		}
		deps := append([]int(nil), bm.Match.DependsOn...)
		for _, uid := range bm.DependsOn {
			id, ok := uidToID[uid]
			if !ok {
				return 0, fmt.Errorf("%w: match %s depends on unknown match %s", brackets.ErrInternalInvariant, bm.UID, uid)
			}
			deps = append(deps, id)
		}
		if err := s.matches.UpdateDependsOn(ctx, exec, bm.Match.ID, deps); err != nil {
			return 0, err
		}
		bm.Match.DependsOn = deps
	}
	return len(out.Matches), nil
}

func (s *progressionService) progressRound(ctx context.Context, exec repositories.SQLExecutor, roundID int, autoProceed bool) (*ProgressResult, error) {
	round, err := s.rounds.GetByID(ctx, exec, roundID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if !round.MatchesGenerated {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotGenerated, round.ID)
	}
	if round.IsTerminalStatus() {
		return nil, fmt.Errorf("%w: round %d is %s", ErrRoundClosed, round.ID, round.Status)
	}
	cfg, err := s.loadConfig(ctx, exec, round)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListByRound(ctx, exec, round.ID)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadCategory(ctx, exec, round.CategoryID, models.TeamFilter{AcceptedOnly: true})
	if err != nil {
		return nil, err
	}
	graph := brackets.NewGraph(snap.matches, snap.edges)
	roundMatches := matchesOfRound(snap.matches, round.ID)

	set, err := brackets.Evaluate(brackets.EvaluateParams{
		Round:   round,
		Config:  cfg,
		Groups:  groups,
		Matches: roundMatches,
		Manual:  graph.HasRoutingFrom(round.ID),
	})
	if err != nil {
		return nil, err
	}

	res := &ProgressResult{OperationID: uuid.NewString(), RoundID: round.ID, Advancing: []int{}, Eliminated: []RankedTeam{}}
	if set.NeedsNextStage {
		return s.advanceStage(ctx, exec, round, cfg, groups, roundMatches, res)
	}
	if !set.Decided() {
		return nil, fmt.Errorf("%w: round %d has %d open and %d tied series", ErrMatchesNotFinished, round.ID, set.Open, set.Tied)
	}

	byID := make(map[int]*models.Match, len(roundMatches))
	for _, m := range roundMatches {
		byID[m.ID] = m
	}
	for _, series := range set.Series {
		for _, id := range series.Unplayed {
			m := byID[id]
			m.Status = models.MatchStatusCancelled
			if err := s.matches.Update(ctx, exec, m); err != nil {
				return nil, err
			}
			graph.Match(id).Status = models.MatchStatusCancelled
			res.CancelledMatches = append(res.CancelledMatches, id)
		}
	}

	resolved := resolvedIDs(roundMatches)
	assignments, err := graph.Propagate(resolved)
	if err != nil {
		return nil, err
	}
	next := nextRound(round, snap.rounds, graph)
	if !graph.HasRoutingFrom(round.ID) && next != nil && next.MatchesGenerated && !next.IsTerminalStatus() {
		fills, err := graph.FillInOrder(graph.RoundMatches(next.ID), set.Advancing)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, fills...)
	}
	for _, m := range graph.Changed() {
		if err := s.matches.Update(ctx, exec, m); err != nil {
			return nil, err
		}
	}
	metrics.RecordSlotAssignments(len(assignments))
	res.Assignments = assignments

	eliminated := withoutRoutedLosers(set.Eliminated, graph, resolved)
	var placements []brackets.Placement
	if next == nil && !routesOutOfRound(graph, roundMatches) {
		placements = terminalPlacements(set)
	}
	fin, err := brackets.Finalize(brackets.FinalizeParams{
		RoundID:    round.ID,
		Teams:      snap.teams,
		Placements: placements,
		Eliminated: eliminated,
	})
	if err != nil {
		return nil, err
	}
	champion, err := s.saveTeams(ctx, exec, round.CategoryID, fin.Updated)
	if err != nil {
		return nil, err
	}
	metrics.RecordTeamsRanked(fin.Ranked)

	round.Status = models.RoundStatusFinished
	if err := s.rounds.UpdateProgress(ctx, exec, round); err != nil {
		return nil, mapRepositoryError(err)
	}

	res.CurrentStage = round.CurrentStage
	res.Advancing = append(res.Advancing, set.Advancing...)
	res.ChampionID = champion
	res.Eliminated = rankedTeams(eliminated, snap.teams, fin.Updated)

	if next != nil {
		res.NextRoundID = models.IntPtr(next.ID)
		if autoProceed && !next.MatchesGenerated && next.Status == models.RoundStatusUpcoming {
			opened, err := s.generateRound(ctx, exec, next)
			switch {
			case errors.Is(err, ErrNoFormat):
				s.logger.Warn("next round has no format, not opening it", slog.Int("round_id", next.ID))
			case err != nil:
				return nil, fmt.Errorf("failed to open round %d: %w", next.ID, err)
			default:
				res.NextRoundOpened = true
				s.publish(ctx, events.Event{ID: opened.OperationID, Type: events.RoundGenerated, CategoryID: next.CategoryID, RoundID: next.ID, Payload: opened})
			}
		}
	}
	return res, nil
}

func (s *progressionService) advanceStage(ctx context.Context, exec repositories.SQLExecutor, round *models.Round, cfg brackets.FormatConfig, groups []*models.Group, matches []*models.Match, res *ProgressResult) (*ProgressResult, error) {
	gen, err := brackets.NewGenerator(cfg.Type)
	if err != nil {
		return nil, err
	}
	cont, ok := gen.(brackets.StageContinuer)
	if !ok {
		return nil, fmt.Errorf("%w: %s rounds have a single stage", brackets.ErrInternalInvariant, cfg.Type)
	}
	out, err := cont.ContinueStage(ctx, brackets.ContinueStageParams{
		Round:   round,
		Config:  cfg,
		Groups:  groups,
		Matches: matches,
		Rand:    s.newRand(),
	})
	if err != nil {
		return nil, err
	}
	created, err := s.persistBracket(ctx, exec, round, out, groups)
	if err != nil {
		return nil, err
	}

	stage := round.CurrentStage
	for _, bm := range out.Matches {
		stage = max(stage, bm.Match.StageNumber)
	}
	round.CurrentStage = stage
	round.TotalStages = max(round.TotalStages, out.TotalStages, stage)
	if err := s.rounds.UpdateProgress(ctx, exec, round); err != nil {
		return nil, mapRepositoryError(err)
	}
	metrics.RecordMatchesGenerated(string(cfg.Type), created)

	res.StageAdvanced = true
	res.CurrentStage = stage
	res.MatchesCreated = created
	return res, nil
}

func (s *progressionService) resetRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) (*ResetResult, error) {
	round, err := s.rounds.GetByID(ctx, exec, roundID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	snap, err := s.loadCategory(ctx, exec, round.CategoryID, models.TeamFilter{})
	if err != nil {
		return nil, err
	}
	graph := brackets.NewGraph(snap.matches, snap.edges)
	roundMatches := matchesOfRound(snap.matches, round.ID)
	res := &ResetResult{OperationID: uuid.NewString(), RoundID: round.ID}

	inRound := make(map[int]bool, len(roundMatches))
	played := make(map[int]bool)
	ids := make([]int, 0, len(roundMatches))
	for _, m := range roundMatches {
		inRound[m.ID] = true
		ids = append(ids, m.ID)
		for _, t := range []*int{m.HomeTeamID, m.AwayTeamID} {
			if t != nil {
				played[*t] = true
			}
		}
	}

	cleared := make(map[int]*models.Match)
	clear := func(target *models.Match, team int) error {
		if !target.HasTeam(team) {
			return nil
		}
		if target.IsCompleted() {
			return fmt.Errorf("%w: match %d", ErrDownstreamPlayed, target.ID)
		}
		if target.HomeTeamID != nil && *target.HomeTeamID == team {
			target.HomeTeamID = nil
		} else {
			target.AwayTeamID = nil
		}
		cleared[target.ID] = target
		res.SlotsCleared++
		return nil
	}
	for _, m := range roundMatches {
		for _, e := range graph.Outgoing(m.ID) {
			if inRound[e.TargetID] {
				continue
			}
			team := m.WinnerID
			if e.SourceHandle == models.HandleLoserOut {
				team = m.LoserID
			}
			target := graph.Match(e.TargetID)
			if team == nil || target == nil {
				continue
			}
			if err := clear(target, *team); err != nil {
				return nil, err
			}
		}
	}
	if next := nextRound(round, snap.rounds, graph); next != nil && !graph.HasRoutingFrom(round.ID) {
		for _, target := range graph.RoundMatches(next.ID) {
			if target.GeneratedBy == models.GeneratedBySystem {
				continue
			}
			for team := range played {
				if err := clear(target, team); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, m := range sortedMatches(cleared) {
		if err := s.matches.Update(ctx, exec, m); err != nil {
			return nil, err
		}
	}

	teams := make(map[int]*models.Team, len(snap.teams))
	for _, t := range snap.teams {
		teams[t.ID] = t
	}
	countersTouched := make(map[int]bool)
	for _, m := range roundMatches {
		if !m.IsCompleted() || m.HomeScore == nil || m.AwayScore == nil || m.HomeTeamID == nil || m.AwayTeamID == nil {
			continue
		}
		home, away := teams[*m.HomeTeamID], teams[*m.AwayTeamID]
		if home == nil || away == nil {
			continue
		}
		applyResultCounters(home, away, *m.HomeScore, *m.AwayScore, -1)
		countersTouched[home.ID], countersTouched[away.ID] = true, true
	}
	progressTouched := make(map[int]bool)
	championCleared := false
	for _, t := range snap.teams {
		eliminatedHere := t.EliminatedInRound != nil && *t.EliminatedInRound == round.ID
		if eliminatedHere || (t.IsChampion && played[t.ID]) {
			championCleared = championCleared || t.IsChampion
			t.ClearProgress()
			progressTouched[t.ID] = true
		}
	}
	touched := make(map[int]bool)
	for _, t := range snap.teams {
		if countersTouched[t.ID] {
			if err := s.teams.UpdateCounters(ctx, exec, t); err != nil {
				return nil, err
			}
			touched[t.ID] = true
		}
		if progressTouched[t.ID] {
			if err := s.teams.UpdateProgress(ctx, exec, t); err != nil {
				return nil, err
			}
			touched[t.ID] = true
		}
	}
	res.TeamsReset = len(touched)

	if res.EdgesDeleted, err = s.edges.DeleteForMatches(ctx, exec, ids); err != nil {
		return nil, err
	}
	if res.MatchesDeleted, err = s.matches.DeleteByRound(ctx, exec, round.ID); err != nil {
		return nil, err
	}
	if res.GroupsDeleted, err = s.groups.DeleteByRound(ctx, exec, round.ID); err != nil {
		return nil, err
	}

	round.Status = models.RoundStatusUpcoming
	round.MatchesGenerated = false
	round.CurrentStage = 0
	round.TotalStages = 0
	round.ByeTeamIDs = nil
	if err := s.rounds.UpdateProgress(ctx, exec, round); err != nil {
		return nil, mapRepositoryError(err)
	}
	if championCleared {
		if err := s.categories.UpdateStatus(ctx, exec, round.CategoryID, models.CategoryStatusOngoing); err != nil {
			return nil, mapRepositoryError(err)
		}
	}
	return res, nil
}

func (s *progressionService) synchronizeCategory(ctx context.Context, exec repositories.SQLExecutor, categoryID int) (*SynchronizeResult, *int, error) {
	snap, err := s.loadCategory(ctx, exec, categoryID, models.TeamFilter{AcceptedOnly: true})
	if err != nil {
		return nil, nil, err
	}
	graph := brackets.NewGraph(snap.matches, snap.edges)
	res := &SynchronizeResult{OperationID: uuid.NewString(), CategoryID: categoryID}

	assignments, err := graph.Propagate(resolvedIDs(snap.matches))
	if err != nil {
		return nil, nil, err
	}
	for _, m := range graph.Changed() {
		if err := s.matches.Update(ctx, exec, m); err != nil {
			return nil, nil, err
		}
	}
	progressed := make(map[int]bool)
	for _, a := range assignments {
		progressed[a.TeamID] = true
	}
	res.TeamsProgressed = len(progressed)
	metrics.RecordSlotAssignments(len(assignments))

	current := make([]*models.Team, len(snap.teams))
	copy(current, snap.teams)
	index := make(map[int]int, len(current))
	for i, t := range current {
		index[t.ID] = i
	}
	changed := make(map[int]*models.Team)
	apply := func(fin *brackets.FinalizeResult) {
		for _, t := range fin.Updated {
			current[index[t.ID]] = t
			changed[t.ID] = t
		}
		res.TeamsRanked += fin.Ranked
	}

	roundOrder := make(map[int]int, len(snap.rounds))
	for _, round := range snap.rounds {
		roundOrder[round.ID] = round.RoundOrder
		if round.Status != models.RoundStatusFinished {
			continue
		}
		cfg, err := s.loadConfig(ctx, exec, round)
		if errors.Is(err, ErrNoFormat) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		groups, err := s.groups.ListByRound(ctx, exec, round.ID)
		if err != nil {
			return nil, nil, err
		}
		roundMatches := graph.RoundMatches(round.ID)
		set, err := brackets.Evaluate(brackets.EvaluateParams{
			Round:   round,
			Config:  cfg,
			Groups:  groups,
			Matches: roundMatches,
			Manual:  graph.HasRoutingFrom(round.ID),
		})
		if err != nil {
			return nil, nil, err
		}
		if !set.Decided() {
			s.logger.Warn("finished round is not decided, skipping", slog.Int("round_id", round.ID))
			continue
		}
		var placements []brackets.Placement
		if nextRound(round, snap.rounds, graph) == nil && !routesOutOfRound(graph, roundMatches) {
			placements = terminalPlacements(set)
		}
		fin, err := brackets.Finalize(brackets.FinalizeParams{
			RoundID:    round.ID,
			Teams:      current,
			Placements: placements,
			Eliminated: withoutRoutedLosers(set.Eliminated, graph, resolvedIDs(roundMatches)),
		})
		if err != nil {
			return nil, nil, err
		}
		apply(fin)
	}

	// Teams flagged eliminated without a rank, e.g. by an earlier failed run.
	var leftovers []*models.Team
	for _, t := range current {
		if t.IsEliminated && t.FinalRank == nil {
			leftovers = append(leftovers, t)
		}
	}
	if len(leftovers) > 0 {
		for i, t := range leftovers {
			if t.EliminatedInRound != nil {
				continue
			}
			if last := lastRoundPlayed(t.ID, snap.matches, roundOrder); last != 0 {
				c := *t
				c.EliminatedInRound = models.IntPtr(last)
				leftovers[i] = &c
				current[index[t.ID]] = &c
				changed[t.ID] = &c
			}
		}
		sort.SliceStable(leftovers, func(i, j int) bool {
			oi, oj := eliminationOrder(leftovers[i], roundOrder), eliminationOrder(leftovers[j], roundOrder)
			if oi != oj {
				return oi < oj
			}
			return leftovers[i].ID < leftovers[j].ID
		})
		ids := make([]int, len(leftovers))
		for i, t := range leftovers {
			ids[i] = t.ID
		}
		fin, err := brackets.Finalize(brackets.FinalizeParams{Teams: current, Eliminated: ids})
		if err != nil {
			return nil, nil, err
		}
		apply(fin)
	}

	updated := make([]*models.Team, 0, len(changed))
	for _, t := range current {
		if changed[t.ID] != nil {
			updated = append(updated, t)
		}
	}
	champion, err := s.saveTeams(ctx, exec, categoryID, updated)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordTeamsRanked(res.TeamsRanked)
	return res, champion, nil
}

// saveTeams persists finalizer output and closes the category when a
// champion was crowned.
func (s *progressionService) saveTeams(ctx context.Context, exec repositories.SQLExecutor, categoryID int, updated []*models.Team) (*int, error) {
	var champion *int
	for _, t := range updated {
		if err := s.teams.UpdateProgress(ctx, exec, t); err != nil {
			return nil, err
		}
		if t.IsChampion {
			champion = models.IntPtr(t.ID)
		}
	}
	if champion != nil {
		if err := s.categories.UpdateStatus(ctx, exec, categoryID, models.CategoryStatusCompleted); err != nil {
			return nil, mapRepositoryError(err)
		}
	}
	return champion, nil
}

func (s *progressionService) categoryOf(ctx context.Context, roundID int) (int, error) {
	round, err := s.rounds.GetByID(ctx, nil, roundID)
	if err != nil {
		return 0, mapRepositoryError(err)
	}
	return round.CategoryID, nil
}

func (s *progressionService) loadConfig(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) (brackets.FormatConfig, error) {
	if round.FormatID == nil {
		return brackets.FormatConfig{}, fmt.Errorf("%w: round %d", ErrNoFormat, round.ID)
	}
	format, err := s.formats.GetByID(ctx, exec, *round.FormatID)
	if err != nil {
		return brackets.FormatConfig{}, mapRepositoryError(err)
	}
	return brackets.ParseFormatConfig(format.Config)
}

type categorySnapshot struct {
	rounds  []*models.Round
	matches []*models.Match
	edges   []*models.Edge
	teams   []*models.Team
}

func (s *progressionService) loadCategory(ctx context.Context, exec repositories.SQLExecutor, categoryID int, filter models.TeamFilter) (*categorySnapshot, error) {
	var (
		snap categorySnapshot
		err  error
	)
	if snap.rounds, err = s.rounds.ListByCategory(ctx, exec, categoryID); err != nil {
		return nil, err
	}
	if snap.matches, err = s.matches.ListByCategory(ctx, exec, categoryID); err != nil {
		return nil, err
	}
	if snap.edges, err = s.edges.ListByCategory(ctx, exec, categoryID); err != nil {
		return nil, err
	}
	if snap.teams, err = s.teams.ListByCategory(ctx, exec, categoryID, filter); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *progressionService) newRand() *rand.Rand {
	return brackets.NewSeededRand(s.seed())
}

func (s *progressionService) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event", slog.String("type", string(evt.Type)), slog.Any("error", err))
	}
}

// nextRound follows round-out edges first, then next_round_id, then the
// following round_order.
func nextRound(round *models.Round, rounds []*models.Round, graph *brackets.Graph) *models.Round {
	byID := make(map[int]*models.Round, len(rounds))
	for _, r := range rounds {
		byID[r.ID] = r
	}
	for _, id := range graph.NextRounds(round.ID) {
		if r, ok := byID[id]; ok {
			return r
		}
	}
	if round.NextRoundID != nil {
		if r, ok := byID[*round.NextRoundID]; ok {
			return r
		}
	}
	var best *models.Round
	for _, r := range rounds {
		if r.RoundOrder <= round.RoundOrder || r.Status == models.RoundStatusCancelled {
			continue
		}
		if best == nil || r.RoundOrder < best.RoundOrder || (r.RoundOrder == best.RoundOrder && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

// terminalPlacements pins the final and third-place game, or crowns the
// single team left standing when the round had no final.
func terminalPlacements(set *brackets.AdvancementSet) []brackets.Placement {
	placements := brackets.PlacementsFor(set.Final, set.ThirdPlace)
	if set.Final == nil && len(set.Advancing) == 1 {
		placements = append(placements, brackets.Placement{TeamID: set.Advancing[0], Rank: 1, Champion: true})
	}
	return placements
}

func routesOutOfRound(graph *brackets.Graph, matches []*models.Match) bool {
	for _, m := range matches {
		for _, e := range graph.Outgoing(m.ID) {
			if target := graph.Match(e.TargetID); target != nil && target.RoundID != m.RoundID {
				return true
			}
		}
	}
	return false
}

// withoutRoutedLosers keeps losers that a loser-out edge sends on to another
// match in the running.
func withoutRoutedLosers(eliminated []int, graph *brackets.Graph, resolved []int) []int {
	routed := make(map[int]bool)
	for _, id := range resolved {
		m := graph.Match(id)
		if m == nil || m.LoserID == nil {
			continue
		}
		for _, e := range graph.Outgoing(id) {
			if e.SourceHandle == models.HandleLoserOut {
				routed[*m.LoserID] = true
			}
		}
	}
	out := make([]int, 0, len(eliminated))
	for _, id := range eliminated {
		if !routed[id] {
			out = append(out, id)
		}
	}
	return out
}

func rankedTeams(ids []int, teams, updated []*models.Team) []RankedTeam {
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	for _, t := range updated {
		byID[t.ID] = t
	}
	out := make([]RankedTeam, 0, len(ids))
	for _, id := range ids {
		rt := RankedTeam{TeamID: id}
		if t := byID[id]; t != nil && t.FinalRank != nil {
			rt.Rank = models.IntPtr(*t.FinalRank)
		}
		out = append(out, rt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Rank, out[j].Rank
		if a == nil || b == nil {
			return a != nil
		}
		return *a < *b
	})
	return out
}

func matchesOfRound(matches []*models.Match, roundID int) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range matches {
		if m.RoundID == roundID {
			out = append(out, m)
		}
	}
	return out
}

func resolvedIDs(matches []*models.Match) []int {
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		if m.IsResolved() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func sortedMatches(set map[int]*models.Match) []*models.Match {
	out := make([]*models.Match, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lastRoundPlayed returns the latest round, by order, with a completed match
// of the team, or 0 when it never played.
func lastRoundPlayed(teamID int, matches []*models.Match, roundOrder map[int]int) int {
	last := 0
	for _, m := range matches {
		if !m.IsCompleted() || !m.HasTeam(teamID) {
			continue
		}
		if last == 0 || roundOrder[m.RoundID] > roundOrder[last] {
			last = m.RoundID
		}
	}
	return last
}

func eliminationOrder(t *models.Team, roundOrder map[int]int) int {
	if t.EliminatedInRound == nil {
		return 0
	}
	return roundOrder[*t.EliminatedInRound]
}
