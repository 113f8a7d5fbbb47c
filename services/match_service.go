package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/metrics"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
	"github.com/go-playground/validator/v10"
)

type RecordResultInput struct {
	HomeScore *int `json:"home_score" validate:"required,min=0"`
	AwayScore *int `json:"away_score" validate:"required,min=0"`
}

// MatchService is score entry. Results update team counters and are pushed
// along winner/loser edges straight away so manual brackets fill as they are
// played.
type MatchService interface {
	RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*models.Match, error)
	CancelMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListRoundMatches(ctx context.Context, roundID int) ([]*models.Match, error)
}

type MatchDeps struct {
	Tx      TxManager
	Rounds  repositories.RoundRepository
	Matches repositories.MatchRepository
	Teams   repositories.TeamRepository
	Edges   repositories.EdgeRepository
	Events  events.Publisher
	Logger  *slog.Logger
	Now     func() time.Time
}

type matchService struct {
	tx       TxManager
	rounds   repositories.RoundRepository
	matches  repositories.MatchRepository
	teams    repositories.TeamRepository
	edges    repositories.EdgeRepository
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate
}

func NewMatchService(deps MatchDeps) MatchService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &matchService{
		tx:       deps.Tx,
		rounds:   deps.Rounds,
		matches:  deps.Matches,
		teams:    deps.Teams,
		edges:    deps.Edges,
		events:   publisher,
		logger:   deps.Logger,
		now:      now,
		validate: validator.New(),
	}
}

func (s *matchService) RecordResult(ctx context.Context, matchID int, input RecordResultInput) (match *models.Match, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("record_result", started, err) }()

	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}
	current, err := s.matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	var assignments []brackets.SlotAssignment
	err = s.tx.WithCategoryLock(ctx, current.CategoryID, func(exec repositories.SQLExecutor) error {
		var err error
		match, assignments, err = s.recordResult(ctx, exec, matchID, *input.HomeScore, *input.AwayScore)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result recorded",
		slog.Int("match_id", match.ID),
		slog.Int("home_score", *match.HomeScore),
		slog.Int("away_score", *match.AwayScore),
		slog.Int("slot_assignments", len(assignments)),
	)
	s.publish(ctx, events.Event{Type: events.MatchResultRecorded, CategoryID: match.CategoryID, RoundID: match.RoundID, Payload: match})
	if len(assignments) > 0 {
		s.publish(ctx, events.Event{Type: events.BracketChanged, CategoryID: match.CategoryID, RoundID: match.RoundID, Payload: assignments})
	}
	return match, nil
}

func (s *matchService) recordResult(ctx context.Context, exec repositories.SQLExecutor, matchID, home, away int) (*models.Match, []brackets.SlotAssignment, error) {
	m, err := s.matches.GetByID(ctx, exec, matchID)
	if err != nil {
		return nil, nil, mapRepositoryError(err)
	}
	round, err := s.rounds.GetByID(ctx, exec, m.RoundID)
	if err != nil {
		return nil, nil, mapRepositoryError(err)
	}
	if round.IsTerminalStatus() {
		return nil, nil, fmt.Errorf("%w: round %d is %s", ErrRoundClosed, round.ID, round.Status)
	}
	if m.IsCancelled() || m.HomeTeamID == nil || m.AwayTeamID == nil {
		return nil, nil, fmt.Errorf("%w: match %d is %s or missing a team", ErrMatchNotEditable, m.ID, m.Status)
	}

	homeTeam, err := s.teams.GetByID(ctx, exec, *m.HomeTeamID)
	if err != nil {
		return nil, nil, mapRepositoryError(err)
	}
	awayTeam, err := s.teams.GetByID(ctx, exec, *m.AwayTeamID)
	if err != nil {
		return nil, nil, mapRepositoryError(err)
	}

	matches, err := s.matches.ListByCategory(ctx, exec, m.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	edges, err := s.edges.ListByCategory(ctx, exec, m.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	graph := brackets.NewGraph(matches, edges)

	if m.IsCompleted() && m.HomeScore != nil && m.AwayScore != nil {
		applyResultCounters(homeTeam, awayTeam, *m.HomeScore, *m.AwayScore, -1)
		if err := withdrawRouted(graph, m); err != nil {
			return nil, nil, err
		}
	}

	m.ApplyScore(home, away)
	m.Status = models.MatchStatusCompleted
	completedAt := s.now()
	m.CompletedAt = &completedAt
	if err := s.matches.Update(ctx, exec, m); err != nil {
		return nil, nil, err
	}
	applyResultCounters(homeTeam, awayTeam, home, away, 1)
	for _, t := range []*models.Team{homeTeam, awayTeam} {
		if err := s.teams.UpdateCounters(ctx, exec, t); err != nil {
			return nil, nil, err
		}
	}

	graph.Put(m)
	var assignments []brackets.SlotAssignment
	if m.IsResolved() {
		if assignments, err = graph.Propagate([]int{m.ID}); err != nil {
			return nil, nil, err
		}
	}
	for _, changed := range graph.Changed() {
		if changed.ID == m.ID {
			continue
		}
		if err := s.matches.Update(ctx, exec, changed); err != nil {
			return nil, nil, err
		}
	}
	return m, assignments, nil
}

// withdrawRouted takes a previous winner or loser back out of the matches
// its edges fed, as long as those matches are not played yet.
func withdrawRouted(graph *brackets.Graph, m *models.Match) error {
	for _, e := range graph.Outgoing(m.ID) {
		team := m.WinnerID
		if e.SourceHandle == models.HandleLoserOut {
			team = m.LoserID
		}
		target := graph.Match(e.TargetID)
		if team == nil || target == nil || !target.HasTeam(*team) {
			continue
		}
		if target.IsCompleted() {
			return fmt.Errorf("%w: match %d", ErrDownstreamPlayed, target.ID)
		}
		if _, err := graph.Clear(target.ID, *team); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) CancelMatch(ctx context.Context, matchID int) (match *models.Match, err error) {
	started := time.Now()
	defer func() { metrics.RecordOperation("cancel_match", started, err) }()

	current, err := s.matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	err = s.tx.WithCategoryLock(ctx, current.CategoryID, func(exec repositories.SQLExecutor) error {
		m, err := s.matches.GetByID(ctx, exec, matchID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if m.IsCompleted() {
			return fmt.Errorf("%w: match %d is already played", ErrMatchNotEditable, m.ID)
		}
		if m.IsCancelled() {
			match = m
			return nil
		}
		m.Status = models.MatchStatusCancelled
		if err := s.matches.Update(ctx, exec, m); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{Type: events.MatchCancelled, CategoryID: match.CategoryID, RoundID: match.RoundID, Payload: match})
	return match, nil
}

func (s *matchService) ListRoundMatches(ctx context.Context, roundID int) ([]*models.Match, error) {
	if _, err := s.rounds.GetByID(ctx, nil, roundID); err != nil {
		return nil, mapRepositoryError(err)
	}
	matches, err := s.matches.ListByRound(ctx, nil, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of round %d: %w", roundID, err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

func (s *matchService) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event", slog.String("type", string(evt.Type)), slog.Any("error", err))
	}
}

// applyResultCounters adds (sign 1) or takes back (sign -1) one result.
func applyResultCounters(home, away *models.Team, homeScore, awayScore, sign int) {
	adjustCounters(home, homeScore, awayScore, sign)
	adjustCounters(away, awayScore, homeScore, sign)
}

func adjustCounters(t *models.Team, scored, conceded, sign int) {
	switch {
	case scored > conceded:
		t.Wins = max(t.Wins+sign, 0)
	case scored == conceded:
		t.Draws = max(t.Draws+sign, 0)
	default:
		t.Losses = max(t.Losses+sign, 0)
	}
	t.Points = max(t.Points+sign*brackets.PointsFor(scored, conceded), 0)
}
