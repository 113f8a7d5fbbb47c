package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
	"github.com/go-playground/validator/v10"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// BracketView is everything the bracket editor draws for one category.
type BracketView struct {
	Category *models.Category `json:"category"`
	Rounds   []*models.Round  `json:"rounds"`
	Matches  []*models.Match  `json:"matches"`
	Edges    []*models.Edge   `json:"edges"`
	Teams    []*models.Team   `json:"teams"`
}

type CreateEdgeInput struct {
	CategoryID   int             `json:"category_id" validate:"required,gt=0"`
	SourceType   models.NodeType `json:"source_type" validate:"required"`
	SourceID     int             `json:"source_id" validate:"required,gt=0"`
	SourceHandle models.Handle   `json:"source_handle" validate:"required"`
	TargetType   models.NodeType `json:"target_type" validate:"required"`
	TargetID     int             `json:"target_id" validate:"required,gt=0"`
	TargetHandle models.Handle   `json:"target_handle" validate:"required"`
}

type BracketService interface {
	GetBracket(ctx context.Context, categoryID int) (*BracketView, error)
	CreateEdge(ctx context.Context, input CreateEdgeInput) (*models.Edge, error)
	DeleteEdge(ctx context.Context, edgeID int) error
	// Invalidate drops the cached view of a category.
	Invalidate(categoryID int)
}

type BracketDeps struct {
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
	CacheTTL   time.Duration
}

type bracketService struct {
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
	views      *cache.Cache
	validate   *validator.Validate
}

func NewBracketService(deps BracketDeps) BracketService {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &bracketService{
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
		views:      cache.New(ttl, ttl*2),
		validate:   validator.New(),
	}
}

func viewKey(categoryID int) string {
	return "bracket:" + strconv.Itoa(categoryID)
}

func (s *bracketService) Invalidate(categoryID int) {
	s.views.Delete(viewKey(categoryID))
}

func (s *bracketService) GetBracket(ctx context.Context, categoryID int) (*BracketView, error) {
	if cached, ok := s.views.Get(viewKey(categoryID)); ok {
		if view, ok := cached.(*BracketView); ok {
			return view, nil
		}
	}

	view := &BracketView{}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		category, err := s.categories.GetByID(gCtx, nil, categoryID)
		if err != nil {
			return mapRepositoryError(err)
		}
		view.Category = category
		return nil
	})
	g.Go(func() error {
		rounds, err := s.rounds.ListByCategory(gCtx, nil, categoryID)
		if err != nil {
			return fmt.Errorf("failed to fetch rounds of category %d: %w", categoryID, err)
		}
		for _, r := range rounds {
			groups, err := s.groups.ListByRound(gCtx, nil, r.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch groups of round %d: %w", r.ID, err)
			}
			r.Groups = groups
		}
		view.Rounds = rounds
		return nil
	})
	g.Go(func() error {
		matches, err := s.matches.ListByCategory(gCtx, nil, categoryID)
		if err != nil {
			return fmt.Errorf("failed to fetch matches of category %d: %w", categoryID, err)
		}
		view.Matches = matches
		return nil
	})
	g.Go(func() error {
		edges, err := s.edges.ListByCategory(gCtx, nil, categoryID)
		if err != nil {
			return fmt.Errorf("failed to fetch edges of category %d: %w", categoryID, err)
		}
		view.Edges = edges
		return nil
	})
	g.Go(func() error {
		teams, err := s.teams.ListByCategory(gCtx, nil, categoryID, models.TeamFilter{AcceptedOnly: true})
		if err != nil {
			return fmt.Errorf("failed to fetch teams of category %d: %w", categoryID, err)
		}
		view.Teams = teams
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.views.SetDefault(viewKey(categoryID), view)
	return view, nil
}

func (s *bracketService) CreateEdge(ctx context.Context, input CreateEdgeInput) (*models.Edge, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	edge := &models.Edge{
		CategoryID:   input.CategoryID,
		SourceType:   input.SourceType,
		SourceID:     input.SourceID,
		SourceHandle: input.SourceHandle,
		TargetType:   input.TargetType,
		TargetID:     input.TargetID,
		TargetHandle: input.TargetHandle,
	}
	if !edge.HasValidHandles() {
		return nil, fmt.Errorf("%w: %s/%s cannot connect to %s/%s", ErrInvalidEdge, edge.SourceType, edge.SourceHandle, edge.TargetType, edge.TargetHandle)
	}
	if edge.SourceType == edge.TargetType && edge.SourceID == edge.TargetID {
		return nil, fmt.Errorf("%w: %s %d cannot link to itself", ErrInvalidEdge, edge.SourceType, edge.SourceID)
	}

	err := s.tx.WithCategoryLock(ctx, input.CategoryID, func(exec repositories.SQLExecutor) error {
		if err := s.checkEndpoints(ctx, exec, edge); err != nil {
			return err
		}
		if edge.IsMatchRouting() {
			if err := s.checkAcyclic(ctx, exec, edge); err != nil {
				return err
			}
		}
		if err := s.edges.Create(ctx, exec, edge); err != nil {
			return mapRepositoryError(err)
		}
		if edge.SourceHandle == models.HandleFormatOut {
			if err := s.rounds.SetFormat(ctx, exec, edge.TargetID, models.IntPtr(edge.SourceID)); err != nil {
				return mapRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(edge.CategoryID)
	s.logger.Info("edge created",
		slog.Int("edge_id", edge.ID),
		slog.Int("category_id", edge.CategoryID),
		slog.String("source_handle", string(edge.SourceHandle)),
		slog.String("target_handle", string(edge.TargetHandle)),
	)
	s.publish(ctx, events.Event{Type: events.BracketChanged, CategoryID: edge.CategoryID, Payload: edge})
	return edge, nil
}

// checkEndpoints makes sure both ends exist and belong to the edge's category.
func (s *bracketService) checkEndpoints(ctx context.Context, exec repositories.SQLExecutor, edge *models.Edge) error {
	for _, end := range []struct {
		kind models.NodeType
		id   int
	}{{edge.SourceType, edge.SourceID}, {edge.TargetType, edge.TargetID}} {
		categoryID := edge.CategoryID
		var err error
		switch end.kind {
		case models.NodeCategory:
			_, err = s.categories.GetByID(ctx, exec, end.id)
			categoryID = end.id
		case models.NodeFormat:
			_, err = s.formats.GetByID(ctx, exec, end.id)
		case models.NodeRound:
			var r *models.Round
			if r, err = s.rounds.GetByID(ctx, exec, end.id); err == nil {
				categoryID = r.CategoryID
				if end.id == edge.TargetID && edge.TargetHandle == models.HandleRoundFormatIn && r.MatchesGenerated {
					return fmt.Errorf("%w: round %d is already generated", ErrInvalidEdge, r.ID)
				}
			}
		case models.NodeMatch:
			var m *models.Match
			if m, err = s.matches.GetByID(ctx, exec, end.id); err == nil {
				categoryID = m.CategoryID
			}
		default:
			return fmt.Errorf("%w: unknown node type %q", ErrInvalidEdge, end.kind)
		}
		if err != nil {
			return fmt.Errorf("%w: %s %d: %v", ErrInvalidEdge, end.kind, end.id, err)
		}
		if categoryID != edge.CategoryID {
			return fmt.Errorf("%w: %s %d belongs to category %d", ErrInvalidEdge, end.kind, end.id, categoryID)
		}
	}
	return nil
}

func (s *bracketService) checkAcyclic(ctx context.Context, exec repositories.SQLExecutor, edge *models.Edge) error {
	matches, err := s.matches.ListByCategory(ctx, exec, edge.CategoryID)
	if err != nil {
		return err
	}
	existing, err := s.edges.ListByCategory(ctx, exec, edge.CategoryID)
	if err != nil {
		return err
	}
	graph := brackets.NewGraph(matches, append(existing, edge))
	if err := graph.DetectCycle([]int{edge.SourceID}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, err)
	}
	return nil
}

func (s *bracketService) DeleteEdge(ctx context.Context, edgeID int) error {
	edge, err := s.edges.GetByID(ctx, nil, edgeID)
	if err != nil {
		return mapRepositoryError(err)
	}
	err = s.tx.WithCategoryLock(ctx, edge.CategoryID, func(exec repositories.SQLExecutor) error {
		if err := s.edges.Delete(ctx, exec, edgeID); err != nil {
			return mapRepositoryError(err)
		}
		if edge.SourceHandle != models.HandleFormatOut {
			return nil
		}
		round, err := s.rounds.GetByID(ctx, exec, edge.TargetID)
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if round.MatchesGenerated || round.FormatID == nil || *round.FormatID != edge.SourceID {
			return nil
		}
		return mapRepositoryError(s.rounds.SetFormat(ctx, exec, round.ID, nil))
	})
	if err != nil {
		return err
	}

	s.Invalidate(edge.CategoryID)
	s.publish(ctx, events.Event{Type: events.BracketChanged, CategoryID: edge.CategoryID, Payload: map[string]int{"deleted_edge_id": edgeID}})
	return nil
}

func (s *bracketService) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event", slog.String("type", string(evt.Type)), slog.Any("error", err))
	}
}
