package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBracketService(s *memStore, pub events.Publisher) BracketService {
	return NewBracketService(BracketDeps{
		Tx:         s,
		Categories: memCategories{s},
		Rounds:     memRounds{s},
		Groups:     memGroups{s},
		Matches:    memMatches{s},
		Teams:      memTeams{s},
		Edges:      memEdges{s},
		Formats:    memFormats{s},
		Events:     pub,
		Logger:     discardLogger(),
		CacheTTL:   time.Minute,
	})
}

func routing(source int, handle models.Handle, target int, slot models.Handle) CreateEdgeInput {
	return CreateEdgeInput{
		CategoryID:   1,
		SourceType:   models.NodeMatch,
		SourceID:     source,
		SourceHandle: handle,
		TargetType:   models.NodeMatch,
		TargetID:     target,
		TargetHandle: slot,
	}
}

func TestBracketService_GetBracketIsCached(t *testing.T) {
	f := newFixture(t)
	manualBracket(f)
	svc := newBracketService(f.store, f.events)
	ctx := context.Background()

	view, err := svc.GetBracket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Category.ID)
	assert.Len(t, view.Rounds, 2)
	assert.Len(t, view.Matches, 3)
	assert.Len(t, view.Edges, 2)
	assert.Len(t, view.Teams, 4)

	f.store.addMatch(&models.Match{ID: 104, CategoryID: 1, RoundID: 20, StageNumber: 1})
	view, err = svc.GetBracket(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, view.Matches, 3, "served from cache")

	svc.Invalidate(1)
	view, err = svc.GetBracket(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, view.Matches, 4)

	_, err = svc.GetBracket(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBracketService_CreateEdge(t *testing.T) {
	f := newFixture(t)
	manualBracket(f)
	f.store.addMatch(&models.Match{ID: 104, CategoryID: 1, RoundID: 20, StageNumber: 1})
	svc := newBracketService(f.store, f.events)
	ctx := context.Background()

	_, err := svc.GetBracket(ctx, 1)
	require.NoError(t, err)

	edge, err := svc.CreateEdge(ctx, routing(102, models.HandleWinnerOut, 104, models.HandleSlotIn))
	require.NoError(t, err)
	assert.NotZero(t, edge.ID)
	assert.Contains(t, f.events.types(), string(events.BracketChanged))

	view, err := svc.GetBracket(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, view.Edges, 3, "creating an edge drops the cached view")

	_, err = svc.CreateEdge(ctx, routing(102, models.HandleWinnerOut, 104, models.HandleSlotIn))
	assert.ErrorIs(t, err, ErrEdgeDuplicate)
}

func TestBracketService_CreateEdgeRejects(t *testing.T) {
	f := newFixture(t)
	manualBracket(f)
	f.store.addCategory(2)
	f.store.addMatch(&models.Match{ID: 201, CategoryID: 2, RoundID: 99, StageNumber: 1})
	svc := newBracketService(f.store, f.events)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateEdgeInput
	}{
		{"handle pair", routing(101, models.HandleWinnerOut, 103, models.HandleRoundIn)},
		{"self loop", routing(103, models.HandleWinnerOut, 103, models.HandleSlotIn)},
		{"unknown target", routing(101, models.HandleWinnerOut, 999, models.HandleSlotIn)},
		{"foreign category", routing(101, models.HandleWinnerOut, 201, models.HandleSlotIn)},
		{"cycle", routing(103, models.HandleWinnerOut, 101, models.HandleSlotIn)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEdge(ctx, tt.input)
			assert.ErrorIs(t, err, ErrInvalidEdge)
		})
	}

	_, err := svc.CreateEdge(ctx, CreateEdgeInput{CategoryID: 1})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Len(t, f.store.edges, 2)
}

func TestBracketService_FormatEdges(t *testing.T) {
	f := newFixture(t)
	f.store.addFormat(5, knockoutRanked)
	f.store.addRound(10, 1, 1, nil)
	generated := f.store.addRound(20, 1, 2, nil)
	generated.MatchesGenerated = true
	svc := newBracketService(f.store, f.events)
	ctx := context.Background()

	input := CreateEdgeInput{
		CategoryID:   1,
		SourceType:   models.NodeFormat,
		SourceID:     5,
		SourceHandle: models.HandleFormatOut,
		TargetType:   models.NodeRound,
		TargetID:     10,
		TargetHandle: models.HandleRoundFormatIn,
	}
	edge, err := svc.CreateEdge(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, f.store.round(10).FormatID)
	assert.Equal(t, 5, *f.store.round(10).FormatID)

	input.TargetID = 20
	_, err = svc.CreateEdge(ctx, input)
	assert.ErrorIs(t, err, ErrInvalidEdge, "a generated round keeps its format")

	require.NoError(t, svc.DeleteEdge(ctx, edge.ID))
	assert.Nil(t, f.store.round(10).FormatID)

	assert.ErrorIs(t, svc.DeleteEdge(ctx, edge.ID), ErrNotFound)
}
