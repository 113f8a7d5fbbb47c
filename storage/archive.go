package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
)

type CategoryReader interface {
	GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error)
}

type TeamReader interface {
	ListByCategory(ctx context.Context, exec repositories.SQLExecutor, categoryID int, filter models.TeamFilter) ([]*models.Team, error)
}

// Standings is the archived document of a finished category.
type Standings struct {
	CategoryID int             `json:"category_id"`
	LeagueID   int             `json:"league_id"`
	Name       string          `json:"name"`
	ChampionID *int            `json:"champion_id,omitempty"`
	Teams      []StandingEntry `json:"teams"`
	ArchivedAt time.Time       `json:"archived_at"`
}

type StandingEntry struct {
	Rank   *int   `json:"rank"`
	TeamID int    `json:"team_id"`
	Name   string `json:"name"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Points int    `json:"points"`
}

// StandingsArchiver stores the final standings once a category is won: a
// timestamped snapshot plus a latest.json that points readers at the newest.
type StandingsArchiver struct {
	store      ObjectStore
	categories CategoryReader
	teams      TeamReader
	logger     *slog.Logger
	now        func() time.Time
}

func NewStandingsArchiver(store ObjectStore, categories CategoryReader, teams TeamReader, logger *slog.Logger) *StandingsArchiver {
	return &StandingsArchiver{
		store:      store,
		categories: categories,
		teams:      teams,
		logger:     logger,
		now:        time.Now,
	}
}

func standingsKey(categoryID int, at time.Time) string {
	return fmt.Sprintf("standings/category_%d/%s.json", categoryID, at.UTC().Format("20060102T150405Z"))
}

func latestStandingsKey(categoryID int) string {
	return fmt.Sprintf("standings/category_%d/latest.json", categoryID)
}

// Archive builds the standings of one category and stores the snapshot. The
// latest pointer is written only after the snapshot landed.
func (a *StandingsArchiver) Archive(ctx context.Context, categoryID int) (*StoredObject, error) {
	category, err := a.categories.GetByID(ctx, nil, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %d: %w", categoryID, err)
	}
	teams, err := a.teams.ListByCategory(ctx, nil, categoryID, models.TeamFilter{AcceptedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load teams of category %d: %w", categoryID, err)
	}

	doc := Standings{
		CategoryID: category.ID,
		LeagueID:   category.LeagueID,
		Name:       category.Name,
		Teams:      make([]StandingEntry, 0, len(teams)),
		ArchivedAt: a.now().UTC(),
	}
	for _, t := range teams {
		if t.IsChampion {
			doc.ChampionID = models.IntPtr(t.ID)
		}
		doc.Teams = append(doc.Teams, StandingEntry{
			Rank:   t.FinalRank,
			TeamID: t.ID,
			Name:   t.Name,
			Wins:   t.Wins,
			Losses: t.Losses,
			Draws:  t.Draws,
			Points: t.Points,
		})
	}
	// Ranked teams first, unranked ones by id.
	sort.SliceStable(doc.Teams, func(i, j int) bool {
		ri, rj := doc.Teams[i].Rank, doc.Teams[j].Rank
		switch {
		case ri != nil && rj != nil:
			return *ri < *rj
		case ri != nil:
			return true
		case rj != nil:
			return false
		}
		return doc.Teams[i].TeamID < doc.Teams[j].TeamID
	})

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode standings: %w", err)
	}
	snapshot, err := a.store.PutObject(ctx, standingsKey(categoryID, doc.ArchivedAt), "application/json", body)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.PutObject(ctx, latestStandingsKey(categoryID), "application/json", body); err != nil {
		return nil, fmt.Errorf("standings snapshot %s stored but latest pointer failed: %w", snapshot.Key, err)
	}
	a.logger.Info("standings archived",
		slog.Int("category_id", categoryID),
		slog.String("url", snapshot.URL),
	)
	return snapshot, nil
}

// Handler subscribes the archiver to the event bus.
func (a *StandingsArchiver) Handler() events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		if evt.Type != events.ChampionCrowned {
			return nil
		}
		_, err := a.Archive(ctx, evt.CategoryID)
		return err
	}
}
