package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/league-engine/models"
)

var (
	ErrTeamNotFound      = errors.New("team not found")
	ErrTeamRankConflict  = errors.New("final rank already held by another team of the category")
	ErrTeamChampionTaken = errors.New("category already has a champion")
)

type TeamRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int, filter models.TeamFilter) ([]*models.Team, error)
	UpdateCounters(ctx context.Context, exec SQLExecutor, team *models.Team) error
	// UpdateProgress writes elimination, champion and rank fields.
	UpdateProgress(ctx context.Context, exec SQLExecutor, team *models.Team) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const teamColumns = `id, category_id, name, status, wins, losses, draws, points,
		is_eliminated, is_champion, final_rank, eliminated_in_round, created_at`

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := scanTeam(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int, filter models.TeamFilter) ([]*models.Team, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + teamColumns + ` FROM teams WHERE category_id = $1`)

	args := []interface{}{categoryID}
	if filter.AcceptedOnly {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, models.TeamStatusAccepted)
	}
	if filter.NotEliminated {
		queryBuilder.WriteString(" AND NOT is_eliminated")
	}
	queryBuilder.WriteString(" ORDER BY id ASC")

	rows, err := r.getExecutor(exec).QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t, scanErr := scanTeam(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team rows iteration: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) UpdateCounters(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `UPDATE teams SET wins = $1, losses = $2, draws = $3, points = $4 WHERE id = $5`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, t.Wins, t.Losses, t.Draws, t.Points, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update counters of team %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateProgress(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `
		UPDATE teams
		SET is_eliminated = $1, is_champion = $2, final_rank = $3, eliminated_in_round = $4
		WHERE id = $5`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, t.IsEliminated, t.IsChampion, t.FinalRank, t.EliminatedInRound, t.ID)
	if err != nil {
		if code, constraint, ok := pqErrorCode(err); ok && code == "23505" {
			switch constraint {
			case "teams_category_rank_key":
				return ErrTeamRankConflict
			case "teams_one_champion_idx":
				return ErrTeamChampionTaken
			}
		}
		return fmt.Errorf("failed to update progress of team %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var t models.Team
	err := row.Scan(
		&t.ID,
		&t.CategoryID,
		&t.Name,
		&t.Status,
		&t.Wins,
		&t.Losses,
		&t.Draws,
		&t.Points,
		&t.IsEliminated,
		&t.IsChampion,
		&t.FinalRank,
		&t.EliminatedInRound,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
