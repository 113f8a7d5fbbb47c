package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchRoundInvalid  = errors.New("match round conflict or invalid")
	ErrMatchTeamInvalid   = errors.New("match team conflict or invalid")
	ErrMatchSameTeams     = errors.New("match home and away team are the same")
	ErrMatchScoreNegative = errors.New("match score must not be negative")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error)
	ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Match, error)
	// Update writes slots, scores, result and status of a match.
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateDependsOn(ctx context.Context, exec SQLExecutor, matchID int, dependsOn []int) error
	DeleteByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, category_id, round_id, group_id, bracket_uid, home_team_id, away_team_id,
		home_score, away_score, winner_id, loser_id, status, stage_number, is_final, is_third_place,
		is_elimination, is_runner_up, depends_on, generated_by, bracket_side, display_name,
		completed_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(category_id, round_id, group_id, bracket_uid, home_team_id, away_team_id, status,
			 stage_number, is_final, is_third_place, is_elimination, is_runner_up, depends_on,
			 generated_by, bracket_side, display_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.CategoryID,
		m.RoundID,
		m.GroupID,
		m.BracketUID,
		m.HomeTeamID,
		m.AwayTeamID,
		m.Status,
		m.StageNumber,
		m.IsFinal,
		m.IsThirdPlace,
		m.IsElimination,
		m.IsRunnerUp,
		intArray(m.DependsOn),
		m.GeneratedBy,
		m.BracketSide,
		m.DisplayName,
	).Scan(&m.ID, &m.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE round_id = $1 ORDER BY id ASC`
	return r.list(ctx, exec, query, roundID)
}

func (r *postgresMatchRepository) ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE category_id = $1 ORDER BY id ASC`
	return r.list(ctx, exec, query, categoryID)
}

func (r *postgresMatchRepository) list(ctx context.Context, exec SQLExecutor, query string, arg int) ([]*models.Match, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches
		SET home_team_id = $1, away_team_id = $2, home_score = $3, away_score = $4,
		    winner_id = $5, loser_id = $6, status = $7, completed_at = $8, is_runner_up = $9
		WHERE id = $10`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		m.HomeTeamID,
		m.AwayTeamID,
		m.HomeScore,
		m.AwayScore,
		m.WinnerID,
		m.LoserID,
		m.Status,
		m.CompletedAt,
		m.IsRunnerUp,
		m.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateDependsOn(ctx context.Context, exec SQLExecutor, matchID int, dependsOn []int) error {
	query := `UPDATE matches SET depends_on = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, intArray(dependsOn), matchID)
	if err != nil {
		return fmt.Errorf("UpdateDependsOn: failed to execute query for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM matches WHERE round_id = $1`, roundID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches of round %d: %w", roundID, err)
	}
	return affectedRows(result)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint, ok := pqErrorCode(err)
	if !ok {
		return err
	}
	switch code {
	case "23503": // foreign_key_violation
		switch constraint {
		case "matches_round_id_fkey", "matches_category_id_fkey", "matches_group_id_fkey":
			return ErrMatchRoundInvalid
		case "matches_home_team_id_fkey", "matches_away_team_id_fkey", "matches_winner_id_fkey", "matches_loser_id_fkey":
			return ErrMatchTeamInvalid
		}
	case "23514": // check_violation
		switch constraint {
		case "chk_match_distinct_teams":
			return ErrMatchSameTeams
		case "matches_home_score_check", "matches_away_score_check":
			return ErrMatchScoreNegative
		}
	}
	return err
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m         models.Match
		dependsOn pq.Int64Array
	)
	err := row.Scan(
		&m.ID,
		&m.CategoryID,
		&m.RoundID,
		&m.GroupID,
		&m.BracketUID,
		&m.HomeTeamID,
		&m.AwayTeamID,
		&m.HomeScore,
		&m.AwayScore,
		&m.WinnerID,
		&m.LoserID,
		&m.Status,
		&m.StageNumber,
		&m.IsFinal,
		&m.IsThirdPlace,
		&m.IsElimination,
		&m.IsRunnerUp,
		&dependsOn,
		&m.GeneratedBy,
		&m.BracketSide,
		&m.DisplayName,
		&m.CompletedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.DependsOn = intsFromArray(dependsOn)
	return &m, nil
}
