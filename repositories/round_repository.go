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
	ErrRoundNotFound      = errors.New("round not found")
	ErrRoundFormatInvalid = errors.New("round format reference invalid")
)

type RoundRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Round, error)
	// UpdateProgress writes the engine-owned columns of a round.
	UpdateProgress(ctx context.Context, exec SQLExecutor, round *models.Round) error
	SetFormat(ctx context.Context, exec SQLExecutor, roundID int, formatID *int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roundColumns = `id, category_id, name, round_order, format_id, round_status, matches_generated,
		current_stage, total_stages, next_round_id, has_third_place, bye_team_ids, created_at`

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	round, err := scanRound(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE category_id = $1 ORDER BY round_order ASC, id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		round, scanErr := scanRound(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) UpdateProgress(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		UPDATE rounds
		SET round_status = $1, matches_generated = $2, current_stage = $3, total_stages = $4, bye_team_ids = $5
		WHERE id = $6`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		round.Status,
		round.MatchesGenerated,
		round.CurrentStage,
		round.TotalStages,
		intArray(round.ByeTeamIDs),
		round.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update round %d: %w", round.ID, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) SetFormat(ctx context.Context, exec SQLExecutor, roundID int, formatID *int) error {
	query := `UPDATE rounds SET format_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, formatID, roundID)
	if err != nil {
		if code, constraint, ok := pqErrorCode(err); ok && code == "23503" && constraint == "rounds_format_id_fkey" {
			return ErrRoundFormatInvalid
		}
		return fmt.Errorf("failed to set format of round %d: %w", roundID, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func scanRound(row rowScanner) (*models.Round, error) {
	var (
		round models.Round
		byes  pq.Int64Array
	)
	err := row.Scan(
		&round.ID,
		&round.CategoryID,
		&round.Name,
		&round.RoundOrder,
		&round.FormatID,
		&round.Status,
		&round.MatchesGenerated,
		&round.CurrentStage,
		&round.TotalStages,
		&round.NextRoundID,
		&round.HasThirdPlace,
		&byes,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	round.ByeTeamIDs = intsFromArray(byes)
	return &round, nil
}
