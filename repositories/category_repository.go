package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/models"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Category, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CategoryStatus) error
	// ListActiveIDs returns categories that have at least one Ongoing or
	// Finished round.
	ListActiveIDs(ctx context.Context, exec SQLExecutor) ([]int, error)
}

type postgresCategoryRepository struct {
	db *sql.DB
}

func NewPostgresCategoryRepository(db *sql.DB) CategoryRepository {
	return &postgresCategoryRepository{db: db}
}

func (r *postgresCategoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCategoryRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Category, error) {
	query := `
		SELECT id, league_id, name, max_team, gender, min_age, max_age, status, created_at
		FROM categories
		WHERE id = $1`
	var c models.Category
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.LeagueID,
		&c.Name,
		&c.MaxTeam,
		&c.Gender,
		&c.MinAge,
		&c.MaxAge,
		&c.Status,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return &c, nil
}

func (r *postgresCategoryRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CategoryStatus) error {
	query := `UPDATE categories SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of category %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) ListActiveIDs(ctx context.Context, exec SQLExecutor) ([]int, error) {
	query := `
		SELECT DISTINCT category_id
		FROM rounds
		WHERE round_status IN ($1, $2)
		ORDER BY category_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, models.RoundStatusOngoing, models.RoundStatusFinished)
	if err != nil {
		return nil, fmt.Errorf("failed to list active categories: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
