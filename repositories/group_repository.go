package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/models"
	"github.com/lib/pq"
)

var ErrGroupLabelConflict = errors.New("group label already used in round")

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Group, error)
	DeleteByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, group *models.Group) error {
	query := `INSERT INTO groups (round_id, label, team_ids) VALUES ($1, $2, $3) RETURNING id`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, group.RoundID, group.Label, intArray(group.TeamIDs)).Scan(&group.ID)
	if err != nil {
		if code, constraint, ok := pqErrorCode(err); ok && code == "23505" && constraint == "groups_round_label_key" {
			return ErrGroupLabelConflict
		}
		return fmt.Errorf("failed to create group %s of round %d: %w", group.Label, group.RoundID, err)
	}
	return nil
}

func (r *postgresGroupRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Group, error) {
	query := `SELECT id, round_id, label, team_ids FROM groups WHERE round_id = $1 ORDER BY label ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups of round %d: %w", roundID, err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		var (
			g   models.Group
			ids pq.Int64Array
		)
		if err := rows.Scan(&g.ID, &g.RoundID, &g.Label, &ids); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		g.TeamIDs = intsFromArray(ids)
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

func (r *postgresGroupRepository) DeleteByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM groups WHERE round_id = $1`, roundID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete groups of round %d: %w", roundID, err)
	}
	return affectedRows(result)
}
