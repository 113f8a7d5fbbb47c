package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/models"
)

var (
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrEdgeDuplicate = errors.New("edge already exists")
)

type EdgeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, edge *models.Edge) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Edge, error)
	ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Edge, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	// DeleteForMatches removes every edge that starts or ends at one of the matches.
	DeleteForMatches(ctx context.Context, exec SQLExecutor, matchIDs []int) (int, error)
}

type postgresEdgeRepository struct {
	db *sql.DB
}

func NewPostgresEdgeRepository(db *sql.DB) EdgeRepository {
	return &postgresEdgeRepository{db: db}
}

func (r *postgresEdgeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const edgeColumns = `id, category_id, source_type, source_id, source_handle, target_type, target_id, target_handle, created_at`

func (r *postgresEdgeRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Edge) error {
	query := `
		INSERT INTO edges (category_id, source_type, source_id, source_handle, target_type, target_id, target_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.CategoryID, e.SourceType, e.SourceID, e.SourceHandle, e.TargetType, e.TargetID, e.TargetHandle,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqErrorCode(err); ok && code == "23505" && constraint == "edges_unique_link_key" {
			return ErrEdgeDuplicate
		}
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (r *postgresEdgeRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE id = $1`
	e, err := scanEdge(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("failed to get edge %d: %w", id, err)
	}
	return e, nil
}

func (r *postgresEdgeRepository) ListByCategory(ctx context.Context, exec SQLExecutor, categoryID int) ([]*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE category_id = $1 ORDER BY id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	edges := make([]*models.Edge, 0)
	for rows.Next() {
		e, scanErr := scanEdge(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", scanErr)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (r *postgresEdgeRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEdgeNotFound)
}

func scanEdge(row rowScanner) (*models.Edge, error) {
	var e models.Edge
	err := row.Scan(&e.ID, &e.CategoryID, &e.SourceType, &e.SourceID, &e.SourceHandle,
		&e.TargetType, &e.TargetID, &e.TargetHandle, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *postgresEdgeRepository) DeleteForMatches(ctx context.Context, exec SQLExecutor, matchIDs []int) (int, error) {
	if len(matchIDs) == 0 {
		return 0, nil
	}
	query := `
		DELETE FROM edges
		WHERE (source_type = $1 AND source_id = ANY($2))
		   OR (target_type = $1 AND target_id = ANY($2))`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, models.NodeMatch, intArray(matchIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete edges of %d matches: %w", len(matchIDs), err)
	}
	return affectedRows(result)
}
