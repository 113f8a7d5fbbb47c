package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/models"
)

var (
	ErrFormatNotFound     = errors.New("format not found")
	ErrFormatNameConflict = errors.New("format name conflict")
	ErrFormatInUse        = errors.New("format is in use by a round")
)

type FormatRepository interface {
	Create(ctx context.Context, format *models.Format) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Format, error)
	GetAll(ctx context.Context) ([]models.Format, error)
	Update(ctx context.Context, format *models.Format) error
	Delete(ctx context.Context, id int) error
}

type postgresFormatRepository struct {
	db *sql.DB
}

func NewPostgresFormatRepository(db *sql.DB) FormatRepository {
	return &postgresFormatRepository{db: db}
}

func (r *postgresFormatRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresFormatRepository) Create(ctx context.Context, format *models.Format) error {
	query := `
		INSERT INTO formats (name, type, config)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		format.Name,
		format.Type,
		[]byte(format.Config),
	).Scan(&format.ID, &format.CreatedAt)
	return r.handleFormatError(err)
}

func (r *postgresFormatRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Format, error) {
	query := `
		SELECT id, name, type, config, created_at
		FROM formats
		WHERE id = $1`
	format, err := scanFormat(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to get format %d: %w", id, err)
	}
	return format, nil
}

func (r *postgresFormatRepository) GetAll(ctx context.Context) ([]models.Format, error) {
	query := `
		SELECT id, name, type, config, created_at
		FROM formats
		ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formats := make([]models.Format, 0)
	for rows.Next() {
		format, scanErr := scanFormat(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		formats = append(formats, *format)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return formats, nil
}

func (r *postgresFormatRepository) Update(ctx context.Context, format *models.Format) error {
	query := `
		UPDATE formats
		SET name = $1, type = $2, config = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query,
		format.Name,
		format.Type,
		[]byte(format.Config),
		format.ID,
	)
	if err != nil {
		return r.handleFormatError(err)
	}
	return checkAffectedRows(result, ErrFormatNotFound)
}

func (r *postgresFormatRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM formats WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleFormatError(err)
	}
	return checkAffectedRows(result, ErrFormatNotFound)
}

func (r *postgresFormatRepository) handleFormatError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint, ok := pqErrorCode(err)
	if !ok {
		return err
	}
	switch {
	case code == "23505" && constraint == "formats_name_key":
		return ErrFormatNameConflict
	case code == "23503" && constraint == "rounds_format_id_fkey":
		return ErrFormatInUse
	}
	return err
}

func scanFormat(row rowScanner) (*models.Format, error) {
	var (
		format models.Format
		config []byte
	)
	if err := row.Scan(&format.ID, &format.Name, &format.Type, &config, &format.CreatedAt); err != nil {
		return nil, err
	}
	format.Config = config
	return &format, nil
}
