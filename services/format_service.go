package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
)

var ErrFormatNameRequired = errors.New("format name is required")

type FormatService interface {
	CreateFormat(ctx context.Context, input CreateFormatInput) (*models.Format, error)
	GetFormatByID(ctx context.Context, id int) (*models.Format, error)
	GetAllFormats(ctx context.Context) ([]models.Format, error)
	UpdateFormat(ctx context.Context, id int, input UpdateFormatInput) (*models.Format, error)
	DeleteFormat(ctx context.Context, id int) error
}

type CreateFormatInput struct {
	Name   string          `json:"name" validate:"required"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// Fields left nil are kept.
type UpdateFormatInput struct {
	Name   *string          `json:"name,omitempty"`
	Config *json.RawMessage `json:"config,omitempty"`
}

type formatService struct {
	formatRepo repositories.FormatRepository
}

func NewFormatService(formatRepo repositories.FormatRepository) FormatService {
	return &formatService{
		formatRepo: formatRepo,
	}
}

// canonicalConfig parses a raw format configuration and re-encodes it with
// its type and every default spelled out.
func canonicalConfig(raw json.RawMessage) (brackets.FormatConfig, json.RawMessage, error) {
	cfg, err := brackets.ParseFormatConfig(raw)
	if err != nil {
		return brackets.FormatConfig{}, nil, err
	}
	canonical, err := json.Marshal(cfg)
	if err != nil {
		return brackets.FormatConfig{}, nil, fmt.Errorf("failed to encode format config: %w", err)
	}
	return cfg, canonical, nil
}

func (s *formatService) CreateFormat(ctx context.Context, input CreateFormatInput) (*models.Format, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrFormatNameRequired
	}
	cfg, canonical, err := canonicalConfig(input.Config)
	if err != nil {
		return nil, err
	}

	format := &models.Format{
		Name:   name,
		Type:   string(cfg.Type),
		Config: canonical,
	}
	if err := s.formatRepo.Create(ctx, format); err != nil {
		return nil, mapRepositoryError(err)
	}
	return format, nil
}

func (s *formatService) GetFormatByID(ctx context.Context, id int) (*models.Format, error) {
	format, err := s.formatRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return format, nil
}

func (s *formatService) GetAllFormats(ctx context.Context) ([]models.Format, error) {
	formats, err := s.formatRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all formats: %w", err)
	}
	if formats == nil {
		return []models.Format{}, nil
	}
	return formats, nil
}

func (s *formatService) UpdateFormat(ctx context.Context, id int, input UpdateFormatInput) (*models.Format, error) {
	format, err := s.formatRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	updated := false
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrFormatNameRequired
		}
		if name != format.Name {
			format.Name = name
			updated = true
		}
	}
	if input.Config != nil {
		cfg, canonical, err := canonicalConfig(*input.Config)
		if err != nil {
			return nil, err
		}
		if string(canonical) != string(format.Config) {
			format.Type = string(cfg.Type)
			format.Config = canonical
			updated = true
		}
	}
	if !updated {
		return format, nil
	}

	if err := s.formatRepo.Update(ctx, format); err != nil {
		return nil, mapRepositoryError(err)
	}
	return format, nil
}

func (s *formatService) DeleteFormat(ctx context.Context, id int) error {
	if err := s.formatRepo.Delete(ctx, id); err != nil {
		return mapRepositoryError(err)
	}
	return nil
}
