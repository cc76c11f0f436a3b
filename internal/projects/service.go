package projects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/constructo-erp/constructo-erp/internal/quotes"
)

// Service manages construction projects and their planned materials.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	start := req.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	target := req.TargetDate
	if target.IsZero() {
		target = start.AddDate(0, 0, 60)
	}

	project := Project{
		Name:           req.Name,
		Description:    req.Description,
		Status:         ProjectStatusTodo,
		EstimatedPrice: req.EstimatedPrice,
		StartDate:      start,
		TargetDate:     target,
		CompanyID:      req.CompanyID,
	}
	id, err := s.repo.Create(ctx, project)
	if err != nil {
		return nil, err
	}
	project.ID = id

	s.logger.InfoContext(ctx, "project created", "project_id", id, "name", project.Name)
	return &project, nil
}

// CreateFromQuote opens the project backing an approved quote, carrying
// the quote lines over as planned materials. Satisfies the quote
// module's materialization dependency.
func (s *Service) CreateFromQuote(ctx context.Context, seed quotes.ProjectSeed) (int64, error) {
	var projectID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		project := Project{
			Name:           seed.Name,
			Description:    &seed.Description,
			Status:         ProjectStatusTodo,
			EstimatedPrice: seed.EstimatedPrice,
			StartDate:      seed.StartDate,
			TargetDate:     seed.TargetDate,
			CompanyID:      seed.CompanyID,
			QuoteID:        &seed.QuoteID,
		}
		id, err := tx.Create(ctx, project)
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		projectID = id

		for _, mat := range seed.Materials {
			if _, err := tx.InsertMaterial(ctx, Material{
				ProjectID:   id,
				Description: mat.Description,
				ProductCode: mat.ProductCode,
				Quantity:    mat.Quantity,
				Unit:        mat.Unit,
				UnitPrice:   mat.UnitPrice,
				Notes:       mat.Notes,
			}); err != nil {
				return fmt.Errorf("insert material: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "project created from quote",
		"project_id", projectID, "quote_id", seed.QuoteID)
	return projectID, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListProjectsRequest) ([]Project, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status ProjectStatus) (*Project, error) {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "project status changed", "project_id", id, "status", status)
	return s.repo.Get(ctx, id)
}

func (s *Service) AddMaterial(ctx context.Context, projectID int64, req AddMaterialRequest) (*Material, error) {
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	material := Material{
		ProjectID:   projectID,
		Description: req.Description,
		ProductCode: req.ProductCode,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		UnitPrice:   req.UnitPrice,
		Notes:       req.Notes,
	}
	id, err := s.repo.InsertMaterial(ctx, material)
	if err != nil {
		return nil, err
	}
	material.ID = id
	return &material, nil
}
