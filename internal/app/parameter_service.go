package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/parameter"
)

// ParameterService manages the company's parameter catalog.
// Changes apply to cycles opened afterwards; existing instances keep their name only.
type ParameterService struct {
	repo   parameter.Repository
	logger *logrus.Entry
	now    func() time.Time
}

func NewParameterService(repo parameter.Repository, logger *logrus.Entry) *ParameterService {
	return &ParameterService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a definition. New definitions are active unless the caller says otherwise.
func (s *ParameterService) Create(ctx context.Context, def *parameter.Definition) (*parameter.Definition, error) {
	def.Name = strings.TrimSpace(def.Name)
	if err := def.Validate(); err != nil {
		return nil, err
	}

	// Check if the name is already taken in this company
	_, err := s.repo.GetByName(ctx, def.CompanyID, def.Name)
	if err == nil {
		return nil, fmt.Errorf("%w: parameter %q already exists", apperr.ErrConflict, def.Name)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing parameter: %w", err)
	}

	def.CreatedAt = s.now()
	def.UpdatedAt = def.CreatedAt
	if err := s.repo.Create(ctx, def); err != nil {
		// ErrConflict here means a concurrent create won.
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"company_id": def.CompanyID, "parameter": def.Name}).Info("Parameter definition created")
	return def, nil
}

// Update replaces the recipe and range of an existing definition, keyed by (company, name).
func (s *ParameterService) Update(ctx context.Context, def *parameter.Definition) (*parameter.Definition, error) {
	def.Name = strings.TrimSpace(def.Name)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"company_id": def.CompanyID, "parameter": def.Name}).Info("Parameter definition updated")
	return def, nil
}

func (s *ParameterService) Get(ctx context.Context, companyID int64, name string) (*parameter.Definition, error) {
	if companyID <= 0 {
		return nil, apperr.Validationf("company_id is required")
	}
	return s.repo.GetByName(ctx, companyID, strings.TrimSpace(name))
}

func (s *ParameterService) List(ctx context.Context, companyID int64, activeOnly bool) ([]*parameter.Definition, error) {
	if companyID <= 0 {
		return nil, apperr.Validationf("company_id is required")
	}
	return s.repo.List(ctx, companyID, activeOnly)
}

// SetActive toggles whether the definition seeds new cycles and counts toward conclusion.
func (s *ParameterService) SetActive(ctx context.Context, companyID int64, name string, active bool) (*parameter.Definition, error) {
	if companyID <= 0 {
		return nil, apperr.Validationf("company_id is required")
	}
	def, err := s.repo.SetActive(ctx, companyID, strings.TrimSpace(name), active)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"company_id": companyID, "parameter": def.Name, "active": active}).Info("Parameter definition toggled")
	return def, nil
}
