package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/repository"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type categoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

// CategoryService manages the course catalog tags offered on upload forms.
type CategoryService struct {
	categories categoryRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCategoryService constructs a CategoryService instance.
func NewCategoryService(categories categoryRepository, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CategoryService{categories: categories, validator: validate, logger: logger}
}

// List returns all course tags sorted alphabetically.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Create seeds a new course tag. Only site administrators may call this.
func (s *CategoryService) Create(ctx context.Context, isAdmin bool, req models.CreateCategoryRequest) (*models.Category, error) {
	if !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only site administrators can manage categories")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category := &models.Category{Tag: strings.ToUpper(strings.TrimSpace(req.Tag))}
	if err := s.categories.Create(ctx, category); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "this course tag already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	return category, nil
}
