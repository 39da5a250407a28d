package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// LabelService manages one kind of label (tags or ingredients) for the
// calling user. Construct one per kind.
type LabelService struct {
	repo   repository.LabelRepository
	kind   model.LabelKind
	logger *slog.Logger
}

func NewLabelService(repo repository.LabelRepository, kind model.LabelKind, logger *slog.Logger) *LabelService {
	return &LabelService{
		repo:   repo,
		kind:   kind,
		logger: logger.With(slog.String("kind", string(kind))),
	}
}

// Kind reports which label table this service manages.
func (s *LabelService) Kind() model.LabelKind {
	return s.kind
}

// List returns the caller's labels, name descending.
func (s *LabelService) List(ctx context.Context, userID string) ([]model.Label, error) {
	labels, err := s.repo.ListLabels(ctx, s.kind, userID)
	if err != nil {
		return nil, fmt.Errorf("listing %s labels: %w", s.kind, err)
	}
	return labels, nil
}

func (s *LabelService) Get(ctx context.Context, userID string, id int64) (*model.Label, error) {
	return s.repo.GetLabel(ctx, s.kind, userID, id)
}

// Create adds a label. A name the caller already uses is a validation
// error on "name".
func (s *LabelService) Create(ctx context.Context, userID string, name *string) (*model.Label, error) {
	v := apperror.NewValidation()
	var clean string
	if name == nil {
		v.Add("name", msgRequired)
	} else {
		clean = checkName(v, "name", *name)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	label := &model.Label{UserID: userID, Name: clean}
	if err := s.repo.CreateLabel(ctx, s.kind, label); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create label",
			slog.String("name", clean),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating %s: %w", s.kind, err)
	}

	s.logger.Info("label created", slog.Int64("id", label.ID), slog.String("userID", userID))
	return label, nil
}

// Update renames a label. name is required unless partial is set, in which
// case a nil name leaves the label unchanged.
func (s *LabelService) Update(ctx context.Context, userID string, id int64, name *string, partial bool) (*model.Label, error) {
	label, err := s.repo.GetLabel(ctx, s.kind, userID, id)
	if err != nil {
		return nil, err
	}

	if name == nil {
		if !partial {
			return nil, apperror.ValidationFailed("name", msgRequired)
		}
		return label, nil
	}

	v := apperror.NewValidation()
	clean := checkName(v, "name", *name)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if clean == label.Name {
		return label, nil
	}

	label.Name = clean
	if err := s.repo.UpdateLabel(ctx, s.kind, label); err != nil {
		if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating %s %d: %w", s.kind, id, err)
	}

	s.logger.Info("label renamed", slog.Int64("id", id), slog.String("userID", userID))
	return label, nil
}

// Delete removes the label and detaches it from the caller's recipes.
func (s *LabelService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.repo.DeleteLabel(ctx, s.kind, userID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete label",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting %s %d: %w", s.kind, id, err)
	}

	s.logger.Info("label deleted", slog.Int64("id", id), slog.String("userID", userID))
	return nil
}
