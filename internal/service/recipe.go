package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/imaging"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/storage"
)

// Price bounds: at most 5 digits, 2 of them after the point.
const (
	PriceDecimalPlaces = 2
	PriceMaxDigits     = 5
)

// imagePrefix is the key prefix of every stored recipe image.
const imagePrefix = "uploads/recipe"

var maxPrice = decimal.New(1, PriceMaxDigits-PriceDecimalPlaces) // 1000

// RecipeInput is a decoded write payload. A nil field was absent from the
// payload. Tags and Ingredients hold label names; a non-nil empty slice
// clears the relation.
type RecipeInput struct {
	Title       *string
	TimeMinutes *int
	Price       *decimal.Decimal
	Link        *string
	Description *string
	Tags        *[]string
	Ingredients *[]string
}

type RecipeService struct {
	repo         repository.RecipeRepository
	images       storage.ImageStore
	maxDimension int
	logger       *slog.Logger
}

// NewRecipeService wires the recipe rules. maxDimension bounds uploaded
// images (0 keeps the original size).
func NewRecipeService(repo repository.RecipeRepository, images storage.ImageStore, maxDimension int, logger *slog.Logger) *RecipeService {
	return &RecipeService{
		repo:         repo,
		images:       images,
		maxDimension: maxDimension,
		logger:       logger,
	}
}

// ImageURL turns a stored image key into the URL clients fetch. Empty keys
// give "".
func (s *RecipeService) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.images.URL(key)
}

func (s *RecipeService) List(ctx context.Context, userID string, filter model.RecipeFilter) ([]model.Recipe, error) {
	recipes, err := s.repo.ListRecipes(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeService) Get(ctx context.Context, userID string, id int64) (*model.Recipe, error) {
	return s.repo.GetRecipe(ctx, userID, id)
}

// Create validates in and stores the recipe, get-or-creating the named
// labels for the caller.
func (s *RecipeService) Create(ctx context.Context, userID string, in RecipeInput) (*model.Recipe, error) {
	recipe := &model.Recipe{UserID: userID}
	changes, err := applyInput(recipe, in, true)
	if err != nil {
		return nil, err
	}
	// nil relations on create mean "none"; only the repository tells nil from empty.
	if changes.TagNames == nil {
		changes.TagNames = []string{}
	}
	if changes.IngredientNames == nil {
		changes.IngredientNames = []string{}
	}

	if err := s.repo.CreateRecipe(ctx, recipe, changes); err != nil {
		s.logger.Error("failed to create recipe",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", recipe.ID),
		slog.String("userID", userID),
	)
	return recipe, nil
}

// Update applies in to an existing recipe. A full update (partial=false)
// requires title, time_minutes and price; either way a present tags or
// ingredients list replaces the relation.
func (s *RecipeService) Update(ctx context.Context, userID string, id int64, in RecipeInput, partial bool) (*model.Recipe, error) {
	recipe, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changes, err := applyInput(recipe, in, !partial)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRecipe(ctx, recipe, changes); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update recipe",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating recipe %d: %w", id, err)
	}

	s.logger.Info("recipe updated", slog.Int64("id", id), slog.String("userID", userID))
	return recipe, nil
}

// Delete removes the recipe, then its stored image. A failure to remove the
// file is logged, not returned: the recipe is already gone.
func (s *RecipeService) Delete(ctx context.Context, userID string, id int64) error {
	image, err := s.repo.DeleteRecipe(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting recipe %d: %w", id, err)
	}

	if image != "" {
		s.removeImage(ctx, image)
	}

	s.logger.Info("recipe deleted", slog.Int64("id", id), slog.String("userID", userID))
	return nil
}

// UploadImage validates and stores an image for the recipe and returns the
// updated recipe.
//
// Ordering: the new file is stored before the row points at it, and the
// old file is removed only after the row no longer does. If the row update
// fails, the new file is removed again.
func (s *RecipeService) UploadImage(ctx context.Context, userID string, id int64, r io.Reader) (*model.Recipe, error) {
	if _, err := s.repo.GetRecipe(ctx, userID, id); err != nil {
		return nil, err
	}

	img, err := imaging.Process(r, s.maxDimension)
	if err != nil {
		if errors.Is(err, imaging.ErrNotImage) {
			return nil, apperror.ValidationFailed("image",
				"Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
		}
		if errors.Is(err, imaging.ErrTooLarge) {
			return nil, apperror.ValidationFailed("image",
				fmt.Sprintf("Image is too large. Ensure it has no more than %d pixels.", imaging.MaxPixels))
		}
		return nil, fmt.Errorf("processing image for recipe %d: %w", id, err)
	}

	key := path.Join(imagePrefix, uuid.NewString()+img.Ext)
	if err := s.images.Save(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
		s.logger.Error("failed to store image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing image for recipe %d: %w", id, err)
	}

	previous, err := s.repo.SetRecipeImage(ctx, userID, id, key)
	if err != nil {
		s.removeImage(ctx, key)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("saving image for recipe %d: %w", id, err)
	}
	if previous != "" && previous != key {
		s.removeImage(ctx, previous)
	}

	s.logger.Info("recipe image uploaded",
		slog.Int64("id", id),
		slog.String("key", key),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
	)
	return s.repo.GetRecipe(ctx, userID, id)
}

func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove stored image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// applyInput validates in and copies the present fields onto recipe. With
// full set, title, time_minutes and price must be present. Every problem is
// reported in one error.
func applyInput(recipe *model.Recipe, in RecipeInput, full bool) (repository.RecipeChanges, error) {
	v := apperror.NewValidation()

	if full {
		if in.Title == nil {
			v.Add("title", msgRequired)
		}
		if in.TimeMinutes == nil {
			v.Add("time_minutes", msgRequired)
		}
		if in.Price == nil {
			v.Add("price", msgRequired)
		}
	}

	if in.Title != nil {
		recipe.Title = checkName(v, "title", *in.Title)
	}
	if in.TimeMinutes != nil {
		if *in.TimeMinutes < 0 {
			v.Add("time_minutes", "Ensure this value is greater than or equal to 0.")
		}
		recipe.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		checkPrice(v, *in.Price)
		recipe.Price = *in.Price
	}
	if in.Link != nil {
		link := strings.TrimSpace(*in.Link)
		if utf8.RuneCountInString(link) > MaxNameLength {
			v.Add("link", msgTooLong(MaxNameLength))
		}
		recipe.Link = link
	}
	if in.Description != nil {
		recipe.Description = *in.Description
	}

	var changes repository.RecipeChanges
	if in.Tags != nil {
		changes.TagNames = checkLabelNames(v, "tags", *in.Tags)
	}
	if in.Ingredients != nil {
		changes.IngredientNames = checkLabelNames(v, "ingredients", *in.Ingredients)
	}

	return changes, v.Err()
}

func checkPrice(v *apperror.Validation, price decimal.Decimal) {
	if !price.Equal(price.Round(PriceDecimalPlaces)) {
		v.Add("price", fmt.Sprintf("Ensure that there are no more than %d decimal places.", PriceDecimalPlaces))
		return
	}
	if price.Abs().GreaterThanOrEqual(maxPrice) {
		v.Add("price", fmt.Sprintf("Ensure that there are no more than %d digits in total.", PriceMaxDigits))
	}
}
