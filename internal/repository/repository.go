// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
//
// Every method that touches owned rows takes the owner's user ID and scopes
// its query by it: a row owned by someone else is indistinguishable from a
// row that does not exist, and both surface as apperror.ErrNotFound.
package repository

import (
	"context"

	"github.com/sakif/recipe-api/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGitHubUser links or creates the account for a GitHub identity,
	// matching first on github_id, then on email.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
}

type LabelRepository interface {
	CreateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error
	GetLabel(ctx context.Context, kind model.LabelKind, userID string, id int64) (*model.Label, error)
	// ListLabels returns the owner's labels ordered by name, descending.
	ListLabels(ctx context.Context, kind model.LabelKind, userID string) ([]model.Label, error)
	UpdateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error
	// DeleteLabel removes the label and detaches it from every recipe.
	DeleteLabel(ctx context.Context, kind model.LabelKind, userID string, id int64) error
}

// RecipeChanges describes a write to a recipe's relation sets. A nil slice
// leaves the relation untouched; a non-nil slice (even empty) replaces it
// with the labels resolved from the given names.
type RecipeChanges struct {
	TagNames        []string
	IngredientNames []string
}

type RecipeRepository interface {
	// CreateRecipe inserts the recipe and attaches get-or-created labels,
	// all in one transaction. recipe.Tags/Ingredients are filled on return.
	CreateRecipe(ctx context.Context, recipe *model.Recipe, changes RecipeChanges) error
	GetRecipe(ctx context.Context, userID string, id int64) (*model.Recipe, error)
	// ListRecipes returns the owner's recipes, newest first.
	ListRecipes(ctx context.Context, userID string, filter model.RecipeFilter) ([]model.Recipe, error)
	// UpdateRecipe writes the scalar columns and applies changes, in one
	// transaction.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe, changes RecipeChanges) error
	// SetRecipeImage stores a new image key and returns the previous one.
	SetRecipeImage(ctx context.Context, userID string, id int64, image string) (previous string, err error)
	// DeleteRecipe removes the recipe and returns its image key so the
	// caller can remove the stored file.
	DeleteRecipe(ctx context.Context, userID string, id int64) (image string, err error)
}
