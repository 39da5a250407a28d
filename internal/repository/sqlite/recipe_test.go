package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

func newTestRecipe(userID, title string) *model.Recipe {
	return &model.Recipe{
		UserID:      userID,
		Title:       title,
		TimeMinutes: 10,
		Price:       decimal.RequireFromString("5.25"),
	}
}

func changes(tags, ingredients []string) repository.RecipeChanges {
	return repository.RecipeChanges{TagNames: tags, IngredientNames: ingredients}
}

func labelNames(labels []model.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func recipeTitles(recipes []model.Recipe) []string {
	titles := make([]string, 0, len(recipes))
	for _, r := range recipes {
		titles = append(titles, r.Title)
	}
	return titles
}

func TestCreateRecipe(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")

	r := newTestRecipe(user.ID, "Curry")
	r.Link = "https://example.com/curry"
	r.Description = "Hot."
	require.NoError(t, db.CreateRecipe(ctx, r, repository.RecipeChanges{}))
	assert.NotZero(t, r.ID)
	assert.Empty(t, r.Tags)

	got, err := db.GetRecipe(ctx, user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", got.Title)
	assert.Equal(t, 10, got.TimeMinutes)
	assert.Equal(t, "5.25", got.Price.StringFixed(2))
	assert.Equal(t, "https://example.com/curry", got.Link)
	assert.Equal(t, "Hot.", got.Description)
	assert.Empty(t, got.Image)
}

func TestCreateRecipe_GetOrCreatesLabels(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")
	other := createTestUser(t, db, "other@example.com")

	existing := createTestLabel(t, db, model.KindTag, user.ID, "Thai")
	createTestLabel(t, db, model.KindTag, other.ID, "Breakfast")

	r := newTestRecipe(user.ID, "Pad Thai")
	require.NoError(t, db.CreateRecipe(ctx, r, changes(
		[]string{"Thai", "Breakfast"},
		[]string{"Noodles", "Noodles"},
	)))

	require.Len(t, r.Tags, 2)
	assert.Equal(t, existing.ID, r.Tags[0].ID, "existing tag reused")
	assert.Equal(t, []string{"Thai", "Breakfast"}, labelNames(r.Tags))
	assert.Equal(t, []string{"Noodles"}, labelNames(r.Ingredients))

	// The other user's "Breakfast" was not borrowed.
	tags, err := db.ListLabels(ctx, model.KindTag, user.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
	otherTags, err := db.ListLabels(ctx, model.KindTag, other.ID)
	require.NoError(t, err)
	assert.Len(t, otherTags, 1)
}

func TestGetRecipe_OtherOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "cook@example.com")
	other := createTestUser(t, db, "other@example.com")

	r := newTestRecipe(owner.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, repository.RecipeChanges{}))

	_, err := db.GetRecipe(ctx, other.ID, r.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestListRecipes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")
	other := createTestUser(t, db, "other@example.com")

	for _, title := range []string{"First", "Second", "Third"} {
		require.NoError(t, db.CreateRecipe(ctx, newTestRecipe(user.ID, title), changes([]string{"Dinner"}, nil)))
	}
	require.NoError(t, db.CreateRecipe(ctx, newTestRecipe(other.ID, "Foreign"), repository.RecipeChanges{}))

	recipes, err := db.ListRecipes(ctx, user.ID, model.RecipeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Third", "Second", "First"}, recipeTitles(recipes))
	for _, r := range recipes {
		assert.Equal(t, []string{"Dinner"}, labelNames(r.Tags))
	}
}

func TestListRecipes_Filter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")

	curry := newTestRecipe(user.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, curry, changes([]string{"Vegan", "Spicy"}, []string{"Tofu"})))
	tahini := newTestRecipe(user.ID, "Tahini")
	require.NoError(t, db.CreateRecipe(ctx, tahini, changes([]string{"Vegan"}, []string{"Sesame"})))
	fish := newTestRecipe(user.ID, "Fish")
	require.NoError(t, db.CreateRecipe(ctx, fish, repository.RecipeChanges{}))

	vegan, spicy := curry.Tags[0].ID, curry.Tags[1].ID
	tofu := curry.Ingredients[0].ID
	sesame := tahini.Ingredients[0].ID

	tests := []struct {
		name   string
		filter model.RecipeFilter
		want   []string
	}{
		{"single tag", model.RecipeFilter{TagIDs: []int64{spicy}}, []string{"Curry"}},
		{"any of tags, distinct", model.RecipeFilter{TagIDs: []int64{vegan, spicy}}, []string{"Tahini", "Curry"}},
		{"ingredient", model.RecipeFilter{IngredientIDs: []int64{sesame}}, []string{"Tahini"}},
		{"both must match", model.RecipeFilter{TagIDs: []int64{vegan}, IngredientIDs: []int64{tofu}}, []string{"Curry"}},
		{"no match", model.RecipeFilter{TagIDs: []int64{9999}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipes, err := db.ListRecipes(ctx, user.ID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, recipeTitles(recipes))
		})
	}
}

func TestUpdateRecipe_Scalars(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")

	r := newTestRecipe(user.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, changes([]string{"Dinner"}, nil)))

	r.Title = "Green Curry"
	r.Price = decimal.RequireFromString("7")
	require.NoError(t, db.UpdateRecipe(ctx, r, repository.RecipeChanges{}))

	assert.Equal(t, "Green Curry", r.Title)
	assert.Equal(t, "7.00", r.Price.StringFixed(2))
	assert.Equal(t, []string{"Dinner"}, labelNames(r.Tags), "nil changes leave relations alone")
}

func TestUpdateRecipe_ReplacesRelations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")

	r := newTestRecipe(user.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, changes([]string{"Breakfast"}, []string{"Rice"})))
	breakfast := r.Tags[0]

	require.NoError(t, db.UpdateRecipe(ctx, r, changes([]string{"Lunch"}, []string{})))
	assert.Equal(t, []string{"Lunch"}, labelNames(r.Tags))
	assert.Empty(t, r.Ingredients)

	// Detached labels survive.
	_, err := db.GetLabel(ctx, model.KindTag, user.ID, breakfast.ID)
	assert.NoError(t, err)
}

func TestUpdateRecipe_NotFound(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "cook@example.com")
	other := createTestUser(t, db, "other@example.com")

	r := newTestRecipe(owner.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, repository.RecipeChanges{}))

	r.UserID = other.ID
	err := db.UpdateRecipe(ctx, r, changes([]string{"Stolen"}, nil))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// The rolled-back transaction created no label for the other user.
	tags, err := db.ListLabels(ctx, model.KindTag, other.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestSetRecipeImage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")

	r := newTestRecipe(user.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, repository.RecipeChanges{}))

	prev, err := db.SetRecipeImage(ctx, user.ID, r.ID, "uploads/recipe/a.png")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = db.SetRecipeImage(ctx, user.ID, r.ID, "uploads/recipe/b.png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/a.png", prev)

	got, err := db.GetRecipe(ctx, user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/b.png", got.Image)

	_, err = db.SetRecipeImage(ctx, user.ID, 9999, "x.png")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDeleteRecipe(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "cook@example.com")
	other := createTestUser(t, db, "other@example.com")

	r := newTestRecipe(user.ID, "Curry")
	require.NoError(t, db.CreateRecipe(ctx, r, changes([]string{"Dinner"}, []string{"Rice"})))
	_, err := db.SetRecipeImage(ctx, user.ID, r.ID, "uploads/recipe/a.png")
	require.NoError(t, err)

	_, err = db.DeleteRecipe(ctx, other.ID, r.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	image, err := db.DeleteRecipe(ctx, user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/a.png", image)

	_, err = db.GetRecipe(ctx, user.ID, r.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// Labels outlive the recipe.
	tags, err := db.ListLabels(ctx, model.KindTag, user.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}
