package model

import "github.com/shopspring/decimal"

// LabelKind distinguishes the two label tables. Tags and ingredients have the
// same shape ({id, name, owner}) and the same lifecycle, so they share one
// model type and one repository/service implementation parameterised by kind.
type LabelKind string

const (
	KindTag        LabelKind = "tag"
	KindIngredient LabelKind = "ingredient"
)

// Label is a user-owned name that can be attached to recipes: a Tag or an
// Ingredient. Name is unique per (owner, kind).
type Label struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"-"`
}

// Recipe is a user-owned recipe.
//
// Price uses decimal.Decimal instead of float64: 5.25 has no exact binary
// representation, and prices must round-trip exactly.
//
// Image holds the storage key of the uploaded image ("" when none). The
// handler layer turns it into a public URL through the image store.
type Recipe struct {
	ID          int64
	UserID      string
	Title       string
	TimeMinutes int
	Price       decimal.Decimal
	Link        string
	Description string
	Image       string
	Tags        []Label
	Ingredients []Label
}

// RecipeFilter narrows a recipe list. A recipe matches when its tag set
// intersects TagIDs (if non-empty) and its ingredient set intersects
// IngredientIDs (if non-empty).
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}
