package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price, r.link, r.description, r.image`

// CreateRecipe inserts the recipe and attaches its labels in one
// transaction. Labels are get-or-created by (owner, name).
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe, changes repository.RecipeChanges) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (user_id, title, time_minutes, price, link, description, image)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(2),
			recipe.Link,
			recipe.Description,
			recipe.Image,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting recipe: %w", err)
		}

		recipe.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading recipe id: %w", err)
		}

		if err := applyChanges(ctx, tx, recipe.UserID, recipe.ID, changes); err != nil {
			return err
		}
		return loadRelations(ctx, tx, []*model.Recipe{recipe})
	})
}

// GetRecipe returns the owner's recipe with its tags and ingredients.
func (db *DB) GetRecipe(ctx context.Context, userID string, id int64) (*model.Recipe, error) {
	recipe, err := getRecipe(ctx, db.conn, userID, id)
	if err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, db.conn, []*model.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

// ListRecipes returns the owner's recipes, newest first. A non-empty id list
// in the filter keeps only recipes related to at least one of those ids;
// both lists must match when both are given.
func (db *DB) ListRecipes(ctx context.Context, userID string, filter model.RecipeFilter) ([]model.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = ?`
	args := []any{userID}

	if len(filter.TagIDs) > 0 {
		query += ` AND r.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN (` + placeholders(len(filter.TagIDs)) + `))`
		for _, id := range filter.TagIDs {
			args = append(args, id)
		}
	}
	if len(filter.IngredientIDs) > 0 {
		query += ` AND r.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN (` + placeholders(len(filter.IngredientIDs)) + `))`
		for _, id := range filter.IngredientIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY r.id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
	}

	var recipes []*model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	// Relations are loaded with further queries, so the cursor must be
	// released first: an in-memory database has a single connection.
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}
	rows.Close()

	if err := loadRelations(ctx, db.conn, recipes); err != nil {
		return nil, err
	}

	out := make([]model.Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, *r)
	}
	return out, nil
}

// UpdateRecipe writes every scalar column except image and applies the
// relation changes. On success recipe holds the stored state.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe, changes repository.RecipeChanges) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE recipes SET title = ?, time_minutes = ?, price = ?, link = ?, description = ?
			 WHERE id = ? AND user_id = ?`,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(2),
			recipe.Link,
			recipe.Description,
			recipe.ID,
			recipe.UserID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("recipe", fmt.Sprint(recipe.ID))
		}

		if err := applyChanges(ctx, tx, recipe.UserID, recipe.ID, changes); err != nil {
			return err
		}

		stored, err := getRecipe(ctx, tx, recipe.UserID, recipe.ID)
		if err != nil {
			return err
		}
		if err := loadRelations(ctx, tx, []*model.Recipe{stored}); err != nil {
			return err
		}
		*recipe = *stored
		return nil
	})
}

func (db *DB) SetRecipeImage(ctx context.Context, userID string, id int64, image string) (string, error) {
	var previous string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&previous)
		if err == sql.ErrNoRows {
			return apperror.NotFound("recipe", fmt.Sprint(id))
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading image of recipe %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE recipes SET image = ? WHERE id = ?`, image, id); err != nil {
			return fmt.Errorf("sqlite: setting image of recipe %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// DeleteRecipe removes the recipe and its label associations. Labels
// themselves are kept.
func (db *DB) DeleteRecipe(ctx context.Context, userID string, id int64) (string, error) {
	var image string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&image)
		if err == sql.ErrNoRows {
			return apperror.NotFound("recipe", fmt.Sprint(id))
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading recipe %d: %w", id, err)
		}

		for _, stmt := range []string{
			`DELETE FROM recipe_tags WHERE recipe_id = ?`,
			`DELETE FROM recipe_ingredients WHERE recipe_id = ?`,
			`DELETE FROM recipes WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return image, nil
}

func applyChanges(ctx context.Context, q querier, userID string, recipeID int64, changes repository.RecipeChanges) error {
	if changes.TagNames != nil {
		if err := replaceRecipeLabels(ctx, q, labelTablesByKind[model.KindTag], userID, recipeID, changes.TagNames); err != nil {
			return err
		}
	}
	if changes.IngredientNames != nil {
		if err := replaceRecipeLabels(ctx, q, labelTablesByKind[model.KindIngredient], userID, recipeID, changes.IngredientNames); err != nil {
			return err
		}
	}
	return nil
}

func getRecipe(ctx context.Context, q querier, userID string, id int64) (*model.Recipe, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ? AND r.user_id = ?`, id, userID)

	recipe, err := scanRecipe(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recipe", fmt.Sprint(id))
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}
	return recipe, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecipe(s scanner) (*model.Recipe, error) {
	var (
		r     model.Recipe
		price string
	)
	err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.Title,
		&r.TimeMinutes,
		&price,
		&r.Link,
		&r.Description,
		&r.Image,
	)
	if err != nil {
		return nil, err
	}

	r.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parsing price %q: %w", price, err)
	}
	r.Tags = []model.Label{}
	r.Ingredients = []model.Label{}
	return &r, nil
}

// loadRelations fills Tags and Ingredients for every recipe, one query per
// relation, ordered by label id.
func loadRelations(ctx context.Context, q querier, recipes []*model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Recipe, len(recipes))
	ids := make([]any, 0, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	for _, kind := range []model.LabelKind{model.KindTag, model.KindIngredient} {
		t := labelTablesByKind[kind]
		rows, err := q.QueryContext(ctx,
			`SELECT j.recipe_id, l.id, l.user_id, l.name
			 FROM `+t.joinTable+` j JOIN `+t.table+` l ON l.id = j.`+t.joinColumn+`
			 WHERE j.recipe_id IN (`+placeholders(len(ids))+`)
			 ORDER BY l.id`,
			ids...,
		)
		if err != nil {
			return fmt.Errorf("sqlite: loading %s: %w", t.table, err)
		}

		for rows.Next() {
			var (
				recipeID int64
				l        model.Label
			)
			if err := rows.Scan(&recipeID, &l.ID, &l.UserID, &l.Name); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning %s: %w", t.table, err)
			}
			r := byID[recipeID]
			if kind == model.KindTag {
				r.Tags = append(r.Tags, l)
			} else {
				r.Ingredients = append(r.Ingredients, l)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("sqlite: iterating %s: %w", t.table, err)
		}
	}
	return nil
}
