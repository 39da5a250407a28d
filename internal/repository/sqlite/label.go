package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.LabelRepository = (*DB)(nil)

// labelTables maps a label kind to its storage: the label table itself and
// the join table + column that attaches it to recipes.
type labelTables struct {
	table      string
	joinTable  string
	joinColumn string
}

var labelTablesByKind = map[model.LabelKind]labelTables{
	model.KindTag:        {table: "tags", joinTable: "recipe_tags", joinColumn: "tag_id"},
	model.KindIngredient: {table: "ingredients", joinTable: "recipe_ingredients", joinColumn: "ingredient_id"},
}

func tablesFor(kind model.LabelKind) (labelTables, error) {
	t, ok := labelTablesByKind[kind]
	if !ok {
		return labelTables{}, fmt.Errorf("sqlite: unknown label kind %q", kind)
	}
	return t, nil
}

func duplicateLabel(kind model.LabelKind) error {
	return apperror.ValidationFailed("name", fmt.Sprintf("%s with this name already exists.", kind))
}

// CreateLabel inserts a label owned by label.UserID and fills in its ID.
func (db *DB) CreateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO `+t.table+` (user_id, name) VALUES (?, ?)`,
		label.UserID, label.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateLabel(kind)
		}
		return fmt.Errorf("sqlite: inserting %s %q: %w", kind, label.Name, err)
	}

	label.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading %s id: %w", kind, err)
	}
	return nil
}

func (db *DB) GetLabel(ctx context.Context, kind model.LabelKind, userID string, id int64) (*model.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	var l model.Label
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name FROM `+t.table+` WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&l.ID, &l.UserID, &l.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(string(kind), fmt.Sprint(id))
		}
		return nil, fmt.Errorf("sqlite: getting %s %d: %w", kind, id, err)
	}
	return &l, nil
}

func (db *DB) ListLabels(ctx context.Context, kind model.LabelKind, userID string) ([]model.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, name FROM `+t.table+` WHERE user_id = ? ORDER BY name DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", t.table, err)
	}
	defer rows.Close()

	labels := []model.Label{}
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s: %w", kind, err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", t.table, err)
	}
	return labels, nil
}

// UpdateLabel renames a label. The owner is taken from label.UserID, so a
// label owned by someone else reports ErrNotFound.
func (db *DB) UpdateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE `+t.table+` SET name = ? WHERE id = ? AND user_id = ?`,
		label.Name, label.ID, label.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateLabel(kind)
		}
		return fmt.Errorf("sqlite: updating %s %d: %w", kind, label.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(string(kind), fmt.Sprint(label.ID))
	}
	return nil
}

// DeleteLabel removes the label. Recipes that referenced it lose the
// association but are otherwise unchanged.
func (db *DB) DeleteLabel(ctx context.Context, kind model.LabelKind, userID string, id int64) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var owned int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM `+t.table+` WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&owned)
		if err == sql.ErrNoRows {
			return apperror.NotFound(string(kind), fmt.Sprint(id))
		}
		if err != nil {
			return fmt.Errorf("sqlite: getting %s %d: %w", kind, id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+t.joinTable+` WHERE `+t.joinColumn+` = ?`, id); err != nil {
			return fmt.Errorf("sqlite: detaching %s %d: %w", kind, id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+t.table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting %s %d: %w", kind, id, err)
		}
		return nil
	})
}

// getOrCreateLabels resolves names to the owner's labels, creating the ones
// that do not exist yet. Duplicate names collapse to one label. The returned
// slice is ordered by id.
func getOrCreateLabels(ctx context.Context, q querier, t labelTables, userID string, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}

	for _, name := range names {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO `+t.table+` (user_id, name) VALUES (?, ?) ON CONFLICT (user_id, name) DO NOTHING`,
			userID, name,
		); err != nil {
			return nil, fmt.Errorf("sqlite: get-or-create %s %q: %w", t.table, name, err)
		}
	}

	args := make([]any, 0, len(names)+1)
	args = append(args, userID)
	for _, name := range names {
		args = append(args, name)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id FROM `+t.table+` WHERE user_id = ? AND name IN (`+placeholders(len(names))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolving %s: %w", t.table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s id: %w", t.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// replaceRecipeLabels swaps the recipe's relation set for the labels named.
// An empty names slice clears the relation.
func replaceRecipeLabels(ctx context.Context, q querier, t labelTables, userID string, recipeID int64, names []string) error {
	ids, err := getOrCreateLabels(ctx, q, t, userID, names)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM `+t.joinTable+` WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("sqlite: clearing %s for recipe %d: %w", t.joinTable, recipeID, err)
	}

	for _, id := range ids {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+t.joinTable+` (recipe_id, `+t.joinColumn+`) VALUES (?, ?)`,
			recipeID, id,
		); err != nil {
			return fmt.Errorf("sqlite: attaching %s %d to recipe %d: %w", t.table, id, recipeID, err)
		}
	}
	return nil
}
