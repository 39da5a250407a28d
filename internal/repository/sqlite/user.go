package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, name, password_hash, github_id, created_at, updated_at`

// CreateUser inserts a new user. The ID and timestamps are generated here.
// A duplicate email is reported as a validation error on "email".
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		nullableInt64(user.GitHubID),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "user with this email already exists.")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email. Emails are stored normalised by
// the service layer, so this is an exact match.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpsertGitHubUser resolves a GitHub identity to an account.
//
// Lookup order:
//  1. a user already linked to this github_id → refresh name/email
//  2. a user with the same email → link github_id to it
//  3. otherwise insert a new password-less user
//
// An empty user.Email never overwrites a stored one.
//
// On return, user holds the canonical stored record.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting GitHub user: github_id is required")
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID))
		if err == sql.ErrNoRows && user.Email != "" {
			existing, err = scanUser(tx.QueryRowContext(ctx,
				`SELECT `+userColumns+` FROM users WHERE email = ?`, user.Email))
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("sqlite: looking up GitHub user %d: %w", *user.GitHubID, err)
		}

		now := time.Now()
		if existing == nil {
			if user.Email == "" {
				// email is unique and required; GitHub may not share one.
				user.Email = fmt.Sprintf("%d@users.noreply.github.com", *user.GitHubID)
			}
			user.ID = xid.New().String()
			user.CreatedAt = now
			user.UpdatedAt = now
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				user.ID, user.Email, user.Name, "", *user.GitHubID, now, now,
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting GitHub user %d: %w", *user.GitHubID, err)
			}
			return nil
		}

		// Keep the stored email when GitHub hides it.
		if user.Email == "" {
			user.Email = existing.Email
		}
		if user.Name == "" {
			user.Name = existing.Name
		}
		user.ID = existing.ID
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET email = ?, name = ?, github_id = ?, updated_at = ? WHERE id = ?`,
			user.Email, user.Name, *user.GitHubID, now, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating GitHub user %s: %w", user.ID, err)
		}
		return nil
	})
}

// UpdateUser writes name and password hash.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.PasswordHash, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&githubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
