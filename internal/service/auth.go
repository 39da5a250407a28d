package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// msgBadCredentials is deliberately the same for an unknown email and a
// wrong password.
const msgBadCredentials = "Unable to authenticate with provided credentials."

// AuthService owns accounts: registration, password login, GitHub login
// and profile updates.
//
//	AuthHandler → AuthService → UserRepository
//	                          ↘ TokenService, PasswordService
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued token so the handler
// can respond (or set the cookie) in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Name     *string
	Password *string
}

// Register creates a password account. Email is normalised to lower case.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	v := apperror.NewValidation()
	email = checkEmail(v, email)
	checkPassword(v, password)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		v.Add("name", msgTooLong(MaxNameLength))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// Login checks email + password and issues a token. Bad credentials are a
// validation error (400), not 401: the request itself is what is wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	v := apperror.NewValidation()
	if strings.TrimSpace(email) == "" {
		v.Add("email", msgRequired)
	}
	if password == "" {
		v.Add("password", msgRequired)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("non_field_errors", msgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.ValidationFailed("non_field_errors", msgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub links or creates the account for a GitHub profile
// and issues a token. The repository matches on github_id first, then on
// email, so a password user who logs in with GitHub keeps one account.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	githubID := ghUser.ID
	user := &model.User{
		Email:    normaliseEmail(ghUser.Email),
		Name:     ghUser.DisplayName(),
		GitHubID: &githubID,
	}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID backs GET /api/user/me/.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile applies a partial update to the caller's own account.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*model.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := apperror.NewValidation()
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if utf8.RuneCountInString(name) > MaxNameLength {
			v.Add("name", msgTooLong(MaxNameLength))
		}
		user.Name = name
	}
	if in.Password != nil {
		checkPassword(v, *in.Password)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.Password != nil {
		hash, err := s.passwords.Hash(*in.Password)
		if err != nil {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
		user.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating user %s: %w", id, err)
	}

	s.logger.Info("user profile updated", slog.String("userID", id))
	return user, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(v *apperror.Validation, email string) string {
	email = normaliseEmail(email)
	if email == "" {
		v.Add("email", msgRequired)
		return email
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "Enter a valid email address.")
	}
	return email
}

func checkPassword(v *apperror.Validation, password string) {
	switch {
	case password == "":
		v.Add("password", msgRequired)
	case len(password) < auth.MinPasswordLength:
		v.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", auth.MinPasswordLength))
	case len(password) > 72:
		v.Add("password", "Ensure this field has no more than 72 characters.")
	}
}
