package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// Hand-written in-memory fakes: the service tests only exercise business
// rules, so SQL stays out of the picture. repository/sqlite has its own tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ---- users ----

type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int

	createErr error
	upsertErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.ValidationFailed("email", "user with this email already exists.")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpsertGitHubUser(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, u := range f.users {
		linked := u.GitHubID != nil && *u.GitHubID == *user.GitHubID
		if linked || (user.Email != "" && u.Email == user.Email) {
			if user.Email != "" {
				u.Email = user.Email
			}
			u.Name = user.Name
			u.GitHubID = user.GitHubID
			*user = *u
			return nil
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

// ---- labels and recipes ----

// fakeStore implements both the label and recipe repositories over maps,
// including get-or-create by (owner, name).
type fakeStore struct {
	labels  map[model.LabelKind]map[int64]*model.Label
	recipes map[int64]*model.Recipe
	nextID  int64

	setImageErr error
}

var (
	_ repository.LabelRepository  = (*fakeStore)(nil)
	_ repository.RecipeRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		labels: map[model.LabelKind]map[int64]*model.Label{
			model.KindTag:        {},
			model.KindIngredient: {},
		},
		recipes: make(map[int64]*model.Recipe),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) findLabel(kind model.LabelKind, userID, name string) *model.Label {
	for _, l := range f.labels[kind] {
		if l.UserID == userID && l.Name == name {
			return l
		}
	}
	return nil
}

func (f *fakeStore) CreateLabel(_ context.Context, kind model.LabelKind, label *model.Label) error {
	if f.findLabel(kind, label.UserID, label.Name) != nil {
		return apperror.ValidationFailed("name", "duplicate")
	}
	label.ID = f.id()
	stored := *label
	f.labels[kind][label.ID] = &stored
	return nil
}

func (f *fakeStore) GetLabel(_ context.Context, kind model.LabelKind, userID string, id int64) (*model.Label, error) {
	l, ok := f.labels[kind][id]
	if !ok || l.UserID != userID {
		return nil, apperror.NotFound(string(kind), fmt.Sprint(id))
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) ListLabels(_ context.Context, kind model.LabelKind, userID string) ([]model.Label, error) {
	out := []model.Label{}
	for _, l := range f.labels[kind] {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (f *fakeStore) UpdateLabel(_ context.Context, kind model.LabelKind, label *model.Label) error {
	l, ok := f.labels[kind][label.ID]
	if !ok || l.UserID != label.UserID {
		return apperror.NotFound(string(kind), fmt.Sprint(label.ID))
	}
	if other := f.findLabel(kind, label.UserID, label.Name); other != nil && other.ID != label.ID {
		return apperror.ValidationFailed("name", "duplicate")
	}
	l.Name = label.Name
	return nil
}

func (f *fakeStore) DeleteLabel(_ context.Context, kind model.LabelKind, userID string, id int64) error {
	l, ok := f.labels[kind][id]
	if !ok || l.UserID != userID {
		return apperror.NotFound(string(kind), fmt.Sprint(id))
	}
	delete(f.labels[kind], id)
	return nil
}

func (f *fakeStore) resolve(kind model.LabelKind, userID string, names []string) []model.Label {
	out := []model.Label{}
	for _, n := range names {
		l := f.findLabel(kind, userID, n)
		if l == nil {
			l = &model.Label{ID: f.id(), UserID: userID, Name: n}
			f.labels[kind][l.ID] = l
		}
		out = append(out, *l)
	}
	return out
}

func (f *fakeStore) apply(r *model.Recipe, changes repository.RecipeChanges) {
	if changes.TagNames != nil {
		r.Tags = f.resolve(model.KindTag, r.UserID, changes.TagNames)
	}
	if changes.IngredientNames != nil {
		r.Ingredients = f.resolve(model.KindIngredient, r.UserID, changes.IngredientNames)
	}
}

func (f *fakeStore) CreateRecipe(_ context.Context, recipe *model.Recipe, changes repository.RecipeChanges) error {
	recipe.ID = f.id()
	recipe.Tags, recipe.Ingredients = []model.Label{}, []model.Label{}
	f.apply(recipe, changes)
	stored := *recipe
	f.recipes[recipe.ID] = &stored
	return nil
}

func (f *fakeStore) GetRecipe(_ context.Context, userID string, id int64) (*model.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok || r.UserID != userID {
		return nil, apperror.NotFound("recipe", fmt.Sprint(id))
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRecipes(_ context.Context, userID string, _ model.RecipeFilter) ([]model.Recipe, error) {
	out := []model.Recipe{}
	for _, r := range f.recipes {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateRecipe(_ context.Context, recipe *model.Recipe, changes repository.RecipeChanges) error {
	stored, ok := f.recipes[recipe.ID]
	if !ok || stored.UserID != recipe.UserID {
		return apperror.NotFound("recipe", fmt.Sprint(recipe.ID))
	}
	recipe.Image = stored.Image
	f.apply(recipe, changes)
	cp := *recipe
	f.recipes[recipe.ID] = &cp
	return nil
}

func (f *fakeStore) SetRecipeImage(_ context.Context, userID string, id int64, image string) (string, error) {
	if f.setImageErr != nil {
		return "", f.setImageErr
	}
	r, ok := f.recipes[id]
	if !ok || r.UserID != userID {
		return "", apperror.NotFound("recipe", fmt.Sprint(id))
	}
	prev := r.Image
	r.Image = image
	return prev, nil
}

func (f *fakeStore) DeleteRecipe(_ context.Context, userID string, id int64) (string, error) {
	r, ok := f.recipes[id]
	if !ok || r.UserID != userID {
		return "", apperror.NotFound("recipe", fmt.Sprint(id))
	}
	delete(f.recipes, id)
	return r.Image, nil
}

// ---- images ----

type fakeImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: make(map[string][]byte)}
}

func (f *fakeImages) Save(_ context.Context, key string, r io.Reader, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return errors.New("no such object")
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImages) URL(key string) string {
	return "/media/" + key
}
