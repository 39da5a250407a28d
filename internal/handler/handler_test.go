package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/storage/local"
)

const testUserHeader = "X-Test-User"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv mounts the recipe and label handlers on a router backed by an
// in-memory database and a temp media directory. The caller is taken from
// the X-Test-User header instead of a token.
type testEnv struct {
	router   http.Handler
	db       *sqliteRepo.DB
	mediaDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mediaDir := t.TempDir()
	store, err := local.New(mediaDir, "/media")
	require.NoError(t, err)

	logger := discardLogger()
	recipes := NewRecipeHandler(service.NewRecipeService(db, store, 64, logger), 1<<20, logger)
	tags := NewLabelHandler(service.NewLabelService(db, model.KindTag, logger), logger)
	ingredients := NewLabelHandler(service.NewLabelService(db, model.KindIngredient, logger), logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.StripSlashes)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithUserID(r.Context(), r.Header.Get(testUserHeader))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", recipes.HandleList)
		r.Post("/", recipes.HandleCreate)
		r.Get("/{id}", recipes.HandleGet)
		r.Put("/{id}", recipes.HandleUpdate)
		r.Patch("/{id}", recipes.HandlePatch)
		r.Delete("/{id}", recipes.HandleDelete)
		r.Post("/{id}/upload-image", recipes.HandleUploadImage)
	})
	for pattern, h := range map[string]*LabelHandler{"/tags": tags, "/ingredients": ingredients} {
		r.Route(pattern, func(r chi.Router) {
			r.Get("/", h.HandleList)
			r.Post("/", h.HandleCreate)
			r.Get("/{id}", h.HandleGet)
			r.Put("/{id}", h.HandleUpdate)
			r.Patch("/{id}", h.HandlePatch)
			r.Delete("/{id}", h.HandleDelete)
		})
	}

	return &testEnv{router: r, db: db, mediaDir: mediaDir}
}

func (e *testEnv) createUser(t *testing.T, email string) string {
	t.Helper()
	user := &model.User{Email: email, Name: "Test"}
	require.NoError(t, e.db.CreateUser(context.Background(), user))
	return user.ID
}

// do sends a JSON request as userID. body may be "".
func (e *testEnv) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(testUserHeader, userID)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// fieldKeys returns the field names of a validation error response.
func fieldKeys(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	resp := decodeBody[ErrorResponse](t, rec)
	keys := make([]string, 0, len(resp.Fields))
	for k := range resp.Fields {
		keys = append(keys, k)
	}
	return keys
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return buf.String()
}
