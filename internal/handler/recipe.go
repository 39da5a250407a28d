package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

type RecipeHandler struct {
	svc            *service.RecipeService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewRecipeHandler wires the recipe routes. maxUploadBytes caps the
// multipart body of an image upload.
func NewRecipeHandler(svc *service.RecipeService, maxUploadBytes int64, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// ---- wire format ----

// recipeResponse is the list representation.
type recipeResponse struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	TimeMinutes int           `json:"time_minutes"`
	Price       string        `json:"price"`
	Link        string        `json:"link"`
	Tags        []model.Label `json:"tags"`
	Ingredients []model.Label `json:"ingredients"`
}

// recipeDetailResponse adds the fields only shown for a single recipe.
// Image is null when no image was uploaded.
type recipeDetailResponse struct {
	recipeResponse
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

func toRecipeResponse(rec *model.Recipe) recipeResponse {
	tags, ingredients := rec.Tags, rec.Ingredients
	if tags == nil {
		tags = []model.Label{}
	}
	if ingredients == nil {
		ingredients = []model.Label{}
	}
	return recipeResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		TimeMinutes: rec.TimeMinutes,
		Price:       rec.Price.StringFixed(service.PriceDecimalPlaces),
		Link:        rec.Link,
		Tags:        tags,
		Ingredients: ingredients,
	}
}

func (h *RecipeHandler) toDetail(rec *model.Recipe) recipeDetailResponse {
	d := recipeDetailResponse{
		recipeResponse: toRecipeResponse(rec),
		Description:    rec.Description,
	}
	if url := h.svc.ImageURL(rec.Image); url != "" {
		d.Image = &url
	}
	return d
}

// labelItem is a nested tag or ingredient in a write payload. Only "name"
// is writable; ID catches a client echoing back a read representation.
type labelItem struct {
	Name *string         `json:"name"`
	ID   json.RawMessage `json:"id"`
}

type recipePayload struct {
	Title       *string         `json:"title"`
	TimeMinutes *int            `json:"time_minutes"`
	Price       json.RawMessage `json:"price"`
	Link        *string         `json:"link"`
	Description *string         `json:"description"`
	Tags        *[]labelItem    `json:"tags"`
	Ingredients *[]labelItem    `json:"ingredients"`
}

// input converts the payload for the service. Price is accepted as a JSON
// number or a numeric string.
func (p recipePayload) input() (service.RecipeInput, error) {
	in := service.RecipeInput{
		Title:       p.Title,
		TimeMinutes: p.TimeMinutes,
		Link:        p.Link,
		Description: p.Description,
	}

	if len(p.Price) > 0 && !bytes.Equal(p.Price, []byte("null")) {
		var price decimal.Decimal
		if err := price.UnmarshalJSON(p.Price); err != nil {
			return in, apperror.ValidationFailed("price", "A valid number is required.")
		}
		in.Price = &price
	}

	var err error
	if in.Tags, err = labelNames(p.Tags); err != nil {
		return in, err
	}
	if in.Ingredients, err = labelNames(p.Ingredients); err != nil {
		return in, err
	}
	return in, nil
}

func labelNames(items *[]labelItem) (*[]string, error) {
	if items == nil {
		return nil, nil
	}
	names := make([]string, 0, len(*items))
	for _, item := range *items {
		if item.ID != nil {
			return nil, apperror.ValidationFailed("id", msgReadOnlyID)
		}
		if item.Name == nil {
			names = append(names, "")
			continue
		}
		names = append(names, *item.Name)
	}
	return &names, nil
}

// ---- handlers ----

// HandleList: GET /api/recipe/recipes/?tags=1,2&ingredients=3
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var filter model.RecipeFilter
	var err error
	q := r.URL.Query()
	if filter.TagIDs, err = parseIDList("tags", q.Get("tags")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.IngredientIDs, err = parseIDList("ingredients", q.Get("ingredients")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipes, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]recipeResponse, 0, len(recipes))
	for i := range recipes {
		out = append(out, toRecipeResponse(&recipes[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	in, err := h.decode(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toDetail(recipe))
}

func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetail(recipe))
}

func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *RecipeHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in, err := h.decode(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Update(r.Context(), userID, id, in, partial)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetail(recipe))
}

func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadImage: POST /api/recipe/recipes/{id}/upload-image/
// multipart/form-data with the file in the "image" field.
func (h *RecipeHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, apperror.ValidationFailed("image", "The submitted file is too large."))
			return
		}
		writeError(w, r, h.logger, apperror.ValidationFailed("image", "The submitted data was not a file. Check the encoding type on the form."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("image", "No file was submitted."))
		return
	}
	defer file.Close()

	recipe, err := h.svc.UploadImage(r.Context(), userID, id, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetail(recipe))
}

func (h *RecipeHandler) decode(w http.ResponseWriter, r *http.Request) (service.RecipeInput, error) {
	var p recipePayload
	if err := decodeJSON(w, r, &p); err != nil {
		return service.RecipeInput{}, err
	}
	return p.input()
}
