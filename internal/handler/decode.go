package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-api/internal/apperror"
)

// maxJSONBody caps JSON request bodies; images go through multipart.
const maxJSONBody = 1 << 20

const (
	msgReadOnlyID = "This field is read-only."
	nonFieldKey   = "non_field_errors"
)

// decodeJSON reads a JSON object into dst. Unknown keys are ignored, but a
// top-level "id" is rejected because ids are assigned by the server. Type
// mismatches are reported against the offending field. An empty body
// decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed(nonFieldKey, "Request body too large.")
		}
		return apperror.ValidationFailed(nonFieldKey, "Could not read request body.")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return jsonError(err)
	}
	if _, ok := top["id"]; ok {
		return apperror.ValidationFailed("id", msgReadOnlyID)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return jsonError(err)
	}
	return nil
}

func jsonError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return apperror.ValidationFailed(nonFieldKey, "Invalid data. Expected a dictionary.")
		}
		field, _, _ := strings.Cut(typeErr.Field, ".")
		return apperror.ValidationFailed(field, "Incorrect type. Expected "+expected(typeErr.Type.Kind().String())+".")
	}
	return apperror.ValidationFailed(nonFieldKey, "JSON parse error - "+err.Error())
}

func expected(kind string) string {
	switch kind {
	case "int", "int64":
		return "a valid integer"
	case "string":
		return "a string"
	case "slice":
		return "a list of items"
	case "struct", "map":
		return "a dictionary"
	}
	return kind
}

// pathID parses the {id} URL parameter. A non-numeric id cannot match any
// row, so it is reported as not found.
func pathID(r *http.Request, resource string) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}

// parseIDList parses a comma-separated id query parameter ("1,2,3").
// Empty items are skipped.
func parseIDList(field, raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, apperror.ValidationFailed(field, "Enter a comma-separated list of whole numbers.")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
