package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/recipe-api/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantFields bool
	}{
		{"validation", apperror.ValidationFailed("title", "This field is required."), http.StatusBadRequest, "validation_error", true},
		{"not found", apperror.NotFound("recipe", "7"), http.StatusNotFound, "not_found", false},
		{"unauthorized", apperror.Unauthorized("no"), http.StatusUnauthorized, "unauthorized", false},
		{"wrapped not found", fmt.Errorf("loading: %w", apperror.NotFound("tag", "3")), http.StatusNotFound, "not_found", false},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), discardLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantType, resp.Error)
			assert.Equal(t, tt.wantFields, resp.Fields != nil)
			assert.NotContains(t, resp.Message, "disk on fire")
		})
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := errors.Join(errors.New("context"), apperror.NotFound("tag", "3"))
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), discardLogger(), err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
