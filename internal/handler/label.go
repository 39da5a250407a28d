package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/service"
)

// LabelHandler serves one label collection (/tags or /ingredients). The
// two collections behave identically; the service decides which table.
type LabelHandler struct {
	svc    *service.LabelService
	logger *slog.Logger
}

func NewLabelHandler(svc *service.LabelService, logger *slog.Logger) *LabelHandler {
	return &LabelHandler{svc: svc, logger: logger}
}

type labelPayload struct {
	Name *string `json:"name"`
}

// HandleList: GET /api/recipe/{tags|ingredients}/
func (h *LabelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	labels, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

// HandleCreate: POST /api/recipe/{tags|ingredients}/ {"name": "Vegan"}
func (h *LabelHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var p labelPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	label, err := h.svc.Create(r.Context(), userID, p.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (h *LabelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, string(h.svc.Kind()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	label, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// HandleUpdate: PUT, name required.
func (h *LabelHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch: PATCH, name optional.
func (h *LabelHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *LabelHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, string(h.svc.Kind()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var p labelPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	label, err := h.svc.Update(r.Context(), userID, id, p.Name, partial)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

func (h *LabelHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := pathID(r, string(h.svc.Kind()))
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
