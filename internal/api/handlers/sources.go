package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/service"
)

type SourceHandler struct {
	svc *service.Sources
}

func NewSourceHandler(svc *service.Sources) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type registerSourceRequest struct {
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Register resolves a source by label and kind, creating it when new.
// Registering the same pair twice returns the same source.
func (h *SourceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := h.svc.LookupOrCreate(r.Context(), req.Label, domain.SourceKind(req.Kind))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSourceLabelRequired),
			errors.Is(err, service.ErrInvalidSourceKind):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register source")
		}
		return
	}

	writeJSON(w, http.StatusOK, source)
}

type listSourcesResponse struct {
	Sources []domain.DataSource `json:"sources"`
	Count   int                 `json:"count"`
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	writeJSON(w, http.StatusOK, listSourcesResponse{Sources: sources, Count: len(sources)})
}
