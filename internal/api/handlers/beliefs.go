package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/service"
)

type BeliefHandler struct {
	svc *service.Beliefs
}

func NewBeliefHandler(svc *service.Beliefs) *BeliefHandler {
	return &BeliefHandler{svc: svc}
}

// Query serves GET /v1/beliefs. Sensors are addressed by name; window
// bounds are RFC 3339 timestamps and durations use Go notation ("15m",
// "-2h"). Failures of individual sensors are reported inside the result,
// not as an HTTP error.
func (h *BeliefHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.FetchRequest{Sensors: splitList(q.Get("sensors"))}
	if len(req.Sensors) == 0 {
		writeError(w, http.StatusBadRequest, "sensors parameter is required")
		return
	}

	var parseErr string
	timeParam := func(name string) *time.Time {
		v := q.Get(name)
		if v == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			parseErr = "invalid " + name
			return nil
		}
		return &t
	}
	durationParam := func(name string) *time.Duration {
		v := q.Get(name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErr = "invalid " + name
			return nil
		}
		return &d
	}

	if t := timeParam("start"); t != nil {
		req.EventWindow.Start = t
	}
	if t := timeParam("end"); t != nil {
		req.EventWindow.End = t
	}
	req.BeliefsAfter = timeParam("beliefs_after")
	req.BeliefsBefore = timeParam("beliefs_before")
	req.AsOf = timeParam("as_of")
	req.HorizonWindow.AtLeast = durationParam("horizon_at_least")
	req.HorizonWindow.AtMost = durationParam("horizon_at_most")
	if d := durationParam("resolution"); d != nil {
		req.Resolution = *d
	}
	if parseErr != "" {
		writeError(w, http.StatusBadRequest, parseErr)
		return
	}

	for _, raw := range splitList(q.Get("source_ids")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_ids")
			return
		}
		req.SourceIDs = append(req.SourceIDs, id)
	}
	var ok bool
	if req.SourceKinds, ok = parseKinds(q.Get("source_kinds")); !ok {
		writeError(w, http.StatusBadRequest, "invalid source_kinds")
		return
	}
	if req.ExcludeKinds, ok = parseKinds(q.Get("exclude_source_kinds")); !ok {
		writeError(w, http.StatusBadRequest, "invalid exclude_source_kinds")
		return
	}

	req.MostRecentOnly = q.Get("most_recent") == "true"
	req.Combine = q.Get("combine") == "true"

	result, err := h.svc.Fetch(r.Context(), req)
	if err != nil {
		writeCondition(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type beliefPayload struct {
	SourceID              int64     `json:"source_id"`
	EventStart            time.Time `json:"event_start"`
	BeliefHorizon         string    `json:"belief_horizon,omitempty"`
	CumulativeProbability *float64  `json:"cumulative_probability,omitempty"`
	EventValue            float64   `json:"event_value"`
}

type reconcileRequest struct {
	Sensor        string          `json:"sensor"`
	KeepUnchanged bool            `json:"keep_unchanged,omitempty"`
	Beliefs       []beliefPayload `json:"beliefs"`
}

// Reconcile serves POST /v1/beliefs. Candidates that repeat what their
// source already believed are dropped; the response reports how many rows
// were actually persisted.
func (h *BeliefHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sensor == "" {
		writeError(w, http.StatusBadRequest, "sensor is required")
		return
	}

	beliefs := make([]domain.Belief, 0, len(req.Beliefs))
	for i, p := range req.Beliefs {
		var horizon time.Duration
		if p.BeliefHorizon != "" {
			var err error
			horizon, err = time.ParseDuration(p.BeliefHorizon)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid belief_horizon at belief "+strconv.Itoa(i))
				return
			}
		}
		// A lone row without a stated probability is a deterministic
		// estimate.
		probability := 0.5
		if p.CumulativeProbability != nil {
			probability = *p.CumulativeProbability
		}
		beliefs = append(beliefs, domain.Belief{
			SourceID:              p.SourceID,
			EventStart:            p.EventStart,
			Horizon:               horizon,
			CumulativeProbability: probability,
			EventValue:            p.EventValue,
		})
	}

	result, err := h.svc.Reconcile(r.Context(), service.ReconcileRequest{
		Sensor:        req.Sensor,
		Beliefs:       beliefs,
		KeepUnchanged: req.KeepUnchanged,
	})
	if err != nil {
		writeCondition(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeCondition maps the service error taxonomy onto HTTP statuses.
func writeCondition(w http.ResponseWriter, err error) {
	switch service.ConditionOf(err) {
	case service.ConditionInvalidInput, service.ConditionUnsupportedResolution:
		writeError(w, http.StatusBadRequest, err.Error())
	case service.ConditionNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case service.ConditionStoreUnavailable:
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseKinds(s string) ([]domain.SourceKind, bool) {
	var kinds []domain.SourceKind
	for _, part := range splitList(s) {
		if !domain.ValidSourceKind(part) {
			return nil, false
		}
		kinds = append(kinds, domain.SourceKind(part))
	}
	return kinds, true
}
