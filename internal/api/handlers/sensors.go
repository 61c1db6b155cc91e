package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/service"
)

type SensorHandler struct {
	svc *service.Sensors
}

func NewSensorHandler(svc *service.Sensors) *SensorHandler {
	return &SensorHandler{svc: svc}
}

type createSensorRequest struct {
	Name            string   `json:"name"`
	Unit            string   `json:"unit"`
	EventResolution string   `json:"event_resolution,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
}

type sensorResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	EventResolution string    `json:"event_resolution"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func sensorToResponse(s *domain.Sensor) sensorResponse {
	return sensorResponse{
		ID:              s.ID,
		Name:            s.Name,
		Unit:            s.Unit,
		EventResolution: s.EventResolution.String(),
		Latitude:        s.Latitude,
		Longitude:       s.Longitude,
		CreatedAt:       s.CreatedAt,
	}
}

func (h *SensorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var resolution time.Duration
	if req.EventResolution != "" {
		var err error
		resolution, err = time.ParseDuration(req.EventResolution)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event_resolution")
			return
		}
	}

	sensor := &domain.Sensor{
		Name:            req.Name,
		Unit:            req.Unit,
		EventResolution: resolution,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	}

	if err := h.svc.Create(r.Context(), sensor); err != nil {
		switch {
		case errors.Is(err, service.ErrSensorNameRequired),
			errors.Is(err, service.ErrSensorUnitRequired),
			errors.Is(err, service.ErrNegativeResolution):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSensorExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create sensor")
		}
		return
	}

	writeJSON(w, http.StatusCreated, sensorToResponse(sensor))
}

func (h *SensorHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "invalid sensor name")
		return
	}

	sensor, err := h.svc.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrSensorNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get sensor")
		return
	}

	writeJSON(w, http.StatusOK, sensorToResponse(sensor))
}

type listSensorsResponse struct {
	Sensors []sensorResponse `json:"sensors"`
	Count   int              `json:"count"`
}

func (h *SensorHandler) List(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sensors")
		return
	}

	out := make([]sensorResponse, 0, len(sensors))
	for i := range sensors {
		out = append(out, sensorToResponse(&sensors[i]))
	}
	writeJSON(w, http.StatusOK, listSensorsResponse{Sensors: out, Count: len(out)})
}
