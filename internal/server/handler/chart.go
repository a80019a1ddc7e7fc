package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/astrohelm/natalchart/internal/domain"
	"github.com/astrohelm/natalchart/internal/service"
)

// ChartHandler serves the chart endpoints.
type ChartHandler struct {
	charts *service.ChartService
	logger *slog.Logger
}

// NewChartHandler creates a ChartHandler.
func NewChartHandler(charts *service.ChartService, logger *slog.Logger) *ChartHandler {
	return &ChartHandler{
		charts: charts,
		logger: logger.With(slog.String("handler", "chart")),
	}
}

// createChartRequest is the POST body for chart creation. Either a place
// name (geocoded server-side) or explicit coordinates must be present.
type createChartRequest struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	Day            int     `json:"day"`
	Hour           int     `json:"hour"`
	Minute         int     `json:"minute"`
	UTCOffsetHours float64 `json:"utc_offset_hours"`
	Place          string  `json:"place,omitempty"`
	Latitude       float64 `json:"lat,omitempty"`
	Longitude      float64 `json:"lng,omitempty"`
	HouseSystem    string  `json:"house_system,omitempty"`
	TimeUncertain  bool    `json:"time_uncertain,omitempty"`
}

func (req createChartRequest) toInput() domain.BirthInput {
	return domain.BirthInput{
		Moment: domain.BirthMoment{
			Year:           req.Year,
			Month:          req.Month,
			Day:            req.Day,
			Hour:           req.Hour,
			Minute:         req.Minute,
			UTCOffsetHours: req.UTCOffsetHours,
		},
		Place: domain.Place{
			Name: req.Place,
			Coord: domain.GeoCoordinate{
				Latitude:  req.Latitude,
				Longitude: req.Longitude,
			},
		},
		HouseSystem:   req.HouseSystem,
		TimeUncertain: req.TimeUncertain,
	}
}

// CreateChart computes a chart from the submitted birth input.
// POST /api/charts
func (h *ChartHandler) CreateChart(w http.ResponseWriter, r *http.Request) {
	var req createChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.charts.CreateChart(r.Context(), clientKey(r), req.toInput())
	if err != nil {
		h.writeComputeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// GetChart fetches a stored chart.
// GET /api/charts/{id}
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.charts.GetChart(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chart not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get chart failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListCharts returns recent charts, newest first.
// GET /api/charts?limit=20&offset=0
func (h *ChartHandler) ListCharts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	recs, err := h.charts.ListCharts(r.Context(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list charts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recs == nil {
		recs = []domain.ChartRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"charts": recs,
		"limit":  limit,
		"offset": offset,
	})
}

// CachedChart returns the client's last submitted input and, when still
// cached, the matching result, so the UI can prefill and render instantly.
// GET /api/charts/cached
func (h *ChartHandler) CachedChart(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing client key")
		return
	}

	in, result, err := h.charts.CachedChart(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cached input for client")
			return
		}
		h.logger.ErrorContext(r.Context(), "cached chart lookup failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{"input": in}
	if result != nil {
		resp["result"] = result
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeComputeError maps computation failures onto HTTP statuses: bad input
// and unresolvable addresses are the client's fault, timeouts map to 504,
// everything else is a 502 from the ephemeris backend or a plain 500.
func (h *ChartHandler) writeComputeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAddressNotFound):
		writeError(w, http.StatusUnprocessableEntity, "address not found")
	default:
		var te *domain.TimeoutError
		var pe *domain.ProtocolError
		switch {
		case errors.As(err, &te):
			h.logger.WarnContext(r.Context(), "chart computation timed out",
				slog.String("stage", te.Stage),
				slog.Int("bodies_received", te.Progress.BodiesReceived),
			)
			writeError(w, http.StatusGatewayTimeout, "ephemeris service timed out")
		case errors.As(err, &pe), errors.Is(err, domain.ErrTransport):
			h.logger.ErrorContext(r.Context(), "ephemeris failure",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "ephemeris service failure")
		default:
			h.logger.ErrorContext(r.Context(), "chart creation failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}
