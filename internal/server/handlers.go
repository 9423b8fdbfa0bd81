package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/climtools/qqmap/internal/constants"
	"github.com/climtools/qqmap/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the correction server
type Handlers struct {
	server    *Server
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(s *Server) *Handlers {
	return &Handlers{
		server:    s,
		formatter: responseformat.NewFormatter(),
	}
}

// functionSummary describes the served transfer function
type functionSummary struct {
	Method        string    `json:"method"`
	Detrended     bool      `json:"detrended"`
	DetrendDegree int       `json:"detrend_degree,omitempty"`
	Window        int       `json:"window"`
	Interpolation string    `json:"interpolation"`
	Extrapolation string    `json:"extrapolation"`
	Probabilities []float64 `json:"probabilities"`
	CoveredDays   int       `json:"covered_days"`
}

// curveResponse is one day's correction curve
type curveResponse struct {
	Day int       `json:"doy"`
	X   []float64 `json:"x"`
	Y   []float64 `json:"y"`
}

// correctRequest carries values to correct for one day-of-year. Null
// entries stand for missing values.
type correctRequest struct {
	Day    int        `json:"doy"`
	Values []*float64 `json:"values"`
}

// correctResponse mirrors correctRequest with corrected values
type correctResponse struct {
	Day    int        `json:"doy"`
	Values []*float64 `json:"values"`
}

// GetHealth reports service status
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, map[string]string{
		"status":  "ok",
		"version": constants.Version,
	}, nil)
}

// GetFunction returns metadata for the served transfer function
func (h *Handlers) GetFunction(w http.ResponseWriter, req *http.Request) {
	tf := h.server.tf
	h.formatter.WriteResponse(w, req, functionSummary{
		Method:        string(tf.Method),
		Detrended:     tf.Detrended,
		DetrendDegree: tf.DetrendDegree,
		Window:        tf.Window,
		Interpolation: tf.Interpolation,
		Extrapolation: tf.Extrapolation,
		Probabilities: tf.Probabilities,
		CoveredDays:   tf.CoveredDays(),
	}, nil)
}

// GetFunctionDay returns the correction curve for one day-of-year
func (h *Handlers) GetFunctionDay(w http.ResponseWriter, req *http.Request) {
	day, err := strconv.Atoi(mux.Vars(req)["doy"])
	if err != nil || day < 1 || day > 365 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "doy must be an integer in [1, 365]")
		return
	}

	curve := h.server.tf.CurveFor(day)
	if curve == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "no curve for requested day")
		return
	}

	h.formatter.WriteResponse(w, req, curveResponse{Day: day, X: curve.X, Y: curve.Y}, nil)
}

// PostCorrect corrects a slice of values for one day-of-year
func (h *Handlers) PostCorrect(w http.ResponseWriter, req *http.Request) {
	var creq correctRequest
	if err := json.NewDecoder(req.Body).Decode(&creq); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}
	if creq.Day < 1 || creq.Day > 365 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "doy must be in [1, 365]")
		return
	}
	if len(creq.Values) == 0 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "values are required")
		return
	}
	if h.server.tf.CurveFor(creq.Day) == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "no curve for requested day")
		return
	}

	corrected, err := h.server.tf.CorrectDay(creq.Day, fromWire(creq.Values))
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusInternalServerError, err.Error())
		return
	}

	h.formatter.WriteResponse(w, req, correctResponse{
		Day:    creq.Day,
		Values: toWire(corrected),
	}, nil)
}

// fromWire maps null entries to NaN for the engine
func fromWire(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

// toWire maps NaN back to null for JSON safety
func toWire(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}
