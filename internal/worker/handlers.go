package worker

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50

	welcomeMessage  = "Welcome to the Gait Analysis API! Use /predict for predictions."
	missingFeatures = "Missing 'features' in request"
	resetMessage    = "Session data reset successfully!"
)

// PredictRequest is the /predict body.
type PredictRequest struct {
	Features  []float64  `json:"features"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleWelcome godoc
// @Summary Welcome message
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func (s *Service) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

// handlePredict godoc
// @Summary Classify a feature vector and record it in the caller's session
// @Accept json
// @Produce json
// @Param request body PredictRequest true "Feature vector"
// @Success 200 {object} models.EventOutcome
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /predict [post]
func (s *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large or unreadable")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, missingFeatures)
		return
	}

	if err := validatePredictBody(body); err != nil {
		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) == nil {
			if _, ok := fields["features"]; !ok {
				writeError(w, http.StatusBadRequest, missingFeatures)
				return
			}
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PredictRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	outcome, err := s.predict(r.Context(), sessionIDFrom(r.Context()), req.Features, req.Timestamp)
	if err != nil {
		status := httpStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("Prediction failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleSessionSummary godoc
// @Summary Report the caller's session totals
// @Produce json
// @Success 200 {object} models.Summary
// @Router /session_summary [post]
func (s *Service) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summary(r.Context(), sessionIDFrom(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Session summary failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleResetSession godoc
// @Summary Reset the caller's session
// @Produce json
// @Success 200 {object} map[string]string
// @Router /reset_session [post]
func (s *Service) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.reset(r.Context(), sessionIDFrom(r.Context())); err != nil {
		log.Error().Err(err).Msg("Session reset failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": resetMessage})
}

// handlePredictions godoc
// @Summary Recent predictions, newest first
// @Produce json
// @Param limit query int false "Maximum records (default 50)"
// @Param all query bool false "Include every session"
// @Success 200 {array} models.PredictionRecord
// @Router /api/predictions [get]
func (s *Service) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessionID := sessionIDFrom(r.Context())
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		sessionID = ""
	}
	writeJSON(w, http.StatusOK, s.history.Recent(sessionID, limit))
}

// handleEvents godoc
// @Summary Stream prediction, warning and reset events
// @Produce text/event-stream
// @Param all query bool false "Include every session"
// @Router /api/events [get]
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFrom(r.Context())
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		sessionID = ""
	}
	s.sseBroadcaster.Serve(w, r, sessionID)
}

// handleHealth godoc
// @Summary Readiness and store health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(s.now().Sub(s.startTime).Seconds()),
		"store":          "ok",
	}
	status := http.StatusOK

	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			resp["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if !s.ready.Load() {
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusOK {
		resp["status"] = "ready"
	} else {
		resp["status"] = "unavailable"
	}
	writeJSON(w, status, resp)
}
