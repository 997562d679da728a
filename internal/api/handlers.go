package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/koopmanstack/koopman-verify/internal/models"
	"github.com/koopmanstack/koopman-verify/internal/services"
)

// Handler serves the validation HTTP API.
type Handler struct {
	svc    *services.ValidationService
	logger *slog.Logger
}

// NewHandler constructs the API handler.
func NewHandler(svc *services.ValidationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/validate", h.validate)
	mux.HandleFunc("GET /api/v1/runs", h.listRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.runResults)
	mux.HandleFunc("GET /api/v1/series", h.series)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

// ValidateRequest is the POST /api/v1/validate payload. Calibration, when
// present, overrides the service calibration for this request only.
type ValidateRequest struct {
	Sources     []string                  `json:"sources"`
	Calibration *models.CalibrationParams `json:"calibration,omitempty"`
}

// ValidateResponse carries the run summary, per-trajectory results, recorded
// per-source failures, and the rendered report.
type ValidateResponse struct {
	Run      models.ValidationRun      `json:"run"`
	Results  []models.ValidationResult `json:"results"`
	Failures []FailureEntry            `json:"failures,omitempty"`
	Report   string                    `json:"report"`
}

// FailureEntry is the JSON shape of one per-source failure.
type FailureEntry struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Sources) == 0 {
		h.writeError(w, http.StatusBadRequest, "sources must not be empty")
		return
	}

	var (
		run   models.ValidationRun
		batch models.BatchResult
		text  string
		err   error
	)
	if req.Calibration != nil {
		run, batch, text, err = h.svc.RunWith(r.Context(), *req.Calibration, req.Sources)
	} else {
		run, batch, text, err = h.svc.Run(r.Context(), req.Sources)
	}
	if err != nil {
		if models.IsConfigurationError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("validation run failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}

	resp := ValidateResponse{Run: run, Results: batch.Results, Report: text}
	for _, f := range batch.Failures {
		resp.Failures = append(resp.Failures, FailureEntry{Source: f.Source, Error: f.Err.Error()})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusFailedDependency, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) runResults(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		h.writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	results, err := h.svc.RunResults(r.Context(), runID)
	if err != nil {
		h.writeError(w, http.StatusFailedDependency, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		h.writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}
	series, err := h.svc.Series(source)
	if err != nil {
		var dfe *models.DataFormatError
		if errors.As(err, &dfe) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("series extraction failed", slog.String("source", source), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "series extraction failed")
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("response encode failed", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, map[string]string{"error": msg})
}
