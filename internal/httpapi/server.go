// Package httpapi implements the thin REST adapter spec.md §6 describes:
// every handler here does request decoding/encoding only, delegating all
// decision-making to the Coordinator. Grounded on GoFire's
// web/route_handler.go (one handler registration per route, JSON response
// writing) with CORS handling adapted from teranos-QNTX/server/util.go's
// checkOrigin.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gofire/internal/coordinator"
	"gofire/internal/errs"
	"gofire/internal/logging"
	"gofire/internal/models"
	"gofire/internal/state"
	"gofire/internal/store"
)

// Server wires the Coordinator to an http.ServeMux using Go's route-pattern
// matching (method + "{id}" wildcards), avoiding a third-party router
// dependency: none of the retrieval pack's examples bring one in for this
// concern, and the stdlib has supported this syntax since Go 1.22.
type Server struct {
	coordinator    *coordinator.Coordinator
	allowedOrigins []string
	log            *zap.Logger
	mux            *http.ServeMux
}

func New(c *coordinator.Coordinator, allowedOrigins []string, log *zap.Logger) *Server {
	s := &Server{coordinator: c, allowedOrigins: allowedOrigins, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.withCORS(s.mux).ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /jobs", s.createJob)
	s.mux.HandleFunc("GET /jobs", s.listJobs)
	s.mux.HandleFunc("GET /jobs/{id}", s.getJob)
	s.mux.HandleFunc("PUT /jobs/{id}", s.updateJob)
	s.mux.HandleFunc("DELETE /jobs/{id}", s.deleteJob)
	s.mux.HandleFunc("POST /jobs/{id}/run", s.runJobNow)
	s.mux.HandleFunc("PATCH /jobs/{id}/status", s.toggleStatus)
	s.mux.HandleFunc("GET /dlq", s.listDLQ)
	s.mux.HandleFunc("POST /dlq/{id}/reactivate", s.reactivateDLQ)
	s.mux.HandleFunc("POST /dlq/{id}/complete", s.completeDLQ)
	s.mux.HandleFunc("GET /health", s.health)
}

// withCORS applies the ALLOWED_ORIGINS allow-list to every response, per
// spec.md §6.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type createOrUpdateRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Target         string          `json:"target"`
	Payload        json.RawMessage `json:"payload"`
	ScheduleType   string          `json:"schedule_type"`
	CronExpression string          `json:"cron_expression"`
	SpecificTime   *time.Time      `json:"specific_time"`
	Interval       string          `json:"interval"`
	IntervalValue  int             `json:"interval_value"`
	Status         string          `json:"status"`
}

func (r createOrUpdateRequest) toInput() coordinator.JobInput {
	return coordinator.JobInput{
		Name:           r.Name,
		Description:    r.Description,
		Target:         r.Target,
		Payload:        r.Payload,
		ScheduleType:   models.ScheduleType(r.ScheduleType),
		CronExpression: r.CronExpression,
		SpecificTime:   r.SpecificTime,
		Interval:       models.Interval(r.Interval),
		IntervalValue:  r.IntervalValue,
		Status:         state.Status(r.Status),
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createOrUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	job, err := s.coordinator.Create(r.Context(), req.toInput())
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "job created", "job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var filter models.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := state.Status(raw)
		filter.Status = &status
	}
	jobs, err := s.coordinator.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.coordinator.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	var req createOrUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	job, err := s.coordinator.Update(r.Context(), r.PathValue("id"), req.toInput())
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "job updated", "job": job})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if _, err := s.coordinator.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "job deleted"})
}

func (s *Server) runJobNow(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.RunNow(r.Context(), r.PathValue("id")); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "job scheduled to run now"})
}

type toggleStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) toggleStatus(w http.ResponseWriter, r *http.Request) {
	var req toggleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	job, err := s.coordinator.ToggleStatus(r.Context(), r.PathValue("id"), state.Status(req.Status))
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listDLQ(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.coordinator.ListDLQ(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead-lettered jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) reactivateDLQ(w http.ResponseWriter, r *http.Request) {
	if _, err := s.coordinator.Reactivate(r.Context(), r.PathValue("id")); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "job reactivated"})
}

func (s *Server) completeDLQ(w http.ResponseWriter, r *http.Request) {
	if _, err := s.coordinator.Complete(r.Context(), r.PathValue("id")); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "job completed"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) writeCoordinatorError(w http.ResponseWriter, err error) {
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var verrs *errs.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, verrs.Error())
		return
	}
	switch errs.Classify(err) {
	case errs.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case errs.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("unclassified coordinator error", zap.String(logging.FieldComponent, "httpapi"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
