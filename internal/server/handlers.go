package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"resumeforge/internal/errors"
	"resumeforge/internal/workflow"
)

const healthCheckTimeout = 5 * time.Second

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxUploadMemory = 4 << 20

// readEnhanceInput parses the multipart form shared by the enhance and
// analyze endpoints: a "resume" file part and a "job_description" field.
func readEnhanceInput(r *http.Request) (workflow.EnhanceInput, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return workflow.EnhanceInput{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		return workflow.EnhanceInput{}, fmt.Errorf("missing resume file part: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	document, err := io.ReadAll(file)
	if err != nil {
		return workflow.EnhanceInput{}, fmt.Errorf("failed to read resume upload: %w", err)
	}

	return workflow.EnhanceInput{
		JobText:  r.FormValue("job_description"),
		Document: document,
		Filename: header.Filename,
	}, nil
}

// enhanceHandler accepts an enhancement request and starts the workflow
// in the background. The response is the request ID to poll.
func (s *Server) enhanceHandler(w http.ResponseWriter, r *http.Request) {
	input, err := readEnhanceInput(r)
	if err != nil {
		writeErrorResponse(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}

	requestID, err := s.Orchestrator.Start(input)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.Logger.Info("Enhancement workflow accepted",
		"request_id", requestID,
		"filename", input.Filename,
		"document_bytes", len(input.Document))

	writeJSON(w, http.StatusAccepted, EnhanceAccepted{
		RequestID: requestID,
		Status:    "received",
		StatusURL: "/api/v1/status/" + requestID,
	})
}

// analyzeHandler runs the read-only flow synchronously: requirement
// summary plus gap analysis, no document mutation.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	input, err := readEnhanceInput(r)
	if err != nil {
		writeErrorResponse(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.Orchestrator.Analyze(r.Context(), input)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// statusHandler returns the workflow record for a request ID.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Orchestrator.Status(r.PathValue("request_id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// artifactListing describes the files retained for one workflow.
type artifactListing struct {
	RequestID string            `json:"request_id"`
	Status    string            `json:"status"`
	Artifacts map[string]string `json:"artifacts"`
	Document  string            `json:"document,omitempty"`
}

// artifactsHandler lists retained stage artifacts and the enhanced
// document by filename, ready for the download endpoint.
func (s *Server) artifactsHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Orchestrator.Status(r.PathValue("request_id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	listing := artifactListing{
		RequestID: rec.RequestID,
		Status:    string(rec.Status),
		Artifacts: make(map[string]string, len(rec.ArtifactPaths)),
	}
	for stage, path := range rec.ArtifactPaths {
		listing.Artifacts[stage] = filepath.Base(path)
	}
	if rec.DocumentPath != "" {
		listing.Document = filepath.Base(rec.DocumentPath)
	}

	writeJSON(w, http.StatusOK, listing)
}

// downloadHandler serves one retained file. The filename must match a
// path recorded on the workflow, which rules out traversal outside the
// request's working directory.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Orchestrator.Status(r.PathValue("request_id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	filename := r.PathValue("filename")
	for _, path := range rec.ArtifactPaths {
		if filepath.Base(path) == filename {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, path)
			return
		}
	}
	if rec.DocumentPath != "" && filepath.Base(rec.DocumentPath) == filename {
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		http.ServeFile(w, r, rec.DocumentPath)
		return
	}

	writeErrorResponse(w, "File not found",
		"no retained file named "+filename+" for this workflow", http.StatusNotFound)
}

// cancelHandler requests cooperative cancellation; the workflow stops at
// the next stage boundary.
func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	if err := s.Orchestrator.Cancel(requestID); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.Logger.Info("Workflow cancellation requested", "request_id", requestID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": requestID,
		"status":     "cancelling",
	})
}

// healthHandler reports liveness, AI model availability, and TLS
// certificate status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "resumeforge",
		"version": s.Version,
	}

	healthy := true

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if s.Provider != nil {
		info := s.Provider.GetModelInfo(ctx)
		response["ai_model"] = info
		if info != nil && !info.Available {
			healthy = false
		}
	} else {
		response["ai_model"] = map[string]any{
			"available": false,
			"error":     "no AI provider configured; pipeline runs in degraded mode",
		}
	}

	if certStatus := s.certificateHealth(ctx); certStatus != nil {
		response["certificates"] = certStatus
		if ok, exists := certStatus["healthy"].(bool); exists && !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// certificateHealth summarizes certificate expiry for the health check.
func (s *Server) certificateHealth(ctx context.Context) map[string]any {
	if s.CertManager == nil {
		return nil
	}

	status := make(map[string]any)
	timeToExpiry, err := s.CertManager.CheckExpiry()
	if err != nil {
		status["healthy"] = false
		status["error"] = fmt.Sprintf("failed to check certificate expiry: %v", err)
		return status
	}
	if s.Observability != nil {
		s.Observability.RecordCertExpiry(ctx, timeToExpiry)
	}

	status["time_to_expiry_hours"] = int(timeToExpiry.Hours())
	switch {
	case timeToExpiry <= 0:
		status["healthy"] = false
		status["status"] = "expired"
	case timeToExpiry <= 24*time.Hour:
		status["healthy"] = false
		status["status"] = "critical"
	case timeToExpiry <= 7*24*time.Hour:
		status["healthy"] = true
		status["status"] = "warning"
	default:
		status["healthy"] = true
		status["status"] = "ok"
	}
	status["watching"] = s.CertManager.Watching()

	return status
}

// statsHandler exposes workflow counts and rate limiter statistics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service":   "resumeforge",
		"version":   s.Version,
		"workflows": s.Orchestrator.Stats(),
		"server": map[string]any{
			"max_request_size_bytes": s.Config.Server.MaxRequestSize,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	writeJSON(w, http.StatusOK, response)
}

// writeAppError maps a pipeline error to an HTTP status and logs it.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	status := httpStatusFor(code)
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path)
	} else {
		s.Logger.Debug("Request rejected",
			"endpoint", r.URL.Path, "code", code, "error", err)
	}

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	writeErrorResponse(w, code, message, status)
}

// httpStatusFor maps error codes to HTTP statuses.
func httpStatusFor(code string) int {
	switch code {
	case errors.ErrCodeWorkflowNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidRequest, errors.ErrCodeUnsupportedDocFormat,
		errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeStructureInvalid, errors.ErrCodeSummarizationFailed,
		errors.ErrCodeVerificationFailed, errors.ErrCodeConstraintViolation:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeWorkflowCancelled:
		return http.StatusConflict
	case errors.ErrCodeAIServiceFailed, errors.ErrCodeAITimeout,
		errors.ErrCodeNetworkTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response.
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
