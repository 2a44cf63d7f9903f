package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes and middleware.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return s.rateLimitMiddleware(s.authMiddleware(s.requestSizeLimitMiddleware(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/v1/stats", s.statsHandler)

	mux.HandleFunc("POST /api/v1/enhance", protect(s.enhanceHandler))
	mux.HandleFunc("POST /api/v1/analyze", protect(s.analyzeHandler))
	mux.HandleFunc("GET /api/v1/status/{request_id}", protect(s.statusHandler))
	mux.HandleFunc("GET /api/v1/artifacts/{request_id}", protect(s.artifactsHandler))
	mux.HandleFunc("GET /api/v1/download/{request_id}/{filename}", protect(s.downloadHandler))
	mux.HandleFunc("DELETE /api/v1/workflows/{request_id}", protect(s.cancelHandler))

	return mux
}

// authMiddleware provides API key authentication.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			// Bearer token in the Authorization header works as a fallback
			authHeader := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
				apiKey = after
			}
		}

		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"client_ip", r.RemoteAddr,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests.
func (s *Server) requestSizeLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Config.Server.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.Config.Server.MaxRequestSize)
		}
		next(w, r)
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters).
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
