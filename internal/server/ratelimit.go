package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"resumeforge/internal/errors"
)

// LimiterManager manages one token-bucket limiter per client key (an IP
// or an API key). Idle limiters are evicted in the background.
type LimiterManager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	done     chan struct{}
	logger   *errors.Logger
}

// NewLimiterManager creates a manager allowing requestsPerMin sustained
// requests with the given burst capacity. cleanupAfter controls both the
// sweep interval and the idle-eviction age; zero falls back to 10
// minutes.
func NewLimiterManager(requestsPerMin, burstCapacity int, cleanupAfter time.Duration, logger *errors.Logger) *LimiterManager {
	if cleanupAfter <= 0 {
		cleanupAfter = 10 * time.Minute
	}

	m := &LimiterManager{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		done:     make(chan struct{}),
		logger:   logger,
	}

	go m.cleanupRoutine(cleanupAfter)
	return m
}

// GetLimiter retrieves or creates the limiter for a key.
func (m *LimiterManager) GetLimiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = limiter
	}
	m.lastSeen[key] = time.Now()

	return limiter
}

// Allow reports whether a request for the key fits its budget. Non-blocking.
func (m *LimiterManager) Allow(key string) bool {
	return m.GetLimiter(key).Allow()
}

// GetStats returns current rate limiter statistics.
func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"enabled":         true,
		"active_limiters": len(m.limiters),
		"rate_per_minute": float64(m.rate) * 60.0,
		"burst_capacity":  m.burst,
	}
}

func (m *LimiterManager) cleanupRoutine(cleanupAfter time.Duration) {
	ticker := time.NewTicker(cleanupAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(cleanupAfter)
		case <-m.done:
			return
		}
	}
}

// cleanup removes limiters idle longer than evictionAge.
func (m *LimiterManager) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, lastSeen := range m.lastSeen {
		if now.Sub(lastSeen) > evictionAge {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}

	if m.logger != nil {
		m.logger.Debug("Rate limiter cleanup completed",
			"remaining_limiters", len(m.limiters))
	}
}

// Close stops the cleanup goroutine.
func (m *LimiterManager) Close() {
	close(m.done)
}

// rateLimitMiddleware rejects requests whose client key is over budget.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.RateLimiter == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		key := getRateLimitKey(r, s.Config.Server.RateLimit.ByAPIKey)

		if !s.RateLimiter.Allow(key) {
			s.Logger.Info("Rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			if s.Observability != nil {
				s.Observability.RecordRateLimitHit(r.Context(), r.URL.Path)
			}
			writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}

// getRateLimitKey picks the bucket key: the API key when configured and
// present, otherwise the client IP.
func getRateLimitKey(r *http.Request, byAPIKey bool) string {
	if byAPIKey {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			authHeader := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
				apiKey = after
			}
		}
		if apiKey != "" {
			return "api:" + apiKey
		}
	}

	return "ip:" + getClientIP(r)
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For wins when a proxy is in front
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list.
func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
