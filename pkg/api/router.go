// Package api exposes the submission queue over HTTP.
//
// API Endpoints:
//
//	POST   /reports          - Enqueue a work report, returns {"id": "..."} with 202
//	GET    /status?id=<id>   - Poll one submission
//	GET    /stats            - Aggregate counts, average processing time and health
//	GET    /items?status=&limit= - Inspect pending, processing or historical items
//	DELETE /history          - Drop completed and failed history
//	GET    /healthz          - 200 when healthy, 503 when the backlog is too large
//
// Every endpoint except /healthz requires the X-API-Key header when an API key is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/queue"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

const (
	defaultItemsLimit = 50
	maxReportBytes    = 1 << 20
)

// Queue is the part of *queue.Queue the handlers need.
type Queue interface {
	Enqueue(p reports.Payload) (string, error)
	Status(id string) (queue.StatusResponse, bool)
	AggregateStatus() queue.Metrics
	Items(status queue.Status, limit int) []queue.Item
	ClearHistory() int
}

// Limiter decides whether a client may submit another report.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// Options configures the router.
type Options struct {
	APIKey  string  // Empty disables authentication (dev mode)
	Limiter Limiter // Optional submission rate limit
	// TrustProxy keys the rate limit on the first X-Forwarded-For hop.
	// Enable only behind a proxy that overwrites the header.
	TrustProxy bool
	Logger     zerolog.Logger
}

type handler struct {
	q          Queue
	limiter    Limiter
	trustProxy bool
	log        zerolog.Logger
}

// authMiddleware wraps an http.HandlerFunc and enforces API Key authentication.
func authMiddleware(next http.HandlerFunc, requiredKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no key is configured, allow all (dev mode)
		if requiredKey == "" {
			next(w, r)
			return
		}

		if r.Header.Get("X-API-Key") != requiredKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// enableCORS wraps an http.HandlerFunc and adds CORS headers.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

		// Preflight requests never reach auth
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// NewRouter configures the HTTP handlers and returns the mux.
// Middlewares chain as CORS -> Auth -> Handler.
func NewRouter(q Queue, opts Options) *http.ServeMux {
	h := &handler{
		q:          q,
		limiter:    opts.Limiter,
		trustProxy: opts.TrustProxy,
		log:        opts.Logger.With().Str("component", "api").Logger(),
	}

	protect := func(fn http.HandlerFunc) http.HandlerFunc {
		return enableCORS(authMiddleware(fn, opts.APIKey))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/reports", protect(h.submit))
	mux.HandleFunc("/status", protect(h.status))
	mux.HandleFunc("/stats", protect(h.stats))
	mux.HandleFunc("/items", protect(h.items))
	mux.HandleFunc("/history", protect(h.clearHistory))
	mux.HandleFunc("/healthz", enableCORS(h.healthz))
	return mux
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.limiter != nil {
		client := clientIP(r, h.trustProxy)
		allowed, err := h.limiter.Allow(r.Context(), client)
		if err != nil {
			// Redis trouble must not block submissions
			h.log.Warn().Err(err).Str("client", client).Msg("rate limiter unavailable, allowing request")
		} else if !allowed {
			http.Error(w, "Too many submissions", http.StatusTooManyRequests)
			return
		}
	}

	var p reports.Payload
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBytes)
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Report too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.q.Enqueue(p)
	if errors.Is(err, queue.ErrQueueClosed) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing submission ID", http.StatusBadRequest)
		return
	}

	resp, ok := h.q.Status(id)
	if !ok {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.q.AggregateStatus())
}

func (h *handler) items(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := queue.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "Unknown status", http.StatusBadRequest)
		return
	}

	limit := defaultItemsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, h.q.Items(status, limit))
}

func (h *handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n := h.q.ClearHistory()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	m := h.q.AggregateStatus()
	code := http.StatusOK
	if !m.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, m)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// clientIP returns the remote host, or the first X-Forwarded-For hop when
// the proxy in front is trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
