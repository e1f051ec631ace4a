package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/relaygrid/pointsx/app/api/types"
	"github.com/relaygrid/pointsx/pkg/db/ledger"
)

// nonceTTL bounds how long a client nonce is remembered at the API boundary.
const nonceTTL = 10 * time.Minute

type Controller struct {
	App *types.App

	// nonces is the duplicate-submission guard for client-supplied nonces,
	// distinct from the ledger's dedupe keys.
	nonces *xsync.Map[string, time.Time]
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	c := &Controller{
		App:    app,
		nonces: xsync.NewMap[string, time.Time](),
	}
	go c.sweepNonces()
	return c
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	// Device protocol
	r.HandleFunc("/register", c.Register).Methods("POST")
	r.HandleFunc("/heartbeat", c.Heartbeat).Methods("POST")

	// Service endpoints (shared-secret gated)
	r.Handle("/earn", c.RequireServiceKey(http.HandlerFunc(c.Earn))).Methods("POST")
	r.Handle("/convert", c.RequireServiceKey(http.HandlerFunc(c.Convert))).Methods("POST")
	r.Handle("/verifier/test", c.RequireVerifierKey(http.HandlerFunc(c.RecordProbe))).Methods("POST")

	// Reads
	r.Handle("/accounts/{id}/balance", c.RequireServiceKey(http.HandlerFunc(c.AccountBalance))).Methods("GET")
	r.Handle("/devices/{id}/stats", c.RequireDeviceToken(http.HandlerFunc(c.DeviceStats))).Methods("GET")

	// Real-time ledger feed
	r.HandleFunc("/ws/events", c.HandleWebSocket).Methods("GET")

	return r, nil
}

// WithCORS wraps the router with permissive CORS for the UI layer.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, x-verifier-key")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkNonce remembers a client nonce and reports whether it was already seen
// within the TTL. Empty nonces are not tracked.
func (c *Controller) checkNonce(scope, nonce string) (duplicate bool) {
	if nonce == "" {
		return false
	}
	key := scope + ":" + nonce
	now := time.Now()
	if expiry, loaded := c.nonces.LoadOrStore(key, now.Add(nonceTTL)); loaded {
		if now.Before(expiry) {
			return true
		}
		c.nonces.Store(key, now.Add(nonceTTL))
	}
	return false
}

// releaseNonce forgets a nonce whose request did not commit, so a retry of
// the same request is not rejected as a duplicate. Real duplicates are still
// caught by the ledger dedupe key.
func (c *Controller) releaseNonce(scope, nonce string) {
	if nonce == "" {
		return
	}
	c.nonces.Delete(scope + ":" + nonce)
}

func (c *Controller) sweepNonces() {
	for range time.Tick(nonceTTL) {
		now := time.Now()
		c.nonces.Range(func(key string, expiry time.Time) bool {
			if now.After(expiry) {
				c.nonces.Delete(key)
			}
			return true
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store sentinel errors onto the HTTP taxonomy. Transaction
// failures surface as 500 and are safe to retry with the same dedupe key.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrDeviceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrConversionDisabled):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientPoints):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrDailyCapReached), errors.Is(err, ledger.ErrCooldownActive):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
