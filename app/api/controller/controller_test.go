package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/relaygrid/pointsx/app/api/types"
)

func TestCheckNonce(t *testing.T) {
	c := NewController(&types.App{Logger: zap.NewNop()})

	assert.False(t, c.checkNonce("earn", "n-1"), "first use passes")
	assert.True(t, c.checkNonce("earn", "n-1"), "replay is flagged")
	assert.False(t, c.checkNonce("convert", "n-1"), "scopes are independent")
	assert.False(t, c.checkNonce("earn", "n-2"))

	// empty nonces are not tracked
	assert.False(t, c.checkNonce("earn", ""))
	assert.False(t, c.checkNonce("earn", ""))
}

func TestReleaseNonceAllowsRetry(t *testing.T) {
	c := NewController(&types.App{Logger: zap.NewNop()})

	// first attempt takes the nonce, then the award fails without committing
	assert.False(t, c.checkNonce("earn:acct_a", "n-1"))
	c.releaseNonce("earn:acct_a", "n-1")

	// the retry of the same request must pass the boundary again
	assert.False(t, c.checkNonce("earn:acct_a", "n-1"), "retry after a failed award must not be rejected as a duplicate")
	assert.True(t, c.checkNonce("earn:acct_a", "n-1"), "a committed nonce is still guarded")

	// releasing an untracked or empty nonce is a no-op
	c.releaseNonce("earn:acct_a", "never-seen")
	c.releaseNonce("earn:acct_a", "")
}

func TestWithCORSPreflight(t *testing.T) {
	wrapped := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodOptions, "/earn", nil)
	r.Header.Set("Origin", "https://dashboard.example.com")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code, "preflight short-circuits")
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestWithCORSPassthrough(t *testing.T) {
	wrapped := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
