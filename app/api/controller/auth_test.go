package controller_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaygrid/pointsx/app/api/controller"
	"github.com/relaygrid/pointsx/app/api/types"
)

func newTestController() *controller.Controller {
	return controller.NewController(&types.App{
		Config: types.Config{
			ServiceAPIKey: "service-secret",
			VerifierKey:   "verifier-secret",
			JWTSecret:     []byte("jwt-secret"),
		},
		Logger: zap.NewNop(),
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireServiceKey(t *testing.T) {
	c := newTestController()
	h := c.RequireServiceKey(okHandler())

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "service-secret", http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/earn", nil)
			if tt.key != "" {
				r.Header.Set("x-api-key", tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireServiceKeyEmptyConfigRejectsAll(t *testing.T) {
	c := controller.NewController(&types.App{Config: types.Config{}, Logger: zap.NewNop()})
	h := c.RequireServiceKey(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/earn", nil)
	r.Header.Set("x-api-key", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "empty configured key must not match an empty header")
}

func TestRequireVerifierKey(t *testing.T) {
	c := newTestController()
	h := c.RequireVerifierKey(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/verifier/test", nil)
	r.Header.Set("x-verifier-key", "verifier-secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/verifier/test", nil)
	r.Header.Set("x-verifier-key", "service-secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "keys are not interchangeable")
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	c := newTestController()

	token, err := c.IssueDeviceToken("dev_abc", "acct_abc")
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Handle("/devices/{id}/stats", c.RequireDeviceToken(okHandler())).Methods("GET")

	// own device
	r := httptest.NewRequest(http.MethodGet, "/devices/dev_abc/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// someone else's device
	r = httptest.NewRequest(http.MethodGet, "/devices/dev_other/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// no token
	r = httptest.NewRequest(http.MethodGet, "/devices/dev_abc/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeviceTokenRejectsForgedSignature(t *testing.T) {
	c := newTestController()

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "dev_abc"})
	raw, err := forged.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Handle("/devices/{id}/stats", c.RequireDeviceToken(okHandler())).Methods("GET")

	r := httptest.NewRequest(http.MethodGet, "/devices/dev_abc/stats", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
