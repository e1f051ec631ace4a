package controller

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// keyMatches compares an opaque shared secret in constant time. An empty
// configured secret matches nothing.
func keyMatches(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// RequireServiceKey gates service endpoints behind the x-api-key header.
func (c *Controller) RequireServiceKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(c.App.Config.ServiceAPIKey, r.Header.Get("x-api-key")) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireVerifierKey gates probe submission behind the x-verifier-key header.
func (c *Controller) RequireVerifierKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(c.App.Config.VerifierKey, r.Header.Get("x-verifier-key")) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueDeviceToken mints the session token returned by /register.
func (c *Controller) IssueDeviceToken(deviceID, accountID string) (string, error) {
	ttl := 30 * 24 * time.Hour
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": deviceID,
		"acc": accountID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	})
	return token.SignedString(c.App.Config.JWTSecret)
}

// deviceFromToken validates a bearer token and returns the device id claim.
func (c *Controller) deviceFromToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return c.App.Config.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", false
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	deviceID, _ := claims["sub"].(string)
	return deviceID, deviceID != ""
}

// RequireDeviceToken gates device reads behind the registration session
// token, and rejects tokens presented for another device's id.
func (c *Controller) RequireDeviceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID, ok := c.deviceFromToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if pathID := pathVar(r, "id"); pathID != "" && pathID != deviceID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
