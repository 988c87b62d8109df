package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// hashToken renders a bearer token as the "sha256:<hex>" form stored in
// AuthConfig.TokenHash. Grounded on buddy-server/src/api/auth.rs's
// hash_token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// isLocalhost reports whether host (as seen in the Host header, with any
// port stripped) names the local machine.
func isLocalhost(host string) bool {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	switch strings.ToLower(h) {
	case "127.0.0.1", "localhost", "::1":
		return true
	default:
		return false
	}
}

// authRequired reports whether requests must carry a matching bearer
// token: loopback connections and deployments with no token configured
// are always exempt.
func (s *Server) authRequired(r *http.Request) bool {
	if isLocalhost(r.Host) {
		return false
	}
	snapshot := s.State.Load()
	return snapshot.Config != nil && snapshot.Config.Auth.TokenHash != ""
}

// authMiddleware enforces the bearer-token check on every /api/ route
// except /api/auth/verify and /api/auth/status, which are always reachable
// so a client can discover whether auth is required.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authRequired(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed Authorization header")
			return
		}

		expected := s.State.Load().Config.Auth.TokenHash
		if subtle.ConstantTimeCompare([]byte(hashToken(token)), []byte(expected)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	if !s.authRequired(r) {
		s.writeJSON(w, http.StatusOK, verifyResponse{Valid: true})
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	expected := s.State.Load().Config.Auth.TokenHash
	valid := subtle.ConstantTimeCompare([]byte(hashToken(req.Token)), []byte(expected)) == 1
	s.writeJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}

type authStatusResponse struct {
	Required bool `json:"required"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, authStatusResponse{Required: s.authRequired(r)})
}
