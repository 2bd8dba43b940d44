package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/pasheon/boutique-backend/internal/domain/auth"
)

// Security authenticates admin requests via HMAC-SHA256 hashed API keys
// carried in the api_key header.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security gate with the given API key repository and
// HMAC pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// RequireAPIKey rejects requests whose api_key header does not hash to a
// known active key. The stored hash is compared in constant time to guard
// against timing side-channels even though the lookup already succeeded.
func (s *Security) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "No API key provided.")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Invalid API key.")
			return
		}

		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
			writeError(w, r, http.StatusUnauthorized, "Invalid API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HashAPIKey computes the storage hash for a raw API key. Shared with the
// seed tool so both sides agree on the scheme.
func HashAPIKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
