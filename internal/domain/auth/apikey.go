package auth

import "context"

// APIKeyInfo holds the identity data for a validated admin API key.
type APIKeyInfo struct {
	ID      int64
	KeyHash string
	Name    string
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
