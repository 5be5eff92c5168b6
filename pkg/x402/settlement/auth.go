package settlement

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	jwtIssuer   = "x402-resource-server"
	jwtLifetime = 2 * time.Minute
)

// AuthProvider supplies the headers that authenticate a call to the facilitator
type AuthProvider interface {
	GetAuthHeaders(ctx context.Context, method, url string) (map[string]string, error)
}

// WithAuthProvider authenticates every settle call with the provider's headers
func WithAuthProvider(provider AuthProvider) FacilitatorOption {
	return func(e *facilitatorExecutor) {
		e.authProvider = provider
	}
}

type jwtAuthProvider struct {
	keyId string
	key   ed25519.PrivateKey
	now   func() time.Time
}

// NewJwtAuthProvider returns an AuthProvider that signs a short lived EdDSA
// bearer token per request. The token is bound to the request method and URL.
func NewJwtAuthProvider(keyId string, key ed25519.PrivateKey) (AuthProvider, error) {
	if len(keyId) == 0 {
		return nil, errors.New("key id is required")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key")
	}

	return &jwtAuthProvider{
		keyId: keyId,
		key:   key,
		now:   time.Now,
	}, nil
}

// GetAuthHeaders implements AuthProvider.GetAuthHeaders
func (p *jwtAuthProvider) GetAuthHeaders(_ context.Context, method, url string) (map[string]string, error) {
	now := p.now()

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": jwtIssuer,
		"sub": p.keyId,
		"uri": method + " " + url,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
	})
	token.Header["kid"] = p.keyId

	signed, err := token.SignedString(p.key)
	if err != nil {
		return nil, errors.Wrap(err, "error signing facilitator token")
	}

	return map[string]string{
		"Authorization": "Bearer " + signed,
	}, nil
}
