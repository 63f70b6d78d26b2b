// Package token encodes principal snapshots into opaque session tokens.
//
// Tokens are HS256-signed JWTs carrying the principal identifier, email,
// role, kind, issue time, and a random nonce. The token itself carries no
// expiry claim: absolute and idle expiration are enforced by the session
// clock, not by the codec. The signature exists so a tampered or truncated
// stored token surfaces as a decode failure and triggers self-heal.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// ErrCorruptedToken is returned when a stored token fails to parse or verify.
var ErrCorruptedToken = errors.New("corrupted session token")

// SchemaVersion is the token claim schema version. Unknown versions are
// rejected on decode so future claim changes don't round-trip silently.
const SchemaVersion = 1

// Claims is the token payload. Registered claims carry the principal ID
// (subject), issue time, and nonce (jti).
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Role    string `json:"role"`
	Kind    string `json:"kind"`
	Version int    `json:"ver"`
}

// Issuer signs and decodes session tokens with a shared secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an Issuer with the given signing secret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Issue encodes a principal snapshot into a signed token.
// Returns principal.ErrInvalidPrincipal if the principal has no ID.
func (i *Issuer) Issue(p *principal.Principal, now time.Time) (string, error) {
	if p == nil || p.ID == "" {
		return "", fmt.Errorf("%w: missing id", principal.ErrInvalidPrincipal)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.ID,
			IssuedAt: jwt.NewNumericDate(now.UTC()),
			ID:       uuid.New().String(),
		},
		Email:   p.Email,
		Role:    string(p.Role),
		Kind:    string(p.Kind),
		Version: SchemaVersion,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode parses and verifies a token, returning its claims.
// Any parse, signature, or schema-version failure maps to ErrCorruptedToken.
func (i *Issuer) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedToken, err)
	}
	if !parsed.Valid {
		return nil, ErrCorruptedToken
	}
	if claims.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: unknown schema version %d", ErrCorruptedToken, claims.Version)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrCorruptedToken)
	}

	return claims, nil
}
