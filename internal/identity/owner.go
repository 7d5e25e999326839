package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a session token is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// OwnerClaims are the JWT claims of a site owner's session token. The
// subject is the owner identifier.
type OwnerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// OwnerResolver turns a bearer credential into an owner identifier.
type OwnerResolver interface {
	ResolveOwner(token string) (string, error)
}

// OwnerTokens issues and verifies HS256 owner session tokens. Tokens minted
// by the hosted auth service share the same secret, issuer and audience.
type OwnerTokens struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewOwnerTokens creates an OwnerTokens.
//
//	issuer  : expected "iss"; empty disables the check.
//	audience: expected "aud"; empty disables the check.
//	ttl     : lifetime of tokens minted by Issue (default: 1 hour).
func NewOwnerTokens(secret []byte, issuer, audience string, ttl time.Duration) (*OwnerTokens, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &OwnerTokens{secret: secret, issuer: issuer, audience: audience, ttl: ttl}, nil
}

// Issue creates a signed session token for ownerID.
func (o *OwnerTokens) Issue(ownerID string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner id must not be empty")
	}
	now := time.Now().UTC()
	claims := OwnerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    o.issuer,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
			ID:        uuid.New().String(),
		},
		Role: "authenticated",
	}
	if o.audience != "" {
		claims.Audience = jwt.ClaimStrings{o.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(o.secret)
	if err != nil {
		return "", fmt.Errorf("sign owner token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (o *OwnerTokens) Verify(tokenStr string) (*OwnerClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if o.issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		opts = append(opts, jwt.WithAudience(o.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &OwnerClaims{}, func(*jwt.Token) (any, error) {
		return o.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*OwnerClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// ResolveOwner implements OwnerResolver.
func (o *OwnerTokens) ResolveOwner(tokenStr string) (string, error) {
	claims, err := o.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
