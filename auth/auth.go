/*
Package auth verifies bearer tokens and carries the caller's role.

PURPOSE:
  The API is used by hostel staff. Tokens are HS256 JWTs issued by the
  hostel's identity service (or by Sign, for tooling and tests) and
  carry an email and a role:

    admin      Everything, including settings, reset and demo scenarios
    staff      Catalog, purchases, issues, registers, ledger edits
    readonly   Reads only

SEE ALSO:
  - api/server.go: authMiddleware, requireRole
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleReadOnly Role = "readonly"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff || r == RoleReadOnly
}

// CanWrite reports whether the role may record and edit data.
func (r Role) CanWrite() bool { return r == RoleAdmin || r == RoleStaff }

// CanAdmin reports whether the role may change settings and reset data.
func (r Role) CanAdmin() bool { return r == RoleAdmin }

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

// Claims are the token claims the API relies on.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks and issues HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Sign issues a token valid for ttl.
func (v *Verifier) Sign(email string, role Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	now := v.now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses a token string, with or without the "Bearer " prefix.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return &claims, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller's claims, or nil.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// Actor names the caller for audit logs.
func Actor(ctx context.Context) string {
	if c := FromContext(ctx); c != nil && c.Email != "" {
		return c.Email
	}
	return "anonymous"
}
