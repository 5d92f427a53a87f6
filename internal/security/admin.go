package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the role claim required on admin tokens
const AdminRole = "admin"

var (
	ErrAdminDisabled = errors.New("admin endpoints are disabled")
	ErrInvalidToken  = errors.New("invalid admin token")
)

// AdminClaims are the claims carried by an admin bearer token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth verifies HS256 admin bearer tokens
type AdminAuth struct {
	secret []byte
	now    func() time.Time
}

// NewAdminAuth creates a verifier. An empty secret disables every admin endpoint.
func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing secret is configured
func (a *AdminAuth) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs an admin token for subject valid for ttl
func (a *AdminAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminDisabled
	}
	now := a.now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses an "Authorization: Bearer <token>" header value and checks the admin role
func (a *AdminAuth) Verify(header string) (*AdminClaims, error) {
	if !a.Enabled() {
		return nil, ErrAdminDisabled
	}

	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrInvalidToken)
	}

	claims := &AdminClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != AdminRole {
		return nil, fmt.Errorf("%w: role %q is not admin", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
