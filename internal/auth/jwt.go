// Package auth verifies access tokens issued by the identity provider and
// carries the resulting identity through request contexts.
//
// Tokens are HS256 JWTs whose subject is the user id. Roles are not trusted
// from the token; callers resolve them from the users table.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is a user's access level.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleAdmin
}

var (
	ErrNoToken      = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the token payload.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks tokens against a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify parses and validates tokenStr and returns the identity it names.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrNoToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	return Identity{
		UserID:    userID,
		Email:     email,
		ExpiresAt: expires,
	}, nil
}

// Issue signs a token for local development and tooling. Production tokens
// come from the identity provider.
func Issue(secret string, userID uuid.UUID, email string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
