package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT handles token generation and validation.
type JWT struct {
	secret []byte
	exp    time.Duration
}

// Claims represents the JWT claims used by this service. Tenant, role and
// department travel with the token; SessionID points at the server-side
// session.
type Claims struct {
	jwt.RegisteredClaims
	TenantID   string `json:"tid,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"dept,omitempty"`
	SessionID  string `json:"sid,omitempty"`
}

// GetTenantID returns the tenant ID claim.
func (c *Claims) GetTenantID() string { return c.TenantID }

// NewJWT returns a new JWT handler.
func NewJWT(secret string, exp time.Duration) *JWT {
	return &JWT{secret: []byte(secret), exp: exp}
}

// TTL is the lifetime of generated tokens.
func (j *JWT) TTL() time.Duration { return j.exp }

// Generate creates a signed token for u bound to session sid.
func (j *JWT) Generate(u User, sid string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.exp)),
		},
		TenantID:   u.TenantID,
		Role:       u.Role,
		Department: u.Department,
		SessionID:  sid,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Validate parses and validates the token returning its claims.
func (j *JWT) Validate(tok string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
