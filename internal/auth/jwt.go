package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims holds the JWT payload minted for monitor admin actions
// (currently just POST /admin/stop).
type Claims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates admin bearer tokens for the monitor.
type JWTManager struct {
	secret       []byte
	tokenExpiry  time.Duration
}

// NewJWTManager creates a JWTManager with the given secret. Admin tokens
// are short-lived since they grant the ability to halt a running job.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret:      []byte(secret),
		tokenExpiry: 10 * time.Minute,
	}
}

// GenerateAdminToken creates a short-lived admin token identifying the operator.
func (m *JWTManager) GenerateAdminToken(operatorID string) (string, error) {
	claims := &Claims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   operatorID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
