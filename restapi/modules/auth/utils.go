// Package auth provides authentication and authorization utilities.
//
//revive:disable-next-line:var-naming
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "paycheck-backend"

// JWT secret key - replaced from JWT_SECRET on startup
var jwtSecret = []byte("your-secret-key-change-this-in-production")

// ============================================================================
// JWT TOKEN MANAGEMENT
// ============================================================================

// Claims represents JWT claims. The subject is the user id.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateJWT generates a JWT token for a user
func GenerateJWT(userID, username string) (string, error) {
	if userID == "" || username == "" {
		return "", errors.New("user id and username are required")
	}
	now := time.Now()

	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(GetJWTExpirationTime())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" || claims.Username == "" {
		return nil, fmt.Errorf("token carries no identity")
	}

	return claims, nil
}

// RefreshJWT generates a new token with extended expiration for an existing valid token
func RefreshJWT(oldTokenString string) (string, error) {
	claims, err := ValidateJWT(oldTokenString)
	if err != nil {
		return "", fmt.Errorf("cannot refresh invalid token: %w", err)
	}
	return GenerateJWT(claims.UserID, claims.Username)
}

// ============================================================================
// CONFIGURATION
// ============================================================================

// SetJWTSecret sets the JWT secret (call this on startup with env var)
func SetJWTSecret(secret string) error {
	if secret == "" {
		return errors.New("JWT secret cannot be empty")
	}
	jwtSecret = []byte(secret)
	return nil
}

// GetJWTExpirationTime returns the configured JWT expiration duration
func GetJWTExpirationTime() time.Duration {
	return 24 * time.Hour
}
