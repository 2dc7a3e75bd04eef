package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	sessionSecret          = []byte("change-me-in-production")
	sessionExpirationHours = 24
)

// SessionClaims is the browser state kept in the signed session cookie.
type SessionClaims struct {
	Username     string `json:"username"`
	ResolvedPath string `json:"resolvedPath"`
	WebPath      string `json:"webPath"`
	jwt.RegisteredClaims
}

func ConfigureSession(secret string, expirationHours int) {
	if secret != "" {
		sessionSecret = []byte(secret)
	}
	if expirationHours > 0 {
		sessionExpirationHours = expirationHours
	}
}

func SessionLifetime() time.Duration {
	return time.Duration(sessionExpirationHours) * time.Hour
}

func GenerateSessionToken(username, resolvedPath, webPath string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Username:     username,
		ResolvedPath: resolvedPath,
		WebPath:      webPath,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionLifetime())),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret)
}

func ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return sessionSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session")
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("session has no user")
	}

	return claims, nil
}
