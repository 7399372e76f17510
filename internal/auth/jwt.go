package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the actor identity inside a signed token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HMAC JWT for the given actor.
func IssueToken(secret, actorID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("auth: signing secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and returns the actor encoded in the token.
func ParseToken(secret, tokenString string) (Actor, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Actor{}, fmt.Errorf("auth: invalid token")
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("auth: token missing subject")
	}
	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Actor{ID: claims.Subject, Role: role}, nil
}
