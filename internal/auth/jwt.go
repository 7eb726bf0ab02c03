package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles known to the system.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// Claims represents the JWT payload: who the user is and, for teachers, the
// class they are assigned to.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Grade  int    `json:"grade,omitempty"`
	Class  string `json:"class,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed access token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issue signs an access token for a user.
func Issue(userID, email, role string, grade int, class, issuer, key string, ttl time.Duration) (Token, error) {
	expires := time.Now().Add(ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Grade:  grade,
		Class:  class,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
