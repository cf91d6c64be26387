package websocket

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrExpiredToken = errors.New("token has expired")
)

// Authenticator extracts and validates a connecting user's identity.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// JWTAuth implements Authenticator using HMAC-signed JWTs.
type JWTAuth struct {
	secretKey string
}

func NewJWTAuth(secretKey string) *JWTAuth {
	return &JWTAuth{secretKey: secretKey}
}

// JWTClaims are the claims carried by a deliberation access token.
type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticate tries the Authorization header, then the "token" query
// parameter, then Sec-WebSocket-Protocol (browsers cannot set custom
// headers on the WebSocket handshake).
func (a *JWTAuth) Authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return a.validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return a.validateToken(token)
	}

	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	for _, p := range strings.Split(protocols, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "auth-") {
			return a.validateToken(strings.TrimPrefix(p, "auth-"))
		}
	}

	return "", ErrMissingToken
}

func (a *JWTAuth) validateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// GenerateToken mints a token for userID, for use by the REST login
// endpoint or tests.
func (a *JWTAuth) GenerateToken(userID string, expiresAt *jwt.NumericDate) (string, error) {
	claims := JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secretKey))
}

// NoAuth allows all connections unauthenticated; useful for local
// development.
type NoAuth struct{}

func NewNoAuth() *NoAuth { return &NoAuth{} }

func (a *NoAuth) Authenticate(r *http.Request) (string, error) {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return userID, nil
	}
	return "anonymous", nil
}
