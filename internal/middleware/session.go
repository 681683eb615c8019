package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sessions issues and reads the signed session token. Browsers carry it in a cookie;
// API clients and the websocket may send it as a Bearer header or token query param.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
}

func NewSessions(secret string, ttl time.Duration, cookie string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, cookie: cookie, secure: secure}
}

func (s *Sessions) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates the token and returns the user it was issued for.
func (s *Sessions) Parse(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, keyFunc(s.secret))
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token claims")
	}
	return uuid.Parse(claims.Subject)
}

// Start issues a token and sets it as the session cookie.
func (s *Sessions) Start(c *gin.Context, userID uuid.UUID) (string, error) {
	token, err := s.Issue(userID)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie, token, int(s.ttl.Seconds()), "/", "", s.secure, true)
	return token, nil
}

func (s *Sessions) End(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie, "", -1, "/", "", s.secure, true)
}

func (s *Sessions) tokenFrom(c *gin.Context) string {
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if token, err := c.Cookie(s.cookie); err == nil && token != "" {
		return token
	}
	return c.Query("token")
}

func (s *Sessions) TTL() time.Duration { return s.ttl }
