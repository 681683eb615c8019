package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/metrics"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userIDKey = "user_id"
	actorKey  = "actor"
)

// UserFinder loads the account behind a session. A nil user means it no longer exists.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type AuthMiddleware struct {
	users    UserFinder
	sessions *Sessions
}

func NewAuthMiddleware(users UserFinder, sessions *Sessions) *AuthMiddleware {
	return &AuthMiddleware{users: users, sessions: sessions}
}

// Identify resolves the caller when a valid session is present and leaves the
// request anonymous otherwise.
func (m *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := m.sessions.tokenFrom(c)
		if tokenString == "" {
			c.Next()
			return
		}

		userID, err := m.sessions.Parse(tokenString)
		if err != nil {
			c.Next()
			return
		}

		user, err := m.users.FindByID(c.Request.Context(), userID)
		if err != nil {
			response.ResponseError(c, fmt.Errorf("resolve session user: %w", err))
			c.Abort()
			return
		}
		if user == nil {
			c.Next()
			return
		}

		actor, err := user.Actor()
		if err != nil {
			zap.L().Warn("session user has unusable role", zap.String("user_id", user.ID.String()), zap.Error(err))
			c.Next()
			return
		}

		c.Set(userIDKey, user.ID.String())
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAuth rejects anonymous callers. It must run after Identify.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorFrom(c) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Require gates a route group on a record-less authorization check.
func Require(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := Authorize(c, action, nil); err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Authorize runs the check for the current caller.
func Authorize(c *gin.Context, action policy.Action, target *policy.Target) error {
	return policy.Authorize(ActorFrom(c), action, target)
}

// CountDenials feeds authorization denials into the metrics registry.
func CountDenials(_ policy.Action, d policy.Decision) {
	metrics.AuthorizationDenials.WithLabelValues(d.String()).Inc()
}

// ActorFrom returns the resolved caller, or nil for anonymous requests.
func ActorFrom(c *gin.Context) *policy.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*policy.Actor)
	return actor
}

// MustActor is ActorFrom for routes behind RequireAuth.
func MustActor(c *gin.Context) (*policy.Actor, error) {
	if actor := ActorFrom(c); actor != nil {
		return actor, nil
	}
	return nil, apperror.ErrUnauthorized
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// keyFunc pins the signing method to HMAC.
func keyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
}
