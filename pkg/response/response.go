package response

import (
	"errors"
	"net/http"
	"strconv"

	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/observability"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"anoa.com/schoolportal/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PendingApprovalPath is where unapproved parents are sent.
const PendingApprovalPath = "/api/auth/pending-approval"

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ParamUUID parses a path parameter, answering 400 itself when it is malformed.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	var rl *ratelimiter.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
	}

	switch {
	case code == http.StatusSeeOther:
		c.Header("Location", PendingApprovalPath)
		c.JSON(code, gin.H{"error": err.Error(), "redirect": PendingApprovalPath})
		return
	case code >= http.StatusInternalServerError:
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		observability.CaptureErr(err)
		c.JSON(code, gin.H{"error": "something went wrong, please try again later"})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		c.JSON(code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// BindError answers a failed ShouldBind* call.
func BindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
}
