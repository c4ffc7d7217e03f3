package v1

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/finsight/orchestrator/internal/auth"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/ratelimit"
)

// ContextKeyUserID is where the auth middleware stores the verified user.
const ContextKeyUserID = "user_id"

// AuthMiddleware verifies the bearer token and stores the caller's user ID
// in the request context.
func AuthMiddleware(verifier auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get("Authorization"))
			identity, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrAuthRequired) {
					return c.JSON(http.StatusUnauthorized,
						errorJSON(domain.ErrCodeAuthRequired, "a valid session token is required"))
				}
				return c.JSON(http.StatusInternalServerError,
					errorJSON(domain.ErrCodeInternal, "session verification failed"))
			}
			c.Set(ContextKeyUserID, identity.UserID)
			return next(c)
		}
	}
}

// RateLimitMiddleware enforces the per-user query budget and reports the
// window state in X-RateLimit headers.
func RateLimitMiddleware(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := limiter.Allow(c.Request().Context(), userID(c))
			if err != nil {
				return c.JSON(http.StatusInternalServerError,
					errorJSON(domain.ErrCodeInternal, "rate limit check failed"))
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			header.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				return c.JSON(http.StatusTooManyRequests,
					errorJSON(domain.ErrCodeRateLimited, "rate limit exceeded, retry later"))
			}
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
