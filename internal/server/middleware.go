package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mundotango/engagement/internal/correlation"
	apperrors "github.com/mundotango/engagement/internal/errors"
)

// correlationMiddleware assigns each request a correlation ID, propagates it
// through the request context, and echoes it back in a response header.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Correlation-ID")
			if id == "" {
				id = correlation.NewID()
			}

			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Correlation-ID", id)

			return next(c)
		}
	}
}

// requireAuth verifies the Bearer token and stores the caller's identity in
// the echo context under "userID" and "username".
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return apperrors.UnauthorizedError("missing bearer token")
		}

		claims, err := s.verifier.Verify(token)
		if err != nil {
			return apperrors.UnauthorizedError("invalid token")
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		return next(c)
	}
}

func currentUser(c echo.Context) (int64, string) {
	userID, _ := c.Get("userID").(int64)
	username, _ := c.Get("username").(string)
	return userID, username
}
