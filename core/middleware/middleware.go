package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kdvornichenko/weika-students/core/controller"
	"github.com/kdvornichenko/weika-students/core/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const identityContextKey = "identity"

// Identity is the verified caller: the tutor's user id plus the email their
// identity token was issued for. The email feeds the calendar account-mismatch
// guard downstream.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// TokenVerifier is implemented by the auth service.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, *errors.AppError)
}

type Middleware struct {
	verifier TokenVerifier
}

func NewMiddleware(verifier TokenVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// AuthMiddleware validates the Bearer token and stores the caller identity in
// the request context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrMissingAuthorizationHeader, "missing Authorization header", nil))
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrInvalidTokenFormat, "expected Bearer token", nil))
			}

			identity, appErr := m.verifier.VerifyToken(c.Request().Context(), token)
			if appErr != nil {
				return c.JSON(controller.StatusForCode(appErr.Code), appErr)
			}

			c.Set(identityContextKey, *identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the verified identity stored by AuthMiddleware.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityContextKey).(Identity)
	return id, ok
}
