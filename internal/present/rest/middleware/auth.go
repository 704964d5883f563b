package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyIdentity resolves the requester from an NIP-98 header. Requests
// without a valid header continue anonymously.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		req := c.Request()
		authHeader := req.Header.Get("authorization")

		if authHeader != "" {
			var payload []byte
			if req.Body != nil {
				body, err := io.ReadAll(req.Body)
				if err != nil {
					span.RecordError(errors.Wrap(err, "failed to read request body"))
					return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
				}
				req.Body.Close()
				req.Body = io.NopCloser(bytes.NewReader(body))
				payload = body
			}

			scheme := c.Scheme()
			result, err := s.auth.AuthHTTP(ctx, authHeader, scheme, req.Host, req.RequestURI, req.Method, payload)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthHTTP failed"))
			} else {
				ctx = context.WithValue(ctx, domain.RequesterPubkeyCtxKey, result.PubKey)
				ctx = context.WithValue(ctx, domain.RequesterIsOwnerCtxKey, result.IsOwner)
				span.SetAttributes(attribute.String("RequesterPubkey", result.PubKey))
			}
		}

		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// RequireOwner rejects requests not signed by the node key.
func RequireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, ok := ctx.Value(domain.RequesterPubkeyCtxKey).(string); !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		if owner, _ := ctx.Value(domain.RequesterIsOwnerCtxKey).(bool); !owner {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the node owner may do this"})
		}
		return next(c)
	}
}
