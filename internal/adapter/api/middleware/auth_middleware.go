package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/internal/usecase"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
	"farmlink/pkg/response"
)

const (
	ContextUID   = "uid"
	ContextEmail = "email"
	ContextActor = "actor"
)

type AuthMiddleware struct {
	verifier usecase.TokenVerifier
	profiles repository.ProfileRepository
}

func NewAuthMiddleware(verifier usecase.TokenVerifier, profiles repository.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		profiles: profiles,
	}
}

// Authenticate verifies the bearer token and loads the caller's profile when
// one exists. Websocket upgrades may pass the token as ?token= instead.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := bearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}

		uid, email, err := m.verifier.VerifyToken(c.Request().Context(), token)
		if err != nil {
			logger.Debug("Token rejected for %s %s: %v", c.Request().Method, c.Path(), err)
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set(ContextUID, uid)
		c.Set(ContextEmail, email)

		profile, err := m.profiles.GetByID(c.Request().Context(), uid)
		switch {
		case err == nil:
			c.Set(ContextActor, profile.Actor())
		case !errors.Is(err, errors.CodeNotFound):
			return response.Error(c, err)
		}

		return next(c)
	}
}

// RequireProfile rejects callers who have not created a profile yet.
func (m *AuthMiddleware) RequireProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(ContextActor).(entity.Actor); !ok {
			return response.Error(c, errors.NotPermitted("Create your profile before using this endpoint"))
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(c.Request().Header.Get("Upgrade"), "websocket") {
			if token := c.QueryParam("token"); token != "" {
				return token, nil
			}
		}
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

// ActorFrom returns the actor set by Authenticate.
func ActorFrom(c echo.Context) entity.Actor {
	actor, _ := c.Get(ContextActor).(entity.Actor)
	return actor
}

func UIDFrom(c echo.Context) string {
	uid, _ := c.Get(ContextUID).(string)
	return uid
}

func EmailFrom(c echo.Context) string {
	email, _ := c.Get(ContextEmail).(string)
	return email
}
