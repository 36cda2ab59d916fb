package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/logger"
)

const ownerKey = "owner_id"

// requestLogger logs each request once it has been served
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		s.log.Info("http request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)),
			logger.F("duration", time.Since(start).String()),
		)
		return nil
	}
}

// authMiddleware resolves the bearer token to an owner id
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if auth == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authorization required"})
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
		}

		session, err := s.store.Accounts().GetSession(c.Request().Context(), token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		if session.IsExpired(s.clock()) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "token expired"})
		}

		c.Set(ownerKey, session.OwnerID)
		c.Set("token", token)
		return next(c)
	}
}

func ownerID(c echo.Context) string {
	id, _ := c.Get(ownerKey).(string)
	return id
}
