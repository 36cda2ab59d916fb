package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/txn"
)

// fail maps an engine error to a status code and JSON error body
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case apperr.IsValidation(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperr.IsNotFound(err):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case txn.IsConflict(s.store, err):
		s.log.Warn("request aborted by conflict", logger.F("uri", c.Request().RequestURI), logger.Err(err))
		return c.JSON(http.StatusConflict, map[string]string{"error": "conflicting update, retry the request"})
	}

	s.log.Error("request failed", logger.F("uri", c.Request().RequestURI), logger.Err(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
}
