package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/engine"
	"github.com/existflow/clientpulse/internal/store"
)

type startTimerRequest struct {
	ClientID    *string `json:"client_id"`
	TaskID      *string `json:"task_id"`
	Billable    bool    `json:"billable"`
	Description string  `json:"description"`
}

type stopTimerRequest struct {
	Duration *int64 `json:"duration"`
}

type durationRequest struct {
	Duration *int64 `json:"duration"`
}

func (s *Server) handleStartTimer(c echo.Context) error {
	var req startTimerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	timer, err := s.engine.StartTimer(c.Request().Context(), engine.StartTimerInput{
		OwnerID:     ownerID(c),
		ClientID:    req.ClientID,
		TaskID:      req.TaskID,
		Billable:    req.Billable,
		Description: req.Description,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, timer)
}

func (s *Server) handleStopTimer(c echo.Context) error {
	var req stopTimerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	timer, err := s.engine.StopTimer(c.Request().Context(), engine.StopTimerInput{
		TimerID:          c.Param("id"),
		OwnerID:          ownerID(c),
		DurationOverride: req.Duration,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, timer)
}

func (s *Server) handleCorrectDuration(c echo.Context) error {
	var req durationRequest
	if err := c.Bind(&req); err != nil || req.Duration == nil {
		return badRequest(c)
	}
	timer, err := s.engine.CorrectTimerDuration(c.Request().Context(), c.Param("id"), ownerID(c), *req.Duration)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, timer)
}

func (s *Server) handleGetTimer(c echo.Context) error {
	timer, err := s.engine.GetTimer(c.Request().Context(), c.Param("id"), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, timer)
}

func (s *Server) handleListTimers(c echo.Context) error {
	opts := store.ListTimersOptions{ClientID: clientFilter(c)}
	if v := c.QueryParam("running"); v != "" {
		running, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c)
		}
		opts.RunningOnly = running
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return badRequest(c)
		}
		opts.Limit = limit
	}

	timers, err := s.engine.ListTimers(c.Request().Context(), ownerID(c), opts)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, timers)
}
