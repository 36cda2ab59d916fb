package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/engine"
)

type objectiveRequest struct {
	ClientID     string     `json:"client_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	TargetValue  float64    `json:"target_value"`
	CurrentValue float64    `json:"current_value"`
	Unit         string     `json:"unit"`
	Category     string     `json:"category"`
	DueDate      *time.Time `json:"due_date"`
}

type objectivePatchRequest struct {
	ClientID     *string    `json:"client_id"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	TargetValue  *float64   `json:"target_value"`
	CurrentValue *float64   `json:"current_value"`
	Unit         *string    `json:"unit"`
	Category     *string    `json:"category"`
	DueDate      *time.Time `json:"due_date"`
	IsCompleted  *bool      `json:"is_completed"`
}

func (s *Server) handleCreateObjective(c echo.Context) error {
	var req objectiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	o, err := s.engine.CreateObjective(c.Request().Context(), engine.ObjectiveInput{
		ClientID:     req.ClientID,
		Title:        req.Title,
		Description:  req.Description,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		Unit:         req.Unit,
		Category:     req.Category,
		DueDate:      req.DueDate,
	}, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (s *Server) handleListObjectives(c echo.Context) error {
	list, err := s.engine.ListObjectives(c.Request().Context(), ownerID(c), clientFilter(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetObjective(c echo.Context) error {
	o, err := s.engine.GetObjective(c.Request().Context(), c.Param("id"), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (s *Server) handleUpdateObjective(c echo.Context) error {
	var req objectivePatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	o, err := s.engine.UpdateObjective(c.Request().Context(), c.Param("id"), engine.ObjectivePatch{
		ClientID:     req.ClientID,
		Title:        req.Title,
		Description:  req.Description,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		Unit:         req.Unit,
		Category:     req.Category,
		DueDate:      req.DueDate,
		IsCompleted:  req.IsCompleted,
	}, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (s *Server) handleDeleteObjective(c echo.Context) error {
	if err := s.engine.DeleteObjective(c.Request().Context(), c.Param("id"), ownerID(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
