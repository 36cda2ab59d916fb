package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/engine"
)

type taskRequest struct {
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	task, err := s.engine.CreateTask(c.Request().Context(), engine.TaskInput{
		ClientID: req.ClientID,
		Title:    req.Title,
		Status:   req.Status,
	}, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := s.engine.ListTasks(c.Request().Context(), ownerID(c), clientFilter(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.engine.GetTask(c.Request().Context(), c.Param("id"), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTaskStatus(c echo.Context) error {
	var req taskStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	task, err := s.engine.UpdateTaskStatus(c.Request().Context(), c.Param("id"), req.Status, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.engine.DeleteTask(c.Request().Context(), c.Param("id"), ownerID(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// clientFilter reads the optional client_id query parameter
func clientFilter(c echo.Context) *string {
	if id := c.QueryParam("client_id"); id != "" {
		return &id
	}
	return nil
}
