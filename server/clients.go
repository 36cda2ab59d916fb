package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/clientpulse/internal/engine"
)

type clientRequest struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	HourlyRate    float64 `json:"hourly_rate"`
	MonthlyBudget float64 `json:"monthly_budget"`
}

type clientPatchRequest struct {
	Name          *string  `json:"name"`
	Status        *string  `json:"status"`
	HourlyRate    *float64 `json:"hourly_rate"`
	MonthlyBudget *float64 `json:"monthly_budget"`
}

func (s *Server) handleCreateClient(c echo.Context) error {
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	client, err := s.engine.CreateClient(c.Request().Context(), engine.ClientInput{
		Name:          req.Name,
		Status:        req.Status,
		HourlyRate:    req.HourlyRate,
		MonthlyBudget: req.MonthlyBudget,
	}, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, client)
}

func (s *Server) handleListClients(c echo.Context) error {
	clients, err := s.engine.ListClients(c.Request().Context(), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, clients)
}

func (s *Server) handleGetClient(c echo.Context) error {
	client, err := s.engine.GetClient(c.Request().Context(), c.Param("id"), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

func (s *Server) handleUpdateClient(c echo.Context) error {
	var req clientPatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	client, err := s.engine.UpdateClient(c.Request().Context(), c.Param("id"), engine.ClientPatch{
		Name:          req.Name,
		Status:        req.Status,
		HourlyRate:    req.HourlyRate,
		MonthlyBudget: req.MonthlyBudget,
	}, ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

func (s *Server) handleDeleteClient(c echo.Context) error {
	if err := s.engine.DeleteClient(c.Request().Context(), c.Param("id"), ownerID(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetProfitability(c echo.Context) error {
	rec, err := s.engine.GetProfitability(c.Request().Context(), c.Param("id"), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
