package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	OwnerID   string `json:"owner_id"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username, email, and password required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	owner := &model.Owner{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.store.Accounts().CreateOwner(ctx, owner); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "username or email already exists"})
		}
		return s.fail(c, err)
	}

	session, err := s.createSession(c, owner.ID)
	if err != nil {
		return s.fail(c, err)
	}

	s.log.Info("owner registered", logger.F("owner_id", owner.ID), logger.F("username", owner.Username))
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	owner, err := s.store.Accounts().GetOwnerByUsername(c.Request().Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if apperr.IsNotFound(err) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return s.fail(c, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	session, err := s.createSession(c, owner.ID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleMe(c echo.Context) error {
	owner, err := s.store.Accounts().GetOwner(c.Request().Context(), ownerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":       owner.ID,
		"username": owner.Username,
		"email":    owner.Email,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	token, _ := c.Get("token").(string)
	if err := s.store.Accounts().DeleteSession(c.Request().Context(), token); err != nil && !apperr.IsNotFound(err) {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// createSession issues a random bearer token for the owner
func (s *Server) createSession(c echo.Context, ownerID string) (authResponse, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return authResponse{}, err
	}

	now := s.clock().UTC()
	session := &model.Session{
		Token:     hex.EncodeToString(tokenBytes),
		OwnerID:   ownerID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.store.Accounts().CreateSession(c.Request().Context(), session); err != nil {
		return authResponse{}, err
	}

	return authResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		OwnerID:   ownerID,
	}, nil
}
