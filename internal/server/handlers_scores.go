package server

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/nosisky/leaderboard-system/internal/domain"
	apperrors "github.com/nosisky/leaderboard-system/internal/errors"
)

type submitRequest struct {
	Score *int64 `json:"score"`
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Request body required")
	}
	if req.Score == nil {
		return apperrors.ValidationError("Valid score required")
	}

	bearer := c.Request().Header.Get(echo.HeaderAuthorization)
	entry, err := s.scores.Submit(c.Request().Context(), bearer, *req.Score)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return apperrors.UnauthorizedError("Unauthorized", err)
		}
		if errors.Is(err, domain.ErrInvalidScore) {
			return apperrors.ValidationError("Valid score required")
		}
		return apperrors.InternalError("Failed to submit score", err)
	}

	return c.JSON(200, map[string]string{
		"message": "Score submitted",
		"scoreId": entry.ID,
	})
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	bearer := c.Request().Header.Get(echo.HeaderAuthorization)
	claim, err := s.verifier.Verify(c.Request().Context(), bearer)
	if err != nil || !claim.IsAuthenticated {
		if err == nil {
			err = errors.New(claim.Error)
		}
		return apperrors.UnauthorizedError("Unauthorized", err)
	}

	entries, total, err := s.scores.Leaderboard(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("Failed to load leaderboard", err)
	}
	if entries == nil {
		entries = []domain.ScoreEntry{}
	}

	return c.JSON(200, map[string]any{
		"leaderboard":  entries,
		"totalEntries": total,
	})
}
