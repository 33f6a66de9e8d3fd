package server

import (
	"errors"

	"github.com/labstack/echo/v4"

	apperrors "github.com/nosisky/leaderboard-system/internal/errors"
	"github.com/nosisky/leaderboard-system/internal/identity"
)

type signUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Request body required")
	}

	req.Username = identity.SanitizeInput(req.Username)
	req.Email = identity.SanitizeInput(req.Email)
	req.Name = identity.SanitizeInput(req.Name)

	if msg := identity.ValidateEmail(req.Email); msg != "" {
		return apperrors.ValidationError(msg)
	}
	if msg := identity.ValidateUsername(req.Username); msg != "" {
		return apperrors.ValidationError(msg)
	}
	if msg := identity.ValidatePassword(req.Password); msg != "" {
		return apperrors.ValidationError(msg)
	}
	if req.Name == "" {
		return apperrors.ValidationError("Name required")
	}

	if err := s.identity.SignUp(c.Request().Context(), req.Username, req.Password, req.Email, req.Name); err != nil {
		if errors.Is(err, identity.ErrUsernameExists) {
			return apperrors.ConflictError("Username already exists")
		}
		return apperrors.ExternalError("Signup failed", err)
	}

	return c.JSON(200, map[string]string{
		"message": "User registered successfully. Check your email.",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Request body required")
	}

	req.Username = identity.SanitizeInput(req.Username)
	if req.Username == "" || req.Password == "" {
		return apperrors.ValidationError("Username and password required")
	}

	tokens, err := s.identity.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrNotAuthorized) || errors.Is(err, identity.ErrUserNotFound) {
			return apperrors.UnauthorizedError("Login failed", err)
		}
		return apperrors.ExternalError("Login failed", err)
	}

	return c.JSON(200, map[string]any{
		"message":      "Login successful",
		"idToken":      tokens.IDToken,
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresIn":    tokens.ExpiresIn,
	})
}

type confirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (s *Server) handleConfirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Request body required")
	}

	req.Username = identity.SanitizeInput(req.Username)
	req.Code = identity.SanitizeInput(req.Code)
	if req.Username == "" || len(req.Code) != 6 {
		return apperrors.ValidationError("Username and 6-char code required")
	}

	if err := s.identity.Confirm(c.Request().Context(), req.Username, req.Code); err != nil {
		if errors.Is(err, identity.ErrCodeMismatch) {
			return apperrors.ValidationError("Invalid confirmation code")
		}
		return apperrors.ExternalError("Confirmation failed", err)
	}

	return c.JSON(200, map[string]string{"message": "User confirmed successfully"})
}
