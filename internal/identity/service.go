package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/socialhub-lab/socialhub/internal/core/httpx"
)

// Service owns account registration, login and refresh-token rotation.
// Access tokens are stateless; refresh tokens are stored, single-use and
// rotated on every refresh.
type Service struct {
	users      UserStore
	refresh    RefreshStore
	hasher     Hasher
	tokens     *TokenManager
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(users UserStore, refresh RefreshStore, hasher Hasher, tokens *TokenManager, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		refresh:    refresh,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *Service) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/api/auth")
	grp.POST("/register", s.RegisterHandler)
	grp.POST("/login", s.LoginHandler)
	grp.POST("/refresh-token", s.RefreshHandler)
	grp.POST("/logout", s.LogoutHandler)
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=30"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=30"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPair struct {
	UserID       string `json:"userId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Service) RegisterHandler(c *gin.Context) {
	slog.Info("Registering user")
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Registration validation failed", "error", err)
		httpx.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrExists) {
			slog.Warn("User already exists", "email", req.Email)
			httpx.Fail(c, http.StatusBadRequest, "User already exists")
			return
		}
		slog.Error("Failed to create user", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	pair, err := s.issueTokens(c.Request.Context(), user)
	if err != nil {
		slog.Error("Failed to issue tokens", "error", err, "user_id", user.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("User registered successfully", "user_id", user.ID)
	httpx.OK(c, http.StatusCreated, "User registered successfully", pair)
}

func (s *Service) LoginHandler(c *gin.Context) {
	slog.Info("Logging in user")
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Login validation failed", "error", err)
		httpx.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("User not found", "email", req.Email)
			httpx.Fail(c, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("Failed to look up user", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		slog.Warn("Invalid password", "email", req.Email)
		httpx.Fail(c, http.StatusUnauthorized, "Invalid password")
		return
	}

	pair, err := s.issueTokens(c.Request.Context(), user)
	if err != nil {
		slog.Error("Failed to issue tokens", "error", err, "user_id", user.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("User logged in successfully", "user_id", user.ID)
	httpx.OK(c, http.StatusOK, "User logged in successfully", pair)
}

func (s *Service) RefreshHandler(c *gin.Context) {
	slog.Info("Refreshing token")
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		slog.Warn("Refresh token not found")
		httpx.Fail(c, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	stored, err := s.lookupRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		slog.Warn("Invalid or expired refresh token")
		httpx.Fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), stored.UserID)
	if err != nil {
		slog.Warn("User not found", "user_id", stored.UserID)
		httpx.Fail(c, http.StatusNotFound, "User not found")
		return
	}

	// Rotation: the old token is single-use and consumed before its
	// replacement exists, so a failure here never leaves two live tokens.
	if err := s.refresh.Delete(c.Request.Context(), stored.Token); err != nil {
		slog.Error("Failed to delete old refresh token", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	pair, err := s.issueTokens(c.Request.Context(), user)
	if err != nil {
		slog.Error("Failed to issue tokens", "error", err, "user_id", user.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	pair.UserID = ""
	slog.Info("Token refreshed successfully", "user_id", user.ID)
	httpx.OK(c, http.StatusOK, "Token refreshed successfully", pair)
}

func (s *Service) LogoutHandler(c *gin.Context) {
	slog.Info("Logging out user")
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		slog.Warn("Refresh token not found")
		httpx.Fail(c, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	stored, err := s.lookupRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		slog.Warn("Invalid or expired refresh token")
		httpx.Fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	if err := s.refresh.Delete(c.Request.Context(), stored.Token); err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("User logged out successfully", "user_id", stored.UserID)
	httpx.OK(c, http.StatusOK, "User logged out successfully", nil)
}

func (s *Service) lookupRefresh(ctx context.Context, token string) (*RefreshToken, error) {
	stored, err := s.refresh.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if stored.ExpiresAt.Before(s.now()) {
		return nil, ErrNotFound
	}
	return stored, nil
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*tokenPair, error) {
	access, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	err = s.refresh.Save(ctx, &RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.refreshTTL),
	})
	if err != nil {
		return nil, err
	}
	return &tokenPair{UserID: user.ID, AccessToken: access, RefreshToken: refresh}, nil
}
