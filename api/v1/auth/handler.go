package auth

import (
	"errors"
	"time"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/auth"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/config"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	Token    string   `json:"token"`
	ExpireAt string   `json:"expireAt"`
	User     UserInfo `json:"user"`
}

// UserInfo represents user information in response
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginHandler handles console login
func LoginHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Fail(c, httpx.ErrParamInvalid("invalid request body"))
			return
		}

		var user model.User
		if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Same error for unknown user and wrong password
				httpx.Fail(c, httpx.ErrInvalidToken("invalid credentials"))
				return
			}
			httpx.Fail(c, httpx.ErrDatabaseError("database error", err))
			return
		}

		if user.Status == model.UserStatusInactive {
			httpx.Fail(c, httpx.ErrForbidden("user is inactive"))
			return
		}

		if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
			httpx.Fail(c, httpx.ErrInvalidToken("invalid credentials"))
			return
		}

		ttl := time.Duration(cfg.JWT.ExpireMinutes) * time.Minute
		token, err := auth.GenerateToken(user.ID, user.Username, user.Role, ttl, cfg.JWT.Issuer)
		if err != nil {
			httpx.Fail(c, httpx.ErrInternalError("failed to generate token", err))
			return
		}

		now := time.Now()
		db.Model(&user).Update("last_login_at", now)

		httpx.OK(c, LoginResponse{
			Token:    token,
			ExpireAt: now.Add(ttl).Format(time.RFC3339),
			User: UserInfo{
				ID:       user.ID,
				Username: user.Username,
				Role:     user.Role,
			},
		})
	}
}
