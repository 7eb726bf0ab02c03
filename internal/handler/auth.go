package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
	"rollbook/internal/users"
)

// Login exchanges email+password for an access token.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Printf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	grade := 0
	class := ""
	if user.Grade != nil {
		grade = *user.Grade
	}
	if user.Class != nil {
		class = *user.Class
	}
	token, err := auth.Issue(user.ID, user.Email, user.Role, grade, class,
		h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token.Value,
		"expires_at":   token.ExpiresAt.Unix(),
		"user":         user,
	})
}
