// Package handler exposes the rollbook API over gin.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rollbook/internal/assistant"
	"rollbook/internal/auth"
	"rollbook/internal/config"
	"rollbook/internal/permission"
	"rollbook/internal/queue"
	"rollbook/internal/record"
	"rollbook/internal/summary"
	"rollbook/internal/users"
)

// Handler carries the collaborators every endpoint needs.
type Handler struct {
	cfg       config.App
	users     *users.Repository
	perms     *permission.Repository
	checker   *permission.Checker
	records   record.Store
	llm       assistant.Completer
	queue     queue.Queue
	summaries *summary.Cache
	sessions  *sessionManager
}

// New wires a handler.
func New(cfg config.App, userRepo *users.Repository, permRepo *permission.Repository,
	records record.Store, llm assistant.Completer, q queue.Queue, summaries *summary.Cache) *Handler {
	return &Handler{
		cfg:       cfg,
		users:     userRepo,
		perms:     permRepo,
		checker:   permission.NewChecker(permRepo),
		records:   records,
		llm:       llm,
		queue:     q,
		summaries: summaries,
		sessions:  newSessionManager(),
	}
}

// classFromParams reads the :grade and :class route params.
func classFromParams(c *gin.Context) (record.Class, bool) {
	grade, err := strconv.Atoi(c.Param("grade"))
	if err != nil || grade <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grade"})
		return record.Class{}, false
	}
	name := c.Param("class")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class required"})
		return record.Class{}, false
	}
	return record.Class{Grade: grade, Name: name}, true
}

// canManageRoster allows admins and the class's assigned teacher.
func canManageRoster(claims auth.Claims, class record.Class) bool {
	if claims.Role == auth.RoleAdmin {
		return true
	}
	return claims.Grade == class.Grade && claims.Class == class.Name
}
