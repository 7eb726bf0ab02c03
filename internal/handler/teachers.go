package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
	"rollbook/internal/users"
)

// CreateTeacher registers a teacher account; admin only.
func (h *Handler) CreateTeacher(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
		Grade    int    `json:"grade" binding:"required"`
		Class    string `json:"class" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, req.Name, auth.RoleTeacher,
		req.Password, &req.Grade, &req.Class)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Printf("create teacher failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListTeachers returns all teacher accounts; admin only.
func (h *Handler) ListTeachers(c *gin.Context) {
	teachers, err := h.users.List(c.Request.Context(), auth.RoleTeacher)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if teachers == nil {
		teachers = []users.User{}
	}
	c.JSON(http.StatusOK, gin.H{"teachers": teachers})
}

// UpdateTeacher applies a partial update to one teacher; admin only.
func (h *Handler) UpdateTeacher(c *gin.Context) {
	var req struct {
		Name  *string `json:"name"`
		Grade *int    `json:"grade"`
		Class *string `json:"class"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.users.Update(c.Request.Context(), c.Param("id"), users.Patch{
		Name: req.Name, Grade: req.Grade, Class: req.Class,
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteTeacher removes one teacher account; admin only.
func (h *Handler) DeleteTeacher(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
