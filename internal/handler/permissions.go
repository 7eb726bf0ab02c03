package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
	"rollbook/internal/permission"
)

// RequestPermission files a cross-class permission request for the caller.
func (h *Handler) RequestPermission(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req struct {
		TargetGrade int    `json:"target_grade" binding:"required"`
		TargetClass string `json:"target_class" binding:"required"`
		TargetDate  string `json:"target_date" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.perms.Create(c.Request.Context(), permission.Request{
		RequesterID:    claims.UserID,
		RequesterEmail: claims.Email,
		RequesterName:  claims.Email, // display name resolved client-side
		TargetGrade:    req.TargetGrade,
		TargetClass:    req.TargetClass,
		TargetDate:     req.TargetDate,
		Reason:         req.Reason,
	})
	if err != nil {
		log.Printf("create permission request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// MyPermissionRequests lists the caller's requests.
func (h *Handler) MyPermissionRequests(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	reqs, err := h.perms.ListByRequester(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reqs == nil {
		reqs = []permission.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// ListPermissionRequests lists requests, optionally by status; admin only.
func (h *Handler) ListPermissionRequests(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", permission.StatusPending, permission.StatusApproved, permission.StatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	reqs, err := h.perms.List(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reqs == nil {
		reqs = []permission.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// RespondPermission approves or rejects one pending request; admin only.
// The route param decides which.
func (h *Handler) RespondPermission(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := h.perms.Respond(c.Request.Context(), c.Param("id"), claims.UserID, status); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
