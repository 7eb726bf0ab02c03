package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
	"rollbook/internal/metrics"
	"rollbook/internal/queue"
	"rollbook/internal/record"
	"rollbook/internal/summary"
)

// ListRoster returns a class roster.
func (h *Handler) ListRoster(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	students, err := h.records.Roster(c.Request.Context(), class)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if students == nil {
		students = []record.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// AddStudent adds a roster entry.
func (h *Handler) AddStudent(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	claims, _ := auth.FromContext(c)
	if !canManageRoster(claims, class) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your class"})
		return
	}
	var req struct {
		Name  string `json:"name" binding:"required"`
		Index string `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.records.AddStudent(c.Request.Context(), class, req.Name, req.Index)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateStudent patches a roster entry's name or index.
func (h *Handler) UpdateStudent(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	claims, _ := auth.FromContext(c)
	if !canManageRoster(claims, class) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your class"})
		return
	}
	var req struct {
		Name  *string `json:"name"`
		Index *string `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := record.StudentPatch{Name: req.Name, Index: req.Index}
	if err := h.records.UpdateStudent(c.Request.Context(), class, c.Param("studentID"), patch); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveStudent deletes a roster entry.
func (h *Handler) RemoveStudent(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	claims, _ := auth.FromContext(c)
	if !canManageRoster(claims, class) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your class"})
		return
	}
	if err := h.records.RemoveStudent(c.Request.Context(), class, c.Param("studentID")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDay returns the record map for one date.
func (h *Handler) GetDay(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	date := c.Param("date")
	day, err := h.records.Day(c.Request.Context(), class, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": day})
}

// PutDay overlays status updates onto one date's record map. The body maps
// student id to status; omitted students keep their existing entries.
func (h *Handler) PutDay(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	date := c.Param("date")
	claims, _ := auth.FromContext(c)

	allowed, err := h.checker.CanMark(c.Request.Context(), claims, class.Grade, class.Name, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "no permission for this class and date"})
		return
	}

	var req struct {
		Records map[string]string `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	day, err := h.records.Day(c.Request.Context(), class, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for id, raw := range req.Records {
		status, err := record.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry := day[id]
		entry.Status = status
		day[id] = entry
	}
	if err := h.records.SaveDay(c.Request.Context(), class, date, day); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.AttendanceWrites.Inc()
	h.notifyChange(class, date)
	c.JSON(http.StatusOK, gin.H{"date": date, "updated": len(req.Records)})
}

// GetHistory returns up to ?limit recent days, default 30.
func (h *Handler) GetHistory(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	limit := h.cfg.HistoryDays
	if raw := c.Query("limit"); raw != "" {
		if n, err := parsePositive(raw); err == nil {
			limit = n
		}
	}
	days, err := h.records.History(c.Request.Context(), class, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if days == nil {
		days = []record.Day{}
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// GetSummary serves the cached rollup for a date, computing on a miss.
func (h *Handler) GetSummary(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	date := c.Param("date")

	if h.summaries != nil {
		s, hit, err := h.summaries.Get(c.Request.Context(), class, date)
		if err != nil {
			log.Printf("summary cache read failed: %v", err)
		} else if hit {
			c.JSON(http.StatusOK, s)
			return
		}
	}

	day, err := h.records.Day(c.Request.Context(), class, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary.Compute(date, day))
}

// MigrateDay rewrites one date's records in the structured encoding; admin only.
func (h *Handler) MigrateDay(c *gin.Context) {
	class, ok := classFromParams(c)
	if !ok {
		return
	}
	date := c.Param("date")
	migrated, err := h.records.MigrateDay(c.Request.Context(), class, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "migrated": migrated})
}

// notifyChange publishes a queue notice so the worker refreshes the summary.
// Delivery is best effort.
func (h *Handler) notifyChange(class record.Class, date string) {
	if h.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.queue.Publish(ctx, queue.Notice{Grade: class.Grade, Class: class.Name, Date: date}); err != nil {
		log.Printf("publish attendance notice failed: %v", err)
	}
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
