package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rollbook/internal/assistant"
	"rollbook/internal/auth"
	"rollbook/internal/metrics"
	"rollbook/internal/record"
)

// Sessions idle past the TTL are dropped; the cap bounds the map in
// long-lived processes. An evicted id answers 404 and the client starts a
// fresh session.
const (
	sessionIdleTTL = 2 * time.Hour
	sessionCap     = 256
)

// sessionManager holds live assistant sessions keyed by id. Each session is
// single-threaded: concurrent turns on the same id are serialized.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
	clock    func() time.Time
}

type managedSession struct {
	mu       sync.Mutex
	session  *assistant.Session
	class    record.Class
	ownerID  string
	lastUsed time.Time
}

func newSessionManager() *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*managedSession),
		clock:    time.Now,
	}
}

func (m *sessionManager) get(id string) (*managedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.clock()
	if now.Sub(ms.lastUsed) > sessionIdleTTL {
		delete(m.sessions, id)
		return nil, false
	}
	ms.lastUsed = now
	return ms, true
}

func (m *sessionManager) put(id string, ms *managedSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	ms.lastUsed = m.clock()
	m.sessions[id] = ms
}

// evictLocked drops idle sessions and, if the map is still at the cap,
// least-recently-used ones. Caller holds m.mu.
func (m *sessionManager) evictLocked() {
	now := m.clock()
	for id, ms := range m.sessions {
		if now.Sub(ms.lastUsed) > sessionIdleTTL {
			delete(m.sessions, id)
		}
	}
	for len(m.sessions) >= sessionCap {
		oldestID := ""
		var oldest time.Time
		for id, ms := range m.sessions {
			if oldestID == "" || ms.lastUsed.Before(oldest) {
				oldestID, oldest = id, ms.lastUsed
			}
		}
		delete(m.sessions, oldestID)
	}
}

// AssistantMessage runs one conversational turn. Omitting session_id starts
// a fresh session bound to the caller's assigned class.
func (h *Handler) AssistantMessage(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		ms *managedSession
		id = req.SessionID
	)
	if id != "" {
		existing, ok := h.sessions.get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		if existing.ownerID != claims.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
			return
		}
		ms = existing
	} else {
		if claims.Grade == 0 || claims.Class == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no class assigned"})
			return
		}
		class := record.Class{Grade: claims.Grade, Name: claims.Class}
		session, err := assistant.NewSession(c.Request.Context(), h.records, h.llm, class)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		id = uuid.NewString()
		ms = &managedSession{session: session, class: class, ownerID: claims.UserID}
		h.sessions.put(id, ms)
	}

	ms.mu.Lock()
	reply := ms.session.HandleTurn(c.Request.Context(), req.Message)
	ms.mu.Unlock()

	if assistant.IsCommand(req.Message) {
		metrics.AssistantTurns.WithLabelValues("command").Inc()
	} else {
		metrics.AssistantTurns.WithLabelValues("chat").Inc()
	}

	// The turn may have written attendance; let the worker refresh today's
	// summary rather than tracking which tools mutate.
	h.notifyChange(ms.class, time.Now().UTC().Format("2006-01-02"))

	c.JSON(http.StatusOK, gin.H{"session_id": id, "reply": reply})
}

// AssistantTranscript returns a session's message history.
func (h *Handler) AssistantTranscript(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	ms, ok := h.sessions.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if ms.ownerID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}
	ms.mu.Lock()
	messages := ms.session.Messages()
	ms.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
