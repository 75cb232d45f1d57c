// api/handlers/track_handlers.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"sellerpulse/api/models"
	"sellerpulse/api/store"
	"sellerpulse/api/tracker"
	"sellerpulse/api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TrackHandlers exposes the session lifecycle and event logging over HTTP
// for clients that don't embed the tracker library. Archive may be nil
// when no ClickHouse mirror is configured.
type TrackHandlers struct {
	Sessions *store.SessionStore
	Archive  *store.ArchiveStore
}

func NewTrackHandlers(sessions *store.SessionStore, archive *store.ArchiveStore) *TrackHandlers {
	return &TrackHandlers{Sessions: sessions, Archive: archive}
}

type startSessionRequest struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
}

type logEventRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// StartSession creates a session record with createdAt = lastActive = now
// and a captured context snapshot, plus the user's reverse-index record.
// POST /api/track/session
func (h *TrackHandlers) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	now := time.Now()
	session := &models.Session{
		ID:         tracker.NewSessionID(req.UserID, now),
		UID:        req.UserID,
		CreatedAt:  now.UnixMilli(),
		LastActive: now.UnixMilli(),
		DateKey:    utils.DayKey(now),
		Info:       tracker.CaptureContext(req.UserAgent, req.Platform, req.Email),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Sessions.CreateSession(ctx, session); err != nil {
		log.Printf("Error creating session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.insertEvent(ctx, c, session, tracker.EventSessionStart, nil)
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID})
}

// Heartbeat refreshes a session's liveness.
// POST /api/track/session/:id/heartbeat
func (h *TrackHandlers) Heartbeat(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Sessions.TouchSession(ctx, sessionID, time.Now().UnixMilli()); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		log.Printf("Error refreshing session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	c.Status(http.StatusOK)
}

// LogEvent appends one immutable event to the session and refreshes its
// liveness, then mirrors the event to the archive when one is configured.
// POST /api/track/session/:id/event
func (h *TrackHandlers) LogEvent(c *gin.Context) {
	sessionID := c.Param("id")

	var req logEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	session, err := h.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		log.Printf("Error loading session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	if !h.insertEvent(ctx, c, session, req.Type, req.Payload) {
		return
	}
	c.Status(http.StatusOK)
}

// EndSession records the closing session_end event. The client owns its
// heartbeat; there is nothing else to tear down server-side.
// POST /api/track/session/:id/end
func (h *TrackHandlers) EndSession(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	session, err := h.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		log.Printf("Error loading session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
		return
	}

	if !h.insertEvent(ctx, c, session, tracker.EventSessionEnd, nil) {
		return
	}
	c.Status(http.StatusOK)
}

// insertEvent writes the event, touches the session (advisory; failures
// only logged), and kicks off the archive mirror. Responds with a 500 and
// returns false when the event write itself fails.
func (h *TrackHandlers) insertEvent(ctx context.Context, c *gin.Context, session *models.Session, eventType string, payload map[string]interface{}) bool {
	now := time.Now()
	event := &models.SessionEvent{
		SessionID: session.ID,
		Type:      eventType,
		Timestamp: now.UnixMilli(),
		Payload:   payload,
	}

	if err := h.Sessions.InsertEvent(ctx, event); err != nil {
		log.Printf("Error inserting event %s for session %s: %v", eventType, session.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return false
	}

	if err := h.Sessions.TouchSession(ctx, session.ID, now.UnixMilli()); err != nil {
		log.Printf("Error touching session %s after event %s: %v", session.ID, eventType, err)
	}

	h.mirrorToArchive(session, event)
	return true
}

// mirrorToArchive forwards the immutable event to ClickHouse off the
// request path, the same fire-and-forget way the tracker treats its own
// writes.
func (h *TrackHandlers) mirrorToArchive(session *models.Session, event *models.SessionEvent) {
	if h.Archive == nil {
		return
	}

	payload := ""
	if len(event.Payload) > 0 {
		if data, err := json.Marshal(event.Payload); err == nil {
			payload = string(data)
		}
	}

	archived := store.ArchivedEvent{
		EventID:   uuid.New().String(),
		SessionID: event.SessionID,
		UID:       session.UID,
		EventType: event.Type,
		Timestamp: time.UnixMilli(event.Timestamp),
		Device:    session.Info.Device,
		Platform:  session.Info.Platform,
		Payload:   payload,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Archive.InsertEvents(ctx, []store.ArchivedEvent{archived}); err != nil {
			log.Printf("Error archiving event %s: %v", archived.EventID, err)
		}
	}()
}
