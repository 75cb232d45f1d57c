// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"sellerpulse/api/store"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandlers struct {
	Analytics *store.AnalyticsStore
	Sessions  *store.SessionStore
}

func NewAnalyticsHandlers(analytics *store.AnalyticsStore, sessions *store.SessionStore) *AnalyticsHandlers {
	return &AnalyticsHandlers{Analytics: analytics, Sessions: sessions}
}

// parseDayRange reads the start/end query params as YYYY-MM-DD days,
// defaulting to the last 7 days. The second return value is false when a
// response has already been written.
func parseDayRange(c *gin.Context) (time.Time, time.Time, bool) {
	var start, end time.Time
	var err error

	startParam := c.Query("start")
	if startParam != "" {
		start, err = time.ParseInLocation("2006-01-02", startParam, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' date format. Use YYYY-MM-DD (e.g., 2006-01-02)"})
			return start, end, false
		}
	} else {
		start = time.Now().AddDate(0, 0, -6)
	}

	endParam := c.Query("end")
	if endParam != "" {
		end, err = time.ParseInLocation("2006-01-02", endParam, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' date format. Use YYYY-MM-DD (e.g., 2006-01-02)"})
			return start, end, false
		}
	} else {
		end = time.Now()
	}

	if start.After(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'start' must not be after 'end'"})
		return start, end, false
	}

	return start, end, true
}

// GetSummary computes the windowed analytics summary. Fail-closed: any
// read error surfaces as a single failure with no partial numbers.
// GET /api/stats/summary?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	start, end, ok := parseDayRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	summary, err := h.Analytics.ComputeAnalytics(ctx, start, end)
	if err != nil {
		log.Printf("Error computing analytics summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetUserSessions lists one user's sessions from the reverse index,
// newest day first.
// GET /api/stats/user-sessions?uid=...
func (h *AnalyticsHandlers) GetUserSessions(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uid query parameter is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	entries, err := h.Sessions.ListUserSessions(ctx, uid)
	if err != nil {
		log.Printf("Error listing sessions for user %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": uid, "sessions": entries, "count": len(entries)})
}
