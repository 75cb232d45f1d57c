// api/models/session.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Device classes recognized by the tracker probe.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// ActiveThreshold is how stale a session's last_active may be before the
// session stops counting as active. Heartbeats fire every 5 minutes, so
// 15 minutes tolerates two missed ticks.
const ActiveThreshold = 15 * time.Minute

// DeviceInfo is the context snapshot captured when a session starts.
type DeviceInfo struct {
	Device    string `bson:"device" json:"device"`
	UserAgent string `bson:"user_agent" json:"userAgent"`
	Platform  string `bson:"platform" json:"platform"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
}

// Session represents one continuous user visit. UID is empty for guests.
// All timestamps are epoch milliseconds; DateKey is the start-of-day of
// CreatedAt in the creator's local time zone, used for range queries.
type Session struct {
	ID         string     `bson:"_id" json:"sessionId"`
	UID        string     `bson:"uid,omitempty" json:"userId,omitempty"`
	CreatedAt  int64      `bson:"created_at" json:"createdAt"`
	LastActive int64      `bson:"last_active" json:"lastActive"`
	DateKey    int64      `bson:"date_key" json:"dateKey"`
	Info       DeviceInfo `bson:"info" json:"info"`
}

// DurationMinutes returns the session length in whole minutes,
// floor-rounded. Values <= 0 are invalid and must be excluded from
// average-duration computations.
func (s *Session) DurationMinutes() int64 {
	return (s.LastActive - s.CreatedAt) / time.Minute.Milliseconds()
}

// IsActive reports whether the session's last activity falls within
// ActiveThreshold of now.
func (s *Session) IsActive(now time.Time) bool {
	return now.UnixMilli()-s.LastActive <= ActiveThreshold.Milliseconds()
}

// SessionEvent is one user action within a session, a child of exactly one
// Session. Events are immutable once written.
type SessionEvent struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	SessionID string                 `bson:"session_id" json:"sessionId"`
	Type      string                 `bson:"type" json:"type"`
	Timestamp int64                  `bson:"timestamp" json:"timestamp"`
	Payload   map[string]interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
}

// UserSessionIndex is the lightweight reverse-index record written under a
// user when a session starts, so "list this user's sessions" doesn't scan
// the full session set.
type UserSessionIndex struct {
	UID       string `bson:"uid" json:"userId"`
	SessionID string `bson:"session_id" json:"sessionId"`
	DateKey   int64  `bson:"date_key" json:"dateKey"`
}
