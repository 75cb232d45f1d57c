// Package tracker implements the client-side session lifecycle: it creates
// and resumes session records, keeps them alive with a periodic heartbeat,
// and appends typed events. It is the library the end-user-facing client
// embeds; the HTTP track endpoints expose the same operations remotely.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"sellerpulse/api/models"
	"sellerpulse/api/store"
	"sellerpulse/api/utils"

	"github.com/google/uuid"
)

// HeartbeatInterval is how often an active session refreshes its
// last_active timestamp. models.ActiveThreshold tolerates two missed
// ticks on top of this.
const HeartbeatInterval = 5 * time.Minute

// Event types written by the lifecycle itself.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
)

// SessionWriter is the slice of the session store the tracker needs.
// *store.SessionStore satisfies it; tests use an in-memory fake.
type SessionWriter interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	TouchSession(ctx context.Context, id string, ts int64) error
	InsertEvent(ctx context.Context, event *models.SessionEvent) error
}

// Tracker owns at most one active session at a time. Session tracking is
// best-effort: event logging and heartbeats swallow persistence errors so
// they can never crash the host application.
type Tracker struct {
	store     SessionWriter
	now       func() time.Time
	interval  time.Duration
	statePath string

	mu         sync.Mutex
	sessionID  string
	lastActive int64
	stop       chan struct{}
}

func NewTracker(store SessionWriter) *Tracker {
	return &Tracker{
		store:     store,
		now:       time.Now,
		interval:  HeartbeatInterval,
		statePath: defaultStatePath(),
	}
}

// NewSessionID builds a composite session id from the owning uid, the
// creation time, and a random suffix. Guests get the "anon" prefix. The
// id is unique, not globally ordered.
func NewSessionID(uid string, t time.Time) string {
	if uid == "" {
		uid = "anon"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", uid, t.UnixMilli(), suffix)
}

// nextLiveness computes the liveness timestamp a heartbeat or event touch
// should write. It never moves last_active backwards.
func nextLiveness(prev int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms < prev {
		return prev
	}
	return ms
}

// SessionID returns the active session id, or "" when no session is
// active.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Start creates a new session record for uid (empty for guests), logs the
// initial session_start event, begins the heartbeat, and persists the
// session id locally. An already-active session is abandoned first
// without a session_end event, matching a page reload.
func (t *Tracker) Start(ctx context.Context, uid, email, userAgent, platform string) (string, error) {
	now := t.now()
	session := &models.Session{
		ID:         NewSessionID(uid, now),
		UID:        uid,
		CreatedAt:  now.UnixMilli(),
		LastActive: now.UnixMilli(),
		DateKey:    utils.DayKey(now),
		Info:       CaptureContext(userAgent, platform, email),
	}

	if err := t.store.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	t.mu.Lock()
	t.stopHeartbeatLocked()
	t.sessionID = session.ID
	t.lastActive = session.LastActive
	t.startHeartbeatLocked()
	t.mu.Unlock()

	if err := saveState(t.statePath, session.ID); err != nil {
		log.Printf("Error persisting session id: %v", err)
	}

	t.LogEvent(ctx, EventSessionStart, nil)
	return session.ID, nil
}

// Resume restores a previously created session. With an empty sessionID
// the locally persisted id is used. The session record is validated
// server-side before the heartbeat restarts; a missing record reports
// false and clears the stale local state.
func (t *Tracker) Resume(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		stored, err := loadState(t.statePath)
		if err != nil {
			return false, fmt.Errorf("failed to load persisted session id: %w", err)
		}
		sessionID = stored
	}
	if sessionID == "" {
		return false, nil
	}

	session, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			if err := clearState(t.statePath); err != nil {
				log.Printf("Error clearing stale session state: %v", err)
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to validate session %s: %w", sessionID, err)
	}

	ts := nextLiveness(session.LastActive, t.now())
	if err := t.store.TouchSession(ctx, session.ID, ts); err != nil {
		log.Printf("Error refreshing liveness on resume: %v", err)
	}

	t.mu.Lock()
	t.stopHeartbeatLocked()
	t.sessionID = session.ID
	t.lastActive = ts
	t.startHeartbeatLocked()
	t.mu.Unlock()

	if err := saveState(t.statePath, session.ID); err != nil {
		log.Printf("Error persisting session id: %v", err)
	}
	return true, nil
}

// End logs a session_end event, stops the heartbeat, and clears the
// locally persisted state. Calling End with no active session is a no-op.
func (t *Tracker) End(ctx context.Context) {
	t.mu.Lock()
	if t.sessionID == "" {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.LogEvent(ctx, EventSessionEnd, nil)

	t.mu.Lock()
	t.stopHeartbeatLocked()
	t.sessionID = ""
	t.lastActive = 0
	t.mu.Unlock()

	if err := clearState(t.statePath); err != nil {
		log.Printf("Error clearing session state: %v", err)
	}
}

// LogEvent appends one immutable event to the active session and refreshes
// its liveness. Both writes are fire-and-forget: failures are logged and
// swallowed, never propagated. The event and the touch are independent
// writes; under partial failure an event can exist whose session touch
// never landed, which is acceptable because liveness is advisory.
func (t *Tracker) LogEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	t.mu.Lock()
	sessionID := t.sessionID
	prev := t.lastActive
	t.mu.Unlock()

	if sessionID == "" {
		log.Printf("LogEvent(%s) called with no active session; dropping", eventType)
		return
	}

	now := t.now()
	event := &models.SessionEvent{
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: now.UnixMilli(),
		Payload:   payload,
	}
	if err := t.store.InsertEvent(ctx, event); err != nil {
		log.Printf("Error logging event %s: %v", eventType, err)
	}

	ts := nextLiveness(prev, now)
	if err := t.store.TouchSession(ctx, sessionID, ts); err != nil {
		log.Printf("Error touching session after event %s: %v", eventType, err)
		return
	}

	t.mu.Lock()
	if t.sessionID == sessionID && ts > t.lastActive {
		t.lastActive = ts
	}
	t.mu.Unlock()
}

// startHeartbeatLocked begins the periodic liveness refresh. Caller holds
// t.mu.
func (t *Tracker) startHeartbeatLocked() {
	stop := make(chan struct{})
	t.stop = stop
	go t.heartbeatLoop(stop)
}

// stopHeartbeatLocked cancels the heartbeat if one is running. Caller
// holds t.mu.
func (t *Tracker) stopHeartbeatLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Tracker) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.heartbeatTick()
		}
	}
}

// heartbeatTick performs one liveness refresh. Split out from the loop so
// tests can drive ticks with a fake clock.
func (t *Tracker) heartbeatTick() {
	t.mu.Lock()
	sessionID := t.sessionID
	prev := t.lastActive
	t.mu.Unlock()

	if sessionID == "" {
		return
	}

	ts := nextLiveness(prev, t.now())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.store.TouchSession(ctx, sessionID, ts); err != nil {
		log.Printf("Error sending heartbeat for session %s: %v", sessionID, err)
		return
	}

	t.mu.Lock()
	if t.sessionID == sessionID && ts > t.lastActive {
		t.lastActive = ts
	}
	t.mu.Unlock()
}
