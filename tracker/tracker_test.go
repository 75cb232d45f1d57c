package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sellerpulse/api/models"
	"sellerpulse/api/store"
	"sellerpulse/api/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory SessionWriter with injectable failures.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	events   []*models.SessionEvent

	createErr error
	getErr    error
	touchErr  error
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeStore) CreateSession(_ context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeStore) TouchSession(_ context.Context, id string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	if ts > session.LastActive {
		session.LastActive = ts
	}
	return nil
}

func (f *fakeStore) InsertEvent(_ context.Context, event *models.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *event
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeStore) session(id string) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		copied := *s
		return &copied
	}
	return nil
}

func (f *fakeStore) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

// newTestTracker returns a tracker on a fake store with a controllable
// clock and a throwaway state file.
func newTestTracker(t *testing.T, fake *fakeStore) (*Tracker, *time.Time) {
	t.Helper()
	now := time.Date(2025, time.March, 14, 10, 30, 0, 0, time.Local)
	tr := NewTracker(fake)
	tr.now = func() time.Time { return now }
	tr.interval = time.Hour // tests drive ticks directly
	tr.statePath = filepath.Join(t.TempDir(), "session.json")
	t.Cleanup(func() { tr.End(context.Background()) })
	return tr, &now
}

func TestStartCreatesSession(t *testing.T) {
	fake := newFakeStore()
	tr, now := newTestTracker(t, fake)

	id, err := tr.Start(context.Background(), "42", "seller@example.com", "Mozilla/5.0 (Macintosh)", "MacIntel")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, tr.SessionID())

	session := fake.session(id)
	require.NotNil(t, session)
	assert.Equal(t, "42", session.UID)
	assert.Equal(t, now.UnixMilli(), session.CreatedAt)
	assert.Equal(t, session.CreatedAt, session.LastActive)
	assert.Equal(t, utils.DayKey(*now), session.DateKey)
	assert.Equal(t, models.DeviceDesktop, session.Info.Device)
	assert.Equal(t, "MacIntel", session.Info.Platform)
	assert.Equal(t, "seller@example.com", session.Info.Email)

	assert.Equal(t, []string{EventSessionStart}, fake.eventTypes())

	// The session id survives locally for resume.
	stored, err := loadState(tr.statePath)
	require.NoError(t, err)
	assert.Equal(t, id, stored)
}

func TestStartPropagatesPersistenceError(t *testing.T) {
	fake := newFakeStore()
	fake.createErr = fmt.Errorf("store unavailable")
	tr, _ := newTestTracker(t, fake)

	_, err := tr.Start(context.Background(), "42", "", "", "")
	require.Error(t, err)
	assert.Empty(t, tr.SessionID())
}

func TestLogEventRefreshesLiveness(t *testing.T) {
	fake := newFakeStore()
	tr, now := newTestTracker(t, fake)

	id, err := tr.Start(context.Background(), "42", "", "", "")
	require.NoError(t, err)
	before := fake.session(id).LastActive

	*now = now.Add(7 * time.Minute)
	tr.LogEvent(context.Background(), "click", map[string]interface{}{"button": "export"})

	session := fake.session(id)
	assert.GreaterOrEqual(t, session.LastActive, before)
	assert.Equal(t, now.UnixMilli(), session.LastActive)
	assert.GreaterOrEqual(t, session.LastActive, session.CreatedAt)

	types := fake.eventTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "click", types[1])
}

func TestLogEventSwallowsWriteFailures(t *testing.T) {
	fake := newFakeStore()
	tr, _ := newTestTracker(t, fake)

	_, err := tr.Start(context.Background(), "42", "", "", "")
	require.NoError(t, err)

	fake.insertErr = fmt.Errorf("store unavailable")
	fake.touchErr = fmt.Errorf("store unavailable")

	// Must not panic or propagate; tracking is best-effort.
	tr.LogEvent(context.Background(), "click", nil)
	assert.NotEmpty(t, tr.SessionID())
}

func TestLogEventWithoutActiveSessionDropsEvent(t *testing.T) {
	fake := newFakeStore()
	tr, _ := newTestTracker(t, fake)

	tr.LogEvent(context.Background(), "click", nil)
	assert.Empty(t, fake.eventTypes())
}

func TestHeartbeatTickAdvancesLiveness(t *testing.T) {
	fake := newFakeStore()
	tr, now := newTestTracker(t, fake)

	id, err := tr.Start(context.Background(), "42", "", "", "")
	require.NoError(t, err)

	*now = now.Add(5 * time.Minute)
	tr.heartbeatTick()
	assert.Equal(t, now.UnixMilli(), fake.session(id).LastActive)

	// A clock that jumps backwards must not move last_active backwards.
	prev := fake.session(id).LastActive
	*now = now.Add(-10 * time.Minute)
	tr.heartbeatTick()
	assert.Equal(t, prev, fake.session(id).LastActive)
}

func TestNextLivenessMonotonic(t *testing.T) {
	base := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, base.UnixMilli(), nextLiveness(0, base))
	assert.Equal(t, base.UnixMilli(), nextLiveness(base.UnixMilli(), base))

	past := base.Add(-time.Minute)
	assert.Equal(t, base.UnixMilli(), nextLiveness(base.UnixMilli(), past))
}

func TestEndWithoutSessionIsNoOp(t *testing.T) {
	fake := newFakeStore()
	tr, _ := newTestTracker(t, fake)

	tr.End(context.Background())
	assert.Empty(t, fake.eventTypes())
	assert.Empty(t, tr.SessionID())
}

func TestEndLogsAndClearsState(t *testing.T) {
	fake := newFakeStore()
	tr, _ := newTestTracker(t, fake)

	_, err := tr.Start(context.Background(), "42", "", "", "")
	require.NoError(t, err)

	tr.End(context.Background())
	assert.Equal(t, []string{EventSessionStart, EventSessionEnd}, fake.eventTypes())
	assert.Empty(t, tr.SessionID())

	stored, err := loadState(tr.statePath)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Ending again stays a no-op.
	tr.End(context.Background())
	assert.Len(t, fake.eventTypes(), 2)
}

func TestResumeRejectsMissingSession(t *testing.T) {
	fake := newFakeStore()
	tr, _ := newTestTracker(t, fake)

	ok, err := tr.Resume(context.Background(), "42_12345_deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, tr.SessionID())
}

func TestResumeSurfacesStoreErrors(t *testing.T) {
	fake := newFakeStore()
	fake.getErr = fmt.Errorf("store unavailable")
	tr, _ := newTestTracker(t, fake)

	ok, err := tr.Resume(context.Background(), "42_12345_deadbeef")
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, errors.Is(err, store.ErrSessionNotFound))
}

func TestResumeFromPersistedState(t *testing.T) {
	fake := newFakeStore()
	tr, now := newTestTracker(t, fake)

	id, err := tr.Start(context.Background(), "42", "", "", "")
	require.NoError(t, err)

	// A fresh tracker process for the same client picks the session back
	// up from local state and refreshes its liveness.
	tr2 := NewTracker(fake)
	tr2.now = func() time.Time { return now.Add(3 * time.Minute) }
	tr2.interval = time.Hour
	tr2.statePath = tr.statePath
	t.Cleanup(func() { tr2.End(context.Background()) })

	ok, err := tr2.Resume(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, tr2.SessionID())
	assert.Equal(t, now.Add(3*time.Minute).UnixMilli(), fake.session(id).LastActive)
}

func TestNewSessionIDShape(t *testing.T) {
	now := time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

	id := NewSessionID("42", now)
	assert.Contains(t, id, fmt.Sprintf("42_%d_", now.UnixMilli()))

	guest := NewSessionID("", now)
	assert.Contains(t, guest, "anon_")

	assert.NotEqual(t, NewSessionID("42", now), NewSessionID("42", now))
}
