package store

import (
	"testing"
	"time"

	"sellerpulse/api/models"
	"sellerpulse/api/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var foldNow = time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

// foldSession builds a session created at foldNow minus age with the given
// duration in minutes. Negative durations model sessions whose liveness
// touch never landed.
func foldSession(id, uid string, age time.Duration, durationMin int64, device, platform string) models.Session {
	created := foldNow.Add(-age)
	return models.Session{
		ID:         id,
		UID:        uid,
		CreatedAt:  created.UnixMilli(),
		LastActive: created.UnixMilli() + durationMin*time.Minute.Milliseconds(),
		DateKey:    utils.DayKey(created),
		Info:       models.DeviceInfo{Device: device, Platform: platform},
	}
}

func TestFoldSummaryAverageExcludesNonPositiveDurations(t *testing.T) {
	sessions := []models.Session{
		foldSession("s1", "u1", 2*time.Hour, 10, models.DeviceDesktop, "MacIntel"),
		foldSession("s2", "u2", 2*time.Hour, -5, models.DeviceDesktop, "MacIntel"),
		foldSession("s3", "u3", 2*time.Hour, 0, models.DeviceDesktop, "MacIntel"),
		foldSession("s4", "u4", 2*time.Hour, 20, models.DeviceDesktop, "MacIntel"),
	}

	summary := foldSummary(sessions, nil, foldNow)
	assert.Equal(t, 15.0, summary.AvgDurationMinutes)
}

func TestFoldSummaryDistinctUserCount(t *testing.T) {
	// Two sessions for the same user on the same day: dau stays 1 while
	// totalSessions reports 2.
	sessions := []models.Session{
		foldSession("s1", "u1", time.Hour, 5, models.DeviceDesktop, "MacIntel"),
		foldSession("s2", "u1", 30*time.Minute, 5, models.DeviceMobile, "iPhone"),
	}

	summary := foldSummary(sessions, nil, foldNow)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 1, summary.DAU)
}

func TestFoldSummaryGuestsExcludedFromDAU(t *testing.T) {
	sessions := []models.Session{
		foldSession("s1", "", time.Hour, 5, models.DeviceDesktop, "MacIntel"),
		foldSession("s2", "u1", time.Hour, 5, models.DeviceDesktop, "MacIntel"),
	}

	summary := foldSummary(sessions, nil, foldNow)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 1, summary.DAU)
}

func TestFoldSummaryActiveSessionBoundary(t *testing.T) {
	atThreshold := foldSession("s1", "u1", models.ActiveThreshold, 0, models.DeviceDesktop, "MacIntel")
	atThreshold.LastActive = foldNow.Add(-models.ActiveThreshold).UnixMilli()

	justOver := foldSession("s2", "u2", models.ActiveThreshold, 0, models.DeviceDesktop, "MacIntel")
	justOver.LastActive = foldNow.Add(-models.ActiveThreshold).UnixMilli() - 1

	summary := foldSummary([]models.Session{atThreshold, justOver}, nil, foldNow)
	assert.Equal(t, 1, summary.ActiveSessions, "exactly 15 minutes stale is still active; 15m+1ms is not")
}

func TestFoldSummaryBreakdownsAndEventTotals(t *testing.T) {
	sessions := []models.Session{
		foldSession("s1", "u1", time.Hour, 5, models.DeviceDesktop, "MacIntel"),
		foldSession("s2", "u2", time.Hour, 5, models.DeviceMobile, "iPhone"),
		foldSession("s3", "u3", time.Hour, 5, models.DeviceMobile, "Linux armv8l"),
	}
	counts := map[string]int64{"s1": 3, "s2": 1, "s3": 2}

	summary := foldSummary(sessions, counts, foldNow)
	assert.Equal(t, map[string]int{models.DeviceDesktop: 1, models.DeviceMobile: 2}, summary.DeviceBreakdown)
	assert.Equal(t, map[string]int{"MacIntel": 1, "iPhone": 1, "Linux armv8l": 1}, summary.PlatformBreakdown)
	assert.Equal(t, int64(6), summary.TotalEvents)
}

func TestFoldSummarySingleSessionScenario(t *testing.T) {
	// Start session, log one extra event, then aggregate the session's
	// day: totalSessions=1, dau=1, and activeSessions depends solely on
	// elapsed time versus the threshold at query time.
	session := foldSession("s1", "u1", 10*time.Minute, 10, models.DeviceDesktop, "MacIntel")
	counts := map[string]int64{"s1": 1}

	summary := foldSummary([]models.Session{session}, counts, foldNow)
	assert.Equal(t, 1, summary.TotalSessions)
	assert.Equal(t, 1, summary.DAU)
	assert.Equal(t, int64(1), summary.TotalEvents)
	assert.Equal(t, 1, summary.ActiveSessions)

	// The same query an hour later finds the session inactive.
	later := foldSummary([]models.Session{session}, counts, foldNow.Add(time.Hour))
	assert.Equal(t, 0, later.ActiveSessions)
}

func TestTopUsersRankingAndTieBreak(t *testing.T) {
	var sessions []models.Session
	add := func(id, uid string) {
		sessions = append(sessions, foldSession(id, uid, time.Hour, 5, models.DeviceDesktop, "MacIntel"))
	}
	// u2 has 3 sessions, u1 and u3 tie at 2; u1 is encountered first and
	// must stay ahead of u3.
	add("s1", "u1")
	add("s2", "u2")
	add("s3", "u3")
	add("s4", "u2")
	add("s5", "u1")
	add("s6", "u2")
	add("s7", "u3")
	add("s8", "")

	top := topUsersFrom(sessions, 5)
	require.Len(t, top, 3)
	assert.Equal(t, models.TopUser{UID: "u2", Sessions: 3}, top[0])
	assert.Equal(t, models.TopUser{UID: "u1", Sessions: 2}, top[1])
	assert.Equal(t, models.TopUser{UID: "u3", Sessions: 2}, top[2])
}

func TestTopUsersRespectsLimit(t *testing.T) {
	var sessions []models.Session
	for i := 0; i < 8; i++ {
		sessions = append(sessions, foldSession(
			string(rune('a'+i)), string(rune('A'+i)), time.Hour, 5, models.DeviceDesktop, "MacIntel"))
	}

	top := topUsersFrom(sessions, 5)
	assert.Len(t, top, 5)
}
