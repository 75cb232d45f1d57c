package store

import (
	"sort"
	"time"

	"sellerpulse/api/models"
)

// Caps applied by the aggregator. The session cap bounds the cost of a
// window query; the others bound response size.
const (
	maxSessionsPerWindow = 1000
	topUserLimit         = 5
	recentEventSessions  = 10
	recentEventLimit     = 20
)

// foldSummary computes the derived metrics for one window from an
// already-fetched session page and its per-session event counts. Sessions
// are expected newest-first, the order SessionsInRange returns them in.
func foldSummary(sessions []models.Session, eventCounts map[string]int64, now time.Time) *models.AnalyticsSummary {
	summary := &models.AnalyticsSummary{
		TotalSessions:     len(sessions),
		DeviceBreakdown:   make(map[string]int),
		PlatformBreakdown: make(map[string]int),
	}

	seenUsers := make(map[string]bool)
	var durationTotal int64
	var durationCount int

	for i := range sessions {
		s := &sessions[i]

		if s.UID != "" && !seenUsers[s.UID] {
			seenUsers[s.UID] = true
			summary.DAU++
		}

		if s.IsActive(now) {
			summary.ActiveSessions++
		}

		// Non-positive durations are unresolvable (e.g. a touch never
		// landed) and are excluded from the average.
		if d := s.DurationMinutes(); d > 0 {
			durationTotal += d
			durationCount++
		}

		if s.Info.Device != "" {
			summary.DeviceBreakdown[s.Info.Device]++
		}
		if s.Info.Platform != "" {
			summary.PlatformBreakdown[s.Info.Platform]++
		}

		summary.TotalEvents += eventCounts[s.ID]
	}

	if durationCount > 0 {
		summary.AvgDurationMinutes = float64(durationTotal) / float64(durationCount)
	}

	summary.TopUsers = topUsersFrom(sessions, topUserLimit)
	return summary
}

// topUsersFrom ranks users by session count, descending, ties broken by
// encounter order in the session list.
func topUsersFrom(sessions []models.Session, limit int) []models.TopUser {
	counts := make(map[string]int)
	var order []string
	for i := range sessions {
		uid := sessions[i].UID
		if uid == "" {
			continue
		}
		if counts[uid] == 0 {
			order = append(order, uid)
		}
		counts[uid]++
	}

	top := make([]models.TopUser, 0, len(order))
	for _, uid := range order {
		top = append(top, models.TopUser{UID: uid, Sessions: counts[uid]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Sessions > top[j].Sessions
	})

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
