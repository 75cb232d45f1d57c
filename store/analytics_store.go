package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"sellerpulse/api/models"
	"sellerpulse/api/utils"
)

// EmailResolver turns a session uid into a display email. *UserStore
// satisfies it; analytics works without one (emails stay empty).
type EmailResolver interface {
	GetEmailByUID(ctx context.Context, uid string) (string, error)
}

// AnalyticsStore computes windowed summaries over the session store.
// Reads are fail-closed: any store error aborts the whole computation
// rather than returning partial numbers.
type AnalyticsStore struct {
	sessions *SessionStore
	users    EmailResolver

	// now is swappable for tests.
	now func() time.Time
}

func NewAnalyticsStore(sessions *SessionStore, users *UserStore) *AnalyticsStore {
	s := &AnalyticsStore{
		sessions: sessions,
		now:      time.Now,
	}
	if users != nil {
		s.users = users
	}
	return s
}

// ComputeAnalytics builds the summary for the inclusive day range
// startDay..endDay. Sessions are fetched newest-day-first, capped at
// maxSessionsPerWindow, and each session's event sub-collection is counted
// separately (N+1 reads, acceptable at dashboard scale).
func (s *AnalyticsStore) ComputeAnalytics(ctx context.Context, startDay, endDay time.Time) (*models.AnalyticsSummary, error) {
	startKey, endKey := utils.DayRange(startDay, endDay)
	if startKey > endKey {
		return nil, fmt.Errorf("start date %s is after end date %s", startDay.Format("2006-01-02"), endDay.Format("2006-01-02"))
	}

	sessions, err := s.sessions.SessionsInRange(ctx, startKey, endKey, maxSessionsPerWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions for window: %w", err)
	}

	eventCounts := make(map[string]int64, len(sessions))
	for i := range sessions {
		count, err := s.sessions.CountEvents(ctx, sessions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count events: %w", err)
		}
		eventCounts[sessions[i].ID] = count
	}

	summary := foldSummary(sessions, eventCounts, s.now())
	summary.StartDate = utils.StartOfDay(startDay).Format("2006-01-02")
	summary.EndDate = utils.StartOfDay(endDay).Format("2006-01-02")

	recent, err := s.recentEvents(ctx, sessions)
	if err != nil {
		return nil, err
	}
	summary.RecentEvents = recent

	s.resolveEmails(ctx, summary.TopUsers)
	return summary, nil
}

// recentEvents draws the most recent events from the newest sessions in
// the page, capped at recentEventLimit entries overall.
func (s *AnalyticsStore) recentEvents(ctx context.Context, sessions []models.Session) ([]models.RecentEvent, error) {
	var recent []models.RecentEvent
	for i := range sessions {
		if i >= recentEventSessions || len(recent) >= recentEventLimit {
			break
		}
		events, err := s.sessions.RecentEvents(ctx, sessions[i].ID, int64(recentEventLimit-len(recent)))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent events: %w", err)
		}
		for _, e := range events {
			recent = append(recent, models.RecentEvent{
				SessionID: e.SessionID,
				UID:       sessions[i].UID,
				Type:      e.Type,
				Timestamp: e.Timestamp,
			})
		}
	}
	return recent, nil
}

// resolveEmails decorates the leaderboard with emails. Lookup failures
// only cost the display name, never the summary.
func (s *AnalyticsStore) resolveEmails(ctx context.Context, topUsers []models.TopUser) {
	if s.users == nil {
		return
	}
	for i := range topUsers {
		email, err := s.users.GetEmailByUID(ctx, topUsers[i].UID)
		if err != nil {
			log.Printf("Error resolving email for uid %s: %v", topUsers[i].UID, err)
			continue
		}
		topUsers[i].Email = email
	}
}
