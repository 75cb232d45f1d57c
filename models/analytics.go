// api/models/analytics.go
package models

// TopUser is one row of the top-users-by-session-count leaderboard.
// Email is resolved from the user store when possible.
type TopUser struct {
	UID      string `json:"userId"`
	Email    string `json:"email,omitempty"`
	Sessions int    `json:"sessions"`
}

// RecentEvent is one entry of the most-recent-events feed.
type RecentEvent struct {
	SessionID string `json:"sessionId"`
	UID       string `json:"userId,omitempty"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// AnalyticsSummary is the derived view computed per query; it is never
// persisted.
type AnalyticsSummary struct {
	StartDate          string         `json:"startDate"`
	EndDate            string         `json:"endDate"`
	TotalSessions      int            `json:"totalSessions"`
	TotalEvents        int64          `json:"totalEvents"`
	DAU                int            `json:"dau"`
	ActiveSessions     int            `json:"activeSessions"`
	AvgDurationMinutes float64        `json:"avgDurationMinutes"`
	DeviceBreakdown    map[string]int `json:"deviceBreakdown"`
	PlatformBreakdown  map[string]int `json:"platformBreakdown"`
	TopUsers           []TopUser      `json:"topUsers"`
	RecentEvents       []RecentEvent  `json:"recentEvents"`
}
