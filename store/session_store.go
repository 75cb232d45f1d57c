package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sellerpulse/api/database"
	"sellerpulse/api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrSessionNotFound is returned when a session id has no backing record.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions, their event sub-collection, and the
// per-user session index in the document store.
type SessionStore struct {
	sessions  *mongo.Collection
	events    *mongo.Collection
	userIndex *mongo.Collection
}

func NewSessionStore(mc *database.MongoClient) *SessionStore {
	s := &SessionStore{
		sessions:  mc.Collection("sessions"),
		events:    mc.Collection("session_events"),
		userIndex: mc.Collection("user_sessions"),
	}

	// Create indexes for the query patterns the aggregator and the
	// reverse-index lookups rely on.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "date_key", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "uid", Value: 1}}},
	}
	if _, err := s.sessions.Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		log.Printf("Warning: failed to create session indexes: %v", err)
	}

	eventIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	if _, err := s.events.Indexes().CreateMany(ctx, eventIndexes); err != nil {
		log.Printf("Warning: failed to create event indexes: %v", err)
	}

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}, {Key: "date_key", Value: -1}}},
	}
	if _, err := s.userIndex.Indexes().CreateMany(ctx, userIndexes); err != nil {
		log.Printf("Warning: failed to create user-session indexes: %v", err)
	}

	return s
}

// CreateSession writes a new session record and, when the session belongs
// to a known user, the reverse-index record under that user.
func (s *SessionStore) CreateSession(ctx context.Context, session *models.Session) error {
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if session.UID != "" {
		idx := models.UserSessionIndex{
			UID:       session.UID,
			SessionID: session.ID,
			DateKey:   session.DateKey,
		}
		if _, err := s.userIndex.InsertOne(ctx, idx); err != nil {
			return fmt.Errorf("failed to insert user session index: %w", err)
		}
	}

	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// TouchSession refreshes a session's liveness timestamp. $max keeps
// last_active monotonic even when touches race across tabs or devices.
func (s *SessionStore) TouchSession(ctx context.Context, id string, ts int64) error {
	res, err := s.sessions.UpdateByID(ctx, id, bson.M{"$max": bson.M{"last_active": ts}})
	if err != nil {
		return fmt.Errorf("failed to touch session %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InsertEvent appends one immutable event to a session's event
// sub-collection. It does not touch the parent session; callers pair it
// with TouchSession (two independent writes, no cross-document atomicity).
func (s *SessionStore) InsertEvent(ctx context.Context, event *models.SessionEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if _, err := s.events.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

func (s *SessionStore) CountEvents(ctx context.Context, sessionID string) (int64, error) {
	count, err := s.events.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count events for session %s: %w", sessionID, err)
	}
	return count, nil
}

// RecentEvents returns up to limit events of one session, newest first.
func (s *SessionStore) RecentEvents(ctx context.Context, sessionID string, limit int64) ([]models.SessionEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.events.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for session %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	var events []models.SessionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events for session %s: %w", sessionID, err)
	}
	return events, nil
}

// SessionsInRange returns sessions whose date_key falls in the inclusive
// [startKey, endKey] range, newest day first, capped at limit. The cap is
// an explicit cost bound, not a completeness guarantee for very active
// windows.
func (s *SessionStore) SessionsInRange(ctx context.Context, startKey, endKey, limit int64) ([]models.Session, error) {
	filter := bson.M{"date_key": bson.M{"$gte": startKey, "$lte": endKey}}
	opts := options.Find().
		SetSort(bson.D{{Key: "date_key", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.sessions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions in range: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions in range: %w", err)
	}
	return sessions, nil
}

// ListUserSessions reads the reverse index for one user, newest day first.
func (s *SessionStore) ListUserSessions(ctx context.Context, uid string) ([]models.UserSessionIndex, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_key", Value: -1}})

	cursor, err := s.userIndex.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions for user %s: %w", uid, err)
	}
	defer cursor.Close(ctx)

	var entries []models.UserSessionIndex
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode sessions for user %s: %w", uid, err)
	}
	return entries, nil
}
