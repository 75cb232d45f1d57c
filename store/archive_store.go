package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"sellerpulse/api/database"
)

// ArchivedEvent is the flattened, immutable form of a session event as it
// lands in the ClickHouse archive.
type ArchivedEvent struct {
	EventID   string
	SessionID string
	UID       string
	EventType string
	Timestamp time.Time
	Device    string
	Platform  string
	Payload   string // JSON-encoded event payload
}

// ArchiveStore mirrors immutable session events into ClickHouse for
// long-horizon analysis. It is optional; the dashboard path never reads
// from it.
type ArchiveStore struct {
	DB *database.ClickHouseClient
}

func NewArchiveStore(chClient *database.ClickHouseClient) *ArchiveStore {
	return &ArchiveStore{DB: chClient}
}

// InsertEvents batch-inserts archived events. Column order must match the
// session_events_archive table schema.
func (s *ArchiveStore) InsertEvents(ctx context.Context, events []ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO session_events_archive (
			event_id, session_id, user_id, event_type, timestamp, device, platform, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.SessionID,
			event.UID,
			event.EventType,
			event.Timestamp,
			event.Device,
			event.Platform,
			event.Payload,
		)
		if err != nil {
			log.Printf("Error appending event to batch (EventID: %s): %v", event.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}
