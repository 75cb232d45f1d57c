package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// trackerState is the locally persisted tracker state, so a restarted
// client can resume its previous session.
type trackerState struct {
	SessionID string `json:"session_id"`
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sellerpulse", "session.json")
}

func loadState(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var state trackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", err
	}
	return state.SessionID, nil
}

func saveState(path, sessionID string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(trackerState{SessionID: sessionID}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func clearState(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
