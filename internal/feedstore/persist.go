package feedstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pkt.systems/teamwatch/schema"
)

// snapshot is the on-disk form of a Store.
type snapshot struct {
	NextID schema.EventID `json:"next_id"`
	Events []schema.Event `json:"events"`
}

// Save writes the retained events to path atomically.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{NextID: s.nextID, Events: append([]schema.Event(nil), s.events...)}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.log.Warn("feedstore save failed", "path", path, "err", err)
		return err
	}
	tmp, err := os.CreateTemp(dir, "feed-*.json")
	if err != nil {
		s.log.Warn("feedstore save failed", "path", path, "err", err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn("feedstore save failed", "path", path, "err", err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn("feedstore save failed", "path", path, "err", err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		s.log.Warn("feedstore save failed", "path", path, "err", err)
		return err
	}
	s.log.Debug("feedstore saved", "path", path, "events", len(snap.Events))
	return nil
}

// Load replaces the store contents with the snapshot at path. A missing file
// leaves the store untouched and reports false.
func (s *Store) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("feedstore load miss", "path", path)
			return false, nil
		}
		return false, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.total = 0
	s.byCategory = make(map[schema.Category]int64, len(schema.Categories))
	s.agents = make(map[string]*schema.AgentSummary)
	s.nextID = 1
	for _, event := range snap.Events {
		if event.ID < s.nextID {
			continue
		}
		s.insertLocked(event)
		s.nextID = event.ID + 1
	}
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
	s.log.Info("feedstore restored", "path", path, "events", len(s.events), "next_id", s.nextID)
	return true, nil
}
