package memory

import (
	"codesync-server/core"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// maxActivityPerRoom bounds the in-memory audit trail of each room.
const maxActivityPerRoom = 500

type registry struct {
	mu       sync.RWMutex
	rooms    map[string]int64
	activity map[string][]core.Activity
}

func NewRegistry() core.Registry {
	return &registry{
		rooms:    make(map[string]int64),
		activity: make(map[string][]core.Activity),
	}
}

func (s *registry) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[roomID] = time.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *registry) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.Room, 0, len(s.rooms))
	for id, last := range s.rooms {
		rooms = append(rooms, core.Room{ID: id, LastActive: last})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})

	return rooms, nil
}

func (s *registry) RecordActivity(ctx context.Context, activity core.Activity) error {
	if activity.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	if activity.ID == "" {
		activity.ID = ulid.Make().String()
	}
	if activity.Timestamp == 0 {
		activity.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.activity[activity.RoomID], activity)
	if len(entries) > maxActivityPerRoom {
		entries = entries[len(entries)-maxActivityPerRoom:]
	}
	s.activity[activity.RoomID] = entries

	logrus.WithFields(logrus.Fields{
		"room_id":   activity.RoomID,
		"socket_id": activity.SocketID,
		"kind":      activity.Kind,
	}).Debug("Activity recorded")
	return nil
}

// ListActivity returns the newest entries first.
func (s *registry) ListActivity(ctx context.Context, roomID string, limit int) ([]core.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.activity[roomID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]core.Activity, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *registry) Close() error {
	return nil
}
