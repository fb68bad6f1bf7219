package memory

import (
	"codesync-server/core"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type roomFiles struct {
	mu    sync.Mutex
	state core.Snapshot
}

type fileStateStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomFiles
}

// NewFileStateStore returns the in-process room file state. Rooms are never
// evicted; they live until the process exits.
func NewFileStateStore() core.FileStateStore {
	return &fileStateStore{
		rooms: make(map[string]*roomFiles),
	}
}

func (s *fileStateStore) room(roomID string) *roomFiles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

func (s *fileStateStore) EnsureRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = &roomFiles{state: core.NewSnapshot()}
	logrus.WithField("room_id", roomID).Debug("Room file state initialised")
	return true
}

func (s *fileStateStore) Snapshot(roomID string) core.Snapshot {
	r := s.room(roomID)
	if r == nil {
		return core.NewSnapshot()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// mutate runs fn against the room's state. Unknown rooms are a silent no-op.
func (s *fileStateStore) mutate(roomID string, fn func(state *core.Snapshot) error) error {
	r := s.room(roomID)
	if r == nil {
		logrus.WithField("room_id", roomID).Debug("Mutation on unknown room ignored")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&r.state)
}

func (s *fileStateStore) SetActiveFileContent(roomID, content string) error {
	return s.mutate(roomID, func(state *core.Snapshot) error {
		state.FileContents[state.ActiveFile] = content
		return nil
	})
}

func (s *fileStateStore) ReplaceSnapshot(roomID string, snapshot core.Snapshot) error {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		r = &roomFiles{}
		s.rooms[roomID] = r
	}
	s.mu.Unlock()

	r.mu.Lock()
	r.state = snapshot.Clone()
	r.mu.Unlock()
	return nil
}

func (s *fileStateStore) AddFile(roomID, fileName, content string) error {
	if fileName == "" {
		return core.ErrInvalidFileName
	}
	return s.mutate(roomID, func(state *core.Snapshot) error {
		if state.HasFile(fileName) {
			return fmt.Errorf("add %s: %w", fileName, core.ErrDuplicateFileName)
		}
		state.Files = append(state.Files, fileName)
		state.FileContents[fileName] = content
		return nil
	})
}

func (s *fileStateStore) RenameFile(roomID, oldName, newName string) error {
	if newName == "" {
		return core.ErrInvalidFileName
	}
	return s.mutate(roomID, func(state *core.Snapshot) error {
		idx := state.IndexOf(oldName)
		if idx < 0 {
			return fmt.Errorf("rename %s: %w", oldName, core.ErrUnknownFile)
		}
		if oldName == newName {
			return nil
		}
		if state.HasFile(newName) {
			return fmt.Errorf("rename %s to %s: %w", oldName, newName, core.ErrDuplicateFileName)
		}

		state.Files[idx] = newName
		state.FileContents[newName] = state.FileContents[oldName]
		delete(state.FileContents, oldName)
		if state.ActiveFile == oldName {
			state.ActiveFile = newName
		}
		return nil
	})
}

func (s *fileStateStore) SetActiveFile(roomID, fileName string) error {
	return s.mutate(roomID, func(state *core.Snapshot) error {
		if !state.HasFile(fileName) {
			return fmt.Errorf("activate %s: %w", fileName, core.ErrUnknownFile)
		}
		state.ActiveFile = fileName
		return nil
	})
}

func (s *fileStateStore) DeleteFile(roomID, fileName string) error {
	return s.mutate(roomID, func(state *core.Snapshot) error {
		idx := state.IndexOf(fileName)
		if idx < 0 {
			return fmt.Errorf("delete %s: %w", fileName, core.ErrUnknownFile)
		}
		if len(state.Files) == 1 {
			return fmt.Errorf("delete %s: %w", fileName, core.ErrLastFile)
		}

		state.Files = append(state.Files[:idx:idx], state.Files[idx+1:]...)
		delete(state.FileContents, fileName)
		if state.ActiveFile == fileName {
			state.ActiveFile = state.Files[0]
		}
		return nil
	})
}

func (s *fileStateStore) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
