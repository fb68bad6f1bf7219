package core

import (
	"context"
)

// DefaultFileName is the file every room starts with.
const DefaultFileName = "index.js"

type (
	// Snapshot is the full file state of a room.
	Snapshot struct {
		Files        []string          `json:"files" mapstructure:"files"`
		FileContents map[string]string `json:"fileContents" mapstructure:"fileContents"`
		ActiveFile   string            `json:"activeFile" mapstructure:"activeFile"`
	}

	// Member is one connection currently joined to a room.
	Member struct {
		SocketID string `json:"socketId"`
		Username string `json:"username"`
	}

	// FileStateStore is the authoritative per-room document state.
	FileStateStore interface {
		EnsureRoom(roomID string) bool
		Snapshot(roomID string) Snapshot
		SetActiveFileContent(roomID, content string) error
		ReplaceSnapshot(roomID string, snapshot Snapshot) error
		AddFile(roomID, fileName, content string) error
		RenameFile(roomID, oldName, newName string) error
		SetActiveFile(roomID, fileName string) error
		DeleteFile(roomID, fileName string) error
		Rooms() []string
	}

	Room struct {
		ID         string
		LastActive int64
	}

	RoomRegistry interface {
		ListRooms(ctx context.Context) ([]Room, error)
		TouchRoom(ctx context.Context, roomID string) error
	}

	// Activity is one membership change recorded for a room.
	Activity struct {
		ID        string `json:"id"`
		RoomID    string `json:"roomId"`
		SocketID  string `json:"socketId"`
		Username  string `json:"username"`
		Kind      string `json:"kind"`
		Timestamp int64  `json:"timestamp"`
	}

	ActivityLog interface {
		RecordActivity(ctx context.Context, activity Activity) error
		ListActivity(ctx context.Context, roomID string, limit int) ([]Activity, error)
	}

	// Registry is what the storage backends provide.
	Registry interface {
		RoomRegistry
		ActivityLog
		Close() error
	}
)

const (
	ActivityJoin  = "join"
	ActivityLeave = "leave"
)

// NewSnapshot returns the state a room has on first join.
func NewSnapshot() Snapshot {
	return Snapshot{
		Files:        []string{DefaultFileName},
		FileContents: map[string]string{DefaultFileName: ""},
		ActiveFile:   DefaultFileName,
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Files:        make([]string, len(s.Files)),
		FileContents: make(map[string]string, len(s.FileContents)),
		ActiveFile:   s.ActiveFile,
	}
	copy(out.Files, s.Files)
	for k, v := range s.FileContents {
		out.FileContents[k] = v
	}
	return out
}

// HasFile reports whether name is one of the snapshot's files.
func (s Snapshot) HasFile(name string) bool {
	return s.IndexOf(name) >= 0
}

func (s Snapshot) IndexOf(name string) int {
	for i, f := range s.Files {
		if f == name {
			return i
		}
	}
	return -1
}

// Normalize validates a client supplied snapshot and repairs what can be
// repaired: missing content entries become empty, orphaned entries are
// dropped and an active file outside Files falls back to the first file.
// Empty or duplicate names cannot be repaired and are rejected.
func (s Snapshot) Normalize() (Snapshot, error) {
	if len(s.Files) == 0 {
		return Snapshot{}, ErrLastFile
	}

	out := Snapshot{
		Files:        make([]string, 0, len(s.Files)),
		FileContents: make(map[string]string, len(s.Files)),
		ActiveFile:   s.ActiveFile,
	}
	for _, name := range s.Files {
		if name == "" {
			return Snapshot{}, ErrInvalidFileName
		}
		if _, dup := out.FileContents[name]; dup {
			return Snapshot{}, ErrDuplicateFileName
		}
		out.Files = append(out.Files, name)
		out.FileContents[name] = s.FileContents[name]
	}
	if !out.HasFile(out.ActiveFile) {
		out.ActiveFile = out.Files[0]
	}
	return out, nil
}
