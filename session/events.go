package session

import "codesync-server/core"

// Wire event names. These match the browser client and must not change.
const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventDisconnected = "disconnected"
	EventCodeChange   = "code-change"
	EventSyncCode     = "sync-code"
	EventLeave        = "leave"
	EventSyncFiles    = "sync-files"
	EventFilesUpdate  = "files-update"
	EventNewFile      = "new-file"
	EventRenameFile   = "rename-file"
	EventActiveFile   = "active-file"
	EventDeleteFile   = "delete-file"
)

// Inbound payloads.
type (
	JoinPayload struct {
		RoomID   string `mapstructure:"roomId"`
		Username string `mapstructure:"username"`
	}

	CodeChangePayload struct {
		RoomID string `mapstructure:"roomId"`
		Code   string `mapstructure:"code"`
	}

	SyncCodePayload struct {
		SocketID string `mapstructure:"socketId"`
		Code     string `mapstructure:"code"`
	}

	// SyncFilesPayload is a member pushing its full view to a newcomer.
	// RoomID is optional; when set it must be a room sender and target share.
	SyncFilesPayload struct {
		SocketID      string `mapstructure:"socketId"`
		RoomID        string `mapstructure:"roomId"`
		core.Snapshot `mapstructure:",squash"`
	}

	NewFilePayload struct {
		RoomID   string `mapstructure:"roomId"`
		FileName string `mapstructure:"fileName"`
		Content  string `mapstructure:"content"`
	}

	RenameFilePayload struct {
		RoomID  string `mapstructure:"roomId"`
		OldName string `mapstructure:"oldName"`
		NewName string `mapstructure:"newName"`
	}

	FilePayload struct {
		RoomID string `mapstructure:"roomId"`
		File   string `mapstructure:"file"`
	}

	LeavePayload struct {
		RoomID string `mapstructure:"roomId"`
	}
)

// Outbound payloads.
type (
	JoinedMessage struct {
		Clients  []core.Member `json:"clients"`
		Username string        `json:"username"`
		SocketID string        `json:"socketId"`
	}

	DisconnectedMessage struct {
		SocketID string `json:"socketId"`
		Username string `json:"username"`
	}

	CodeMessage struct {
		Code string `json:"code"`
	}

	NewFileMessage struct {
		FileName string `json:"fileName"`
		Content  string `json:"content"`
	}

	RenameFileMessage struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
	}

	FileMessage struct {
		File string `json:"file"`
	}
)
