package session

import (
	"codesync-server/core"
	"codesync-server/metrics"
	"codesync-server/presence"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const registryTimeout = 2 * time.Second

// Router applies inbound session events to room state and fans the derived
// events out. Every event touching a room runs under that room's lock, so a
// mutation and its broadcast are atomic with respect to other events in the
// same room.
type Router struct {
	files     core.FileStateStore
	presence  *presence.Directory
	registry  core.Registry
	transport Transport
	locks     *roomLocks
}

// NewRouter wires the router. registry may be nil.
func NewRouter(files core.FileStateStore, dir *presence.Directory, registry core.Registry, transport Transport) *Router {
	return &Router{
		files:     files,
		presence:  dir,
		registry:  registry,
		transport: transport,
		locks:     newRoomLocks(),
	}
}

// Members returns the connections currently joined to roomID with their
// usernames.
func (r *Router) Members(roomID string) []core.Member {
	return r.presence.MembersOf(r.transport, roomID)
}

// Rooms lists every room that holds file state.
func (r *Router) Rooms() []string {
	return r.files.Rooms()
}

// Snapshot returns the current file state of roomID.
func (r *Router) Snapshot(roomID string) core.Snapshot {
	return r.files.Snapshot(roomID)
}

func (r *Router) CodeChange(socketID string, p CodeChangePayload) error {
	start := time.Now()
	err := r.codeChange(socketID, p)
	metrics.ObserveEvent(EventCodeChange, err, start)
	return err
}

func (r *Router) codeChange(socketID string, p CodeChangePayload) error {
	if p.RoomID == "" {
		return r.invalid(socketID, EventCodeChange, "roomId is required")
	}

	unlock := r.locks.lock(p.RoomID)
	defer unlock()

	if err := r.files.SetActiveFileContent(p.RoomID, p.Code); err != nil {
		return r.reject(socketID, p.RoomID, EventCodeChange, err)
	}
	r.transport.EmitToRoomExcept(p.RoomID, socketID, EventCodeChange, CodeMessage{Code: p.Code})
	return nil
}

// SyncCode relays one member's buffer to a single target. No state changes.
func (r *Router) SyncCode(socketID string, p SyncCodePayload) error {
	start := time.Now()
	var err error
	if p.SocketID == "" {
		err = r.invalid(socketID, EventSyncCode, "socketId is required")
	} else {
		r.transport.EmitTo(p.SocketID, EventCodeChange, CodeMessage{Code: p.Code})
	}
	metrics.ObserveEvent(EventSyncCode, err, start)
	return err
}

// SyncFiles replaces the room's state with the sender's view and forwards it
// to the target connection.
func (r *Router) SyncFiles(socketID string, p SyncFilesPayload) error {
	start := time.Now()
	err := r.syncFiles(socketID, p)
	metrics.ObserveEvent(EventSyncFiles, err, start)
	return err
}

func (r *Router) syncFiles(socketID string, p SyncFilesPayload) error {
	if p.SocketID == "" {
		return r.invalid(socketID, EventSyncFiles, "socketId is required")
	}

	roomID := r.sharedRoom(socketID, p.SocketID, p.RoomID)
	if roomID == "" {
		return r.invalid(socketID, EventSyncFiles, "sender and target share no room")
	}

	unlock := r.locks.lock(roomID)
	defer unlock()

	snapshot, err := p.Snapshot.Normalize()
	if err != nil {
		return r.reject(socketID, roomID, EventSyncFiles, err)
	}
	if err := r.files.ReplaceSnapshot(roomID, snapshot); err != nil {
		return r.reject(socketID, roomID, EventSyncFiles, err)
	}
	metrics.SetRooms(len(r.files.Rooms()))
	r.transport.EmitTo(p.SocketID, EventFilesUpdate, snapshot)
	return nil
}

// sharedRoom picks a room both sender and target are in. A non-empty hint
// must be one of those rooms.
func (r *Router) sharedRoom(senderID, targetID, hint string) string {
	targetRooms := make(map[string]struct{})
	for _, room := range r.transport.RoomsOf(targetID) {
		targetRooms[room] = struct{}{}
	}

	senderRooms := r.transport.RoomsOf(senderID)
	sort.Strings(senderRooms)
	for _, room := range senderRooms {
		if _, ok := targetRooms[room]; !ok {
			continue
		}
		if hint == "" || hint == room {
			return room
		}
	}
	return ""
}

func (r *Router) NewFile(socketID string, p NewFilePayload) error {
	start := time.Now()
	err := r.mutateAndBroadcast(socketID, p.RoomID, EventNewFile,
		func() error { return r.files.AddFile(p.RoomID, p.FileName, p.Content) },
		NewFileMessage{FileName: p.FileName, Content: p.Content})
	metrics.ObserveEvent(EventNewFile, err, start)
	return err
}

func (r *Router) RenameFile(socketID string, p RenameFilePayload) error {
	start := time.Now()
	err := r.mutateAndBroadcast(socketID, p.RoomID, EventRenameFile,
		func() error { return r.files.RenameFile(p.RoomID, p.OldName, p.NewName) },
		RenameFileMessage{OldName: p.OldName, NewName: p.NewName})
	metrics.ObserveEvent(EventRenameFile, err, start)
	return err
}

func (r *Router) ActiveFile(socketID string, p FilePayload) error {
	start := time.Now()
	err := r.mutateAndBroadcast(socketID, p.RoomID, EventActiveFile,
		func() error { return r.files.SetActiveFile(p.RoomID, p.File) },
		FileMessage{File: p.File})
	metrics.ObserveEvent(EventActiveFile, err, start)
	return err
}

func (r *Router) DeleteFile(socketID string, p FilePayload) error {
	start := time.Now()
	err := r.mutateAndBroadcast(socketID, p.RoomID, EventDeleteFile,
		func() error { return r.files.DeleteFile(p.RoomID, p.File) },
		FileMessage{File: p.File})
	metrics.ObserveEvent(EventDeleteFile, err, start)
	return err
}

// mutateAndBroadcast applies a file-tree mutation and, if the store accepts
// it, relays msg to every other member of the room.
func (r *Router) mutateAndBroadcast(socketID, roomID, event string, mutate func() error, msg any) error {
	if roomID == "" {
		return r.invalid(socketID, event, "roomId is required")
	}

	unlock := r.locks.lock(roomID)
	defer unlock()

	if err := mutate(); err != nil {
		return r.reject(socketID, roomID, event, err)
	}
	r.transport.EmitToRoomExcept(roomID, socketID, event, msg)
	return nil
}

// reject resends the authoritative snapshot to a sender whose mutation was
// refused so its local view converges again.
func (r *Router) reject(socketID, roomID, event string, err error) error {
	logrus.WithFields(logrus.Fields{
		"socket_id": socketID,
		"room_id":   roomID,
		"event":     event,
		"error":     err,
	}).Warn("Session event rejected")

	r.transport.EmitTo(socketID, EventFilesUpdate, r.files.Snapshot(roomID))
	return err
}

func (r *Router) invalid(socketID, event, reason string) error {
	err := fmt.Errorf("%s: %w", reason, core.ErrInvalidPayload)
	logrus.WithFields(logrus.Fields{
		"socket_id": socketID,
		"event":     event,
		"error":     err,
	}).Warn("Malformed session event")
	return err
}

func (r *Router) touch(roomID string) {
	if r.registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := r.registry.TouchRoom(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to touch room")
	}
}

func (r *Router) record(roomID, socketID, username, kind string) {
	if r.registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	err := r.registry.RecordActivity(ctx, core.Activity{
		RoomID:   roomID,
		SocketID: socketID,
		Username: username,
		Kind:     kind,
	})
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to record activity")
	}
}
