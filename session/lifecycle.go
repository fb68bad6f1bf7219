package session

import (
	"codesync-server/core"
	"codesync-server/metrics"
	"time"

	"github.com/sirupsen/logrus"
)

// Join registers the connection in a room. Every member, the newcomer
// included, receives the updated member list; only the newcomer receives
// the file snapshot.
func (r *Router) Join(socketID string, p JoinPayload) error {
	start := time.Now()
	err := r.join(socketID, p)
	metrics.ObserveEvent(EventJoin, err, start)
	return err
}

func (r *Router) join(socketID string, p JoinPayload) error {
	if p.RoomID == "" {
		return r.invalid(socketID, EventJoin, "roomId is required")
	}

	unlock := r.locks.lock(p.RoomID)
	r.presence.SetUsername(socketID, p.Username)
	r.transport.Join(socketID, p.RoomID)
	if r.files.EnsureRoom(p.RoomID) {
		metrics.SetRooms(len(r.files.Rooms()))
	}

	members := r.Members(p.RoomID)
	r.transport.EmitToRoom(p.RoomID, EventJoined, JoinedMessage{
		Clients:  members,
		Username: p.Username,
		SocketID: socketID,
	})
	r.transport.EmitTo(socketID, EventFilesUpdate, r.files.Snapshot(p.RoomID))
	unlock()

	logrus.WithFields(logrus.Fields{
		"socket_id": socketID,
		"room_id":   p.RoomID,
		"username":  p.Username,
		"members":   len(members),
	}).Info("Socket joined room")

	r.touch(p.RoomID)
	r.record(p.RoomID, socketID, p.Username, core.ActivityJoin)
	return nil
}

// Leave takes the connection out of one room without closing it.
func (r *Router) Leave(socketID string, p LeavePayload) error {
	start := time.Now()
	var err error
	if p.RoomID == "" {
		err = r.invalid(socketID, EventLeave, "roomId is required")
	} else {
		r.depart(socketID, p.RoomID, true)
	}
	metrics.ObserveEvent(EventLeave, err, start)
	return err
}

// Disconnecting announces the departure to every room the connection was
// in, then forgets its username. It must run while the transport still
// reports the connection's rooms.
func (r *Router) Disconnecting(socketID string) {
	start := time.Now()
	for _, roomID := range r.transport.RoomsOf(socketID) {
		r.depart(socketID, roomID, false)
	}
	r.presence.Remove(socketID)
	metrics.ObserveEvent("disconnecting", nil, start)
}

func (r *Router) depart(socketID, roomID string, leaveTransport bool) {
	username, _ := r.presence.Username(socketID)

	unlock := r.locks.lock(roomID)
	if leaveTransport {
		r.transport.Leave(socketID, roomID)
	}
	r.transport.EmitToRoomExcept(roomID, socketID, EventDisconnected, DisconnectedMessage{
		SocketID: socketID,
		Username: username,
	})
	unlock()

	logrus.WithFields(logrus.Fields{
		"socket_id": socketID,
		"room_id":   roomID,
		"username":  username,
	}).Info("Socket left room")

	r.touch(roomID)
	r.record(roomID, socketID, username, core.ActivityLeave)
}
