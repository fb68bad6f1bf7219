package websocket

import (
	"codesync-server/session"
	"sort"

	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// transport implements session.Transport on the default socket.io
// namespace. Every socket sits in a private room named after its id, which
// is how single connections are addressed and excluded.
type transport struct {
	srv *socketio.Server
}

func NewTransport(srv *socketio.Server) session.Transport {
	return &transport{srv: srv}
}

func (t *transport) Join(socketID, roomID string) {
	t.srv.In(socketio.Room(socketID)).SocketsJoin(socketio.Room(roomID))
}

func (t *transport) Leave(socketID, roomID string) {
	t.srv.In(socketio.Room(socketID)).SocketsLeave(socketio.Room(roomID))
}

func (t *transport) RoomsOf(socketID string) []string {
	socket, ok := t.srv.Sockets().Sockets().Load(socketio.SocketId(socketID))
	if !ok {
		return nil
	}

	var rooms []string
	for _, room := range socket.Rooms().Keys() {
		if string(room) != socketID {
			rooms = append(rooms, string(room))
		}
	}
	sort.Strings(rooms)
	return rooms
}

func (t *transport) Members(roomID string) []string {
	ids, err := t.srv.In(socketio.Room(roomID)).AllSockets()
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to list room sockets")
		return nil
	}

	members := make([]string, 0, ids.Len())
	for _, id := range ids.Keys() {
		members = append(members, string(id))
	}
	sort.Strings(members)
	return members
}

func (t *transport) EmitTo(socketID, event string, payload any) {
	t.emit(t.srv.To(socketio.Room(socketID)), socketID, event, payload)
}

func (t *transport) EmitToRoom(roomID, event string, payload any) {
	t.emit(t.srv.To(socketio.Room(roomID)), roomID, event, payload)
}

func (t *transport) EmitToRoomExcept(roomID, exceptSocketID, event string, payload any) {
	op := t.srv.To(socketio.Room(roomID)).Except(socketio.Room(exceptSocketID))
	t.emit(op, roomID, event, payload)
}

func (t *transport) emit(op *socketio.BroadcastOperator, target, event string, payload any) {
	if err := op.Emit(event, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"target": target,
			"event":  event,
			"error":  err,
		}).Warn("Failed to emit")
	}
}
