package session

// Transport is the realtime channel the router fans out through. Each
// connection is addressed by its socket id; rooms are named groups of
// connections managed by the transport.
type Transport interface {
	Join(socketID, roomID string)
	Leave(socketID, roomID string)
	// RoomsOf lists the rooms a connection joined, excluding its private
	// per-connection room.
	RoomsOf(socketID string) []string
	Members(roomID string) []string

	EmitTo(socketID, event string, payload any)
	EmitToRoom(roomID, event string, payload any)
	EmitToRoomExcept(roomID, exceptSocketID, event string, payload any)
}
