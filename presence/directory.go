package presence

import (
	"codesync-server/core"
	"sync"
)

// Membership answers which connections are in a room. The transport owns
// room grouping; the directory only owns usernames.
type Membership interface {
	Members(roomID string) []string
}

// Directory maps live connections to the username they joined with.
type Directory struct {
	mu        sync.RWMutex
	usernames map[string]string
}

func NewDirectory() *Directory {
	return &Directory{usernames: make(map[string]string)}
}

func (d *Directory) SetUsername(socketID, username string) {
	d.mu.Lock()
	d.usernames[socketID] = username
	d.mu.Unlock()
}

func (d *Directory) Username(socketID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.usernames[socketID]
	return name, ok
}

func (d *Directory) Remove(socketID string) {
	d.mu.Lock()
	delete(d.usernames, socketID)
	d.mu.Unlock()
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.usernames)
}

// MembersOf pairs every connection in the room with its username. A
// connection that has not finished joining has an empty username.
func (d *Directory) MembersOf(m Membership, roomID string) []core.Member {
	ids := m.Members(roomID)

	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]core.Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, core.Member{SocketID: id, Username: d.usernames[id]})
	}
	return members
}
