package rooms

import (
	"codesync-server/core"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Mock room state for testing
type mockRoomState struct {
	snapshots map[string]core.Snapshot
	members   map[string][]core.Member
}

func newMockRoomState() *mockRoomState {
	return &mockRoomState{
		snapshots: make(map[string]core.Snapshot),
		members:   make(map[string][]core.Member),
	}
}

func (m *mockRoomState) Rooms() []string {
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	return ids
}

func (m *mockRoomState) Members(roomID string) []core.Member {
	return m.members[roomID]
}

func (m *mockRoomState) Snapshot(roomID string) core.Snapshot {
	if s, ok := m.snapshots[roomID]; ok {
		return s
	}
	return core.NewSnapshot()
}

// Mock registry for testing
type mockRegistry struct {
	rooms    []core.Room
	activity []core.Activity
	listErr  error
	limit    int
}

func (m *mockRegistry) ListRooms(ctx context.Context) ([]core.Room, error) {
	return m.rooms, m.listErr
}

func (m *mockRegistry) TouchRoom(ctx context.Context, roomID string) error {
	return nil
}

func (m *mockRegistry) RecordActivity(ctx context.Context, a core.Activity) error {
	m.activity = append(m.activity, a)
	return nil
}

func (m *mockRegistry) ListActivity(ctx context.Context, roomID string, limit int) ([]core.Activity, error) {
	m.limit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []core.Activity
	for _, a := range m.activity {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRegistry) Close() error {
	return nil
}

func newRouter(state RoomState, registry core.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/rooms", HandleListRooms(state, registry))
	r.Get("/api/rooms/{roomId}", HandleGetRoom(state))
	r.Get("/api/rooms/{roomId}/activity", HandleListActivity(registry))
	return r
}

func TestHandleListRooms(t *testing.T) {
	state := newMockRoomState()
	state.snapshots["busy"] = core.NewSnapshot()
	state.snapshots["quiet"] = core.NewSnapshot()
	state.members["busy"] = []core.Member{{SocketID: "s1", Username: "alice"}, {SocketID: "s2", Username: "bob"}}
	state.members["quiet"] = []core.Member{{SocketID: "s3", Username: "carol"}}

	registry := &mockRegistry{rooms: []core.Room{
		{ID: "quiet", LastActive: 100},
		{ID: "old-b", LastActive: 50},
		{ID: "old-a", LastActive: 50},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	w := httptest.NewRecorder()
	newRouter(state, registry).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var list []RoomSummary
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	want := []string{"busy", "quiet", "old-a", "old-b"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d rooms, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("Expected room %d to be %s, got %s", i, id, list[i].ID)
		}
	}
	if list[0].Users != 2 {
		t.Errorf("Expected 2 users in busy, got %d", list[0].Users)
	}
	if list[0].LastActive != nil {
		t.Errorf("Expected no lastActive for busy, got %d", *list[0].LastActive)
	}
	if list[1].LastActive == nil || *list[1].LastActive != 100 {
		t.Errorf("Expected lastActive 100 for quiet, got %v", list[1].LastActive)
	}
}

func TestHandleListRooms_RegistryError(t *testing.T) {
	state := newMockRoomState()
	state.snapshots["r1"] = core.NewSnapshot()
	registry := &mockRegistry{listErr: errors.New("database error")}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	w := httptest.NewRecorder()
	newRouter(state, registry).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var list []RoomSummary
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" {
		t.Errorf("Expected live room only, got %+v", list)
	}
}

func TestHandleListRooms_NoRegistry(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	w := httptest.NewRecorder()
	HandleListRooms(newMockRoomState(), nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("Expected empty list, got %q", body)
	}
}

func TestHandleGetRoom(t *testing.T) {
	state := newMockRoomState()
	state.snapshots["r1"] = core.Snapshot{
		Files:        []string{"index.js", "util.js"},
		FileContents: map[string]string{"index.js": "x", "util.js": "y"},
		ActiveFile:   "util.js",
	}
	state.members["r1"] = []core.Member{{SocketID: "s1", Username: "alice"}}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	w := httptest.NewRecorder()
	newRouter(state, nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var detail RoomDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.ID != "r1" || detail.Users != 1 {
		t.Errorf("Unexpected detail %+v", detail)
	}
	if len(detail.Clients) != 1 || detail.Clients[0].Username != "alice" {
		t.Errorf("Unexpected clients %+v", detail.Clients)
	}
	if detail.Snapshot.ActiveFile != "util.js" || detail.Snapshot.FileContents["util.js"] != "y" {
		t.Errorf("Unexpected snapshot %+v", detail.Snapshot)
	}
}

func TestHandleGetRoom_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/missing", nil)
	w := httptest.NewRecorder()
	newRouter(newMockRoomState(), nil).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandleListActivity(t *testing.T) {
	registry := &mockRegistry{activity: []core.Activity{
		{ID: "a1", RoomID: "r1", SocketID: "s1", Username: "alice", Kind: core.ActivityJoin},
		{ID: "a2", RoomID: "r2", SocketID: "s2", Username: "bob", Kind: core.ActivityJoin},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/activity?limit=5", nil)
	w := httptest.NewRecorder()
	newRouter(newMockRoomState(), registry).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if registry.limit != 5 {
		t.Errorf("Expected limit 5, got %d", registry.limit)
	}

	var activity []core.Activity
	if err := json.NewDecoder(w.Body).Decode(&activity); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(activity) != 1 || activity[0].ID != "a1" {
		t.Errorf("Unexpected activity %+v", activity)
	}
}

func TestHandleListActivity_Error(t *testing.T) {
	registry := &mockRegistry{listErr: errors.New("database error")}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/activity", nil)
	w := httptest.NewRecorder()
	newRouter(newMockRoomState(), registry).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if registry.limit != defaultActivityLimit {
		t.Errorf("Expected default limit %d, got %d", defaultActivityLimit, registry.limit)
	}
}

func TestHandleListActivity_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/activity", nil)
	w := httptest.NewRecorder()
	newRouter(newMockRoomState(), &mockRegistry{}).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("Expected empty list, got %q", body)
	}
}

func TestParseIntQuery(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"?limit=3", 3},
		{"?limit=abc", 7},
		{"?limit=0", 7},
		{"?limit=-2", 7},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		if got := ParseIntQuery(req, "limit", 7); got != tt.want {
			t.Errorf("ParseIntQuery(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
