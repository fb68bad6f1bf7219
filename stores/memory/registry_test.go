package memory

import (
	"codesync-server/core"
	"context"
	"fmt"
	"testing"
	"time"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if err := reg.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestTouchRoom_EmptyID(t *testing.T) {
	reg := NewRegistry()
	if err := reg.TouchRoom(context.Background(), ""); err == nil {
		t.Error("TouchRoom() should reject an empty room id")
	}
}

func TestListRooms_MostRecentFirst(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	if err := reg.TouchRoom(ctx, "older"); err != nil {
		t.Fatalf("TouchRoom() failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := reg.TouchRoom(ctx, "newer"); err != nil {
		t.Fatalf("TouchRoom() failed: %v", err)
	}

	rooms, err := reg.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "newer" || rooms[1].ID != "older" {
		t.Errorf("ListRooms() order mismatch: %+v", rooms)
	}
	if rooms[0].LastActive == 0 {
		t.Error("LastActive not set")
	}
}

func TestRecordActivity_FillsIDAndTimestamp(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	err := reg.RecordActivity(ctx, core.Activity{RoomID: "r1", SocketID: "s1", Username: "alice", Kind: core.ActivityJoin})
	if err != nil {
		t.Fatalf("RecordActivity() failed: %v", err)
	}

	entries, err := reg.ListActivity(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("ListActivity() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].ID) != 26 {
		t.Errorf("ID is not a ULID: %q", entries[0].ID)
	}
	if entries[0].Timestamp == 0 {
		t.Error("Timestamp not set")
	}
}

func TestRecordActivity_EmptyRoom(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RecordActivity(context.Background(), core.Activity{Kind: core.ActivityJoin}); err == nil {
		t.Error("RecordActivity() should reject an empty room id")
	}
}

func TestListActivity_NewestFirstWithLimit(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := reg.RecordActivity(ctx, core.Activity{
			RoomID:    "r1",
			SocketID:  fmt.Sprintf("s%d", i),
			Kind:      core.ActivityJoin,
			Timestamp: int64(i + 1),
		})
		if err != nil {
			t.Fatalf("RecordActivity() failed: %v", err)
		}
	}

	entries, err := reg.ListActivity(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("ListActivity() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].SocketID != "s4" || entries[1].SocketID != "s3" {
		t.Errorf("ListActivity() order mismatch: %+v", entries)
	}
}

func TestListActivity_Bounded(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	for i := 0; i < maxActivityPerRoom+10; i++ {
		_ = reg.RecordActivity(ctx, core.Activity{RoomID: "r1", Kind: core.ActivityJoin, Timestamp: int64(i + 1)})
	}

	entries, err := reg.ListActivity(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("ListActivity() failed: %v", err)
	}
	if len(entries) != maxActivityPerRoom {
		t.Errorf("Expected %d entries, got %d", maxActivityPerRoom, len(entries))
	}
	if entries[0].Timestamp != int64(maxActivityPerRoom+10) {
		t.Errorf("newest entry mismatch: %d", entries[0].Timestamp)
	}
}

func TestListActivity_UnknownRoom(t *testing.T) {
	reg := NewRegistry()
	entries, err := reg.ListActivity(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("ListActivity() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}
