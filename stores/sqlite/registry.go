package sqlite

import (
	"codesync-server/core"
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	last_active INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS room_activity (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	socket_id TEXT,
	username TEXT,
	kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS room_activity_room ON room_activity (room_id, created_at);
`

// registry records which rooms exist and who came and went. File contents
// are never written here.
type registry struct {
	db *sql.DB
}

func NewRegistry(dataSourceName string) (core.Registry, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &registry{db}, nil
}

func (s *registry) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, last_active) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET last_active = excluded.last_active",
		roomID, time.Now().UnixMilli())
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to touch room")
		return err
	}
	return nil
}

func (s *registry) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, last_active FROM rooms ORDER BY last_active DESC, id ASC")
	if err != nil {
		logrus.WithField("error", err).Error("Failed to list rooms")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close room rows")
		}
	}()

	rooms := []core.Room{}
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.ID, &room.LastActive); err != nil {
			logrus.WithField("error", err).Error("Failed to scan room")
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *registry) RecordActivity(ctx context.Context, activity core.Activity) error {
	if activity.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	if activity.ID == "" {
		activity.ID = ulid.Make().String()
	}
	if activity.Timestamp == 0 {
		activity.Timestamp = time.Now().UnixMilli()
	}

	log := logrus.WithFields(logrus.Fields{
		"activity_id": activity.ID,
		"room_id":     activity.RoomID,
		"kind":        activity.Kind,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_activity (id, room_id, socket_id, username, kind, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		activity.ID, activity.RoomID, activity.SocketID, activity.Username, activity.Kind, activity.Timestamp)
	if err != nil {
		log.WithField("error", err).Error("Failed to record activity")
		return err
	}
	log.Debug("Activity recorded")
	return nil
}

// ListActivity returns the newest entries first. A non-positive limit
// returns everything.
func (s *registry) ListActivity(ctx context.Context, roomID string, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = -1
	}

	log := logrus.WithField("room_id", roomID)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, socket_id, username, kind, created_at FROM room_activity WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		roomID, limit)
	if err != nil {
		log.WithField("error", err).Error("Failed to list activity")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close activity rows")
		}
	}()

	entries := []core.Activity{}
	for rows.Next() {
		var entry core.Activity
		var socketID, username sql.NullString
		if err := rows.Scan(&entry.ID, &entry.RoomID, &socketID, &username, &entry.Kind, &entry.Timestamp); err != nil {
			log.WithField("error", err).Error("Failed to scan activity")
			continue
		}
		entry.SocketID = socketID.String
		entry.Username = username.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *registry) Close() error {
	return s.db.Close()
}
