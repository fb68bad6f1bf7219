package rooms

import (
	"codesync-server/core"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const defaultActivityLimit = 50

type (
	// RoomState is the live view of rooms held by the session router.
	RoomState interface {
		Rooms() []string
		Members(roomID string) []core.Member
		Snapshot(roomID string) core.Snapshot
	}

	RoomSummary struct {
		ID         string `json:"id"`
		Users      int    `json:"users"`
		LastActive *int64 `json:"lastActive,omitempty"`
	}

	RoomDetail struct {
		ID       string        `json:"id"`
		Users    int           `json:"users"`
		Clients  []core.Member `json:"clients"`
		Snapshot core.Snapshot `json:"snapshot"`
	}
)

// HandleListRooms lists rooms known to the server, busiest first. Rooms only
// present in the registry are listed with zero users.
func HandleListRooms(state RoomState, registry core.RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byID := make(map[string]*RoomSummary)
		for _, id := range state.Rooms() {
			byID[id] = &RoomSummary{ID: id, Users: len(state.Members(id))}
		}

		if registry != nil {
			stored, err := registry.ListRooms(r.Context())
			if err != nil {
				logrus.WithError(err).Warn("failed to list rooms from registry")
			}
			for _, room := range stored {
				entry, ok := byID[room.ID]
				if !ok {
					entry = &RoomSummary{ID: room.ID}
					byID[room.ID] = entry
				}
				if room.LastActive > 0 {
					lastActive := room.LastActive
					entry.LastActive = &lastActive
				}
			}
		}

		list := make([]RoomSummary, 0, len(byID))
		for _, entry := range byID {
			list = append(list, *entry)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Users != list[j].Users {
				return list[i].Users > list[j].Users
			}
			li, lj := lastActive(list[i]), lastActive(list[j])
			if li != lj {
				return li > lj
			}
			return list[i].ID < list[j].ID
		})

		render.JSON(w, r, list)
	}
}

// HandleGetRoom returns the members and file state of a live room.
func HandleGetRoom(state RoomState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		if !hasRoom(state, roomID) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}

		clients := state.Members(roomID)
		render.JSON(w, r, RoomDetail{
			ID:       roomID,
			Users:    len(clients),
			Clients:  clients,
			Snapshot: state.Snapshot(roomID),
		})
	}
}

// HandleListActivity returns the most recent joins and leaves of a room.
func HandleListActivity(log core.ActivityLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		limit := ParseIntQuery(r, "limit", defaultActivityLimit)

		if log == nil {
			render.JSON(w, r, []core.Activity{})
			return
		}

		activity, err := log.ListActivity(r.Context(), roomID, limit)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list room activity")
			http.Error(w, "Failed to list room activity", http.StatusInternalServerError)
			return
		}

		if activity == nil {
			activity = []core.Activity{}
		}

		render.JSON(w, r, activity)
	}
}

// ParseIntQuery parses a positive integer query parameter.
func ParseIntQuery(r *http.Request, param string, defaultValue int) int {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil || intValue <= 0 {
		return defaultValue
	}

	return intValue
}

func hasRoom(state RoomState, roomID string) bool {
	for _, id := range state.Rooms() {
		if id == roomID {
			return true
		}
	}
	return false
}

func lastActive(s RoomSummary) int64 {
	if s.LastActive == nil {
		return 0
	}
	return *s.LastActive
}
