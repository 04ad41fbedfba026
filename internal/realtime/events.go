package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"

	"campusnotify/internal/model"
)

// Event is one frame on the wire: {"event": "...", "data": ...}.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// inbound is a client frame before its data is decoded for the event.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type markReadData struct {
	NoticeID int64 `json:"noticeId"`
}

type bulkMarkReadData struct {
	NoticeIDs []int64 `json:"noticeIds"`
}

// encode marshals an event once so it can be fanned out to many clients.
func encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Event, err)
	}
	return b, nil
}

// UserRoom is the room of every connection of one user.
func UserRoom(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// RoleRoom is the room of every connection whose user has role.
func RoleRoom(role model.Role) string {
	return "role:" + string(role)
}
