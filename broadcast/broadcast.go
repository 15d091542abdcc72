// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/session"
)

// Broadcaster pushes events to room members and individual users.
// Delivery is at-least-once for connected sessions; events must be
// self-describing so clients can apply them idempotently.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, event interface{}) error
	SendToUser(userID string, msgID uint16, event interface{}) error
}

// SessionBroadcaster fans events out over the live sessions scoped to
// a room or belonging to a user. A user with several sessions (e.g. a
// reconnect racing the old connection) receives the event on each.
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) BroadcastToRoom(roomID string, msgID uint16, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, s := range b.sessionManager.GetByRoomID(roomID) {
		if err := s.Send(msgID, data); err != nil {
			// A failed send means the connection is going away; the
			// client reconciles via re-fetch, so skip rather than fail.
			logger.Log.Warnf("broadcast to room %s session %s failed: %v", roomID, s.GetID(), err)
			continue
		}
	}
	return nil
}

func (b *SessionBroadcaster) SendToUser(userID string, msgID uint16, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, s := range b.sessionManager.GetByUserID(userID) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("send to user %s session %s failed: %v", userID, s.GetID(), err)
			continue
		}
	}
	return nil
}
