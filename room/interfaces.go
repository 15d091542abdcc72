package room

// Broadcaster defines the interface for pushing events to room members.
// Defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, event interface{}) error
	SendToUser(userID string, msgID uint16, event interface{}) error
}
