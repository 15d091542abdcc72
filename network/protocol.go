package network

// Inbound commands (client -> server).
const (
	MsgTypeHeartbeat       = 1
	MsgTypeJoinRoom        = 101
	MsgTypeLeaveRoom       = 102
	MsgTypeGuess           = 201
	MsgTypeRematchRequest  = 211
	MsgTypeRematchResponse = 212
)

// Outbound events (server -> room members).
const (
	MsgTypePlayerJoined       = 301
	MsgTypeGameStarted        = 302
	MsgTypeGuessMade          = 303
	MsgTypeTurnChanged        = 304
	MsgTypeWordCompleted      = 305
	MsgTypeGameOver           = 306
	MsgTypePlayerAbandoned    = 307
	MsgTypePlayerLeft         = 308
	MsgTypeRematchRequested   = 309
	MsgTypeRematchResolved    = 310
	MsgTypeError              = 400
)
