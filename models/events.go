// models/events.go
//
// Payloads pushed over the event channel. Every event carries its room
// id and enough context to be applied idempotently by a client that
// receives it late, twice, or out of order.
package models

// PlayerJoinedEvent is sent to the members who were already seated.
type PlayerJoinedEvent struct {
	RoomID       string `json:"roomId"`
	Player       Player `json:"player"`
	PlayersCount int    `json:"playersCount"`
}

// GameStartedEvent is broadcast once both seats are filled.
type GameStartedEvent struct {
	RoomID              string   `json:"roomId"`
	Run                 RunState `json:"run"`
	CurrentTurnPlayerID string   `json:"currentTurnPlayerId"`
}

// GuessMadeEvent is broadcast after every accepted guess.
type GuessMadeEvent struct {
	RoomID        string `json:"roomId"`
	PlayerID      string `json:"playerId"`
	PlayerName    string `json:"playerName"`
	Guess         Guess  `json:"guess"`
	AttemptNumber int    `json:"attemptNumber"`
}

// TurnChangedEvent is broadcast when turn ownership flips.
type TurnChangedEvent struct {
	RoomID                string `json:"roomId"`
	CurrentTurnPlayerID   string `json:"currentTurnPlayerId"`
	CurrentTurnPlayerName string `json:"currentTurnPlayerName"`
}

// WordCompletedEvent is broadcast when the current word is solved.
type WordCompletedEvent struct {
	RoomID       string    `json:"roomId"`
	Word         string    `json:"word"`
	NextWord     *NextWord `json:"nextWord"`
	CurrentScore int       `json:"currentScore"`
}

// GameOverEvent is broadcast on any terminal transition.
type GameOverEvent struct {
	RoomID         string    `json:"roomId"`
	FinalScore     int       `json:"finalScore"`
	WordsCompleted int       `json:"wordsCompleted"`
	Reason         EndReason `json:"reason"`
}

// PlayerAbandonedEvent is broadcast when a player abandons a live run.
type PlayerAbandonedEvent struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// PlayerLeftEvent is broadcast when a player leaves a room.
type PlayerLeftEvent struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// RematchRequestEvent is sent to the non-requesting member only.
type RematchRequestEvent struct {
	RoomID        string `json:"roomId"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
}

// RematchResponseEvent concludes a rematch negotiation. On acceptance
// it is sent to both members and carries the new room id.
type RematchResponseEvent struct {
	RoomID        string `json:"roomId"`
	Accepted      bool   `json:"accepted"`
	ResponderID   string `json:"responderId"`
	ResponderName string `json:"responderName"`
	NewRoomID     string `json:"newRoomId,omitempty"`
}

// ErrorEvent reports a rejected command back to its sender only.
type ErrorEvent struct {
	RoomID  string `json:"roomId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
