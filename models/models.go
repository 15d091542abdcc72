// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// RoomStatus is the lifecycle state of a co-op room.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// RunStatus is the lifecycle state of the puzzle run bound to a playing room.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// EndReason distinguishes how a run reached a terminal state.
type EndReason string

const (
	ReasonCompleted EndReason = "completed"
	ReasonFailed    EndReason = "failed"
	ReasonAbandoned EndReason = "abandoned"
)

// Player is a membership record inside a room, not an identity.
// Avatar is an opaque blob passed through to clients untouched.
type Player struct {
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Avatar    json.RawMessage `json:"avatar,omitempty"`
	IsCreator bool            `json:"isCreator"`
}

// Room is the wire shape of a co-op room.
type Room struct {
	RoomID      string     `json:"roomId"`
	CreatorID   string     `json:"creatorId"`
	Players     []Player   `json:"players"`
	Status      RoomStatus `json:"status"`
	RunID       string     `json:"runId,omitempty"`
	GamesPlayed int        `json:"gamesPlayed"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Guess is one recorded attempt. Immutable once appended.
type Guess struct {
	GuessWord     string    `json:"guessWord"`
	Pattern       string    `json:"pattern"`
	AttemptNumber int       `json:"attemptNumber"`
	PlayerID      string    `json:"playerId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NextWord describes the current target without revealing its content.
type NextWord struct {
	Length            int `json:"length"`
	RemainingAttempts int `json:"remainingAttempts"`
}

// WordResult summarizes one finished word within a run.
type WordResult struct {
	Order        int    `json:"order"`
	Result       string `json:"result"` // "won" or "lost"
	AttemptsUsed int    `json:"attemptsUsed"`
}

// RunState is the client-facing snapshot of a run. Guesses and
// AttemptsUsed cover the current word only; completed words move to
// History.
type RunState struct {
	RunID               string       `json:"runId"`
	Status              RunStatus    `json:"status"`
	Reason              EndReason    `json:"reason,omitempty"`
	CurrentScore        int          `json:"currentScore"`
	WordsCompleted      int          `json:"wordsCompleted"`
	AttemptsUsed        int          `json:"attemptsUsed"`
	MaxAttempts         int          `json:"maxAttempts"`
	NextWord            *NextWord    `json:"nextWord"`
	Guesses             []Guess      `json:"guesses"`
	History             []WordResult `json:"history,omitempty"`
	CurrentTurnPlayerID string       `json:"currentTurnPlayerId"`
}

// GameRecord is one completed round, persisted when a room finishes.
type GameRecord struct {
	RoomID         string    `json:"room_id"`
	Players        []Player  `json:"players"`
	FinalScore     int       `json:"final_score"`
	WordsCompleted int       `json:"words_completed"`
	Reason         EndReason `json:"reason"`
	Duration       int       `json:"duration"` // seconds
	CreatedAt      time.Time `json:"created_at"`
}

// PlayerStats aggregates a player's co-op results.
type PlayerStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	BestScore  int `json:"best_score"`
	TotalScore int `json:"total_score"`
}
