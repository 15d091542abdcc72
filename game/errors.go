package game

import "errors"

var (
	// ErrNotYourTurn rejects a guess from the non-current player.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrRoomNotActive rejects mutations on a run that is not active.
	ErrRoomNotActive = errors.New("room is not active")
	// ErrInvalidWordLength rejects a guess of the wrong length.
	ErrInvalidWordLength = errors.New("invalid word length")
	// ErrWordNotAllowed rejects a candidate the evaluator does not recognize.
	ErrWordNotAllowed = errors.New("word not allowed")
	// ErrNotInRun rejects commands from users outside the run.
	ErrNotInRun = errors.New("player is not part of this run")
)
