// game/run.go
//
// The turn engine. A Run owns the authoritative state of one
// cooperative word-guessing round: the current target word, the
// recorded guesses, whose turn it is, and the terminal outcome. A Run
// is not safe for concurrent use on its own; the owning room processes
// commands for it serially.
package game

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/words"
)

// Run is one live round shared by two players.
type Run struct {
	id             string
	status         models.RunStatus
	reason         models.EndReason
	players        [2]string // seat order; players[0] starts
	currentTurn    int       // index into players
	target         string
	maxAttempts    int
	attemptsUsed   int
	guesses        []models.Guess
	history        []models.WordResult
	score          int
	wordsCompleted int
	evaluator      words.Evaluator
	supplier       words.Supplier
}

// GuessOutcome tells the caller which events an accepted guess implies.
type GuessOutcome struct {
	Guess         models.Guess
	WordCompleted bool
	CompletedWord string
	TurnChanged   bool
	GameOver      bool
}

// NewRun starts a round for the two seated players. The first seat
// takes the first turn.
func NewRun(players [2]string, maxAttempts int, evaluator words.Evaluator, supplier words.Supplier) (*Run, error) {
	target, ok := supplier.Draw()
	if !ok {
		return nil, errors.New("game: word supplier is empty")
	}
	return &Run{
		id:          uuid.New().String(),
		status:      models.RunActive,
		players:     players,
		currentTurn: 0,
		target:      target,
		maxAttempts: maxAttempts,
		evaluator:   evaluator,
		supplier:    supplier,
	}, nil
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Status returns the current run status.
func (r *Run) Status() models.RunStatus {
	return r.status
}

// Reason returns how the run ended, empty while active.
func (r *Run) Reason() models.EndReason {
	return r.reason
}

// CurrentTurnPlayerID returns the id of the player who may guess next.
func (r *Run) CurrentTurnPlayerID() string {
	return r.players[r.currentTurn]
}

// SubmitGuess validates and applies one guess. Rejections leave the run
// untouched; the pattern comes exclusively from the evaluator so the
// server stays authoritative.
func (r *Run) SubmitGuess(userID, guessWord string) (*GuessOutcome, error) {
	if r.status != models.RunActive {
		return nil, ErrRoomNotActive
	}
	if !r.hasPlayer(userID) {
		return nil, ErrNotInRun
	}
	if r.CurrentTurnPlayerID() != userID {
		return nil, ErrNotYourTurn
	}

	guessWord = strings.ToLower(strings.TrimSpace(guessWord))
	if len(guessWord) != len(r.target) {
		return nil, ErrInvalidWordLength
	}

	pattern, err := r.evaluator.Evaluate(r.target, guessWord)
	if err != nil {
		if errors.Is(err, words.ErrNotAllowed) {
			return nil, ErrWordNotAllowed
		}
		if errors.Is(err, words.ErrLengthMismatch) {
			return nil, ErrInvalidWordLength
		}
		return nil, err
	}

	r.attemptsUsed++
	guess := models.Guess{
		GuessWord:     guessWord,
		Pattern:       pattern,
		AttemptNumber: r.attemptsUsed,
		PlayerID:      userID,
		CreatedAt:     time.Now(),
	}
	r.guesses = append(r.guesses, guess)

	outcome := &GuessOutcome{Guess: guess}

	switch {
	case words.AllCorrect(pattern):
		outcome.WordCompleted = true
		outcome.CompletedWord = r.target
		r.completeWord()
		if r.status == models.RunActive {
			r.flipTurn()
			outcome.TurnChanged = true
		} else {
			outcome.GameOver = true
		}
	case r.attemptsUsed >= r.maxAttempts:
		r.failWord(models.ReasonFailed)
		outcome.GameOver = true
	default:
		r.flipTurn()
		outcome.TurnChanged = true
	}

	return outcome, nil
}

// Abandon ends the run immediately regardless of whose turn it is. It
// is a no-op on an already terminal run.
func (r *Run) Abandon(userID string) error {
	if r.status != models.RunActive {
		return ErrRoomNotActive
	}
	if !r.hasPlayer(userID) {
		return ErrNotInRun
	}
	r.failWord(models.ReasonAbandoned)
	return nil
}

// Score returns the accumulated score.
func (r *Run) Score() int {
	return r.score
}

// WordsCompleted returns how many words have been solved.
func (r *Run) WordsCompleted() int {
	return r.wordsCompleted
}

// NextWord describes the current target without exposing its content.
// Nil once the run is terminal.
func (r *Run) NextWord() *models.NextWord {
	if r.status != models.RunActive {
		return nil
	}
	return &models.NextWord{
		Length:            len(r.target),
		RemainingAttempts: r.maxAttempts - r.attemptsUsed,
	}
}

// Snapshot produces the client-facing view of the run.
func (r *Run) Snapshot() models.RunState {
	guesses := make([]models.Guess, len(r.guesses))
	copy(guesses, r.guesses)
	history := make([]models.WordResult, len(r.history))
	copy(history, r.history)

	return models.RunState{
		RunID:               r.id,
		Status:              r.status,
		Reason:              r.reason,
		CurrentScore:        r.score,
		WordsCompleted:      r.wordsCompleted,
		AttemptsUsed:        r.attemptsUsed,
		MaxAttempts:         r.maxAttempts,
		NextWord:            r.NextWord(),
		Guesses:             guesses,
		History:             history,
		CurrentTurnPlayerID: r.CurrentTurnPlayerID(),
	}
}

func (r *Run) hasPlayer(userID string) bool {
	return r.players[0] == userID || r.players[1] == userID
}

func (r *Run) flipTurn() {
	r.currentTurn = 1 - r.currentTurn
}

// completeWord records a solved word, bumps the score and loads the
// next target. The run completes when the supplier runs dry.
func (r *Run) completeWord() {
	r.wordsCompleted++
	r.score++
	r.history = append(r.history, models.WordResult{
		Order:        r.wordsCompleted,
		Result:       "won",
		AttemptsUsed: r.attemptsUsed,
	})
	r.guesses = r.guesses[:0]
	r.attemptsUsed = 0

	next, ok := r.supplier.Draw()
	if !ok {
		r.reason = models.ReasonCompleted
		r.target = ""
		r.transition(models.RunCompleted)
		return
	}
	r.target = next
}

func (r *Run) failWord(reason models.EndReason) {
	r.history = append(r.history, models.WordResult{
		Order:        r.wordsCompleted + 1,
		Result:       "lost",
		AttemptsUsed: r.attemptsUsed,
	})
	r.reason = reason
	r.transition(models.RunFailed)
}
