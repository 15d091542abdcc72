// reconcile/reconcile.go
//
// Client-side merge of three independent sources of run state: the
// initial REST snapshot, live push events, and fallback re-fetches.
// Events may be lost, duplicated or reordered; the merge is keyed by
// the monotonically increasing attempt count so a stale source can
// never overwrite a fresher one.
package reconcile

import (
	"sort"

	"github.com/yagpdc/words-game/models"
)

// View is the local, transport-independent picture of a run.
type View struct {
	RunID               string
	Status              models.RunStatus
	CurrentScore        int
	WordsCompleted      int
	AttemptsUsed        int
	MaxAttempts         int
	NextWordLength      int
	Guesses             []models.Guess
	CurrentTurnPlayerID string

	// pending holds guess events that arrived ahead of the view,
	// waiting for the gap (or the word-completed reset) to close.
	pending []models.GuessMadeEvent

	needsRefetch bool
	synced       bool
}

// NewView returns an empty view. Events received before the first
// snapshot are buffered, never applied.
func NewView() *View {
	return &View{}
}

// Synced reports whether a snapshot has been applied yet.
func (v *View) Synced() bool {
	return v.synced
}

// NeedsRefetch reports whether the view has detected a gap it cannot
// close from buffered events alone. Cleared by the next snapshot, or
// when late deliveries close the gap after all.
func (v *View) NeedsRefetch() bool {
	return v.needsRefetch
}

// ApplySnapshot replaces the view with authoritative state. A snapshot
// older than the current view (lower attempt count within the same
// word sequence) is discarded and false is returned.
func (v *View) ApplySnapshot(s models.RunState) bool {
	if v.synced && v.isStaleSnapshot(s) {
		return false
	}

	v.RunID = s.RunID
	v.Status = s.Status
	v.CurrentScore = s.CurrentScore
	v.WordsCompleted = s.WordsCompleted
	v.AttemptsUsed = s.AttemptsUsed
	v.MaxAttempts = s.MaxAttempts
	v.Guesses = append(v.Guesses[:0], s.Guesses...)
	v.CurrentTurnPlayerID = s.CurrentTurnPlayerID
	if s.NextWord != nil {
		v.NextWordLength = s.NextWord.Length
	}
	v.synced = true
	v.needsRefetch = false
	v.drainPending()
	return true
}

func (v *View) isStaleSnapshot(s models.RunState) bool {
	if s.RunID != v.RunID {
		return false
	}
	if s.WordsCompleted != v.WordsCompleted {
		return s.WordsCompleted < v.WordsCompleted
	}
	return s.AttemptsUsed < v.AttemptsUsed
}

// ApplyGuessMade merges one guess event. Appends only when the event is
// exactly the next attempt; duplicates are dropped, gaps buffer the
// event and eventually flag a re-fetch.
func (v *View) ApplyGuessMade(e models.GuessMadeEvent) {
	if !v.synced {
		v.buffer(e)
		return
	}
	v.applyOrBuffer(e)
}

func (v *View) applyOrBuffer(e models.GuessMadeEvent) {
	switch {
	case e.AttemptNumber == v.AttemptsUsed+1:
		v.Guesses = append(v.Guesses, e.Guess)
		v.AttemptsUsed = e.AttemptNumber
		v.drainPending()
	case e.AttemptNumber <= v.AttemptsUsed:
		if v.isRecorded(e) {
			return // duplicate delivery
		}
		// Same attempt number but a different word: this guess belongs
		// to the next word and must wait for word-completed.
		v.buffer(e)
	default:
		v.buffer(e)
		// A gap of more than one attempt with nothing pending to fill
		// it means an event was lost.
		if !v.pendingCovers(v.AttemptsUsed + 1) {
			v.needsRefetch = true
		}
	}
}

// isRecorded reports whether the event matches a guess the view has
// already applied at that attempt position.
func (v *View) isRecorded(e models.GuessMadeEvent) bool {
	i := e.AttemptNumber - 1
	return i >= 0 && i < len(v.Guesses) && v.Guesses[i].GuessWord == e.Guess.GuessWord
}

// ApplyTurnChanged is last-write-wins: a single scalar, always safe.
func (v *View) ApplyTurnChanged(e models.TurnChangedEvent) {
	v.CurrentTurnPlayerID = e.CurrentTurnPlayerID
}

// ApplyWordCompleted resets the attempt counter for the next word and
// then drains any guesses buffered for it.
func (v *View) ApplyWordCompleted(e models.WordCompletedEvent) {
	if !v.synced {
		return
	}
	v.WordsCompleted++
	v.CurrentScore = e.CurrentScore
	v.AttemptsUsed = 0
	v.Guesses = v.Guesses[:0]
	if e.NextWord != nil {
		v.NextWordLength = e.NextWord.Length
	}
	v.drainPending()
}

// ApplyGameOver moves the view to its terminal state.
func (v *View) ApplyGameOver(e models.GameOverEvent) {
	v.CurrentScore = e.FinalScore
	v.WordsCompleted = e.WordsCompleted
	switch e.Reason {
	case models.ReasonCompleted:
		v.Status = models.RunCompleted
	default:
		v.Status = models.RunFailed
	}
	v.pending = v.pending[:0]
}

func (v *View) buffer(e models.GuessMadeEvent) {
	for _, p := range v.pending {
		if p.AttemptNumber == e.AttemptNumber && p.Guess.GuessWord == e.Guess.GuessWord {
			return
		}
	}
	v.pending = append(v.pending, e)
}

// drainPending applies buffered events that have become contiguous.
func (v *View) drainPending() {
	if len(v.pending) == 0 {
		return
	}
	sort.SliceStable(v.pending, func(i, j int) bool {
		return v.pending[i].AttemptNumber < v.pending[j].AttemptNumber
	})
	progressed := true
	for progressed {
		progressed = false
		rest := v.pending[:0]
		for _, e := range v.pending {
			switch {
			case e.AttemptNumber == v.AttemptsUsed+1 && !v.isRecorded(e):
				v.Guesses = append(v.Guesses, e.Guess)
				v.AttemptsUsed = e.AttemptNumber
				progressed = true
			case e.AttemptNumber <= v.AttemptsUsed && v.isRecorded(e):
				// Duplicate; drop.
			default:
				// Either ahead of the view or a next-word guess still
				// waiting for its word-completed reset.
				rest = append(rest, e)
			}
		}
		v.pending = rest
	}
	if !v.gapRemains() {
		v.needsRefetch = false
	}
}

// gapRemains reports whether a buffered event is still ahead of the
// view, meaning some attempt between them was never delivered.
func (v *View) gapRemains() bool {
	for _, e := range v.pending {
		if e.AttemptNumber > v.AttemptsUsed {
			return true
		}
	}
	return false
}

func (v *View) pendingCovers(attempt int) bool {
	for _, e := range v.pending {
		if e.AttemptNumber == attempt {
			return true
		}
	}
	return false
}
