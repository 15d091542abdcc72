// room/room.go
//
// A Room is a two-seat container for sequential co-op rounds. Every
// mutation goes through the room's command loop, so commands for one
// room are processed strictly one at a time (single writer) while
// different rooms stay fully independent.
package room

import (
	"sync"
	"time"

	"github.com/yagpdc/words-game/game"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/network"
)

const maxSeats = 2

// RunFactory builds a fresh run for the two seated players.
type RunFactory func(players [2]string) (*game.Run, error)

// FinishFunc receives the record of a finished round. It is invoked on
// its own goroutine so persistence never blocks the command loop.
type FinishFunc func(record models.GameRecord)

type Room struct {
	id          string
	creatorID   string
	status      models.RoomStatus
	players     []models.Player
	run         *game.Run
	gamesPlayed int
	createdAt   time.Time
	startedAt   *time.Time
	finishedAt  *time.Time

	broadcaster Broadcaster
	newRun      RunFactory
	onFinished  FinishFunc

	cmds      chan func()
	closeChan chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

func newRoom(id string, creator models.Player, b Broadcaster, f RunFactory, fin FinishFunc) *Room {
	creator.IsCreator = true
	r := &Room{
		id:          id,
		creatorID:   creator.UserID,
		status:      models.RoomWaiting,
		players:     []models.Player{creator},
		createdAt:   time.Now(),
		broadcaster: b,
		newRun:      f,
		onFinished:  fin,
		cmds:        make(chan func(), 16),
		closeChan:   make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// loop drains the command channel until the room is closed, then runs
// whatever was already queued and closes doneChan so waiting callers
// never block on a loop that is gone.
func (r *Room) loop() {
	defer close(r.doneChan)
	for {
		select {
		case cmd := <-r.cmds:
			cmd()
		case <-r.closeChan:
			for {
				select {
				case cmd := <-r.cmds:
					cmd()
				default:
					return
				}
			}
		}
	}
}

// do runs fn on the room's command loop and waits for it to finish. On
// a closed room the call is a no-op and the caller sees zero values.
func (r *Room) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.cmds <- func() {
		fn()
		close(done)
	}:
		select {
		case <-done:
		case <-r.doneChan:
		}
	case <-r.doneChan:
	}
}

// Close stops the command loop. Further commands become no-ops.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// JoinResult reports what a join attempt changed.
type JoinResult struct {
	Already bool // the user was seated before this call
	Started bool // this join filled the second seat and started the run
}

// join seats a player. Re-joining is idempotent: no duplicate seat and
// no repeated player-joined event for the rejoining member.
func (r *Room) join(p models.Player) (JoinResult, error) {
	var res JoinResult
	var err error
	r.do(func() {
		for _, seated := range r.players {
			if seated.UserID == p.UserID {
				res.Already = true
				return
			}
		}
		if r.status == models.RoomFinished {
			err = game.ErrRoomNotActive
			return
		}
		if len(r.players) >= maxSeats {
			err = ErrRoomFull
			return
		}

		r.players = append(r.players, p)
		for _, other := range r.players[:len(r.players)-1] {
			r.broadcaster.SendToUser(other.UserID, network.MsgTypePlayerJoined, models.PlayerJoinedEvent{
				RoomID:       r.id,
				Player:       p,
				PlayersCount: len(r.players),
			})
		}

		if len(r.players) == maxSeats {
			err = r.startRun()
			res.Started = err == nil
		}
	})
	return res, err
}

func (r *Room) startRun() error {
	run, err := r.newRun([2]string{r.players[0].UserID, r.players[1].UserID})
	if err != nil {
		return err
	}
	now := time.Now()
	r.run = run
	r.status = models.RoomPlaying
	r.startedAt = &now

	r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeGameStarted, models.GameStartedEvent{
		RoomID:              r.id,
		Run:                 run.Snapshot(),
		CurrentTurnPlayerID: run.CurrentTurnPlayerID(),
	})
	return nil
}

// LeaveResult reports what a leave changed.
type LeaveResult struct {
	Abandoned bool // the leave ended a live run
	Empty     bool // the room has no players left
}

// leave removes a player. Leaving a live run is an abandonment and is
// processed before the seat is released.
func (r *Room) leave(userID string) (LeaveResult, error) {
	var res LeaveResult
	var err error
	r.do(func() {
		idx := -1
		for i, seated := range r.players {
			if seated.UserID == userID {
				idx = i
				break
			}
		}
		if idx < 0 {
			err = ErrNotInRoom
			return
		}
		leaving := r.players[idx]

		if r.status == models.RoomPlaying && r.run != nil && r.run.Status() == models.RunActive {
			r.abandonRun(leaving)
			res.Abandoned = true
		}

		r.players = append(r.players[:idx], r.players[idx+1:]...)
		res.Empty = len(r.players) == 0

		for _, other := range r.players {
			r.broadcaster.SendToUser(other.UserID, network.MsgTypePlayerLeft, models.PlayerLeftEvent{
				RoomID:     r.id,
				PlayerID:   leaving.UserID,
				PlayerName: leaving.Name,
			})
		}
	})
	return res, err
}

// Abandon ends the live run without releasing the player's seat.
func (r *Room) Abandon(userID string) error {
	var err error
	r.do(func() {
		if r.status != models.RoomPlaying || r.run == nil {
			err = game.ErrRoomNotActive
			return
		}
		var who *models.Player
		for i := range r.players {
			if r.players[i].UserID == userID {
				who = &r.players[i]
				break
			}
		}
		if who == nil {
			err = ErrNotInRoom
			return
		}
		if abandonErr := r.run.Abandon(userID); abandonErr != nil {
			err = abandonErr
			return
		}
		r.emitAbandoned(*who)
		r.finish()
	})
	return err
}

// abandonRun handles the abandonment half of a leave. Caller runs on
// the command loop.
func (r *Room) abandonRun(leaving models.Player) {
	if err := r.run.Abandon(leaving.UserID); err != nil {
		logger.Log.Errorf("room %s: abandon on leave: %v", r.id, err)
		return
	}
	r.emitAbandoned(leaving)
	r.finish()
}

func (r *Room) emitAbandoned(who models.Player) {
	r.broadcaster.BroadcastToRoom(r.id, network.MsgTypePlayerAbandoned, models.PlayerAbandonedEvent{
		RoomID:     r.id,
		PlayerID:   who.UserID,
		PlayerName: who.Name,
	})
	r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeGameOver, models.GameOverEvent{
		RoomID:         r.id,
		FinalScore:     r.run.Score(),
		WordsCompleted: r.run.WordsCompleted(),
		Reason:         models.ReasonAbandoned,
	})
}

// SubmitGuess applies one guess through the turn engine and pushes the
// implied events to both members.
func (r *Room) SubmitGuess(userID, guessWord string) (models.RunState, error) {
	var state models.RunState
	var err error
	r.do(func() {
		if r.status != models.RoomPlaying || r.run == nil {
			err = game.ErrRoomNotActive
			return
		}

		outcome, guessErr := r.run.SubmitGuess(userID, guessWord)
		if guessErr != nil {
			err = guessErr
			return
		}

		r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeGuessMade, models.GuessMadeEvent{
			RoomID:        r.id,
			PlayerID:      userID,
			PlayerName:    r.playerName(userID),
			Guess:         outcome.Guess,
			AttemptNumber: outcome.Guess.AttemptNumber,
		})

		if outcome.WordCompleted {
			r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeWordCompleted, models.WordCompletedEvent{
				RoomID:       r.id,
				Word:         outcome.CompletedWord,
				NextWord:     r.run.NextWord(),
				CurrentScore: r.run.Score(),
			})
		}

		if outcome.TurnChanged {
			next := r.run.CurrentTurnPlayerID()
			r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeTurnChanged, models.TurnChangedEvent{
				RoomID:                r.id,
				CurrentTurnPlayerID:   next,
				CurrentTurnPlayerName: r.playerName(next),
			})
		}

		if outcome.GameOver {
			r.broadcaster.BroadcastToRoom(r.id, network.MsgTypeGameOver, models.GameOverEvent{
				RoomID:         r.id,
				FinalScore:     r.run.Score(),
				WordsCompleted: r.run.WordsCompleted(),
				Reason:         r.run.Reason(),
			})
			r.finish()
		}

		state = r.run.Snapshot()
	})
	return state, err
}

// finish transitions the room to its one-and-only finished state.
// Caller runs on the command loop.
func (r *Room) finish() {
	if r.status == models.RoomFinished {
		return
	}
	now := time.Now()
	r.status = models.RoomFinished
	r.finishedAt = &now

	if r.onFinished != nil {
		record := models.GameRecord{
			RoomID:         r.id,
			Players:        append([]models.Player(nil), r.players...),
			FinalScore:     r.run.Score(),
			WordsCompleted: r.run.WordsCompleted(),
			Reason:         r.run.Reason(),
			CreatedAt:      now,
		}
		if r.startedAt != nil {
			record.Duration = int(now.Sub(*r.startedAt).Seconds())
		}
		go r.onFinished(record)
	}
}

// sweepEligible reports whether the garbage collector may take the
// room: nobody seated, or finished longer than finishedTTL ago.
func (r *Room) sweepEligible(now time.Time, finishedTTL time.Duration) bool {
	var ok bool
	r.do(func() {
		if len(r.players) == 0 {
			ok = true
			return
		}
		if r.status == models.RoomFinished && r.finishedAt != nil &&
			now.Sub(*r.finishedAt) >= finishedTTL {
			ok = true
		}
	})
	return ok
}

// Status returns the room's lifecycle state.
func (r *Room) Status() models.RoomStatus {
	var status models.RoomStatus
	r.do(func() {
		status = r.status
	})
	return status
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	var n int
	r.do(func() {
		n = len(r.players)
	})
	return n
}

// Players returns a copy of the seated players in join order.
func (r *Room) Players() []models.Player {
	var players []models.Player
	r.do(func() {
		players = append([]models.Player(nil), r.players...)
	})
	return players
}

// HasPlayer reports whether the user holds a seat.
func (r *Room) HasPlayer(userID string) bool {
	var found bool
	r.do(func() {
		for _, p := range r.players {
			if p.UserID == userID {
				found = true
				return
			}
		}
	})
	return found
}

// RunSnapshot returns the live run state, false if no run exists.
func (r *Room) RunSnapshot() (models.RunState, bool) {
	var state models.RunState
	var ok bool
	r.do(func() {
		if r.run != nil {
			state = r.run.Snapshot()
			ok = true
		}
	})
	return state, ok
}

// Snapshot returns the wire shape of the room.
func (r *Room) Snapshot() models.Room {
	var snap models.Room
	r.do(func() {
		snap = models.Room{
			RoomID:      r.id,
			CreatorID:   r.creatorID,
			Players:     append([]models.Player(nil), r.players...),
			Status:      r.status,
			GamesPlayed: r.gamesPlayed,
			CreatedAt:   r.createdAt,
			StartedAt:   r.startedAt,
			FinishedAt:  r.finishedAt,
		}
		if r.run != nil {
			snap.RunID = r.run.ID()
		}
	})
	return snap
}

func (r *Room) playerName(userID string) string {
	for _, p := range r.players {
		if p.UserID == userID {
			return p.Name
		}
	}
	return ""
}
