package room

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/yagpdc/words-game/game"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/network"
	"github.com/yagpdc/words-game/words"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

type sentEvent struct {
	target string // roomID for broadcasts, userID for directs
	direct bool
	msgID  uint16
	event  interface{}
}

// MockBroadcaster records every event instead of pushing it to sockets.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{target: roomID, msgID: msgID, event: event})
	return nil
}

func (b *MockBroadcaster) SendToUser(userID string, msgID uint16, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{target: userID, direct: true, msgID: msgID, event: event})
	return nil
}

func (b *MockBroadcaster) byMsg(msgID uint16) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, e := range b.events {
		if e.msgID == msgID {
			out = append(out, e)
		}
	}
	return out
}

func (b *MockBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type seqSupplier struct {
	words []string
	next  int
}

func (s *seqSupplier) Draw() (string, bool) {
	if s.next >= len(s.words) {
		return "", false
	}
	w := s.words[s.next]
	s.next++
	return w, true
}

// testFactory deals the given targets to every run it creates.
func testFactory(targets ...string) RunFactory {
	evaluator := words.NewListFromWords(
		[]string{"crane", "slate"},
		[]string{"crane", "slate", "stone", "brick"},
		5,
	)
	return func(players [2]string) (*game.Run, error) {
		return game.NewRun(players, 6, evaluator, &seqSupplier{words: append([]string(nil), targets...)})
	}
}

func player(id string) models.Player {
	return models.Player{UserID: id, Name: "name-" + id}
}

func newTestManager(targets ...string) (*Manager, *MockBroadcaster, chan models.GameRecord) {
	b := &MockBroadcaster{}
	records := make(chan models.GameRecord, 4)
	m := NewManager(b, testFactory(targets...), func(rec models.GameRecord) {
		records <- rec
	})
	return m, b, records
}

func waitRecord(t *testing.T, records chan models.GameRecord) models.GameRecord {
	t.Helper()
	select {
	case rec := <-records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the finish record")
		return models.GameRecord{}
	}
}

func TestManager_CreateRoom(t *testing.T) {
	m, _, _ := newTestManager("crane")

	r, err := m.CreateRoom(player("alice"))
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	if len(r.ID()) != roomCodeLength {
		t.Errorf("Expected a %d-char room code, got %q", roomCodeLength, r.ID())
	}
	if r.Status() != models.RoomWaiting {
		t.Errorf("Expected waiting status, got %s", r.Status())
	}
	if r.PlayerCount() != 1 {
		t.Errorf("Expected 1 seated player, got %d", r.PlayerCount())
	}
	if !r.Players()[0].IsCreator {
		t.Error("Creator seat should carry the creator flag")
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 live room, got %d", m.Count())
	}
}

func TestManager_JoinStartsRun(t *testing.T) {
	m, b, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))

	joined, res, err := m.JoinRoom(r.ID(), player("bob"))
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if !res.Started {
		t.Error("Second seat should start the run")
	}
	if joined.Status() != models.RoomPlaying {
		t.Errorf("Expected playing status, got %s", joined.Status())
	}

	// The creator hears about the join; the joiner learns via game-started.
	joins := b.byMsg(network.MsgTypePlayerJoined)
	if len(joins) != 1 || !joins[0].direct || joins[0].target != "alice" {
		t.Fatalf("Expected one player-joined event to alice, got %+v", joins)
	}

	starts := b.byMsg(network.MsgTypeGameStarted)
	if len(starts) != 1 {
		t.Fatalf("Expected one game-started broadcast, got %d", len(starts))
	}
	started := starts[0].event.(models.GameStartedEvent)
	if started.CurrentTurnPlayerID != "alice" {
		t.Errorf("Expected creator to take the first turn, got %s", started.CurrentTurnPlayerID)
	}
	if started.Run.NextWord == nil || started.Run.NextWord.Length != 5 {
		t.Error("Game-started event should carry next word metadata")
	}
}

func TestManager_RejoinIsIdempotent(t *testing.T) {
	m, b, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	b.reset()

	_, res, err := m.JoinRoom(r.ID(), player("bob"))
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	if !res.Already {
		t.Error("Rejoin should report Already")
	}
	if res.Started {
		t.Error("Rejoin must not restart the run")
	}
	if r.PlayerCount() != 2 {
		t.Errorf("Expected 2 seats after rejoin, got %d", r.PlayerCount())
	}
	if joins := b.byMsg(network.MsgTypePlayerJoined); len(joins) != 0 {
		t.Errorf("Rejoin must not emit player-joined, got %d", len(joins))
	}
}

func TestManager_SingleActiveRoomPerUser(t *testing.T) {
	m, _, _ := newTestManager("crane")
	if _, err := m.CreateRoom(player("alice")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	if _, err := m.CreateRoom(player("alice")); err != ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom on second create, got %v", err)
	}

	other, _ := m.CreateRoom(player("carol"))
	if _, _, err := m.JoinRoom(other.ID(), player("alice")); err != ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom on cross join, got %v", err)
	}
	if other.PlayerCount() != 1 {
		t.Errorf("Rejected join must not seat the player, got %d", other.PlayerCount())
	}
}

func TestManager_RoomFull(t *testing.T) {
	m, _, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))

	if _, _, err := m.JoinRoom(r.ID(), player("carol")); err != ErrRoomFull {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}

	// The failed join must roll back carol's seat reservation.
	if _, err := m.CreateRoom(player("carol")); err != nil {
		t.Errorf("Carol should be free to create after a failed join: %v", err)
	}
}

func TestManager_JoinUnknownRoom(t *testing.T) {
	m, _, _ := newTestManager("crane")
	if _, _, err := m.JoinRoom("NOSUCH", player("bob")); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoom_GuessEmitsEvents(t *testing.T) {
	m, b, _ := newTestManager("crane", "slate")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	b.reset()

	state, err := r.SubmitGuess("alice", "stone")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if state.AttemptsUsed != 1 {
		t.Errorf("Expected 1 attempt used, got %d", state.AttemptsUsed)
	}

	made := b.byMsg(network.MsgTypeGuessMade)
	if len(made) != 1 {
		t.Fatalf("Expected one guess-made broadcast, got %d", len(made))
	}
	e := made[0].event.(models.GuessMadeEvent)
	if e.PlayerID != "alice" || e.AttemptNumber != 1 {
		t.Errorf("Unexpected guess-made event: %+v", e)
	}

	turns := b.byMsg(network.MsgTypeTurnChanged)
	if len(turns) != 1 {
		t.Fatalf("Expected one turn-changed broadcast, got %d", len(turns))
	}
	turn := turns[0].event.(models.TurnChangedEvent)
	if turn.CurrentTurnPlayerID != "bob" {
		t.Errorf("Expected turn to pass to bob, got %s", turn.CurrentTurnPlayerID)
	}

	if over := b.byMsg(network.MsgTypeGameOver); len(over) != 0 {
		t.Errorf("Mid-run guess must not emit game-over, got %d", len(over))
	}
}

func TestRoom_WordCompletedMidRun(t *testing.T) {
	m, b, _ := newTestManager("crane", "slate")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	b.reset()

	if _, err := r.SubmitGuess("alice", "crane"); err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}

	completed := b.byMsg(network.MsgTypeWordCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected one word-completed broadcast, got %d", len(completed))
	}
	e := completed[0].event.(models.WordCompletedEvent)
	if e.Word != "crane" || e.CurrentScore != 1 {
		t.Errorf("Unexpected word-completed event: %+v", e)
	}
	if e.NextWord == nil {
		t.Error("Mid-run completion should announce the next word")
	}
	if len(b.byMsg(network.MsgTypeTurnChanged)) != 1 {
		t.Error("Completion of a non-final word should pass the turn")
	}
	if r.Status() != models.RoomPlaying {
		t.Errorf("Room should stay in playing, got %s", r.Status())
	}
}

func TestRoom_GameOverFinishesRoom(t *testing.T) {
	m, b, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	b.reset()

	if _, err := r.SubmitGuess("alice", "crane"); err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}

	over := b.byMsg(network.MsgTypeGameOver)
	if len(over) != 1 {
		t.Fatalf("Expected one game-over broadcast, got %d", len(over))
	}
	e := over[0].event.(models.GameOverEvent)
	if e.Reason != models.ReasonCompleted || e.FinalScore != 1 || e.WordsCompleted != 1 {
		t.Errorf("Unexpected game-over event: %+v", e)
	}
	if len(b.byMsg(network.MsgTypeTurnChanged)) != 0 {
		t.Error("Terminal guess must not pass the turn")
	}
	if r.Status() != models.RoomFinished {
		t.Errorf("Expected finished room, got %s", r.Status())
	}

	rec := waitRecord(t, records)
	if rec.RoomID != r.ID() || rec.FinalScore != 1 || rec.Reason != models.ReasonCompleted {
		t.Errorf("Unexpected finish record: %+v", rec)
	}
	if len(rec.Players) != 2 {
		t.Errorf("Record should keep both players, got %d", len(rec.Players))
	}

	// Finished rooms absorb further guesses.
	if _, err := r.SubmitGuess("bob", "crane"); err != game.ErrRoomNotActive {
		t.Errorf("Expected ErrRoomNotActive after finish, got %v", err)
	}
}

func TestManager_LeaveWhilePlayingAbandons(t *testing.T) {
	m, b, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	b.reset()

	res, err := m.LeaveRoom(r.ID(), "bob")
	if err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}
	if !res.Abandoned {
		t.Error("Leaving a live run should count as abandonment")
	}

	abandoned := b.byMsg(network.MsgTypePlayerAbandoned)
	if len(abandoned) != 1 {
		t.Fatalf("Expected one player-abandoned broadcast, got %d", len(abandoned))
	}
	if e := abandoned[0].event.(models.PlayerAbandonedEvent); e.PlayerID != "bob" {
		t.Errorf("Unexpected abandoned event: %+v", e)
	}

	over := b.byMsg(network.MsgTypeGameOver)
	if len(over) != 1 {
		t.Fatalf("Expected one game-over broadcast, got %d", len(over))
	}
	if e := over[0].event.(models.GameOverEvent); e.Reason != models.ReasonAbandoned {
		t.Errorf("Expected reason abandoned, got %s", e.Reason)
	}

	left := b.byMsg(network.MsgTypePlayerLeft)
	if len(left) != 1 || !left[0].direct || left[0].target != "alice" {
		t.Fatalf("Expected player-left delivered to alice only, got %+v", left)
	}

	if rec := waitRecord(t, records); rec.Reason != models.ReasonAbandoned {
		t.Errorf("Expected abandoned record, got %+v", rec)
	}

	// Bob's seat is released; he can open a new room right away.
	if _, err := m.CreateRoom(player("bob")); err != nil {
		t.Errorf("Leaver should be free to create: %v", err)
	}
}

func TestRoom_AbandonKeepsSeat(t *testing.T) {
	m, b, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))

	// No live run yet.
	if err := r.Abandon("alice"); err != game.ErrRoomNotActive {
		t.Fatalf("Expected ErrRoomNotActive on a waiting room, got %v", err)
	}

	m.JoinRoom(r.ID(), player("bob"))
	if err := r.Abandon("mallory"); err != ErrNotInRoom {
		t.Fatalf("Expected ErrNotInRoom for an outsider, got %v", err)
	}
	b.reset()

	if err := r.Abandon("bob"); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	if r.Status() != models.RoomFinished {
		t.Errorf("Expected finished room, got %s", r.Status())
	}
	if !r.HasPlayer("bob") {
		t.Error("Abandon must not release the player's seat")
	}
	if len(b.byMsg(network.MsgTypePlayerAbandoned)) != 1 {
		t.Error("Expected a player-abandoned broadcast")
	}
	over := b.byMsg(network.MsgTypeGameOver)
	if len(over) != 1 {
		t.Fatalf("Expected one game-over broadcast, got %d", len(over))
	}
	if e := over[0].event.(models.GameOverEvent); e.Reason != models.ReasonAbandoned {
		t.Errorf("Expected reason abandoned, got %s", e.Reason)
	}
	if rec := waitRecord(t, records); rec.Reason != models.ReasonAbandoned {
		t.Errorf("Expected abandoned record, got %+v", rec)
	}
}

func TestManager_LeaveDeletesEmptyRoom(t *testing.T) {
	m, _, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))

	res, err := m.LeaveRoom(r.ID(), "alice")
	if err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}
	if !res.Empty {
		t.Error("Last leave should report an empty room")
	}
	if m.Count() != 0 {
		t.Errorf("Empty room should be deleted, got %d live rooms", m.Count())
	}
	if _, _, err := m.JoinRoom(r.ID(), player("bob")); err != ErrRoomNotFound {
		t.Errorf("Deleted room should be unjoinable, got %v", err)
	}
}

func TestManager_LeaveNotInRoom(t *testing.T) {
	m, _, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	if _, err := m.LeaveRoom(r.ID(), "mallory"); err != ErrNotInRoom {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}
}

func TestManager_FindRoomForUser(t *testing.T) {
	m, _, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))

	found, ok := m.FindRoomForUser("alice")
	if !ok || found.ID() != r.ID() {
		t.Fatal("Expected to find alice's waiting room")
	}
	if _, ok := m.FindRoomForUser("bob"); ok {
		t.Error("Unseated user should have no room")
	}

	m.JoinRoom(r.ID(), player("bob"))
	r.SubmitGuess("alice", "crane")
	waitRecord(t, records)

	// Finished rooms are not resumable.
	if _, ok := m.FindRoomForUser("alice"); ok {
		t.Error("Finished room should not be reported as active")
	}
}

func TestManager_FinishedSeatReleasedOnCreate(t *testing.T) {
	m, _, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	r.SubmitGuess("alice", "crane")
	waitRecord(t, records)

	if _, err := m.CreateRoom(player("alice")); err != nil {
		t.Errorf("A finished seat should not block a new create: %v", err)
	}
}

func TestManager_ForceLeave(t *testing.T) {
	m, _, _ := newTestManager("crane")

	if _, err := m.ForceLeave("ghost"); err != nil {
		t.Errorf("ForceLeave on an unseated user should be a no-op, got %v", err)
	}

	m.CreateRoom(player("alice"))
	if _, err := m.ForceLeave("alice"); err != nil {
		t.Fatalf("ForceLeave failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Expected the room to be deleted, got %d", m.Count())
	}
	if _, ok := m.FindRoomForUser("alice"); ok {
		t.Error("Force-left user should have no room")
	}
}

func TestManager_CreateRematch(t *testing.T) {
	m, b, records := newTestManager("crane")
	old, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(old.ID(), player("bob"))
	old.SubmitGuess("alice", "crane")
	waitRecord(t, records)
	b.reset()

	// bob requested the rematch, so bob opens the new room.
	next, err := m.CreateRematch(old, "bob")
	if err != nil {
		t.Fatalf("CreateRematch failed: %v", err)
	}

	if next.ID() == old.ID() {
		t.Error("Rematch must allocate a fresh room")
	}
	if next.Status() != models.RoomPlaying {
		t.Errorf("Rematch room should start immediately, got %s", next.Status())
	}
	if next.Snapshot().GamesPlayed != 1 {
		t.Errorf("Expected gamesPlayed 1, got %d", next.Snapshot().GamesPlayed)
	}

	players := next.Players()
	if players[0].UserID != "bob" || !players[0].IsCreator {
		t.Errorf("Requester should be the new creator, got %+v", players[0])
	}

	starts := b.byMsg(network.MsgTypeGameStarted)
	if len(starts) != 1 {
		t.Fatalf("Expected one game-started broadcast, got %d", len(starts))
	}
	if e := starts[0].event.(models.GameStartedEvent); e.CurrentTurnPlayerID != "bob" {
		t.Errorf("Requester should take the first turn, got %s", e.CurrentTurnPlayerID)
	}

	// Both seats now point at the new room.
	for _, id := range []string{"alice", "bob"} {
		found, ok := m.FindRoomForUser(id)
		if !ok || found.ID() != next.ID() {
			t.Errorf("%s should be seated in the rematch room", id)
		}
	}
}

func TestRoom_CallsOnSweptRoomReturn(t *testing.T) {
	m, _, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	r.leave("alice")
	m.Sweep()

	// Accessors on a collected room must come back immediately with
	// zero values, not park on a loop that is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if n := r.PlayerCount(); n != 0 {
				t.Errorf("Expected 0 players on a closed room, got %d", n)
				return
			}
			if status := r.Status(); status != "" {
				t.Errorf("Expected zero status on a closed room, got %s", status)
				return
			}
			r.Snapshot()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Accessor blocked on a closed room")
	}
}

func TestManager_RematchBlockedWhenReseated(t *testing.T) {
	m, _, records := newTestManager("crane")
	old, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(old.ID(), player("bob"))
	old.SubmitGuess("alice", "crane")
	waitRecord(t, records)

	// bob moved on to a fresh room before the rematch resolved.
	next, err := m.CreateRoom(player("bob"))
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	if _, err := m.CreateRematch(old, "bob"); err != ErrAlreadyInRoom {
		t.Fatalf("Expected ErrAlreadyInRoom, got %v", err)
	}

	// bob keeps exactly the seat he chose; alice stays unseated.
	found, ok := m.FindRoomForUser("bob")
	if !ok || found.ID() != next.ID() {
		t.Error("bob should still be seated in the room he created")
	}
	if next.PlayerCount() != 1 {
		t.Errorf("Expected bob's room untouched, got %d players", next.PlayerCount())
	}
	if _, ok := m.FindRoomForUser("alice"); ok {
		t.Error("alice should hold no active seat")
	}
}

func TestManager_SweepCollectsFinishedRooms(t *testing.T) {
	m, _, records := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))
	m.JoinRoom(r.ID(), player("bob"))
	r.SubmitGuess("alice", "crane")
	waitRecord(t, records)

	var cancelled []string
	m.SetSweepHook(func(roomID string) {
		cancelled = append(cancelled, roomID)
	})

	// Inside the grace period the room stays answerable for a rematch.
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Finished room should survive the grace period, got %d rooms", n)
	}

	m.finishedTTL = 0
	if n := m.Sweep(); n != 0 {
		t.Fatalf("Expected 0 rooms after sweep, got %d", n)
	}
	if len(cancelled) != 1 || cancelled[0] != r.ID() {
		t.Errorf("Sweep hook should fire for the collected room, got %v", cancelled)
	}

	// Both seats were released with the room.
	if _, ok := m.FindRoomForUser("alice"); ok {
		t.Error("alice's seat should be released by the sweep")
	}
	if _, err := m.CreateRoom(player("bob")); err != nil {
		t.Errorf("bob should be free to create after the sweep: %v", err)
	}
}

func TestManager_Sweep(t *testing.T) {
	m, _, _ := newTestManager("crane")
	r, _ := m.CreateRoom(player("alice"))

	// Empty the room behind the manager's back, as if delivery of the
	// leave raced the registry cleanup.
	r.leave("alice")

	if n := m.Sweep(); n != 0 {
		t.Errorf("Expected 0 rooms after sweep, got %d", n)
	}
	if _, exists := m.GetRoom(r.ID()); exists {
		t.Error("Swept room should be gone")
	}
}
