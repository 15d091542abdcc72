package rematch

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/yagpdc/words-game/game"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/network"
	"github.com/yagpdc/words-game/room"
	"github.com/yagpdc/words-game/words"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

type directEvent struct {
	userID string
	msgID  uint16
	event  interface{}
}

// MockBroadcaster records direct deliveries and swallows broadcasts.
type MockBroadcaster struct {
	mu      sync.Mutex
	directs []directEvent
}

func (b *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, event interface{}) error {
	return nil
}

func (b *MockBroadcaster) SendToUser(userID string, msgID uint16, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directs = append(b.directs, directEvent{userID: userID, msgID: msgID, event: event})
	return nil
}

func (b *MockBroadcaster) sentTo(userID string, msgID uint16) []directEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []directEvent
	for _, e := range b.directs {
		if e.userID == userID && e.msgID == msgID {
			out = append(out, e)
		}
	}
	return out
}

func (b *MockBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directs = nil
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

func player(id string) models.Player {
	return models.Player{UserID: id, Name: "name-" + id}
}

// finishedFixture builds a room manager holding one finished room for
// alice and bob, plus the negotiator over it.
func finishedFixture(t *testing.T) (*room.Manager, *Negotiator, *MockBroadcaster, *room.Room) {
	t.Helper()

	evaluator := words.NewListFromWords([]string{"crane"}, []string{"crane", "stone"}, 5)
	factory := func(players [2]string) (*game.Run, error) {
		return game.NewRun(players, 6, evaluator, &seqSupplier{words: []string{"crane"}})
	}

	finished := make(chan struct{}, 4)
	b := &MockBroadcaster{}
	m := room.NewManager(b, factory, func(models.GameRecord) {
		finished <- struct{}{}
	})
	n := NewNegotiator(m, b)

	r, err := m.CreateRoom(player("alice"))
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, _, err := m.JoinRoom(r.ID(), player("bob")); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if _, err := r.SubmitGuess("alice", "crane"); err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the room to finish")
	}

	b.reset()
	return m, n, b, r
}

func TestRequest_NotifiesOtherPlayerOnly(t *testing.T) {
	_, n, b, r := finishedFixture(t)

	if err := n.Request(r.ID(), "alice"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !n.Pending(r.ID()) {
		t.Error("Offer should be pending after a request")
	}

	toBob := b.sentTo("bob", network.MsgTypeRematchRequested)
	if len(toBob) != 1 {
		t.Fatalf("Expected one offer notification to bob, got %d", len(toBob))
	}
	e := toBob[0].event.(models.RematchRequestEvent)
	if e.RequesterID != "alice" || e.RequesterName != "name-alice" {
		t.Errorf("Unexpected offer event: %+v", e)
	}
	if got := b.sentTo("alice", network.MsgTypeRematchRequested); len(got) != 0 {
		t.Errorf("Requester must not be notified, got %d", len(got))
	}
}

func TestRequest_RoomNotFinished(t *testing.T) {
	m, n, _, _ := finishedFixture(t)

	live, err := m.CreateRoom(player("carol"))
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := n.Request(live.ID(), "carol"); err != ErrRoomNotFinished {
		t.Errorf("Expected ErrRoomNotFinished, got %v", err)
	}
}

func TestRequest_UnknownRoomAndOutsider(t *testing.T) {
	_, n, _, r := finishedFixture(t)

	if err := n.Request("NOSUCH", "alice"); err != room.ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
	if err := n.Request(r.ID(), "mallory"); err != room.ErrNotInRoom {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}
}

func TestRespond_NoPendingOffer(t *testing.T) {
	_, n, _, r := finishedFixture(t)
	if err := n.Respond(r.ID(), "bob", true); err != ErrNoOffer {
		t.Errorf("Expected ErrNoOffer, got %v", err)
	}
}

func TestRespond_OutsiderRejected(t *testing.T) {
	_, n, b, r := finishedFixture(t)
	n.Request(r.ID(), "alice")
	b.reset()

	// mallory knows the room code but holds no seat in it.
	if err := n.Respond(r.ID(), "mallory", true); err != room.ErrNotInRoom {
		t.Fatalf("Expected ErrNotInRoom, got %v", err)
	}
	if err := n.Respond(r.ID(), "mallory", false); err != room.ErrNotInRoom {
		t.Fatalf("Expected ErrNotInRoom on decline, got %v", err)
	}

	if !n.Pending(r.ID()) {
		t.Error("An outsider's response must not consume the offer")
	}
	for _, userID := range []string{"alice", "bob"} {
		if got := b.sentTo(userID, network.MsgTypeRematchResolved); len(got) != 0 {
			t.Errorf("No resolution should reach %s, got %d", userID, len(got))
		}
	}

	// The seated member can still resolve it.
	if err := n.Respond(r.ID(), "bob", false); err != nil {
		t.Errorf("Respond by the seated member failed: %v", err)
	}
}

func TestRespond_OwnOfferKeepsItPending(t *testing.T) {
	_, n, _, r := finishedFixture(t)
	n.Request(r.ID(), "alice")

	if err := n.Respond(r.ID(), "alice", true); err != ErrOwnOffer {
		t.Fatalf("Expected ErrOwnOffer, got %v", err)
	}
	if !n.Pending(r.ID()) {
		t.Error("The offer should survive the requester's own response")
	}
}

func TestRespond_DeclineNotifiesRequesterOnly(t *testing.T) {
	_, n, b, r := finishedFixture(t)
	n.Request(r.ID(), "alice")
	b.reset()

	if err := n.Respond(r.ID(), "bob", false); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if n.Pending(r.ID()) {
		t.Error("Decline should consume the offer")
	}

	toAlice := b.sentTo("alice", network.MsgTypeRematchResolved)
	if len(toAlice) != 1 {
		t.Fatalf("Expected one resolution to alice, got %d", len(toAlice))
	}
	e := toAlice[0].event.(models.RematchResponseEvent)
	if e.Accepted || e.ResponderID != "bob" || e.NewRoomID != "" {
		t.Errorf("Unexpected decline event: %+v", e)
	}
	if got := b.sentTo("bob", network.MsgTypeRematchResolved); len(got) != 0 {
		t.Errorf("Decliner must not be notified, got %d", len(got))
	}
}

func TestRespond_AcceptCreatesRoomAndNotifiesBoth(t *testing.T) {
	m, n, b, r := finishedFixture(t)
	n.Request(r.ID(), "alice")
	b.reset()

	if err := n.Respond(r.ID(), "bob", true); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if n.Pending(r.ID()) {
		t.Error("Acceptance should consume the offer")
	}

	var newRoomID string
	for _, userID := range []string{"alice", "bob"} {
		resolved := b.sentTo(userID, network.MsgTypeRematchResolved)
		if len(resolved) != 1 {
			t.Fatalf("Expected one resolution to %s, got %d", userID, len(resolved))
		}
		e := resolved[0].event.(models.RematchResponseEvent)
		if !e.Accepted || e.NewRoomID == "" {
			t.Fatalf("Unexpected acceptance event for %s: %+v", userID, e)
		}
		newRoomID = e.NewRoomID
	}

	next, exists := m.GetRoom(newRoomID)
	if !exists {
		t.Fatal("Acceptance should have created the new room")
	}
	if next.Status() != models.RoomPlaying {
		t.Errorf("Rematch room should be playing, got %s", next.Status())
	}
	players := next.Players()
	if len(players) != 2 || players[0].UserID != "alice" || !players[0].IsCreator {
		t.Errorf("Requester should open the rematch room, got %+v", players)
	}
}

func TestCancel_DropsPendingOffer(t *testing.T) {
	_, n, _, r := finishedFixture(t)
	n.Request(r.ID(), "alice")

	n.Cancel(r.ID())
	if n.Pending(r.ID()) {
		t.Error("Cancel should drop the offer")
	}
	if err := n.Respond(r.ID(), "bob", true); err != ErrNoOffer {
		t.Errorf("Expected ErrNoOffer after cancel, got %v", err)
	}
}
