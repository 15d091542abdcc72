// rematch/rematch.go
//
// Two-party handshake that spawns a fresh room after one finishes.
// Offers live only for the duration of the negotiation; there is no
// timeout here — an unanswered offer dies when either player leaves.
package rematch

import (
	"errors"
	"sync"

	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/network"
	"github.com/yagpdc/words-game/room"
)

var (
	// ErrNoOffer means no pending offer exists for the room.
	ErrNoOffer = errors.New("no pending rematch offer")
	// ErrRoomNotFinished means a rematch was requested before the round ended.
	ErrRoomNotFinished = errors.New("room is not finished")
	// ErrOwnOffer means the requester tried to answer their own offer.
	ErrOwnOffer = errors.New("cannot respond to own rematch offer")
)

// Offer is one pending rematch negotiation, keyed by the old room id.
type Offer struct {
	RoomID        string
	RequesterID   string
	RequesterName string
}

// Broadcaster is the subset of event delivery the negotiator needs.
type Broadcaster interface {
	SendToUser(userID string, msgID uint16, event interface{}) error
}

// Negotiator coordinates rematch offers over finished rooms.
type Negotiator struct {
	rooms       *room.Manager
	broadcaster Broadcaster

	mutex  sync.Mutex
	offers map[string]*Offer // old roomID -> pending offer
}

func NewNegotiator(rooms *room.Manager, b Broadcaster) *Negotiator {
	return &Negotiator{
		rooms:       rooms,
		broadcaster: b,
		offers:      make(map[string]*Offer),
	}
}

// Request records an offer and notifies the other member only. A
// request on a room with no second member is a silent no-op. A repeat
// request from the same player re-sends the notification but keeps the
// single pending offer.
func (n *Negotiator) Request(roomID, requesterID string) error {
	r, exists := n.rooms.GetRoom(roomID)
	if !exists {
		return room.ErrRoomNotFound
	}
	if r.Status() != models.RoomFinished {
		return ErrRoomNotFinished
	}

	players := r.Players()
	var requester, other *models.Player
	for i := range players {
		if players[i].UserID == requesterID {
			requester = &players[i]
		} else {
			other = &players[i]
		}
	}
	if requester == nil {
		return room.ErrNotInRoom
	}
	if other == nil {
		return nil
	}

	n.mutex.Lock()
	n.offers[roomID] = &Offer{
		RoomID:        roomID,
		RequesterID:   requester.UserID,
		RequesterName: requester.Name,
	}
	n.mutex.Unlock()

	n.broadcaster.SendToUser(other.UserID, network.MsgTypeRematchRequested, models.RematchRequestEvent{
		RoomID:        roomID,
		RequesterID:   requester.UserID,
		RequesterName: requester.Name,
	})
	return nil
}

// Respond resolves the pending offer. Only a seated member of the old
// room other than the requester may answer. A decline notifies the
// requester only. An acceptance creates the new room and notifies both
// members, since either side may have pressed accept last.
func (n *Negotiator) Respond(roomID, responderID string, accepted bool) error {
	r, roomExists := n.rooms.GetRoom(roomID)
	if !roomExists {
		return room.ErrRoomNotFound
	}

	responderName := ""
	seated := false
	for _, p := range r.Players() {
		if p.UserID == responderID {
			seated = true
			responderName = p.Name
		}
	}
	if !seated {
		return room.ErrNotInRoom
	}

	n.mutex.Lock()
	offer, exists := n.offers[roomID]
	if !exists {
		n.mutex.Unlock()
		return ErrNoOffer
	}
	if offer.RequesterID == responderID {
		// Answering your own offer resolves nothing; leave it pending.
		n.mutex.Unlock()
		return ErrOwnOffer
	}
	delete(n.offers, roomID)
	n.mutex.Unlock()

	if !accepted {
		n.broadcaster.SendToUser(offer.RequesterID, network.MsgTypeRematchResolved, models.RematchResponseEvent{
			RoomID:        roomID,
			Accepted:      false,
			ResponderID:   responderID,
			ResponderName: responderName,
		})
		return nil
	}

	newRoom, err := n.rooms.CreateRematch(r, offer.RequesterID)
	if err != nil {
		return err
	}

	event := models.RematchResponseEvent{
		RoomID:        roomID,
		Accepted:      true,
		ResponderID:   responderID,
		ResponderName: responderName,
		NewRoomID:     newRoom.ID(),
	}
	n.broadcaster.SendToUser(offer.RequesterID, network.MsgTypeRematchResolved, event)
	n.broadcaster.SendToUser(responderID, network.MsgTypeRematchResolved, event)

	logger.Log.Infof("rematch accepted: %s -> %s", roomID, newRoom.ID())
	return nil
}

// Cancel drops any pending offer for the room. Called from the leave
// path; a negotiation is abandoned implicitly when a player leaves.
func (n *Negotiator) Cancel(roomID string) {
	n.mutex.Lock()
	delete(n.offers, roomID)
	n.mutex.Unlock()
}

// Pending reports whether an offer is outstanding for the room.
func (n *Negotiator) Pending(roomID string) bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	_, exists := n.offers[roomID]
	return exists
}
