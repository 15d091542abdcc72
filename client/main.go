// client/main.go
//
// Interactive test client. Joins a room over the websocket channel,
// keeps a local view of the run through the reconcile package, and
// falls back to a REST re-fetch whenever the view detects a gap.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/network"
	"github.com/yagpdc/words-game/reconcile"
)

type client struct {
	conn    *websocket.Conn
	httpURL string
	userID  string
	name    string
	roomID  string
	view    *reconcile.View
}

func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	host := flag.String("host", "localhost:8080", "server address")
	userID := flag.String("user", "", "user id")
	name := flag.String("name", "", "display name")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}
	if *name == "" {
		*name = *userID
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     *host,
		Path:     "/ws",
		RawQuery: url.Values{"userId": {*userID}, "name": {*name}}.Encode(),
	}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	c := &client{
		conn:    conn,
		httpURL: "http://" + *host,
		userID:  *userID,
		name:    *name,
		view:    reconcile.NewView(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop()
	}()

	log.Println("Commands: create | join CODE | guess WORD | leave | rematch | accept | decline")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			line, _ := reader.ReadString('\n')
			c.handleInput(strings.TrimSpace(line))
		}
	}
}

func (c *client) handleInput(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "create":
		c.createRoom()
	case "join":
		if len(fields) < 2 {
			log.Println("usage: join CODE")
			return
		}
		c.joinRoom(strings.ToUpper(fields[1]))
	case "guess":
		if len(fields) < 2 || c.roomID == "" {
			log.Println("usage: guess WORD (join a room first)")
			return
		}
		send(c.conn, network.MsgTypeGuess, map[string]string{
			"roomId": c.roomID, "guessWord": fields[1],
		})
	case "leave":
		if c.roomID != "" {
			send(c.conn, network.MsgTypeLeaveRoom, map[string]string{"roomId": c.roomID})
			c.roomID = ""
		}
	case "rematch":
		if c.roomID != "" {
			send(c.conn, network.MsgTypeRematchRequest, map[string]string{"roomId": c.roomID})
		}
	case "accept", "decline":
		if c.roomID != "" {
			send(c.conn, network.MsgTypeRematchResponse, map[string]interface{}{
				"roomId": c.roomID, "accepted": fields[0] == "accept",
			})
		}
	default:
		log.Printf("unknown command %q", fields[0])
	}
}

func (c *client) createRoom() {
	var resp struct {
		Room models.Room `json:"room"`
	}
	if err := c.post("/coop/create-room", nil, &resp); err != nil {
		log.Printf("create-room failed: %v", err)
		return
	}
	c.enterRoom(resp.Room.RoomID)
	log.Printf("Room created. Share the code: %s", c.roomID)
}

func (c *client) joinRoom(roomID string) {
	var resp struct {
		Room models.Room      `json:"room"`
		Run  *models.RunState `json:"run"`
	}
	if err := c.post("/coop/join-room/"+roomID, nil, &resp); err != nil {
		log.Printf("join-room failed: %v", err)
		return
	}
	c.enterRoom(roomID)
	if resp.Run != nil {
		c.view.ApplySnapshot(*resp.Run)
	}
}

func (c *client) enterRoom(roomID string) {
	c.roomID = roomID
	c.view = reconcile.NewView()
	send(c.conn, network.MsgTypeJoinRoom, map[string]string{"roomId": roomID})
	c.refetch()
}

// refetch pulls the authoritative room state and feeds it to the view.
func (c *client) refetch() {
	req, err := http.NewRequest(http.MethodGet, c.httpURL+"/coop/my-room", nil)
	if err != nil {
		return
	}
	c.setIdentity(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("my-room fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var body struct {
		Run *models.RunState `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return
	}
	if body.Run != nil {
		c.view.ApplySnapshot(*body.Run)
	}
}

func (c *client) readLoop() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			log.Println("Read error:", err)
			return
		}
		if len(message) < 4 {
			continue
		}
		msgID := binary.BigEndian.Uint16(message[0:2])
		data := message[4:]
		c.handleEvent(msgID, data)

		if c.view.NeedsRefetch() {
			log.Println("View out of sync, re-fetching...")
			c.refetch()
		}
	}
}

func (c *client) handleEvent(msgID uint16, data []byte) {
	switch msgID {
	case network.MsgTypePlayerJoined:
		var e models.PlayerJoinedEvent
		json.Unmarshal(data, &e)
		log.Printf("%s joined (%d/2)", e.Player.Name, e.PlayersCount)
	case network.MsgTypeGameStarted:
		var e models.GameStartedEvent
		json.Unmarshal(data, &e)
		c.view.ApplySnapshot(e.Run)
		log.Printf("Game on! Word has %d letters. First turn: %s",
			c.view.NextWordLength, e.CurrentTurnPlayerID)
	case network.MsgTypeGuessMade:
		var e models.GuessMadeEvent
		json.Unmarshal(data, &e)
		c.view.ApplyGuessMade(e)
		log.Printf("%s guessed %q -> %s", e.PlayerName, e.Guess.GuessWord, renderPattern(e.Guess.Pattern))
	case network.MsgTypeTurnChanged:
		var e models.TurnChangedEvent
		json.Unmarshal(data, &e)
		c.view.ApplyTurnChanged(e)
		if e.CurrentTurnPlayerID == c.userID {
			log.Println("Your turn!")
		} else {
			log.Printf("Waiting for %s...", e.CurrentTurnPlayerName)
		}
	case network.MsgTypeWordCompleted:
		var e models.WordCompletedEvent
		json.Unmarshal(data, &e)
		c.view.ApplyWordCompleted(e)
		log.Printf("Word %q solved! Score: %d", e.Word, e.CurrentScore)
	case network.MsgTypeGameOver:
		var e models.GameOverEvent
		json.Unmarshal(data, &e)
		c.view.ApplyGameOver(e)
		log.Printf("Game over (%s). Final score: %d, words completed: %d",
			e.Reason, e.FinalScore, e.WordsCompleted)
	case network.MsgTypePlayerAbandoned:
		var e models.PlayerAbandonedEvent
		json.Unmarshal(data, &e)
		log.Printf("%s abandoned the game", e.PlayerName)
	case network.MsgTypePlayerLeft:
		var e models.PlayerLeftEvent
		json.Unmarshal(data, &e)
		log.Printf("%s left the room", e.PlayerName)
	case network.MsgTypeRematchRequested:
		var e models.RematchRequestEvent
		json.Unmarshal(data, &e)
		log.Printf("%s wants a rematch. Type 'accept' or 'decline'.", e.RequesterName)
	case network.MsgTypeRematchResolved:
		var e models.RematchResponseEvent
		json.Unmarshal(data, &e)
		if e.Accepted {
			log.Printf("Rematch on! Moving to room %s", e.NewRoomID)
			c.enterRoom(e.NewRoomID)
		} else {
			log.Printf("%s declined the rematch", e.ResponderName)
		}
	case network.MsgTypeError:
		var e models.ErrorEvent
		json.Unmarshal(data, &e)
		log.Printf("Error [%s]: %s", e.Code, e.Message)
	}
}

func (c *client) post(path string, payload interface{}, out interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	} else {
		body.WriteString("{}")
	}

	req, err := http.NewRequest(http.MethodPost, c.httpURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setIdentity(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) setIdentity(req *http.Request) {
	req.Header.Set("X-User-Id", c.userID)
	req.Header.Set("X-User-Name", c.name)
}

func renderPattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '2':
			b.WriteString("🟩")
		case '1':
			b.WriteString("🟨")
		default:
			b.WriteString("⬛")
		}
	}
	return b.String()
}
