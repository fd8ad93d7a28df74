package call

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/models"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// WSSignaler speaks the relay protocol over a websocket: it joins the room
// named by the call token and fans inbound frames out to subscribers. It is
// the production Signaler used by portal-side tooling and integration tests.
type WSSignaler struct {
	conn   *websocket.Conn
	roomID string

	writeMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan *models.SignalFrame
	nextID int
	closed bool
}

// Dial connects to the signaling relay, joins the token's room and starts
// reading frames. rawURL is the ws:// or wss:// endpoint without the token
// query parameter.
func Dial(ctx context.Context, rawURL, token, roomID string) (*WSSignaler, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling relay, %w", err)
	}

	s := &WSSignaler{
		conn:   conn,
		roomID: roomID,
		subs:   make(map[int]chan *models.SignalFrame),
	}
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	if err := s.writeFrame(models.SignalFrame{Event: models.EventJoinRoom, RoomID: roomID}); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// Send relays a connection-setup payload to the room.
func (s *WSSignaler) Send(signal *models.SignalPayload) error {
	return s.writeFrame(models.SignalFrame{
		Event:  models.EventSignal,
		RoomID: s.roomID,
		Signal: signal,
	})
}

// SendMessage sends one chat line to the room.
func (s *WSSignaler) SendMessage(senderName, text string) error {
	return s.writeFrame(models.SignalFrame{
		Event:  models.EventSendMessage,
		RoomID: s.roomID,
		Message: &models.ChatMessage{
			SenderName: senderName,
			Text:       text,
		},
	})
}

// Subscribe returns a channel receiving every inbound frame and a cancel
// func. The channel closes when the signaler shuts down.
func (s *WSSignaler) Subscribe() (<-chan *models.SignalFrame, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan *models.SignalFrame, 32)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close shuts the websocket down and closes all subscriber channels.
func (s *WSSignaler) Close() error {
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	err := s.conn.Close()
	s.closeSubs()
	return err
}

func (s *WSSignaler) writeFrame(frame models.SignalFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(frame)
}

func (s *WSSignaler) readLoop() {
	defer s.closeSubs()
	for {
		var frame models.SignalFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugf("signaler read error: %v", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		s.subMu.Lock()
		for _, sub := range s.subs {
			select {
			case sub <- &frame:
			default:
				// A stalled subscriber loses frames rather than
				// blocking the reader.
			}
		}
		s.subMu.Unlock()
	}
}

func (s *WSSignaler) closeSubs() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub)
	}
}
