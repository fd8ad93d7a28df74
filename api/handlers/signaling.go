package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// roomHistoryLimit bounds the per-room chat buffer replayed to late
	// joiners. Older messages are dropped from the front.
	roomHistoryLimit = 500

	// roomIdleTTL is how long an empty room keeps its history before the
	// eviction sweep reclaims it.
	roomIdleTTL = 24 * time.Hour

	signalingWriteWait  = 10 * time.Second
	signalingPongWait   = 60 * time.Second
	signalingPingPeriod = (signalingPongWait * 9) / 10
	maxSignalFrameSize  = 64 * 1024
)

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// signalRoom holds the members and buffered chat history of one consultation
// room. All access is serialized by the owning hub's mutex.
type signalRoom struct {
	members    map[*signalClient]models.PeerInfo
	history    []models.ChatMessage
	lastActive time.Time
}

// SignalingHub relays chat messages and connection-setup signals between the
// two participants of a consultation room, and buffers chat history for late
// joiners. It never inspects signal payloads.
type SignalingHub struct {
	mu    sync.Mutex
	rooms map[string]*signalRoom
	now   func() time.Time
}

// NewSignalingHub returns a hub with no rooms.
func NewSignalingHub() *SignalingHub {
	return &SignalingHub{
		rooms: make(map[string]*signalRoom),
		now:   time.Now,
	}
}

// signalClient is one websocket connection attached to the hub. Frames are
// written by a single writer goroutine draining send; readPump is the single
// reader.
type signalClient struct {
	hub    *SignalingHub
	conn   *websocket.Conn
	claims *api.CallClaims
	send   chan models.SignalFrame
	done   chan struct{}
	joined bool
}

// ServeWS upgrades the request to a websocket and runs the relay protocol for
// one client. The call token is taken from the "token" query parameter and
// pins the connection to a single room.
func (h *SignalingHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := api.ParseCallToken(r.URL.Query().Get("token"))
	if err != nil {
		zap.S().Warnw("signaling connection rejected", "error", err)
		http.Error(w, "invalid call token", http.StatusUnauthorized)
		return
	}

	conn, err := signalingUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := &signalClient{
		hub:    h,
		conn:   conn,
		claims: claims,
		send:   make(chan models.SignalFrame, 32),
		done:   make(chan struct{}),
	}
	zap.S().Debugf("signaling client connected, user: %v, room: %v", claims.UserID, claims.RoomID)

	go client.writePump()
	client.readPump()
}

func (c *signalClient) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
		close(c.done)
	}()
	c.conn.SetReadLimit(maxSignalFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(signalingPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(signalingPongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugf("signaling read error: %v", err)
			}
			return
		}

		var frame models.SignalFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}
		c.hub.dispatch(c, frame)
	}
}

func (c *signalClient) writePump() {
	ticker := time.NewTicker(signalingPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(signalingWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(signalingWriteWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(signalingWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push hands a frame to the client's writer, dropping the frame if the
// client's buffer is full. A stalled reader never blocks the room.
func (c *signalClient) push(frame models.SignalFrame) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		zap.S().Warnf("dropping frame for slow client, user: %v", c.claims.UserID)
	}
}

func (c *signalClient) sendError(msg string) {
	c.push(models.SignalFrame{Event: models.EventError, Error: msg})
}

// dispatch routes one client frame. Every frame must name the room the call
// token was issued for; frames for any other room are rejected.
func (h *SignalingHub) dispatch(c *signalClient, frame models.SignalFrame) {
	if frame.RoomID == "" {
		c.sendError("roomId is required")
		return
	}
	if frame.RoomID != c.claims.RoomID {
		c.sendError("token not valid for room")
		return
	}

	switch frame.Event {
	case models.EventJoinRoom:
		h.join(c)
	case models.EventSendMessage:
		h.sendMessage(c, frame)
	case models.EventSignal:
		h.relaySignal(c, frame)
	default:
		c.sendError("unknown event: " + frame.Event)
	}
}

func (h *SignalingHub) join(c *signalClient) {
	h.mu.Lock()
	room := h.rooms[c.claims.RoomID]
	if room == nil {
		room = &signalRoom{members: make(map[*signalClient]models.PeerInfo)}
		h.rooms[c.claims.RoomID] = room
	}
	room.members[c] = models.PeerInfo{UserID: c.claims.UserID, Role: c.claims.Role}
	room.lastActive = h.now()
	c.joined = true

	history := make([]models.ChatMessage, len(room.history))
	copy(history, room.history)

	peers := make([]*signalClient, 0, len(room.members))
	for member := range room.members {
		if member != c {
			peers = append(peers, member)
		}
	}
	h.mu.Unlock()

	// History goes to the joiner even when empty, so clients can render a
	// loaded (if blank) transcript.
	c.push(models.SignalFrame{
		Event:   models.EventReceiveHistory,
		RoomID:  c.claims.RoomID,
		History: history,
	})

	joined := models.SignalFrame{
		Event:  models.EventPeerJoined,
		RoomID: c.claims.RoomID,
		Peer:   &models.PeerInfo{UserID: c.claims.UserID, Role: c.claims.Role},
	}
	for _, peer := range peers {
		peer.push(joined)
	}
	zap.S().Debugf("user %v joined room %v", c.claims.UserID, c.claims.RoomID)
}

func (h *SignalingHub) sendMessage(c *signalClient, frame models.SignalFrame) {
	if !c.joined {
		c.sendError("join the room before sending")
		return
	}
	if frame.Message == nil || frame.Message.Text == "" {
		c.sendError("message text is required")
		return
	}

	// Sender identity and timestamp come from the token and the server
	// clock, never from the client frame.
	msg := models.ChatMessage{
		SenderID:   c.claims.UserID,
		SenderRole: c.claims.Role,
		SenderName: frame.Message.SenderName,
		Text:       frame.Message.Text,
		SentAt:     h.now().UnixMilli(),
	}

	h.mu.Lock()
	room := h.rooms[c.claims.RoomID]
	if room == nil {
		h.mu.Unlock()
		c.sendError("room is gone")
		return
	}
	room.history = append(room.history, msg)
	if len(room.history) > roomHistoryLimit {
		room.history = room.history[len(room.history)-roomHistoryLimit:]
	}
	room.lastActive = h.now()
	members := make([]*signalClient, 0, len(room.members))
	for member := range room.members {
		if member == c {
			continue
		}
		members = append(members, member)
	}
	h.mu.Unlock()

	out := models.SignalFrame{
		Event:   models.EventReceiveMessage,
		RoomID:  c.claims.RoomID,
		Message: &msg,
	}
	for _, member := range members {
		member.push(out)
	}
}

func (h *SignalingHub) relaySignal(c *signalClient, frame models.SignalFrame) {
	if !c.joined {
		c.sendError("join the room before signaling")
		return
	}
	if frame.Signal == nil {
		c.sendError("signal payload is required")
		return
	}

	h.mu.Lock()
	room := h.rooms[c.claims.RoomID]
	var peers []*signalClient
	if room != nil {
		room.lastActive = h.now()
		for member := range room.members {
			if member != c {
				peers = append(peers, member)
			}
		}
	}
	h.mu.Unlock()

	out := models.SignalFrame{
		Event:  models.EventSignal,
		RoomID: c.claims.RoomID,
		Signal: frame.Signal,
		Peer:   &models.PeerInfo{UserID: c.claims.UserID, Role: c.claims.Role},
	}
	for _, peer := range peers {
		peer.push(out)
	}
}

// leave removes the client from its room and tells the remaining peer it is
// gone. The room itself survives, with its history, until eviction.
func (h *SignalingHub) leave(c *signalClient) {
	if !c.joined {
		return
	}
	h.mu.Lock()
	room := h.rooms[c.claims.RoomID]
	var peers []*signalClient
	if room != nil {
		delete(room.members, c)
		room.lastActive = h.now()
		for member := range room.members {
			peers = append(peers, member)
		}
	}
	h.mu.Unlock()

	left := models.SignalFrame{
		Event:  models.EventPeerLeft,
		RoomID: c.claims.RoomID,
		Peer:   &models.PeerInfo{UserID: c.claims.UserID, Role: c.claims.Role},
	}
	for _, peer := range peers {
		peer.push(left)
	}
	zap.S().Debugf("user %v left room %v", c.claims.UserID, c.claims.RoomID)
}

// EvictIdleRooms drops rooms that have been empty and idle for longer than
// roomIdleTTL, and returns how many were removed. Run from the scheduler.
func (h *SignalingHub) EvictIdleRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-roomIdleTTL)
	evicted := 0
	for id, room := range h.rooms {
		if len(room.members) == 0 && room.lastActive.Before(cutoff) {
			delete(h.rooms, id)
			evicted++
		}
	}
	if evicted > 0 {
		zap.S().Infof("evicted %d idle signaling rooms", evicted)
	}
	return evicted
}

// RoomCount reports how many rooms currently exist.
func (h *SignalingHub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
