package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBufferSize = 256
)

// Hub tracks live connections grouped by lobby and by game and fans
// messages out to them. It never touches game state.
type Hub struct {
	mutex sync.RWMutex
	lobby map[*Client]bool
	games map[uint]map[*Client]bool
}

// ClientHandler receives a client's inbound frames and its disconnect.
// Both are called from the client's read goroutine.
type ClientHandler interface {
	HandleMessage(c *Client, data []byte)
	HandleClose(c *Client)
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	username string
	gameID   uint
	closed   bool // guarded by hub.mutex
	handler  ClientHandler
	ctx      context.Context
	cancel   context.CancelFunc

	// seatGameID is the waiting game this lobby client joined; read pump only.
	seatGameID uint
}

func NewHub() *Hub {
	return &Hub{
		lobby: make(map[*Client]bool),
		games: make(map[uint]map[*Client]bool),
	}
}

// NewClient wraps conn for username. Call Run after registering it.
func (h *Hub) NewClient(conn *websocket.Conn, username string, handler ClientHandler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, sendBufferSize),
		username: username,
		handler:  handler,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) Username() string { return c.username }
func (c *Client) GameID() uint     { return c.gameID }

// Context is cancelled when the connection goes away.
func (c *Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Run starts the client's read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

func (h *Hub) RegisterLobbyConnection(c *Client) {
	h.mutex.Lock()
	c.gameID = 0
	h.lobby[c] = true
	total := len(h.lobby)
	h.mutex.Unlock()

	log.Printf("Client registered: %s in lobby (%s) - lobby clients: %d", c.id, c.username, total)
}

func (h *Hub) RegisterGameConnection(gameID uint, c *Client) {
	h.mutex.Lock()
	c.gameID = gameID
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*Client]bool)
	}
	h.games[gameID][c] = true
	total := len(h.games[gameID])
	h.mutex.Unlock()

	log.Printf("Client registered: %s for game %d (%s) - game clients: %d", c.id, gameID, c.username, total)
}

// Unregister removes c from whichever group holds it and closes its
// outbound channel. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c.gameID == 0 {
		h.dropLocked(h.lobby, c)
	} else {
		h.dropFromGameLocked(c.gameID, c)
	}
}

// UnregisterFromGame removes c from the group of gameID only.
func (h *Hub) UnregisterFromGame(gameID uint, c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dropFromGameLocked(gameID, c)
}

func (h *Hub) BroadcastToLobby(msg interface{}) {
	data, ok := encode(msg)
	if !ok {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	delivered := h.deliverLocked(h.lobby, data)
	log.Printf("Broadcast to lobby: %d clients", delivered)
}

func (h *Hub) BroadcastToGame(gameID uint, msg interface{}) {
	data, ok := encode(msg)
	if !ok {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	group, ok := h.games[gameID]
	if !ok {
		return
	}
	delivered := h.deliverLocked(group, data)
	if len(group) == 0 {
		delete(h.games, gameID)
	}
	log.Printf("Broadcast to game %d: %d clients", gameID, delivered)
}

// Send delivers msg to c alone.
func (h *Hub) Send(c *Client, msg interface{}) {
	data, ok := encode(msg)
	if !ok {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Client %s (%s) send buffer full, closing connection", c.id, c.username)
		if c.gameID == 0 {
			h.dropLocked(h.lobby, c)
		} else {
			h.dropFromGameLocked(c.gameID, c)
		}
	}
}

// CloseGame disconnects every client of gameID after flushing what is
// already queued for them.
func (h *Hub) CloseGame(gameID uint) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	group := h.games[gameID]
	for c := range group {
		h.closeLocked(c)
	}
	delete(h.games, gameID)
	log.Printf("Closed %d connections of game %d", len(group), gameID)
}

// LobbyCount returns the number of live lobby connections.
func (h *Hub) LobbyCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.lobby)
}

// GameCount returns the number of live connections of gameID.
func (h *Hub) GameCount(gameID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.games[gameID])
}

// deliverLocked queues data on every client of group. A client whose buffer
// is full is dropped; the others still get the message.
func (h *Hub) deliverLocked(group map[*Client]bool, data []byte) int {
	delivered := 0
	for c := range group {
		select {
		case c.send <- data:
			delivered++
		default:
			log.Printf("Client %s (%s) send buffer full, closing connection", c.id, c.username)
			h.dropLocked(group, c)
		}
	}
	return delivered
}

func (h *Hub) dropFromGameLocked(gameID uint, c *Client) {
	group, ok := h.games[gameID]
	if !ok {
		return
	}
	h.dropLocked(group, c)
	if len(group) == 0 {
		delete(h.games, gameID)
	}
}

func (h *Hub) dropLocked(group map[*Client]bool, c *Client) {
	if _, ok := group[c]; !ok {
		return
	}
	delete(group, c)
	h.closeLocked(c)
	log.Printf("Client unregistered: %s (%s)", c.id, c.username)
}

func (h *Hub) closeLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func encode(msg interface{}) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return nil, false
	}
	return data, true
}

func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Client %s (%s) handler panic: %v", c.id, c.username, r)
		}
		c.hub.Unregister(c)
		c.socket.Close()
		if c.cancel != nil {
			c.cancel()
		}
		if c.handler != nil {
			c.handler.HandleClose(c)
		}
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if c.handler != nil {
			c.handler.HandleMessage(c, message)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Write to client %s (%s) failed: %v", c.id, c.username, err)
				c.hub.Unregister(c)
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}
