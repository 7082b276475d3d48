package handlers

import (
	"log"
	"net/http"
	"strconv"

	"colorgrid/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSHandler upgrades authenticated lobby and game connections. Browsers
// cannot set headers on websocket requests, so the token may also come in
// the "token" query parameter.
type WSHandler struct {
	authService *services.AuthService
	server      *services.GameServer
}

func NewWSHandler(authService *services.AuthService, server *services.GameServer) *WSHandler {
	return &WSHandler{
		authService: authService,
		server:      server,
	}
}

func (h *WSHandler) Lobby(c *gin.Context) {
	username, err := h.authService.CurrentUser(c.Request)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for lobby, user %s: %v", username, err)
		return
	}

	log.Printf("WebSocket connection established for lobby (%s)", username)
	h.server.ServeLobby(conn, username)
}

func (h *WSHandler) Game(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return
	}
	gameID := uint(id)

	username, err := h.authService.CurrentUser(c.Request)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.server.AuthorizeGame(c.Request.Context(), gameID, username); err != nil {
		log.Printf("Player access validation failed for game %d, user %s: %v", gameID, username, err)
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for game %d, user %s: %v", gameID, username, err)
		return
	}

	log.Printf("WebSocket connection established for game %d (%s)", gameID, username)
	h.server.ServeGame(conn, gameID, username)
}
