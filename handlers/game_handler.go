package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"colorgrid/middleware"
	"colorgrid/services"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type GameHandler struct {
	lobby     *services.LobbyManager
	sessions  *services.SessionRegistry
	publicURL string
}

func NewGameHandler(lobby *services.LobbyManager, sessions *services.SessionRegistry, publicURL string) *GameHandler {
	return &GameHandler{
		lobby:     lobby,
		sessions:  sessions,
		publicURL: publicURL,
	}
}

// LobbyResponse is the lobby page init data.
type LobbyResponse struct {
	GameID          uint                  `json:"game_id"`
	PlayersCount    int                   `json:"players_count"`
	RequiredPlayers int                   `json:"required_players"`
	Players         []services.PlayerPair `json:"players"`
	AvailableColors []string              `json:"available_colors"`
	YourColor       *string               `json:"your_color"`
}

func (h *GameHandler) GetLobby(c *gin.Context) {
	username := c.GetString(middleware.ContextUsername)

	game, seated, err := h.lobby.FindSeat(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := LobbyResponse{
		GameID:          game.ID,
		PlayersCount:    len(game.Players),
		RequiredPlayers: h.lobby.RequiredPlayers(),
		Players:         make([]services.PlayerPair, 0, len(game.Players)),
		AvailableColors: game.FreeColors(),
	}
	for _, p := range game.Players {
		resp.Players = append(resp.Players, services.PlayerPair{p.Username, p.Color})
	}
	if seated {
		seat, _ := game.FindPlayer(username)
		resp.YourColor = &seat.Color
	}

	c.JSON(http.StatusOK, resp)
}

// GetGame returns the snapshot of a started game.
func (h *GameHandler) GetGame(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return
	}

	snap, err := h.sessions.Snapshot(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// LobbyQRCode renders a PNG QR code pointing at the lobby page.
func (h *GameHandler) LobbyQRCode(c *gin.Context) {
	png, err := qrcode.Encode(h.lobbyURL(c.Request), qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "QR generation failed"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *GameHandler) lobbyURL(r *http.Request) string {
	if h.publicURL != "" {
		return strings.TrimRight(h.publicURL, "/") + "/lobby"
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/lobby"
}
