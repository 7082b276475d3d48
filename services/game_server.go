package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
)

// maxJoinAttempts bounds how often a join retries when the open game it
// picked filled up in the meantime.
const maxJoinAttempts = 3

// GameServer routes websocket actions to the lobby and game sessions and
// broadcasts what they produce.
type GameServer struct {
	lobby    *LobbyManager
	sessions *SessionRegistry
	hub      *Hub
}

func NewGameServer(lobby *LobbyManager, sessions *SessionRegistry, hub *Hub) *GameServer {
	return &GameServer{
		lobby:    lobby,
		sessions: sessions,
		hub:      hub,
	}
}

func (s *GameServer) Hub() *Hub { return s.hub }

// ServeLobby attaches an upgraded lobby connection of username.
func (s *GameServer) ServeLobby(conn *websocket.Conn, username string) *Client {
	client := s.hub.NewClient(conn, username, lobbyHandler{s})
	s.hub.RegisterLobbyConnection(client)
	client.Run()
	return client
}

// ServeGame attaches an upgraded connection of username to gameID. Callers
// check membership with AuthorizeGame before upgrading.
func (s *GameServer) ServeGame(conn *websocket.Conn, gameID uint, username string) *Client {
	client := s.hub.NewClient(conn, username, gameHandler{s})
	s.hub.RegisterGameConnection(gameID, client)
	client.Run()
	return client
}

// AuthorizeGame checks that gameID has started and username plays in it.
func (s *GameServer) AuthorizeGame(ctx context.Context, gameID uint, username string) error {
	session, err := s.sessions.Open(ctx, gameID)
	if err != nil {
		return err
	}
	if !session.HasPlayer(username) {
		return ErrPlayerNotInGame
	}
	return nil
}

type lobbyHandler struct{ s *GameServer }

func (h lobbyHandler) HandleMessage(c *Client, data []byte) {
	var req LobbyRequest
	if err := decodeRequest(data, &req); err != nil {
		h.s.reply(c, err)
		return
	}
	if req.Username != c.username {
		h.s.reply(c, ErrUsernameMismatch)
		return
	}

	switch req.Action {
	case ActionJoin:
		if req.Color == "" {
			h.s.reply(c, ValidationError("username and color are required"))
			return
		}
		h.s.join(c, req.Username, req.Color)
	case ActionLeave:
		h.s.leave(c)
	default:
		h.s.reply(c, ValidationError("unknown action: "+req.Action))
	}
}

// HandleClose frees the seat of a lobby client that disconnects before its
// game starts.
func (h lobbyHandler) HandleClose(c *Client) {
	if c.seatGameID == 0 {
		return
	}
	h.s.leave(c)
}

func (s *GameServer) join(c *Client, username, color string) {
	ctx := c.Context()

	var result *LobbyResult
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		game, err := s.lobby.GetOrCreateOpenGame(ctx)
		if err != nil {
			s.reply(c, err)
			return
		}
		result, err = s.lobby.AddPlayer(ctx, game.ID, username, color)
		if errors.Is(err, ErrLobbyFull) || errors.Is(err, ErrGameNotWaiting) {
			continue
		}
		if err != nil {
			s.reply(c, err)
			return
		}
		break
	}
	if result == nil {
		s.reply(c, ErrLobbyFull)
		return
	}

	// Only the connection that took the seat gives it up on disconnect.
	if result.Seated {
		c.seatGameID = result.GameID
	}
	s.hub.BroadcastToLobby(NewLobbyUpdate(result.GameID, result.Players, result.AvailableColors))

	start, err := s.lobby.CheckStart(ctx, result.GameID)
	if err != nil {
		if KindOf(err) == KindInternal {
			log.Printf("Start check for game %d failed: %v", result.GameID, err)
		}
		return
	}
	s.hub.BroadcastToLobby(NewGameStart(start))
}

func (s *GameServer) leave(c *Client) {
	if c.seatGameID == 0 {
		s.reply(c, ErrPlayerNotInLobby)
		return
	}

	// The lobby client may already be gone, so do not tie this to its context.
	result, err := s.lobby.RemovePlayer(context.Background(), c.seatGameID, c.username)
	if err != nil {
		if KindOf(err) == KindInternal {
			log.Printf("Removing %s from game %d failed: %v", c.username, c.seatGameID, err)
		}
		if errors.Is(err, ErrGameNotWaiting) || errors.Is(err, ErrPlayerNotInLobby) {
			c.seatGameID = 0
		}
		s.reply(c, err)
		return
	}

	c.seatGameID = 0
	s.hub.BroadcastToLobby(NewLobbyUpdate(result.GameID, result.Players, result.AvailableColors))
}

type gameHandler struct{ s *GameServer }

func (h gameHandler) HandleMessage(c *Client, data []byte) {
	var req GameRequest
	if err := decodeRequest(data, &req); err != nil {
		h.s.reply(c, ValidationError("username and coord are required"))
		return
	}
	if req.Username != c.username {
		h.s.reply(c, ErrUsernameMismatch)
		return
	}

	switch req.Action {
	case ActionClick:
		h.s.click(c, req.Username, *req.Coord)
	default:
		h.s.reply(c, ValidationError("unknown action: "+req.Action))
	}
}

func (gameHandler) HandleClose(*Client) {}

func (s *GameServer) click(c *Client, username string, coord int) {
	ctx := c.Context()
	gameID := c.GameID()

	session, err := s.sessions.Open(ctx, gameID)
	if err != nil {
		s.reply(c, err)
		return
	}

	outcome, err := session.RegisterClick(ctx, username, coord)
	if err != nil {
		s.reply(c, err)
		return
	}
	s.hub.BroadcastToGame(gameID, NewClickResult(outcome))

	if !session.CheckFinished() {
		return
	}
	result, err := session.Finish(ctx)
	if errors.Is(err, ErrAlreadyFinished) {
		return
	}
	if err != nil {
		s.reply(c, err)
		return
	}

	s.hub.BroadcastToGame(gameID, NewFinishGame(result))
	s.hub.CloseGame(gameID)
	s.sessions.Release(gameID)
	s.lobby.locks.Forget(gameID)
}

// reply sends err to c alone. Internal errors are logged and masked.
func (s *GameServer) reply(c *Client, err error) {
	public := PublicError(err)
	if public.Kind == KindInternal {
		log.Printf("Internal error for client %s (%s, game %d): %v", c.id, c.username, c.gameID, err)
	}
	s.hub.Send(c, NewErrorMessage(public))
}

func decodeRequest(data []byte, req interface{}) error {
	if err := json.Unmarshal(data, req); err != nil {
		return ValidationError("malformed message")
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return ValidationError("missing required fields")
	}
	return nil
}
