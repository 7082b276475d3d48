package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"colorgrid/models"
	"colorgrid/store"
)

// DefaultRequiredPlayers is how many seated players start a game unless
// configured otherwise.
const DefaultRequiredPlayers = 2

// LobbyManager seats players in waiting games and starts them once full.
type LobbyManager struct {
	store           store.Store
	requiredPlayers int
	createMu        sync.Mutex
	locks           *gameLocks
	now             func() time.Time
}

func NewLobbyManager(st store.Store, requiredPlayers int) *LobbyManager {
	if requiredPlayers < 2 {
		requiredPlayers = DefaultRequiredPlayers
	}
	return &LobbyManager{
		store:           st,
		requiredPlayers: requiredPlayers,
		locks:           newGameLocks(),
		now:             time.Now,
	}
}

// RequiredPlayers returns how many players a game needs to start.
func (m *LobbyManager) RequiredPlayers() int {
	return m.requiredPlayers
}

type LobbyResult struct {
	GameID          uint
	Players         []models.GamePlayer
	AvailableColors []string
	// Seated is false when the call repeated an existing join.
	Seated bool
}

type RemoveResult struct {
	GameID          uint
	RemovedColor    string
	Players         []models.GamePlayer
	AvailableColors []string
}

type StartResult struct {
	GameID    uint
	StartTime time.Time
	Players   []models.GamePlayer
}

// GetOrCreateOpenGame returns the oldest waiting game with a free seat, or
// creates one. Concurrent callers never create more than one game for the
// same shortage.
func (m *LobbyManager) GetOrCreateOpenGame(ctx context.Context) (*models.Game, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	game, err := m.store.FindWaitingGame(ctx, m.requiredPlayers)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find waiting game: %w", err)
	}

	game = &models.Game{
		State:           models.GameWaiting,
		AvailableColors: models.Palette(),
		Winners:         []string{},
	}
	if err := m.store.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	log.Printf("Lobby: created game %d", game.ID)
	return game, nil
}

// AddPlayer seats username with color in a waiting game. Repeating a join
// with the same username and color is a no-op.
func (m *LobbyManager) AddPlayer(ctx context.Context, gameID uint, username, color string) (*LobbyResult, error) {
	if !models.IsPaletteColor(color) {
		return nil, ErrInvalidColor
	}

	unlock := m.locks.Lock(gameID)
	defer unlock()

	game, err := m.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := m.requireUser(ctx, username); err != nil {
		return nil, err
	}

	if seat, ok := game.FindPlayer(username); ok {
		if seat.Color == color {
			return lobbyResult(game), nil
		}
		return nil, ErrAlreadyJoined
	}
	// Started and full games are reported before a taken color; join retries on those.
	if game.State != models.GameWaiting {
		return nil, ErrGameNotWaiting
	}
	if len(game.Players) >= m.requiredPlayers {
		return nil, ErrLobbyFull
	}
	for _, p := range game.Players {
		if p.Color == color {
			return nil, ErrColorTaken
		}
	}

	seat := models.GamePlayer{
		GameID:   game.ID,
		Username: username,
		Color:    color,
		Position: nextPosition(game.Players),
		JoinedAt: m.now(),
	}
	game.Players = append(game.Players, seat)
	game.AvailableColors = game.FreeColors()

	if err := m.store.SaveLobby(ctx, game, store.LobbyChange{Player: seat, Joined: true}); err != nil {
		return nil, fmt.Errorf("seat %s in game %d: %w", username, gameID, err)
	}

	log.Printf("Lobby: %s joined game %d with %s (%d/%d)", username, gameID, color, len(game.Players), m.requiredPlayers)
	result := lobbyResult(game)
	result.Seated = true
	return result, nil
}

// RemovePlayer frees username's seat and returns the color to the pool.
func (m *LobbyManager) RemovePlayer(ctx context.Context, gameID uint, username string) (*RemoveResult, error) {
	unlock := m.locks.Lock(gameID)
	defer unlock()

	game, err := m.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := m.requireUser(ctx, username); err != nil {
		return nil, err
	}

	seat, ok := game.FindPlayer(username)
	if !ok {
		return nil, ErrPlayerNotInLobby
	}
	if game.State != models.GameWaiting {
		return nil, ErrGameNotWaiting
	}

	kept := make([]models.GamePlayer, 0, len(game.Players)-1)
	for _, p := range game.Players {
		if p.Username != username {
			kept = append(kept, p)
		}
	}
	game.Players = kept
	game.AvailableColors = game.FreeColors()

	if err := m.store.SaveLobby(ctx, game, store.LobbyChange{Player: seat}); err != nil {
		return nil, fmt.Errorf("unseat %s from game %d: %w", username, gameID, err)
	}

	log.Printf("Lobby: %s left game %d, %s is free again", username, gameID, seat.Color)
	return &RemoveResult{
		GameID:          game.ID,
		RemovedColor:    seat.Color,
		Players:         game.Players,
		AvailableColors: game.AvailableColors,
	}, nil
}

// CheckStart activates the game when exactly requiredPlayers players with
// distinct colors are seated.
func (m *LobbyManager) CheckStart(ctx context.Context, gameID uint) (*StartResult, error) {
	unlock := m.locks.Lock(gameID)
	defer unlock()

	game, err := m.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.State != models.GameWaiting {
		return nil, ErrGameNotWaiting
	}

	colors := make(map[string]bool, len(game.Players))
	for _, p := range game.Players {
		colors[p.Color] = true
	}
	if len(game.Players) != m.requiredPlayers || len(colors) != m.requiredPlayers {
		return nil, ErrNotReady
	}

	startedAt := m.now().UTC()
	game.State = models.GameActive
	game.StartedAt = &startedAt
	game.Cells = nil

	if err := m.store.StartGame(ctx, game); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrGameNotWaiting
		}
		return nil, fmt.Errorf("start game %d: %w", gameID, err)
	}

	log.Printf("Lobby: game %d started with %d players", gameID, len(game.Players))
	return &StartResult{
		GameID:    game.ID,
		StartTime: startedAt,
		Players:   game.Players,
	}, nil
}

// FindSeat returns the waiting game seating username, or the current open
// game when username holds no seat.
func (m *LobbyManager) FindSeat(ctx context.Context, username string) (*models.Game, bool, error) {
	game, err := m.store.FindSeatedGame(ctx, username)
	if err == nil {
		return game, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("find seat of %s: %w", username, err)
	}

	game, err = m.GetOrCreateOpenGame(ctx)
	if err != nil {
		return nil, false, err
	}
	return game, false, nil
}

func (m *LobbyManager) loadGame(ctx context.Context, gameID uint) (*models.Game, error) {
	game, err := m.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", gameID, err)
	}
	return game, nil
}

func (m *LobbyManager) requireUser(ctx context.Context, username string) error {
	_, err := m.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", username, err)
	}
	return nil
}

func lobbyResult(game *models.Game) *LobbyResult {
	return &LobbyResult{
		GameID:          game.ID,
		Players:         game.Players,
		AvailableColors: game.FreeColors(),
	}
}

func nextPosition(players []models.GamePlayer) int {
	next := 0
	for _, p := range players {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}
