// Package store persists games, lobby seats, claimed cells and user
// aggregates. Every Store method is atomic: it either applies all of its
// writes or none of them.
package store

import (
	"context"
	"errors"

	"colorgrid/models"
)

var (
	// ErrNotFound is returned when the requested game or user does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write lost against a uniqueness
	// constraint or a conditional state transition.
	ErrConflict = errors.New("conflicting write")
)

// LobbyChange describes one seat change in a waiting game.
type LobbyChange struct {
	Player models.GamePlayer
	Joined bool
}

// ClickRecord is everything one click writes.
type ClickRecord struct {
	GameID   uint
	StateID  uint
	Username string
	Success  bool
	// Cell is set only for successful clicks.
	Cell *models.Cell
}

// PlayerResult is a finished game's outcome for one user.
type PlayerResult struct {
	Username string
	Color    string
	Won      bool
}

type Store interface {
	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id uint) (*models.Game, error)
	// FindWaitingGame returns the oldest waiting game seating fewer than
	// maxPlayers players.
	FindWaitingGame(ctx context.Context, maxPlayers int) (*models.Game, error)
	// FindSeatedGame returns the waiting game in which username holds a seat.
	FindSeatedGame(ctx context.Context, username string) (*models.Game, error)
	SaveLobby(ctx context.Context, game *models.Game, change LobbyChange) error
	StartGame(ctx context.Context, game *models.Game) error
	SavePlayerState(ctx context.Context, state *models.PlayerState) error
	SaveClick(ctx context.Context, click *ClickRecord) error
	FinishGame(ctx context.Context, game *models.Game, results []PlayerResult) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	ApplyGameResult(ctx context.Context, result PlayerResult) error
}
