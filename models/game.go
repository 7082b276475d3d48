package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GameState is the lifecycle stage of a game. Transitions only move forward.
type GameState string

const (
	GameWaiting  GameState = "waiting"
	GameActive   GameState = "active"
	GameFinished GameState = "finished"
)

// CanTransition reports whether a game in state s may move to next.
func (s GameState) CanTransition(next GameState) bool {
	switch s {
	case GameWaiting:
		return next == GameActive
	case GameActive:
		return next == GameFinished
	default:
		return false
	}
}

type Game struct {
	ID              uint                        `json:"id" gorm:"primaryKey"`
	State           GameState                   `json:"state" gorm:"type:varchar(16);not null;default:'waiting';index"`
	AvailableColors datatypes.JSONSlice[string] `json:"available_colors"`
	TotalClicks     int                         `json:"total_clicks" gorm:"not null;default:0"`
	Winners         datatypes.JSONSlice[string] `json:"winners"`
	StartedAt       *time.Time                  `json:"started_at"`
	EndedAt         *time.Time                  `json:"ended_at"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `json:"-" gorm:"index"`

	// Relationships
	Players      []GamePlayer  `json:"players,omitempty" gorm:"foreignKey:GameID"`
	Cells        []Cell        `json:"cells,omitempty" gorm:"foreignKey:GameID"`
	PlayerStates []PlayerState `json:"player_states,omitempty" gorm:"foreignKey:GameID"`
}

// FindPlayer returns the seat held by username, if any.
func (g *Game) FindPlayer(username string) (GamePlayer, bool) {
	for _, p := range g.Players {
		if p.Username == username {
			return p, true
		}
	}
	return GamePlayer{}, false
}

// FreeColors returns the palette colors not taken by any seated player,
// in palette order.
func (g *Game) FreeColors() []string {
	taken := make(map[string]bool, len(g.Players))
	for _, p := range g.Players {
		taken[p.Color] = true
	}
	free := make([]string, 0, len(palette))
	for _, c := range palette {
		if !taken[c] {
			free = append(free, c)
		}
	}
	return free
}

// GamePlayer is one seat in a game's lobby: who sits there and with which color.
type GamePlayer struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	GameID   uint      `json:"game_id" gorm:"not null;uniqueIndex:idx_game_player_name;uniqueIndex:idx_game_player_color"`
	Username string    `json:"username" gorm:"size:50;not null;uniqueIndex:idx_game_player_name"`
	Color    string    `json:"color" gorm:"size:8;not null;uniqueIndex:idx_game_player_color"`
	Position int       `json:"position" gorm:"not null"`
	JoinedAt time.Time `json:"joined_at"`
}

// Cell is a claimed grid cell. Unclaimed cells have no row.
type Cell struct {
	GameID    uint      `json:"game_id" gorm:"primaryKey;autoIncrement:false"`
	Coord     int       `json:"coord" gorm:"primaryKey;autoIncrement:false"`
	Color     string    `json:"color" gorm:"size:8;not null"`
	Username  string    `json:"username" gorm:"size:50;not null"`
	ClaimedAt time.Time `json:"claimed_at"`
}
