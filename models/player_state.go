package models

import "time"

// PlayerState holds one user's click counters within one game.
type PlayerState struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	GameID        uint      `json:"game_id" gorm:"not null;uniqueIndex:idx_player_state_game_user"`
	Username      string    `json:"username" gorm:"size:50;not null;uniqueIndex:idx_player_state_game_user"`
	Color         string    `json:"color" gorm:"size:8;not null"`
	TotalClicks   int       `json:"total_clicks" gorm:"not null;default:0"`
	SuccessClicks int       `json:"success_clicks" gorm:"not null;default:0"`
	FailedClicks  int       `json:"failed_clicks" gorm:"not null;default:0"`
	JoinedAt      time.Time `json:"joined_at"`
}
