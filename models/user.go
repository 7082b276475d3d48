package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID            uint                        `json:"id" gorm:"primaryKey"`
	Username      string                      `json:"username" gorm:"size:50;uniqueIndex;not null"`
	PasswordHash  string                      `json:"-" gorm:"size:128"`
	Color         string                      `json:"color" gorm:"size:8"`
	TotalGames    int                         `json:"total_games" gorm:"not null;default:0"`
	TotalClicks   int                         `json:"total_clicks" gorm:"not null;default:0"`
	SuccessClicks int                         `json:"success_clicks" gorm:"not null;default:0"`
	FailedClicks  int                         `json:"failed_clicks" gorm:"not null;default:0"`
	WinsCount     int                         `json:"wins_count" gorm:"not null;default:0"`
	ColorsUsed    datatypes.JSONSlice[string] `json:"colors_used"`
	RegisteredAt  time.Time                   `json:"registration_date"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	DeletedAt     gorm.DeletedAt              `json:"-" gorm:"index"`
}

// RecordColor appends color to ColorsUsed unless it is already there.
func (u *User) RecordColor(color string) {
	for _, c := range u.ColorsUsed {
		if c == color {
			return
		}
	}
	u.ColorsUsed = append(u.ColorsUsed, color)
}
