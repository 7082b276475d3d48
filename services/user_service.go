package services

import (
	"context"
	"errors"
	"time"

	"colorgrid/store"
)

type UserService struct {
	store store.Store
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st}
}

type UserStats struct {
	Username         string    `json:"username"`
	TotalGames       int       `json:"total_games"`
	TotalClicks      int       `json:"total_clicks"`
	SuccessClicks    int       `json:"success_clicks"`
	FailedClicks     int       `json:"failed_clicks"`
	WinsCount        int       `json:"wins_count"`
	MostUsedColor    *string   `json:"most_used_color"`
	CurrentColor     string    `json:"current_color"`
	RegistrationDate time.Time `json:"registration_date"`
	ColorsUsed       []string  `json:"colors_used"`
}

// GetStats returns username's lifetime statistics.
func (s *UserService) GetStats(ctx context.Context, username string) (*UserStats, error) {
	user, err := s.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	colors := append([]string{}, user.ColorsUsed...)
	return &UserStats{
		Username:         user.Username,
		TotalGames:       user.TotalGames,
		TotalClicks:      user.TotalClicks,
		SuccessClicks:    user.SuccessClicks,
		FailedClicks:     user.FailedClicks,
		WinsCount:        user.WinsCount,
		MostUsedColor:    mostUsedColor(colors),
		CurrentColor:     user.Color,
		RegistrationDate: user.RegisteredAt,
		ColorsUsed:       colors,
	}, nil
}

// mostUsedColor is the mode of colors; on a tie the color that reached the
// top count first wins.
// Nil when colors is empty.
func mostUsedColor(colors []string) *string {
	if len(colors) == 0 {
		return nil
	}
	counts := make(map[string]int, len(colors))
	best := colors[0]
	for _, c := range colors {
		counts[c]++
		if counts[c] > counts[best] {
			best = c
		}
	}
	return &best
}
