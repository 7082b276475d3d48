package services

import (
	"time"

	"colorgrid/models"
)

// Inbound actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
	ActionClick = "click"
)

// Outbound message types.
const (
	TypeLobbyUpdate = "lobby_update"
	TypeGameStart   = "game_start"
	TypeClickResult = "click_result"
	TypeFinishGame  = "finish_game"
	TypeError       = "error"
)

type LobbyRequest struct {
	Action   string `json:"action" binding:"required"`
	Username string `json:"username" binding:"required"`
	Color    string `json:"color"`
}

type GameRequest struct {
	Action   string `json:"action" binding:"required"`
	Username string `json:"username" binding:"required"`
	Coord    *int   `json:"coord" binding:"required"`
}

// PlayerPair is a seat on the wire: ["name", "#RRGGBB"].
type PlayerPair [2]string

func playerPairs(players []models.GamePlayer) []PlayerPair {
	pairs := make([]PlayerPair, 0, len(players))
	for _, p := range players {
		pairs = append(pairs, PlayerPair{p.Username, p.Color})
	}
	return pairs
}

type LobbyUpdateMessage struct {
	Type            string       `json:"type"`
	GameID          uint         `json:"game_id"`
	PlayersCount    int          `json:"players_count"`
	Players         []PlayerPair `json:"players"`
	AvailableColors []string     `json:"available_colors"`
}

func NewLobbyUpdate(gameID uint, players []models.GamePlayer, available []string) *LobbyUpdateMessage {
	if available == nil {
		available = []string{}
	}
	return &LobbyUpdateMessage{
		Type:            TypeLobbyUpdate,
		GameID:          gameID,
		PlayersCount:    len(players),
		Players:         playerPairs(players),
		AvailableColors: available,
	}
}

type GameStartMessage struct {
	Type      string       `json:"type"`
	GameID    uint         `json:"game_id"`
	StartTime time.Time    `json:"start_time"`
	Players   []PlayerPair `json:"players"`
}

func NewGameStart(r *StartResult) *GameStartMessage {
	return &GameStartMessage{
		Type:      TypeGameStart,
		GameID:    r.GameID,
		StartTime: r.StartTime,
		Players:   playerPairs(r.Players),
	}
}

type GameStats struct {
	TotalClicks  int `json:"total_clicks"`
	ClickedCells int `json:"clicked_cells"`
}

type ClickData struct {
	Success   bool      `json:"success"`
	Player    string    `json:"player"`
	Coord     int       `json:"coord"`
	Color     *string   `json:"color"`
	GameStats GameStats `json:"game_stats"`
}

type ClickResultMessage struct {
	Type string    `json:"type"`
	Data ClickData `json:"data"`
}

func NewClickResult(o *ClickOutcome) *ClickResultMessage {
	data := ClickData{
		Success: o.Success,
		Player:  o.Player,
		Coord:   o.Coord,
		GameStats: GameStats{
			TotalClicks:  o.TotalClicks,
			ClickedCells: o.ClickedCells,
		},
	}
	if o.Success {
		color := o.Color
		data.Color = &color
	}
	return &ClickResultMessage{Type: TypeClickResult, Data: data}
}

type ClickCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type PlayerResultData struct {
	Username string      `json:"username"`
	Color    string      `json:"color"`
	Score    int         `json:"score"`
	Stats    ClickCounts `json:"stats"`
}

type FinishData struct {
	Winners      []string           `json:"winners"`
	PlayersStats []PlayerResultData `json:"players_stats"`
	FinalState   *GameSnapshot      `json:"final_state"`
}

type FinishGameMessage struct {
	Type string     `json:"type"`
	Data FinishData `json:"data"`
}

func NewFinishGame(r *FinishResult) *FinishGameMessage {
	stats := make([]PlayerResultData, 0, len(r.PlayersStats))
	for _, p := range r.PlayersStats {
		stats = append(stats, PlayerResultData{
			Username: p.Username,
			Color:    p.Color,
			Score:    p.Score(),
			Stats: ClickCounts{
				Total:   p.TotalClicks,
				Success: p.SuccessClicks,
				Failed:  p.FailedClicks,
			},
		})
	}
	return &FinishGameMessage{
		Type: TypeFinishGame,
		Data: FinishData{
			Winners:      r.Winners,
			PlayersStats: stats,
			FinalState:   r.FinalState,
		},
	}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewErrorMessage(err *Error) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Error: err.Code, Message: err.Message}
}
