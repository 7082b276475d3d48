package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"colorgrid/config"
	"colorgrid/models"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// newGormStore connects to the postgres named by the DB_* environment
// variables. Tests using it are skipped with -short or without DB_HOST.
func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	if testing.Short() || os.Getenv("DB_HOST") == "" {
		t.Skip("postgres tests need DB_HOST and no -short")
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.Flags(fs)
	db, err := config.InitDB(config.Load(config.NewViper(fs)))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	s := NewGormStore(db)
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return s
}

func gormUsers(t *testing.T, s *GormStore, n int) []string {
	t.Helper()
	names := make([]string, n)
	for i := range names {
		names[i] = "u-" + uuid.NewString()[:18]
		if err := s.CreateUser(context.Background(), &models.User{Username: names[i], ColorsUsed: []string{}}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	return names
}

func gormSeat(t *testing.T, s *GormStore, game *models.Game, username, color string) {
	t.Helper()
	seat := models.GamePlayer{GameID: game.ID, Username: username, Color: color, Position: len(game.Players), JoinedAt: time.Now()}
	game.Players = append(game.Players, seat)
	game.AvailableColors = game.FreeColors()
	if err := s.SaveLobby(context.Background(), game, LobbyChange{Player: seat, Joined: true}); err != nil {
		t.Fatalf("SaveLobby(%s): %v", username, err)
	}
}

func TestGormStoreLobby(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	users := gormUsers(t, s, 3)

	game := &models.Game{State: models.GameWaiting, AvailableColors: models.Palette(), Winners: []string{}}
	if err := s.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	gormSeat(t, s, game, users[0], "#FF0000")

	seat := models.GamePlayer{GameID: game.ID, Username: users[1], Color: "#FF0000", Position: 1}
	if err := s.SaveLobby(ctx, game, LobbyChange{Player: seat, Joined: true}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate color: expected ErrConflict, got %v", err)
	}
	game.Players = game.Players[:1]

	found, err := s.FindSeatedGame(ctx, users[0])
	if err != nil || found.ID != game.ID {
		t.Fatalf("FindSeatedGame: got %v (%v)", found, err)
	}
	if len(found.AvailableColors) != 15 {
		t.Errorf("expected 15 free colors stored, got %d", len(found.AvailableColors))
	}

	gormSeat(t, s, game, users[1], "#00FF00")
	if open, err := s.FindWaitingGame(ctx, 2); err == nil && open.ID == game.ID {
		t.Error("a full game must not be offered as open")
	}
	if open, err := s.FindWaitingGame(ctx, 3); err != nil || open.ID > game.ID {
		t.Errorf("expected the oldest game with a free seat, got %v (%v)", open, err)
	}

	started := time.Now().UTC()
	game.StartedAt = &started
	if err := s.StartGame(ctx, game); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := s.StartGame(ctx, game); !errors.Is(err, ErrConflict) {
		t.Errorf("second start: expected ErrConflict, got %v", err)
	}
	if _, err := s.FindSeatedGame(ctx, users[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("started game: expected ErrNotFound, got %v", err)
	}
}

func TestGormStoreClicksAndFinish(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	users := gormUsers(t, s, 2)

	game := &models.Game{State: models.GameWaiting, AvailableColors: models.Palette(), Winners: []string{}}
	s.CreateGame(ctx, game)
	gormSeat(t, s, game, users[0], "#FF0000")
	gormSeat(t, s, game, users[1], "#00FF00")
	started := time.Now().UTC()
	game.StartedAt = &started
	if err := s.StartGame(ctx, game); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	states := make([]*models.PlayerState, 2)
	for i, name := range users {
		states[i] = &models.PlayerState{GameID: game.ID, Username: name, Color: game.Players[i].Color}
		if err := s.SavePlayerState(ctx, states[i]); err != nil {
			t.Fatalf("SavePlayerState: %v", err)
		}
	}

	claim := &ClickRecord{GameID: game.ID, StateID: states[0].ID, Username: users[0], Success: true,
		Cell: &models.Cell{GameID: game.ID, Coord: 55, Color: "#FF0000", Username: users[0], ClaimedAt: time.Now()}}
	if err := s.SaveClick(ctx, claim); err != nil {
		t.Fatalf("SaveClick: %v", err)
	}
	steal := &ClickRecord{GameID: game.ID, StateID: states[1].ID, Username: users[1], Success: true,
		Cell: &models.Cell{GameID: game.ID, Coord: 55, Color: "#00FF00", Username: users[1], ClaimedAt: time.Now()}}
	if err := s.SaveClick(ctx, steal); !errors.Is(err, ErrConflict) {
		t.Fatalf("second claim: expected ErrConflict, got %v", err)
	}
	miss := &ClickRecord{GameID: game.ID, StateID: states[1].ID, Username: users[1]}
	if err := s.SaveClick(ctx, miss); err != nil {
		t.Fatalf("SaveClick: %v", err)
	}

	stored, err := s.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if stored.TotalClicks != 2 || len(stored.Cells) != 1 || stored.Cells[0].Color != "#FF0000" {
		t.Errorf("rolled back claim leaked: %d clicks, cells %+v", stored.TotalClicks, stored.Cells)
	}
	for _, ps := range stored.PlayerStates {
		if ps.Username == users[1] && (ps.TotalClicks != 1 || ps.FailedClicks != 1 || ps.SuccessClicks != 0) {
			t.Errorf("unexpected counters %+v", ps)
		}
	}

	ended := time.Now().UTC()
	game.Winners = []string{users[0]}
	game.EndedAt = &ended
	results := []PlayerResult{
		{Username: users[0], Color: "#FF0000", Won: true},
		{Username: users[1], Color: "#00FF00"},
	}
	if err := s.FinishGame(ctx, game, results); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if err := s.FinishGame(ctx, game, results); !errors.Is(err, ErrConflict) {
		t.Errorf("second finish: expected ErrConflict, got %v", err)
	}

	winner, _ := s.GetUser(ctx, users[0])
	if winner.TotalGames != 1 || winner.WinsCount != 1 || winner.SuccessClicks != 1 || len(winner.ColorsUsed) != 1 {
		t.Errorf("unexpected winner aggregates %+v", winner)
	}
	loser, _ := s.GetUser(ctx, users[1])
	if loser.TotalGames != 1 || loser.WinsCount != 0 || loser.FailedClicks != 1 {
		t.Errorf("unexpected loser aggregates %+v", loser)
	}
}
