package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"colorgrid/models"
)

func seedUsers(t *testing.T, s *MemoryStore, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := s.CreateUser(context.Background(), &models.User{Username: name}); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
}

func TestMemoryStoreCreateUserConflict(t *testing.T) {
	s := NewMemoryStore()
	seedUsers(t, s, "alice")

	err := s.CreateUser(context.Background(), &models.User{Username: "alice"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetUser(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	game := &models.Game{State: models.GameWaiting, AvailableColors: models.Palette()}
	if err := s.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	got, _ := s.GetGame(ctx, game.ID)
	got.AvailableColors[0] = "mutated"
	got.State = models.GameFinished

	again, _ := s.GetGame(ctx, game.ID)
	if again.AvailableColors[0] != "#FF0000" || again.State != models.GameWaiting {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemoryStoreFindWaitingGame(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice", "bob")

	if _, err := s.FindWaitingGame(ctx, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	first := &models.Game{State: models.GameWaiting}
	second := &models.Game{State: models.GameWaiting}
	s.CreateGame(ctx, first)
	s.CreateGame(ctx, second)

	seats := []models.GamePlayer{
		{Username: "alice", Color: "#FF0000"},
		{Username: "bob", Color: "#00FF00", Position: 1},
	}
	for _, seat := range seats {
		first.Players = append(first.Players, seat)
		if err := s.SaveLobby(ctx, first, LobbyChange{Player: seat, Joined: true}); err != nil {
			t.Fatalf("SaveLobby: %v", err)
		}
	}

	got, err := s.FindWaitingGame(ctx, 2)
	if err != nil {
		t.Fatalf("FindWaitingGame: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("expected the game with a free seat (%d), got %d", second.ID, got.ID)
	}
}

func TestMemoryStoreSaveLobbySetsUserColor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice")
	game := &models.Game{State: models.GameWaiting}
	s.CreateGame(ctx, game)

	seat := models.GamePlayer{Username: "alice", Color: "#FF0000"}
	game.Players = []models.GamePlayer{seat}
	if err := s.SaveLobby(ctx, game, LobbyChange{Player: seat, Joined: true}); err != nil {
		t.Fatalf("SaveLobby: %v", err)
	}
	if game.Players[0].ID == 0 {
		t.Error("expected the seat id to be assigned")
	}

	user, _ := s.GetUser(ctx, "alice")
	if user.Color != "#FF0000" {
		t.Errorf("expected current color #FF0000, got %q", user.Color)
	}

	if err := s.SaveLobby(ctx, game, LobbyChange{Player: seat, Joined: true}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate seat, got %v", err)
	}
}

func TestMemoryStoreSaveClickRejectsSecondClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice")
	game := &models.Game{State: models.GameActive}
	s.CreateGame(ctx, game)

	state := &models.PlayerState{GameID: game.ID, Username: "alice", Color: "#FF0000"}
	if err := s.SavePlayerState(ctx, state); err != nil {
		t.Fatalf("SavePlayerState: %v", err)
	}

	cell := &models.Cell{GameID: game.ID, Coord: 7, Color: "#FF0000", Username: "alice", ClaimedAt: time.Now()}
	click := &ClickRecord{GameID: game.ID, StateID: state.ID, Username: "alice", Success: true, Cell: cell}
	if err := s.SaveClick(ctx, click); err != nil {
		t.Fatalf("SaveClick: %v", err)
	}
	if err := s.SaveClick(ctx, click); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for second claim, got %v", err)
	}

	stored, _ := s.GetGame(ctx, game.ID)
	if stored.TotalClicks != 1 || len(stored.Cells) != 1 {
		t.Errorf("rejected click must not count: total=%d cells=%d", stored.TotalClicks, len(stored.Cells))
	}
	user, _ := s.GetUser(ctx, "alice")
	if user.TotalClicks != 1 || user.SuccessClicks != 1 || user.FailedClicks != 0 {
		t.Errorf("unexpected user counters %+v", user)
	}
}

func TestMemoryStoreFinishGameIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice", "bob")
	game := &models.Game{State: models.GameActive}
	s.CreateGame(ctx, game)

	game.Winners = []string{"alice"}
	results := []PlayerResult{
		{Username: "alice", Color: "#FF0000", Won: true},
		{Username: "bob", Color: "#00FF00"},
	}
	if err := s.FinishGame(ctx, game, results); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if err := s.FinishGame(ctx, game, results); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second finish, got %v", err)
	}

	alice, _ := s.GetUser(ctx, "alice")
	bob, _ := s.GetUser(ctx, "bob")
	if alice.WinsCount != 1 || alice.TotalGames != 1 {
		t.Errorf("alice: wins=%d games=%d", alice.WinsCount, alice.TotalGames)
	}
	if bob.WinsCount != 0 || bob.TotalGames != 1 {
		t.Errorf("bob: wins=%d games=%d", bob.WinsCount, bob.TotalGames)
	}
}

func TestMemoryStoreApplyGameResultKeepsColorsDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice")

	for i := 0; i < 2; i++ {
		if err := s.ApplyGameResult(ctx, PlayerResult{Username: "alice", Color: "#FF0000"}); err != nil {
			t.Fatalf("ApplyGameResult: %v", err)
		}
	}
	user, _ := s.GetUser(ctx, "alice")
	if user.TotalGames != 2 {
		t.Errorf("expected 2 games, got %d", user.TotalGames)
	}
	if len(user.ColorsUsed) != 1 {
		t.Errorf("expected one distinct color, got %v", user.ColorsUsed)
	}
	if err := s.ApplyGameResult(ctx, PlayerResult{Username: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreFindSeatedGame(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUsers(t, s, "alice", "bob")

	game := &models.Game{State: models.GameWaiting, AvailableColors: models.Palette()}
	s.CreateGame(ctx, game)
	seat := models.GamePlayer{GameID: game.ID, Username: "alice", Color: "#FF0000"}
	game.Players = append(game.Players, seat)
	if err := s.SaveLobby(ctx, game, LobbyChange{Player: seat, Joined: true}); err != nil {
		t.Fatalf("SaveLobby: %v", err)
	}

	found, err := s.FindSeatedGame(ctx, "alice")
	if err != nil || found.ID != game.ID {
		t.Fatalf("expected game %d, got %v (%v)", game.ID, found, err)
	}
	if _, err := s.FindSeatedGame(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unseated user: expected ErrNotFound, got %v", err)
	}

	game.State = models.GameActive
	s.StartGame(ctx, game)
	if _, err := s.FindSeatedGame(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("started game is no lobby seat: expected ErrNotFound, got %v", err)
	}
}
