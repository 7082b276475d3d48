package services

import (
	"context"
	"testing"

	"colorgrid/models"
	"colorgrid/store"
)

const (
	red   = "#FF0000"
	green = "#00FF00"
	blue  = "#0000FF"
)

func newTestStore(t *testing.T, users ...string) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	for _, name := range users {
		if err := st.CreateUser(context.Background(), &models.User{Username: name}); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
	return st
}

// startedGame seats players (username -> color, in order) and starts the game.
func startedGame(t *testing.T, st store.Store, seats ...[2]string) uint {
	t.Helper()
	ctx := context.Background()
	lobby := NewLobbyManager(st, len(seats))

	game, err := lobby.GetOrCreateOpenGame(ctx)
	if err != nil {
		t.Fatalf("GetOrCreateOpenGame: %v", err)
	}
	for _, seat := range seats {
		if _, err := lobby.AddPlayer(ctx, game.ID, seat[0], seat[1]); err != nil {
			t.Fatalf("AddPlayer(%s): %v", seat[0], err)
		}
	}
	if _, err := lobby.CheckStart(ctx, game.ID); err != nil {
		t.Fatalf("CheckStart: %v", err)
	}
	return game.ID
}

func openSession(t *testing.T, st store.Store, gameID uint) *GameSession {
	t.Helper()
	session, err := NewSessionRegistry(st, nil).Open(context.Background(), gameID)
	if err != nil {
		t.Fatalf("Open(%d): %v", gameID, err)
	}
	return session
}
