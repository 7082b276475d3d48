package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"colorgrid/models"
)

// MemoryStore keeps everything in process memory. Callers only ever see
// copies, so a failed or abandoned mutation never leaks into stored state.
type MemoryStore struct {
	mu          sync.Mutex
	games       map[uint]*models.Game
	users       map[string]*models.User
	nextGameID  uint
	nextUserID  uint
	nextStateID uint
	nextSeatID  uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[uint]*models.Game),
		users: make(map[string]*models.User),
	}
}

func (s *MemoryStore) CreateGame(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGameID++
	game.ID = s.nextGameID
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now
	s.games[game.ID] = copyGame(game)
	return nil
}

func (s *MemoryStore) GetGame(ctx context.Context, id uint) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGame(game), nil
}

func (s *MemoryStore) FindWaitingGame(ctx context.Context, maxPlayers int) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint, 0, len(s.games))
	for id, g := range s.games {
		if g.State == models.GameWaiting && len(g.Players) < maxPlayers {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return copyGame(s.games[ids[0]]), nil
}

func (s *MemoryStore) FindSeatedGame(ctx context.Context, username string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Game
	for _, g := range s.games {
		if g.State != models.GameWaiting {
			continue
		}
		if _, ok := g.FindPlayer(username); ok && (found == nil || g.ID < found.ID) {
			found = g
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return copyGame(found), nil
}

func (s *MemoryStore) SaveLobby(ctx context.Context, game *models.Game, change LobbyChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[game.ID]
	if !ok {
		return ErrNotFound
	}

	if change.Joined {
		user, ok := s.users[change.Player.Username]
		if !ok {
			return ErrNotFound
		}
		for _, p := range stored.Players {
			if p.Username == change.Player.Username || p.Color == change.Player.Color {
				return ErrConflict
			}
		}
		s.nextSeatID++
		seat := change.Player
		seat.ID = s.nextSeatID
		seat.GameID = game.ID
		stored.Players = append(stored.Players, seat)
		user.Color = seat.Color
		user.UpdatedAt = time.Now()
	} else {
		kept := stored.Players[:0:0]
		removed := false
		for _, p := range stored.Players {
			if p.Username == change.Player.Username {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if !removed {
			return ErrNotFound
		}
		stored.Players = kept
	}

	stored.AvailableColors = append(stored.AvailableColors[:0:0], game.AvailableColors...)
	stored.UpdatedAt = time.Now()

	// Hand assigned seat ids back to the caller.
	game.Players = append(game.Players[:0:0], stored.Players...)
	return nil
}

func (s *MemoryStore) StartGame(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[game.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.State.CanTransition(models.GameActive) {
		return ErrConflict
	}
	stored.State = models.GameActive
	stored.StartedAt = copyTime(game.StartedAt)
	stored.Cells = nil
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SavePlayerState(ctx context.Context, state *models.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[state.GameID]
	if !ok {
		return ErrNotFound
	}
	for _, ps := range stored.PlayerStates {
		if ps.Username == state.Username {
			return ErrConflict
		}
	}
	s.nextStateID++
	state.ID = s.nextStateID
	stored.PlayerStates = append(stored.PlayerStates, *state)
	return nil
}

func (s *MemoryStore) SaveClick(ctx context.Context, click *ClickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[click.GameID]
	if !ok {
		return ErrNotFound
	}
	user, ok := s.users[click.Username]
	if !ok {
		return ErrNotFound
	}
	stateIdx := -1
	for i, ps := range stored.PlayerStates {
		if ps.ID == click.StateID {
			stateIdx = i
			break
		}
	}
	if stateIdx < 0 {
		return ErrNotFound
	}
	if click.Cell != nil {
		for _, c := range stored.Cells {
			if c.Coord == click.Cell.Coord {
				return ErrConflict
			}
		}
	}

	// All checks passed; apply.
	if click.Cell != nil {
		stored.Cells = append(stored.Cells, *click.Cell)
	}
	stored.TotalClicks++
	state := &stored.PlayerStates[stateIdx]
	state.TotalClicks++
	user.TotalClicks++
	if click.Success {
		state.SuccessClicks++
		user.SuccessClicks++
	} else {
		state.FailedClicks++
		user.FailedClicks++
	}
	return nil
}

func (s *MemoryStore) FinishGame(ctx context.Context, game *models.Game, results []PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[game.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.State.CanTransition(models.GameFinished) {
		return ErrConflict
	}
	for _, r := range results {
		if _, ok := s.users[r.Username]; !ok {
			return ErrNotFound
		}
	}

	stored.State = models.GameFinished
	stored.Winners = append(stored.Winners[:0:0], game.Winners...)
	stored.EndedAt = copyTime(game.EndedAt)
	stored.UpdatedAt = time.Now()
	for _, r := range results {
		s.applyResultLocked(r)
	}
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return ErrConflict
	}
	s.nextUserID++
	user.ID = s.nextUserID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	s.users[user.Username] = copyUser(user)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

func (s *MemoryStore) ApplyGameResult(ctx context.Context, result PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[result.Username]; !ok {
		return ErrNotFound
	}
	s.applyResultLocked(result)
	return nil
}

func (s *MemoryStore) applyResultLocked(result PlayerResult) {
	user := s.users[result.Username]
	user.TotalGames++
	if result.Won {
		user.WinsCount++
	}
	user.RecordColor(result.Color)
	user.UpdatedAt = time.Now()
}

func copyGame(g *models.Game) *models.Game {
	c := *g
	c.AvailableColors = append(g.AvailableColors[:0:0], g.AvailableColors...)
	c.Winners = append(g.Winners[:0:0], g.Winners...)
	c.StartedAt = copyTime(g.StartedAt)
	c.EndedAt = copyTime(g.EndedAt)
	c.Players = append([]models.GamePlayer(nil), g.Players...)
	c.Cells = append([]models.Cell(nil), g.Cells...)
	c.PlayerStates = append([]models.PlayerState(nil), g.PlayerStates...)
	return &c
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.ColorsUsed = append(u.ColorsUsed[:0:0], u.ColorsUsed...)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
