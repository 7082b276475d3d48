package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"colorgrid/models"
	"colorgrid/store"
)

// GameSession owns the runtime state of one active or finished game. All
// methods are serialized by the session mutex, and in-memory state changes
// only after the store committed the matching writes.
type GameSession struct {
	mu     sync.Mutex
	store  store.Store
	cache  SnapshotCache
	game   *models.Game
	cells  map[int]models.Cell
	states map[string]*models.PlayerState
	now    func() time.Time
}

type ClickOutcome struct {
	Success       bool
	Player        string
	Coord         int
	Color         string // empty when the cell was already claimed
	TotalClicks   int
	ClickedCells  int
	PlayerClicks  int
	PlayerSuccess int
}

type PlayerStats struct {
	Username      string `json:"username"`
	Color         string `json:"color"`
	TotalClicks   int    `json:"total_clicks"`
	SuccessClicks int    `json:"success_clicks"`
	FailedClicks  int    `json:"failed_clicks"`
}

// Score is the number of cells the player claimed.
func (p PlayerStats) Score() int {
	return p.SuccessClicks
}

type FinishResult struct {
	Winners      []string
	PlayersStats []PlayerStats
	FinalState   *GameSnapshot
}

// GameSnapshot is the read model of a game sent to clients and cached.
type GameSnapshot struct {
	GameID       uint              `json:"game_id"`
	Status       models.GameState  `json:"status"`
	StartTime    *time.Time        `json:"start_time,omitempty"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	GridSize     int               `json:"grid_size"`
	Players      []PlayerStats     `json:"players"`
	Cells        map[string]string `json:"cells"`
	TotalClicks  int               `json:"total_clicks"`
	ClickedCells int               `json:"clicked_cells_count"`
	Winners      []string          `json:"winners"`
	Scores       map[string]int    `json:"scores"`
}

func newGameSession(game *models.Game, st store.Store, cache SnapshotCache) *GameSession {
	s := &GameSession{
		store:  st,
		cache:  cache,
		game:   game,
		cells:  make(map[int]models.Cell, len(game.Cells)),
		states: make(map[string]*models.PlayerState, len(game.PlayerStates)),
		now:    time.Now,
	}
	for _, c := range game.Cells {
		s.cells[c.Coord] = c
	}
	for i := range game.PlayerStates {
		ps := game.PlayerStates[i]
		s.states[ps.Username] = &ps
	}
	return s
}

// ID returns the game id.
func (s *GameSession) ID() uint {
	return s.game.ID
}

// HasPlayer reports whether username holds a seat in this game.
func (s *GameSession) HasPlayer(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.game.FindPlayer(username)
	return ok
}

// GetOrCreatePlayerState returns a copy of username's counters in this game,
// creating them on first use.
func (s *GameSession) GetOrCreatePlayerState(ctx context.Context, username string) (models.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.playerState(ctx, username)
	if err != nil {
		return models.PlayerState{}, err
	}
	return *state, nil
}

func (s *GameSession) playerState(ctx context.Context, username string) (*models.PlayerState, error) {
	if state, ok := s.states[username]; ok {
		return state, nil
	}
	seat, ok := s.game.FindPlayer(username)
	if !ok {
		return nil, ErrPlayerNotInGame
	}

	state := &models.PlayerState{
		GameID:   s.game.ID,
		Username: username,
		Color:    seat.Color,
		JoinedAt: s.now(),
	}
	if err := s.store.SavePlayerState(ctx, state); err != nil {
		return nil, fmt.Errorf("create state for %s in game %d: %w", username, s.game.ID, err)
	}
	s.states[username] = state
	return state, nil
}

// RegisterClick records one click on coord. The first click to reach an
// unclaimed cell claims it; later clicks on that cell count as failed.
func (s *GameSession) RegisterClick(ctx context.Context, username string, coord int) (*ClickOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.State != models.GameActive {
		return nil, ErrGameNotActive
	}
	if !models.ValidCoord(coord) {
		return nil, ErrInvalidCoordinate
	}

	state, err := s.playerState(ctx, username)
	if err != nil {
		return nil, err
	}

	_, claimed := s.cells[coord]
	click := &store.ClickRecord{
		GameID:   s.game.ID,
		StateID:  state.ID,
		Username: username,
		Success:  !claimed,
	}
	if click.Success {
		click.Cell = &models.Cell{
			GameID:    s.game.ID,
			Coord:     coord,
			Color:     state.Color,
			Username:  username,
			ClaimedAt: s.now(),
		}
	}

	if err := s.store.SaveClick(ctx, click); err != nil {
		return nil, fmt.Errorf("save click of %s on %d in game %d: %w", username, coord, s.game.ID, err)
	}

	s.game.TotalClicks++
	state.TotalClicks++
	if click.Success {
		s.cells[coord] = *click.Cell
		state.SuccessClicks++
	} else {
		state.FailedClicks++
	}

	outcome := &ClickOutcome{
		Success:       click.Success,
		Player:        username,
		Coord:         coord,
		TotalClicks:   s.game.TotalClicks,
		ClickedCells:  len(s.cells),
		PlayerClicks:  state.TotalClicks,
		PlayerSuccess: state.SuccessClicks,
	}
	if click.Success {
		outcome.Color = state.Color
	}

	s.cacheSnapshot(ctx)
	return outcome, nil
}

// CheckFinished reports whether every cell has been claimed.
func (s *GameSession) CheckFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells) >= models.GridCells
}

// Finish ends an active game, declares every player tied at the top score a
// winner and records the result on each player's account.
func (s *GameSession) Finish(ctx context.Context) (*FinishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.State != models.GameActive {
		return nil, ErrAlreadyFinished
	}

	stats := make([]PlayerStats, 0, len(s.game.Players))
	for _, seat := range s.game.Players {
		state, err := s.playerState(ctx, seat.Username)
		if err != nil {
			return nil, err
		}
		stats = append(stats, statsOf(state))
	}

	best := 0
	for _, p := range stats {
		if p.Score() > best {
			best = p.Score()
		}
	}
	winners := make([]string, 0, 1)
	results := make([]store.PlayerResult, 0, len(stats))
	for _, p := range stats {
		won := p.Score() == best
		if won {
			winners = append(winners, p.Username)
		}
		results = append(results, store.PlayerResult{Username: p.Username, Color: p.Color, Won: won})
	}

	endedAt := s.now().UTC()
	finished := *s.game
	finished.State = models.GameFinished
	finished.Winners = winners
	finished.EndedAt = &endedAt

	if err := s.store.FinishGame(ctx, &finished, results); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyFinished
		}
		return nil, fmt.Errorf("finish game %d: %w", s.game.ID, err)
	}

	s.game.State = models.GameFinished
	s.game.Winners = winners
	s.game.EndedAt = &endedAt

	log.Printf("Game %d finished after %d clicks, winners: %v", s.game.ID, s.game.TotalClicks, winners)

	snapshot := s.snapshotLocked()
	s.storeSnapshot(ctx, snapshot)
	return &FinishResult{
		Winners:      winners,
		PlayersStats: stats,
		FinalState:   snapshot,
	}, nil
}

// Snapshot returns the current read model of the game.
func (s *GameSession) Snapshot() *GameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *GameSession) snapshotLocked() *GameSnapshot {
	snap := &GameSnapshot{
		GameID:       s.game.ID,
		Status:       s.game.State,
		StartTime:    s.game.StartedAt,
		EndTime:      s.game.EndedAt,
		GridSize:     models.GridSize,
		Players:      make([]PlayerStats, 0, len(s.game.Players)),
		Cells:        make(map[string]string, len(s.cells)),
		TotalClicks:  s.game.TotalClicks,
		ClickedCells: len(s.cells),
		Winners:      append([]string{}, s.game.Winners...),
		Scores:       make(map[string]int, len(s.game.Players)),
	}
	for _, seat := range s.game.Players {
		p := PlayerStats{Username: seat.Username, Color: seat.Color}
		if state, ok := s.states[seat.Username]; ok {
			p = statsOf(state)
		}
		snap.Players = append(snap.Players, p)
		snap.Scores[p.Username] = p.Score()
	}
	for coord, cell := range s.cells {
		snap.Cells[strconv.Itoa(coord)] = cell.Color
	}
	return snap
}

func (s *GameSession) cacheSnapshot(ctx context.Context) {
	s.storeSnapshot(ctx, s.snapshotLocked())
}

func (s *GameSession) storeSnapshot(ctx context.Context, snap *GameSnapshot) {
	if err := s.cache.Save(ctx, snap); err != nil {
		log.Printf("Failed to cache snapshot of game %d: %v", snap.GameID, err)
	}
}

func statsOf(state *models.PlayerState) PlayerStats {
	return PlayerStats{
		Username:      state.Username,
		Color:         state.Color,
		TotalClicks:   state.TotalClicks,
		SuccessClicks: state.SuccessClicks,
		FailedClicks:  state.FailedClicks,
	}
}

// SessionRegistry keeps one GameSession per started game.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uint]*GameSession
	store    store.Store
	cache    SnapshotCache
}

func NewSessionRegistry(st store.Store, cache SnapshotCache) *SessionRegistry {
	if cache == nil {
		cache = NopSnapshotCache{}
	}
	return &SessionRegistry{
		sessions: make(map[uint]*GameSession),
		store:    st,
		cache:    cache,
	}
}

// Open returns the session of gameID, loading it from the store on first
// use. Games still in the lobby have no session; finished games get a
// fresh one on every call.
func (r *SessionRegistry) Open(ctx context.Context, gameID uint) (*GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[gameID]; ok {
		return s, nil
	}

	game, err := r.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", gameID, err)
	}
	if game.State == models.GameWaiting {
		return nil, ErrGameNotActive
	}

	s := newGameSession(game, r.store, r.cache)
	// Finished games never change again; serve them without keeping them.
	if game.State != models.GameFinished {
		r.sessions[gameID] = s
	}
	return s, nil
}

// Release forgets a session; the next Open reloads it from the store.
func (r *SessionRegistry) Release(gameID uint) {
	r.mu.Lock()
	delete(r.sessions, gameID)
	r.mu.Unlock()
}

// Snapshot returns the read model of gameID, preferring the cache.
func (r *SessionRegistry) Snapshot(ctx context.Context, gameID uint) (*GameSnapshot, error) {
	snap, err := r.cache.Load(ctx, gameID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrSnapshotMiss) {
		log.Printf("Snapshot cache lookup for game %d failed: %v", gameID, err)
	}

	s, err := r.Open(ctx, gameID)
	if err != nil {
		return nil, err
	}
	snap = s.Snapshot()
	s.storeSnapshot(ctx, snap)
	return snap, nil
}
