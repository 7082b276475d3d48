package store

import (
	"context"
	"errors"
	"fmt"

	"colorgrid/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists to postgres through gorm. The *gorm.DB should be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the tables behind every model.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GamePlayer{},
		&models.Cell{},
		&models.PlayerState{},
	)
}

func (s *GormStore) CreateGame(ctx context.Context, game *models.Game) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(game).Error; err != nil {
		return fmt.Errorf("create game: %w", translate(err))
	}
	return nil
}

func (s *GormStore) GetGame(ctx context.Context, id uint) (*models.Game, error) {
	var game models.Game
	err := s.preloaded(ctx).First(&game, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game, nil
}

func (s *GormStore) FindWaitingGame(ctx context.Context, maxPlayers int) (*models.Game, error) {
	var game models.Game
	err := s.preloaded(ctx).
		Where("state = ?", models.GameWaiting).
		Where("(SELECT COUNT(*) FROM game_players gp WHERE gp.game_id = games.id) < ?", maxPlayers).
		Order("id ASC").
		First(&game).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game, nil
}

func (s *GormStore) FindSeatedGame(ctx context.Context, username string) (*models.Game, error) {
	var game models.Game
	err := s.preloaded(ctx).
		Where("state = ?", models.GameWaiting).
		Where("EXISTS (SELECT 1 FROM game_players gp WHERE gp.game_id = games.id AND gp.username = ?)", username).
		Order("id ASC").
		First(&game).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game, nil
}

func (s *GormStore) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Cells", func(db *gorm.DB) *gorm.DB {
			return db.Order("coord ASC")
		}).
		Preload("PlayerStates")
}

func (s *GormStore) SaveLobby(ctx context.Context, game *models.Game, change LobbyChange) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if change.Joined {
		seat := change.Player
		seat.GameID = game.ID
		if err := tx.Create(&seat).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("seat %s: %w", seat.Username, translate(err))
		}
		res := tx.Model(&models.User{}).Where("username = ?", seat.Username).Update("color", seat.Color)
		if res.Error != nil {
			tx.Rollback()
			return fmt.Errorf("set color for %s: %w", seat.Username, res.Error)
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return ErrNotFound
		}
		for i := range game.Players {
			if game.Players[i].Username == seat.Username {
				game.Players[i].ID = seat.ID
				game.Players[i].GameID = seat.GameID
			}
		}
	} else {
		res := tx.Where("game_id = ? AND username = ?", game.ID, change.Player.Username).Delete(&models.GamePlayer{})
		if res.Error != nil {
			tx.Rollback()
			return fmt.Errorf("unseat %s: %w", change.Player.Username, res.Error)
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return ErrNotFound
		}
	}

	if err := tx.Model(&models.Game{ID: game.ID}).Update("available_colors", game.AvailableColors).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("update available colors: %w", err)
	}

	return tx.Commit().Error
}

func (s *GormStore) StartGame(ctx context.Context, game *models.Game) error {
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND state = ?", game.ID, models.GameWaiting).
		Updates(map[string]interface{}{
			"state":      models.GameActive,
			"started_at": game.StartedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("start game %d: %w", game.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *GormStore) SavePlayerState(ctx context.Context, state *models.PlayerState) error {
	if err := s.db.WithContext(ctx).Create(state).Error; err != nil {
		return fmt.Errorf("create player state: %w", translate(err))
	}
	return nil
}

func (s *GormStore) SaveClick(ctx context.Context, click *ClickRecord) error {
	counter := "failed_clicks"
	if click.Success {
		counter = "success_clicks"
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if click.Cell != nil {
			if err := tx.Create(click.Cell).Error; err != nil {
				return fmt.Errorf("claim cell %d: %w", click.Cell.Coord, translate(err))
			}
		}

		if err := tx.Model(&models.Game{}).Where("id = ?", click.GameID).
			Update("total_clicks", gorm.Expr("total_clicks + 1")).Error; err != nil {
			return fmt.Errorf("count game click: %w", err)
		}

		res := tx.Model(&models.PlayerState{}).Where("id = ?", click.StateID).
			Updates(map[string]interface{}{
				"total_clicks": gorm.Expr("total_clicks + 1"),
				counter:        gorm.Expr(counter + " + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("count player click: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		res = tx.Model(&models.User{}).Where("username = ?", click.Username).
			Updates(map[string]interface{}{
				"total_clicks": gorm.Expr("total_clicks + 1"),
				counter:        gorm.Expr(counter + " + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("count user click: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) FinishGame(ctx context.Context, game *models.Game, results []PlayerResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Game{}).
			Where("id = ? AND state = ?", game.ID, models.GameActive).
			Updates(map[string]interface{}{
				"state":    models.GameFinished,
				"winners":  game.Winners,
				"ended_at": game.EndedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("finish game %d: %w", game.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		for _, r := range results {
			if err := applyGameResult(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) ApplyGameResult(ctx context.Context, result PlayerResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyGameResult(tx, result)
	})
}

func applyGameResult(tx *gorm.DB, result PlayerResult) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ?", result.Username).
		First(&user).Error
	if err != nil {
		return fmt.Errorf("load %s: %w", result.Username, translate(err))
	}

	user.TotalGames++
	if result.Won {
		user.WinsCount++
	}
	user.RecordColor(result.Color)

	err = tx.Model(&user).Updates(map[string]interface{}{
		"total_games": user.TotalGames,
		"wins_count":  user.WinsCount,
		"colors_used": user.ColorsUsed,
	}).Error
	if err != nil {
		return fmt.Errorf("record result for %s: %w", result.Username, err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
