package repository

import (
	"context"
	"math_arena_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaderboardRepository struct {
	DB *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{DB: db}
}

// FindForUpdate 在事务内锁定 (username, difficulty) 的全部行，按创建先后排序
func (r *LeaderboardRepository) FindForUpdate(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ? AND difficulty = ?", username, difficulty).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *LeaderboardRepository) Create(tx *gorm.DB, entry *model.LeaderboardEntry) error {
	return tx.Create(entry).Error
}

// UpdateTotals 覆盖规范行的累计分数与局数
func (r *LeaderboardRepository) UpdateTotals(tx *gorm.DB, id uint, score, gamesPlayed int, at time.Time) error {
	return tx.Model(&model.LeaderboardEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"score":        score,
			"games_played": gamesPlayed,
			"updated_at":   at,
		}).Error
}

func (r *LeaderboardRepository) DeleteByIDs(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&model.LeaderboardEntry{}).Error
}

// Top 按用户名汇总所有行的分数，即使存在碎片行排名也正确
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	err := r.DB.WithContext(ctx).
		Model(&model.LeaderboardEntry{}).
		Select("username, SUM(score) AS score, SUM(games_played) AS games_played").
		Group("username").
		Order("SUM(score) DESC, username ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
