package repository

import (
	"context"
	"math_arena_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyPlayRepository struct {
	DB *gorm.DB
}

func NewDailyPlayRepository(db *gorm.DB) *DailyPlayRepository {
	return &DailyPlayRepository{DB: db}
}

func (r *DailyPlayRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

func (r *DailyPlayRepository) FindByIPAndSeed(ctx context.Context, tx *gorm.DB, ip, daySeed string) (*model.DailyPlay, error) {
	var play model.DailyPlay
	err := r.conn(ctx, tx).Where("ip = ? AND day_seed = ?", ip, daySeed).First(&play).Error
	if err != nil {
		return nil, err
	}
	return &play, nil
}

// InsertIfAbsent 依赖 (ip, day_seed) 唯一索引，返回本次是否真正插入
func (r *DailyPlayRepository) InsertIfAbsent(ctx context.Context, tx *gorm.DB, play *model.DailyPlay) (bool, error) {
	result := r.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip"}, {Name: "day_seed"}},
			DoNothing: true,
		}).
		Create(play)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimSubmission 把生成时登记的记录标记为已提交，只有第一次提交能成功
func (r *DailyPlayRepository) ClaimSubmission(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) (bool, error) {
	result := r.conn(ctx, tx).
		Model(&model.DailyPlay{}).
		Where("ip = ? AND day_seed = ? AND submitted_at IS NULL", ip, daySeed).
		Updates(map[string]interface{}{
			"submitted_at":   at,
			"last_played_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchLastPlayed 幂等写入：不存在则插入，存在则只更新 last_played_at
func (r *DailyPlayRepository) TouchLastPlayed(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) error {
	play := &model.DailyPlay{
		IP:           ip,
		DaySeed:      daySeed,
		PlayedAt:     at,
		SubmittedAt:  &at,
		LastPlayedAt: at,
	}
	return r.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip"}, {Name: "day_seed"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_played_at"}),
		}).
		Create(play).Error
}

// DeleteUnsubmitted 撤销尚未提交成绩的登记
func (r *DailyPlayRepository) DeleteUnsubmitted(ctx context.Context, ip, daySeed string) error {
	return r.DB.WithContext(ctx).
		Where("ip = ? AND day_seed = ? AND submitted_at IS NULL", ip, daySeed).
		Delete(&model.DailyPlay{}).Error
}
