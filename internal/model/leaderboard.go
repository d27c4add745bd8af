package model

import "time"

// swagger:model LeaderboardEntry
type LeaderboardEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string    `gorm:"size:100;not null;index:idx_leaderboard_user_difficulty,priority:1" json:"username"`
	Difficulty  string    `gorm:"size:50;not null;index:idx_leaderboard_user_difficulty,priority:2" json:"difficulty"`
	Score       int       `gorm:"not null;default:0" json:"score"`
	GamesPlayed int       `gorm:"not null;default:1" json:"gamesPlayed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (LeaderboardEntry) TableName() string {
	return "leaderboard"
}

// LeaderboardRow 排行榜聚合结果（按用户名汇总所有难度）
type LeaderboardRow struct {
	Username    string `json:"username"`
	Score       int64  `json:"score"`
	GamesPlayed int64  `json:"games_played"`
}
