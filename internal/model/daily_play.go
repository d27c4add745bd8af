package model

import "time"

// DailyPlay 每日挑战记录，(ip, day_seed) 唯一
type DailyPlay struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	IP           string     `gorm:"size:64;not null;uniqueIndex:uk_ip_day_seed,priority:1" json:"ip"`
	DaySeed      string     `gorm:"size:32;not null;uniqueIndex:uk_ip_day_seed,priority:2" json:"daySeed"`
	PlayedAt     time.Time  `gorm:"not null" json:"playedAt"`
	SubmittedAt  *time.Time `json:"submittedAt"`
	LastPlayedAt time.Time  `gorm:"not null" json:"lastPlayedAt"`
}

func (DailyPlay) TableName() string {
	return "ip_play_limits"
}
