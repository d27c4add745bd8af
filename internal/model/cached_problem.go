package model

import "time"

// CachedProblem 缓存的已生成题目，写入后不可变，存于 Redis
type CachedProblem struct {
	Topic          string    `json:"topic"`
	Difficulty     string    `json:"difficulty"`
	RawText        string    `json:"raw_text"`
	SourceIdentity string    `json:"source_identity"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProblemOrigin string

const (
	OriginCache ProblemOrigin = "cache"
	OriginAI    ProblemOrigin = "ai"
)
