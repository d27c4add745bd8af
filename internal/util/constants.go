package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	QuotaStoreMemory = "memory"
	QuotaStoreRedis  = "redis"
)

const (
	RoleAdmin = "admin"

	ContextUserKey   = "user"
	ContextConfigKey = "config"
)

const MimeSVG = "image/svg+xml"

// 与 model 中对应列的 size 保持一致，超长输入按参数错误处理
const (
	MaxUsernameLength   = 100
	MaxDifficultyLength = 50
	MaxDaySeedLength    = 32
)
