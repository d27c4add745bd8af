package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 在单个事务内执行 fn，fn 返回错误或 panic 时回滚，连接在任何路径都会归还连接池
type TxManager struct {
	DB *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{DB: db}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.DB.WithContext(ctx).Transaction(fn)
}
