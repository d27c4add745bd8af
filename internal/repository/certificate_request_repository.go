package repository

import (
	"context"
	"math_arena_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRequestRepository struct {
	DB *gorm.DB
}

func NewCertificateRequestRepository(db *gorm.DB) *CertificateRequestRepository {
	return &CertificateRequestRepository{DB: db}
}

func (r *CertificateRequestRepository) Create(ctx context.Context, req *model.CertificateRequest) error {
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *CertificateRequestRepository) FindByID(ctx context.Context, id uint) (*model.CertificateRequest, error) {
	var req model.CertificateRequest
	if err := r.DB.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// List 按申请时间倒序分页
func (r *CertificateRequestRepository) List(ctx context.Context, page, limit int) ([]model.CertificateRequest, int64, error) {
	var (
		reqs  []model.CertificateRequest
		total int64
	)

	query := r.DB.WithContext(ctx).Model(&model.CertificateRequest{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("requested_at DESC, id DESC").Offset(offset).Limit(limit).Find(&reqs).Error
	return reqs, total, err
}

func (r *CertificateRequestRepository) MarkIssued(ctx context.Context, id uint, object, url string) error {
	return r.DB.WithContext(ctx).
		Model(&model.CertificateRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             model.CertificateIssued,
			"certificate_url":    url,
			"certificate_object": object,
		}).Error
}

// Delete 返回 gorm.ErrRecordNotFound 表示记录不存在
func (r *CertificateRequestRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB.WithContext(ctx).Delete(&model.CertificateRequest{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
