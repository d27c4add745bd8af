package model

import "time"

type CertificateStatus string

const (
	CertificatePending CertificateStatus = "pending"
	CertificateIssued  CertificateStatus = "issued"
)

// swagger:model CertificateRequest
type CertificateRequest struct {
	BaseModel
	Username       string            `gorm:"size:100;not null" json:"username"`
	Score          int               `gorm:"not null" json:"score"`
	Status         CertificateStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	CertificateURL string            `gorm:"size:255" json:"certificateUrl"`
	// CertificateObject 存储中的对象键，重新生成或删除申请时用于清理旧文件
	CertificateObject string    `gorm:"size:255" json:"-"`
	RequestedAt       time.Time `gorm:"not null" json:"requestedAt"`
}

func (CertificateRequest) TableName() string {
	return "certificate_requests"
}
