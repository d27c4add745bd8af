package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/logger"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CertificateStore interface {
	Create(ctx context.Context, req *model.CertificateRequest) error
	FindByID(ctx context.Context, id uint) (*model.CertificateRequest, error)
	List(ctx context.Context, page, limit int) ([]model.CertificateRequest, int64, error)
	MarkIssued(ctx context.Context, id uint, object, url string) error
	Delete(ctx context.Context, id uint) error
}

type ObjectStorage interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
}

var certificateTemplate = template.Must(template.New("certificate").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="1200" height="800" viewBox="0 0 1200 800">
  <rect width="1200" height="800" fill="#fdfaf2" stroke="#2d4a7a" stroke-width="16"/>
  <text x="600" y="200" font-family="Georgia, serif" font-size="64" text-anchor="middle" fill="#2d4a7a">Certificate of Achievement</text>
  <text x="600" y="330" font-family="Georgia, serif" font-size="32" text-anchor="middle">This certifies that</text>
  <text x="600" y="430" font-family="Georgia, serif" font-size="72" text-anchor="middle" font-weight="bold">{{.Username | html}}</text>
  <text x="600" y="530" font-family="Georgia, serif" font-size="32" text-anchor="middle">scored {{.Score}} points in Math Arena</text>
  <text x="600" y="680" font-family="Georgia, serif" font-size="24" text-anchor="middle" fill="#666">Issued {{.IssuedAt}}</text>
</svg>
`))

type CertificateService struct {
	repo    CertificateStore
	storage ObjectStorage
	now     func() time.Time
}

func NewCertificateService(repo CertificateStore, storage ObjectStorage) *CertificateService {
	return &CertificateService{repo: repo, storage: storage, now: time.Now}
}

func (s *CertificateService) CreateRequest(ctx context.Context, username string, score int) (*model.CertificateRequest, error) {
	username = strings.TrimSpace(username)
	if username == "" || score < 0 {
		return nil, fmt.Errorf("%w: username is required and score must not be negative", util.ErrValidation)
	}
	if utf8.RuneCountInString(username) > util.MaxUsernameLength {
		return nil, fmt.Errorf("%w: username too long", util.ErrValidation)
	}

	req := &model.CertificateRequest{
		Username:    username,
		Score:       score,
		Status:      model.CertificatePending,
		RequestedAt: s.now(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: create certificate request: %v", util.ErrStorage, err)
	}
	return req, nil
}

// List 分页参数越界时回落到默认值，返回实际使用的分页参数
func (s *CertificateService) List(ctx context.Context, page, limit int) (*util.PageResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	reqs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list certificate requests: %v", util.ErrStorage, err)
	}
	if reqs == nil {
		reqs = []model.CertificateRequest{}
	}
	return &util.PageResponse{List: reqs, Total: total, Page: page, Limit: limit}, nil
}

// Delete 删除申请，已签发的证书文件一并清理
func (s *CertificateService) Delete(ctx context.Context, id uint) error {
	req, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: find certificate request: %v", util.ErrStorage, err)
	}

	err = s.repo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete certificate request: %v", util.ErrStorage, err)
	}

	s.removeObject(ctx, req.ID, req.CertificateObject)
	return nil
}

// removeObject 清理失败只记录日志，申请记录的变更已经生效
func (s *CertificateService) removeObject(ctx context.Context, id uint, object string) {
	if object == "" {
		return
	}
	if err := s.storage.Delete(ctx, object); err != nil {
		logger.Log.Warn("Failed to delete certificate object",
			zap.Uint("request_id", id),
			zap.String("object", object),
			zap.Error(err),
		)
	}
}

// Generate 渲染 SVG 证书并上传，返回访问地址
func (s *CertificateService) Generate(ctx context.Context, id uint) (string, error) {
	req, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", util.ErrRequestNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: find certificate request: %v", util.ErrStorage, err)
	}

	var buf bytes.Buffer
	err = certificateTemplate.Execute(&buf, struct {
		Username string
		Score    int
		IssuedAt string
	}{
		Username: req.Username,
		Score:    req.Score,
		IssuedAt: s.now().Format(util.DateFormat),
	})
	if err != nil {
		return "", err
	}

	filename := model.ObjectName("certificates", ".svg")
	url, err := s.storage.Upload(ctx, filename, bytes.NewReader(buf.Bytes()), int64(buf.Len()), util.MimeSVG)
	if err != nil {
		return "", fmt.Errorf("%w: upload certificate: %v", util.ErrStorage, err)
	}

	if err := s.repo.MarkIssued(ctx, req.ID, filename, url); err != nil {
		s.removeObject(ctx, req.ID, filename)
		return "", fmt.Errorf("%w: mark certificate issued: %v", util.ErrStorage, err)
	}
	// 重新生成时替换旧文件
	s.removeObject(ctx, req.ID, req.CertificateObject)

	logger.Log.Info("Certificate issued",
		zap.Uint("request_id", req.ID),
		zap.String("username", req.Username),
		zap.String("url", url),
	)
	return url, nil
}
