package service

import (
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// AuthService 管理后台登录，只有一个管理员口令
type AuthService struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

func (s *AuthService) AdminLogin(password string) (string, error) {
	hash := s.cfg.Admin.PasswordHash
	if hash == "" || password == "" {
		return "", util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", util.ErrInvalidCredentials
	}
	return util.GenerateJWT(util.RoleAdmin, util.RoleAdmin, s.cfg.JWT.Secret, s.cfg.JWT.ExpireTime)
}
