package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/db"
	"gorm.io/gorm"
)

// AuthService 校验管理员账号，并可选地要求 TOTP 二次验证。
type AuthService struct {
	db         *gorm.DB
	issuer     *auth.Issuer
	totpSecret string
	now        func() time.Time
}

// TokenResult 是签发 API token 的结果。
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAuthService 构造 AuthService；totpSecret 为空时不要求验证码。
func NewAuthService(gdb *gorm.DB, issuer *auth.Issuer, totpSecret string) *AuthService {
	return &AuthService{db: gdb, issuer: issuer, totpSecret: strings.TrimSpace(totpSecret), now: time.Now}
}

// TOTPEnabled 表示登录是否需要验证码。
func (s *AuthService) TOTPEnabled() bool {
	return s.totpSecret != ""
}

// Authenticate 校验用户名、密码与验证码。
func (s *AuthService) Authenticate(ctx context.Context, username, password, code string) (*db.User, error) {
	var user db.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if s.TOTPEnabled() {
		if strings.TrimSpace(code) == "" {
			return nil, ErrTOTPRequired
		}
		if !auth.VerifyTOTP(code, s.totpSecret, s.now()) {
			return nil, ErrInvalidCredentials
		}
	}
	return &user, nil
}

// IssueToken 认证后签发 API token。
func (s *AuthService) IssueToken(ctx context.Context, username, password, code string) (*TokenResult, error) {
	if !s.issuer.Enabled() {
		return nil, auth.ErrMissingSecret
	}
	user, err := s.Authenticate(ctx, username, password, code)
	if err != nil {
		return nil, err
	}
	token, expires, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &TokenResult{Token: token, ExpiresAt: expires}, nil
}

// ParseToken 校验 API token。
func (s *AuthService) ParseToken(token string) (*auth.Claims, error) {
	return s.issuer.Parse(token)
}
