package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindbloom/mindbloom/internal/auth"
	"github.com/mindbloom/mindbloom/internal/schema"
)

// AuthService 单用户凭据服务
type AuthService struct {
	users  UserStore
	tokens *auth.TokenIssuer
}

func NewAuthService(users UserStore, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// LoginResult 登录成功返回的用户与会话令牌
type LoginResult struct {
	User      *schema.User
	Token     string
	ExpiresAt time.Time
}

// Verify 校验用户名与密码。用户不存在时同样执行一次哈希比较，两种失败返回同一个错误。
func (s *AuthService) Verify(ctx context.Context, username, password string) (*schema.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		auth.BurnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Login 校验凭据并签发令牌
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	res := &LoginResult{User: u}
	if s.tokens != nil {
		tok, exp, err := s.tokens.Issue(u.ID, u.Username)
		if err != nil {
			return nil, err
		}
		res.Token, res.ExpiresAt = tok, exp
	}
	return res, nil
}

// ValidateToken 校验会话令牌，返回用户名
func (s *AuthService) ValidateToken(token string) (string, error) {
	if s.tokens == nil || strings.TrimSpace(token) == "" {
		return "", ErrUnauthorized
	}
	name, err := s.tokens.Validate(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return name, nil
}

// Update 覆盖 id=1 的凭据
func (s *AuthService) Update(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: 用户名和密码不能为空", ErrValidation)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	found, err := s.users.UpdateSingleton(ctx, username, hash)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: 用户不存在", ErrNotFound)
	}
	slog.Info("用户凭据已更新", "username", username)
	return nil
}

// Current 当前用户（不含密码）
func (s *AuthService) Current(ctx context.Context) (*schema.User, error) {
	u, err := s.users.GetSingleton(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: 用户不存在", ErrNotFound)
	}
	return u, nil
}

// EnsureDefault 用户表为空时写入初始凭据，返回是否新建
func (s *AuthService) EnsureDefault(ctx context.Context, username, password string) (bool, error) {
	u, err := s.users.GetSingleton(ctx)
	if err != nil {
		return false, err
	}
	if u != nil {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := s.users.CreateSingleton(ctx, username, hash); err != nil {
		return false, err
	}
	slog.Info("已创建默认用户", "username", username)
	return true, nil
}
