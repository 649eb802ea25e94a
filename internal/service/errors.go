package service

import (
	"errors"

	"github.com/mindbloom/mindbloom/internal/schema"
)

var (
	// ErrValidation 请求字段缺失或不合法（400）
	ErrValidation = schema.ErrInvalid
	// ErrInvalidCredentials 登录失败，不区分用户不存在与密码错误（401）
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	// ErrNotFound 资源不存在（404）
	ErrNotFound = errors.New("资源不存在")
	// ErrUnauthorized 缺少或无效的会话令牌（401）
	ErrUnauthorized = errors.New("未登录或令牌已失效")
)
