package repository

import (
	"context"
	"fmt"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
)

// UserRepository 单用户凭据仓储
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername 不存在返回 nil
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*schema.User, error) {
	var u schema.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// GetSingleton 读取 id=1 的用户，不存在返回 nil
func (r *UserRepository) GetSingleton(ctx context.Context) (*schema.User, error) {
	var u schema.User
	err := r.db.WithContext(ctx).Where("id = ?", schema.SingletonUserID).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// CreateSingleton 以固定 id=1 创建用户
func (r *UserRepository) CreateSingleton(ctx context.Context, username, passwordHash string) error {
	u := schema.User{ID: schema.SingletonUserID, Username: username, PasswordHash: passwordHash}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// UpdateSingleton 更新 id=1 用户的凭据，返回是否命中
func (r *UserRepository) UpdateSingleton(ctx context.Context, username, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&schema.User{}).
		Where("id = ?", schema.SingletonUserID).
		Updates(map[string]any{"username": username, "password": passwordHash})
	if res.Error != nil {
		return false, fmt.Errorf("更新用户失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
