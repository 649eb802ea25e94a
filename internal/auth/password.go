package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost bcrypt 代价
const PasswordCost = 10

// dummyHash 用户不存在时也执行一次比较，避免通过耗时区分用户名是否存在
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mindbloom-dummy-password"), PasswordCost)

// HashPassword 生成 bcrypt 哈希
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("密码不能为空")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(b), nil
}

// CheckPassword 比较明文与哈希
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare 对占位哈希做一次比较，返回值恒为 false
func BurnCompare(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
