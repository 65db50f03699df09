package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节，更长的口令拒绝而不是静默截断。
const (
	minPasswordRunes = 8
	maxPasswordBytes = 72
)

// passwordCost 可在测试中调低。
var passwordCost = bcrypt.DefaultCost

var ErrWeakPassword = errors.New("password does not meet requirements")

// ValidatePassword 检查口令长度；按字符计下限、按字节计上限。
func ValidatePassword(password string) error {
	switch {
	case strings.TrimSpace(password) == "":
		return fmt.Errorf("%w: blank", ErrWeakPassword)
	case utf8.RuneCountInString(password) < minPasswordRunes:
		return fmt.Errorf("%w: at least %d characters", ErrWeakPassword, minPasswordRunes)
	case len(password) > maxPasswordBytes:
		return fmt.Errorf("%w: at most %d bytes", ErrWeakPassword, maxPasswordBytes)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash 报告哈希的 cost 是否低于当前设置，登录成功后据此升级旧哈希。
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost < passwordCost
}
