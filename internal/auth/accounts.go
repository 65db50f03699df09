package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cvCanvas/internal/database"
)

var (
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRegistrationClosed  = errors.New("registration disabled")
	ErrAccountNotAvailable = errors.New("account not available")
)

// Accounts 管理用户账号。
type Accounts struct {
	db               *gorm.DB
	registrationOpen bool
}

func NewAccounts(db *gorm.DB, registrationOpen bool) *Accounts {
	return &Accounts{db: db, registrationOpen: registrationOpen}
}

// Register 创建账号；用户名重复返回 ErrUsernameTaken。
func (a *Accounts) Register(ctx context.Context, username, password string) (database.User, error) {
	if !a.registrationOpen {
		return database.User{}, ErrRegistrationClosed
	}
	return a.create(ctx, username, password)
}

// Ensure 创建或重置账号密码，供管理命令使用，不受注册开关限制。
func (a *Accounts) Ensure(ctx context.Context, username, password string) (database.User, bool, error) {
	var user database.User
	err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created, err := a.create(ctx, username, password)
		return created, true, err
	}
	if err != nil {
		return database.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return database.User{}, false, err
	}
	if err := a.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return database.User{}, false, fmt.Errorf("update password: %w", err)
	}
	return user, false, nil
}

func (a *Accounts) create(ctx context.Context, username, password string) (database.User, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&database.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return database.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if count > 0 {
		return database.User{}, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return database.User{}, err
	}
	user := database.User{Username: username, PasswordHash: hash}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		// 并发注册同名用户时由唯一索引兜底。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.User{}, ErrUsernameTaken
		}
		return database.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate 校验用户名与密码。
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (database.User, error) {
	var user database.User
	err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return database.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return database.User{}, ErrInvalidCredentials
	}
	if NeedsRehash(user.PasswordHash) {
		if hash, err := HashPassword(password); err == nil {
			// 升级失败不影响本次登录。
			if a.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error == nil {
				user.PasswordHash = hash
			}
		}
	}
	return user, nil
}

// Exists 确认账号仍然存在，刷新令牌时使用。
func (a *Accounts) Exists(ctx context.Context, userID uint) error {
	var count int64
	if err := a.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if count == 0 {
		return ErrAccountNotAvailable
	}
	return nil
}
