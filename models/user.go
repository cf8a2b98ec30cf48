package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole 代表使用者在市集中的角色
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleSeller UserRole = "seller"
	RoleBuyer  UserRole = "buyer"
)

// Valid 檢查角色是否為已知的角色值
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleBuyer:
		return true
	}
	return false
}

// User 代表市集中的使用者
// 角色不可由本人變更，只有管理員能變更其他使用者的角色
type User struct {
	gorm.Model

	ID           uuid.UUID   `gorm:"type:uuid;primaryKey;<-:create"`
	Name         string      `gorm:"type:varchar(255);not null"`
	Email        string      `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email,where:deleted_at IS NULL;<-:create"`
	PasswordHash string      `gorm:"type:text"`
	Role         UserRole    `gorm:"type:varchar(16);not null"`
	Phone        string      `gorm:"type:varchar(64)"`
	Address      string      `gorm:"type:text"`
	PhotoURL     string      `gorm:"type:text"`
	Favorites    []uuid.UUID `gorm:"type:text;serializer:json"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}
