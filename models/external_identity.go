package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExternalIdentity 代表使用者在外部 SSO 提供者的身份
// 以 (provider, subject) 唯一識別一個外部帳號並對應回本地使用者
type ExternalIdentity struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	Provider string    `gorm:"type:varchar(64);uniqueIndex:idx_external_identity_provider_subject,where:deleted_at IS NULL;not null;<-:create"`
	Subject  string    `gorm:"type:text;uniqueIndex:idx_external_identity_provider_subject,where:deleted_at IS NULL;not null;<-:create"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`

	User *User `gorm:"foreignKey:UserID"`
}

func (e *ExternalIdentity) BeforeCreate(tx *gorm.DB) error {
	if e.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}
