package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Setting 代表市集的全站設定文件，以名稱作為文件鍵
type Setting struct {
	gorm.Model

	ID             uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	Name           string    `gorm:"type:varchar(64);uniqueIndex:idx_settings_name,where:deleted_at IS NULL;not null;<-:create"`
	SiteName       string    `gorm:"type:varchar(255)"`
	AdminEmail     string    `gorm:"type:varchar(255)"`
	CommissionRate float64   `gorm:"type:numeric"`
	UpdatedBy      uuid.UUID `gorm:"type:uuid"`
}

// SettingNameGeneral 為全站一般設定文件的名稱
const SettingNameGeneral = "general"

func (s *Setting) BeforeCreate(tx *gorm.DB) error {
	if s.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}
