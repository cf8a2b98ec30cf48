package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CarStatus 代表刊登車輛在市集中的生命週期狀態
type CarStatus string

const (
	CarStatusPending   CarStatus = "pending"
	CarStatusApproved  CarStatus = "approved"
	CarStatusRejected  CarStatus = "rejected"
	CarStatusOnAuction CarStatus = "onAuction"
	CarStatusSold      CarStatus = "sold"
)

// Valid 檢查狀態是否為已知的狀態值
func (s CarStatus) Valid() bool {
	switch s {
	case CarStatusPending, CarStatusApproved, CarStatusRejected, CarStatusOnAuction, CarStatusSold:
		return true
	}
	return false
}

// Deletable 回報車輛在此狀態下是否允許刪除
// 上架拍賣中或已售出的車輛不可刪除
func (s CarStatus) Deletable() bool {
	switch s {
	case CarStatusPending, CarStatusApproved, CarStatusRejected:
		return true
	}
	return false
}

// Car 代表市集中刊登的車輛
// 狀態轉移僅允許 pending→approved|rejected、approved→onAuction、
// onAuction→sold，或在拍賣流標時由 onAuction 回到 approved
type Car struct {
	gorm.Model

	ID           uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	SellerID     uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	SellerName   string    `gorm:"type:varchar(255);not null"`
	Brand        string    `gorm:"type:varchar(255);not null"`
	ModelName    string    `gorm:"column:model;type:varchar(255);not null"`
	Year         int       `gorm:"type:integer;not null"`
	Price        float64   `gorm:"type:numeric;not null"`
	Mileage      float64   `gorm:"type:numeric"`
	Condition    string    `gorm:"type:varchar(64)"`
	Color        string    `gorm:"type:varchar(64)"`
	Transmission string    `gorm:"type:varchar(64)"`
	Description  string    `gorm:"type:text"`
	Images       []string  `gorm:"type:text;serializer:json"`
	Status       CarStatus `gorm:"type:varchar(16);not null;index"`

	// 外鍵關聯
	Seller *User `gorm:"foreignKey:SellerID"`
}

func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}
