package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表拍賣的出價紀錄
// 紀錄只增不改：所有欄位僅在建立時寫入，事後不得變更或刪除
type Bid struct {
	gorm.Model

	ID         uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	AuctionID  uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	BidderID   uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	BidderName string    `gorm:"type:varchar(255);not null;<-:create"`
	Amount     float64   `gorm:"type:numeric;not null;<-:create"`

	// 外鍵關聯
	Auction *Auction `gorm:"foreignKey:AuctionID"`
	Bidder  *User    `gorm:"foreignKey:BidderID"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}
