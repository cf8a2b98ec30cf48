package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuctionStatus 代表拍賣的生命週期狀態
// 狀態機為 active → {paused ⇄ active} → completed，completed 為終點
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusPaused    AuctionStatus = "paused"
	AuctionStatusCompleted AuctionStatus = "completed"
)

// Open 回報拍賣是否尚未結算（active 或 paused）
func (s AuctionStatus) Open() bool {
	return s == AuctionStatusActive || s == AuctionStatusPaused
}

// Auction 代表針對單一車輛開立的拍賣
// currentBid 單調遞增且恆 ≥ reservePrice；bidCount 等於已接受的出價筆數
type Auction struct {
	gorm.Model

	ID                uuid.UUID     `gorm:"type:uuid;primaryKey;<-:create"`
	CarID             uuid.UUID     `gorm:"type:uuid;not null;index;<-:create"`
	SellerID          uuid.UUID     `gorm:"type:uuid;not null;index;<-:create"`
	StartTime         time.Time     `gorm:"not null;<-:create"`
	EndTime           time.Time     `gorm:"not null;<-:create"`
	ReservePrice      float64       `gorm:"type:numeric;not null;<-:create"`
	BidIncrement      float64       `gorm:"type:numeric;not null;<-:create"`
	CurrentBid        float64       `gorm:"type:numeric;not null"`
	BidCount          uint          `gorm:"type:integer;not null"`
	HighestBidderID   *uuid.UUID    `gorm:"type:uuid"`
	HighestBidderName *string       `gorm:"type:varchar(255)"`
	Status            AuctionStatus `gorm:"type:varchar(16);not null;index"`
	FinalPrice        float64       `gorm:"type:numeric"`

	// 外鍵關聯
	Car        *Car  `gorm:"foreignKey:CarID"`
	Seller     *User `gorm:"foreignKey:SellerID"`
	BidRecords []Bid `gorm:"foreignKey:AuctionID"`
}

func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	if a.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// Expired 回報拍賣在給定時間點是否已過結標時間
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Biddable 回報拍賣在給定時間點是否可接受出價
func (a *Auction) Biddable(now time.Time) bool {
	return a.Status == AuctionStatusActive && !now.Before(a.StartTime) && !a.Expired(now)
}

// MinimumBid 回傳下一筆可被接受的最低出價金額
func (a *Auction) MinimumBid() float64 {
	return a.CurrentBid + a.BidIncrement
}
