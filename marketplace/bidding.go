package marketplace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	redisAdapter "carbid/adapters/redis"
	"carbid/models"
)

// PlaceBid 對一場進行中的拍賣出價
// 出價紀錄的寫入與拍賣目前最高價的更新在單一交易內完成：拍賣列
// 先上鎖、重新驗證可競標與最低金額，再寫入。兩個併發出價者不可能
// 以同一個過期的 currentBid 基準同時成功
func (s *Service) PlaceBid(ctx context.Context, sess Session, auctionID uuid.UUID, amount float64) (*models.Bid, error) {
	const op = "PlaceBid"

	// 多個客戶端共用儲存時，先取得 Redis 上這場拍賣的出價鎖
	if s.redisClient != nil {
		lockKey := fmt.Sprintf("%sauction:%s:lock", s.lockKeyPrefix, auctionID)
		lock := redisAdapter.NewBidLock(s.redisClient, lockKey)
		lockCtx, err := lock.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to acquire bid lock, err=%w: %w", op, ErrStoreUnavailable, err)
		}
		defer func() {
			if _, err := lock.Unlock(); err != nil {
				s.logger.Warn("Fail to release bid lock", slog.String("op", op), slog.Any("error", err))
			}
		}()
		ctx = lockCtx
	}

	var bid models.Bid
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction models.Auction
		if result := lockForUpdate(tx).First(&auction, "id = ?", auctionID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		// 可否競標與金額驗證都在同一把鎖內重新計算，
		// 不信任任何快取的狀態欄位：拍賣可能已邏輯過期
		if !auction.Biddable(s.now()) {
			return fmt.Errorf("[%s] auction is not biddable, err=%w", op, ErrInvalidStateTransition)
		}
		if amount < auction.MinimumBid() {
			return fmt.Errorf("[%s] err=%w", op, &BidTooLowError{MinimumBid: auction.MinimumBid()})
		}
		bid = models.Bid{
			AuctionID:  auctionID,
			BidderID:   sess.UserID,
			BidderName: sess.Name,
			Amount:     amount,
		}
		if result := tx.Create(&bid); result.Error != nil {
			return storeErr(op, result.Error)
		}
		updates := map[string]any{
			"current_bid":         amount,
			"highest_bidder_id":   sess.UserID,
			"highest_bidder_name": sess.Name,
			"bid_count":           gorm.Expr("bid_count + ?", 1),
		}
		if result := tx.Model(&auction).Updates(updates); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Higher bid occurs",
		slog.String("auctionID", auctionID.String()),
		slog.String("bidderID", sess.UserID.String()),
		slog.Float64("amount", amount))
	return &bid, nil
}

// BidFilter 選擇「我的出價」要回傳哪一類拍賣
type BidFilter string

const (
	BidFilterActive  BidFilter = "active"
	BidFilterWinning BidFilter = "winning"
	BidFilterWon     BidFilter = "won"
	BidFilterLost    BidFilter = "lost"
)

// MyBid 是呼叫者在單場拍賣的出價摘要
type MyBid struct {
	Auction   models.Auction
	MyHighest float64
	Winning   bool
}

// MyBids 回傳呼叫者出過價的拍賣，依過濾條件分類
// 已過結標時間的拍賣即使尚未持久化結算，也視為 completed 分類
func (s *Service) MyBids(ctx context.Context, sess Session, filter BidFilter) ([]MyBid, error) {
	const op = "MyBids"
	var bids []models.Bid
	if result := s.db.WithContext(ctx).Where("bidder_id = ?", sess.UserID).Find(&bids); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if len(bids) == 0 {
		return nil, nil
	}

	// 每場拍賣只留下呼叫者的最高出價
	highest := make(map[uuid.UUID]float64, len(bids))
	for _, b := range bids {
		if b.Amount > highest[b.AuctionID] {
			highest[b.AuctionID] = b.Amount
		}
	}

	var auctions []models.Auction
	result := s.db.WithContext(ctx).
		Preload("Car").
		Where("id IN ?", lo.Keys(highest)).
		Find(&auctions)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}

	now := s.now()
	var out []MyBid
	for _, auction := range auctions {
		completed := auction.Status == models.AuctionStatusCompleted || auction.Expired(now)
		mine := auction.HighestBidderID != nil && *auction.HighestBidderID == sess.UserID
		keep := false
		switch filter {
		case BidFilterActive:
			keep = !completed
		case BidFilterWinning:
			keep = !completed && mine
		case BidFilterWon:
			keep = completed && mine
		case BidFilterLost:
			keep = completed && !mine
		default:
			return nil, fmt.Errorf("[%s] unknown bid filter %q, err=%w", op, filter, ErrValidation)
		}
		if keep {
			out = append(out, MyBid{
				Auction:   auction,
				MyHighest: highest[auction.ID],
				Winning:   mine,
			})
		}
	}
	return out, nil
}

// AuctionBids 回傳一場拍賣的所有出價紀錄（新到舊）
func (s *Service) AuctionBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	const op = "AuctionBids"
	var bids []models.Bid
	result := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at DESC").
		Find(&bids)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return bids, nil
}
