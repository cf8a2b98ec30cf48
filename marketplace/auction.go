package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbid/models"
)

// CreateAuction 針對一輛已核准的車開立拍賣，並把車輛轉為上架拍賣中
// 同一輛車同時間最多只能有一場未結算的拍賣
func (s *Service) CreateAuction(ctx context.Context, sess Session, carID uuid.UUID, startTime, endTime time.Time, reservePrice, bidIncrement float64) (*models.Auction, error) {
	const op = "CreateAuction"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	now := s.now()
	if bidIncrement <= 0 {
		return nil, fmt.Errorf("[%s] bid increment must be positive, err=%w", op, ErrValidation)
	}
	if reservePrice < 0 {
		return nil, fmt.Errorf("[%s] reserve price must not be negative, err=%w", op, ErrValidation)
	}
	// 開始時間可以等於現在，但不可早於現在；結束必須晚於開始
	if startTime.Before(now) {
		return nil, fmt.Errorf("[%s] start time is in the past, err=%w", op, ErrValidation)
	}
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("[%s] end time must be after start time, err=%w", op, ErrValidation)
	}

	var auction models.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if result := lockForUpdate(tx).First(&car, "id = ?", carID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if car.Status != models.CarStatusApproved {
			return fmt.Errorf("[%s] car is %s, only approved cars can be auctioned, err=%w", op, car.Status, ErrPreconditionFailed)
		}
		var openCount int64
		if result := tx.Model(&models.Auction{}).
			Where("car_id = ? AND status IN ?", carID, []models.AuctionStatus{models.AuctionStatusActive, models.AuctionStatusPaused}).
			Count(&openCount); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if openCount > 0 {
			return fmt.Errorf("[%s] car already has an open auction, err=%w", op, ErrPreconditionFailed)
		}
		auction = models.Auction{
			CarID:        carID,
			SellerID:     car.SellerID,
			StartTime:    startTime,
			EndTime:      endTime,
			ReservePrice: reservePrice,
			BidIncrement: bidIncrement,
			CurrentBid:   reservePrice,
			BidCount:     0,
			Status:       models.AuctionStatusActive,
		}
		if result := tx.Create(&auction); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if result := tx.Model(&car).Update("status", models.CarStatusOnAuction); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Auction created",
		slog.String("auctionID", auction.ID.String()),
		slog.String("carID", carID.String()),
		slog.Float64("reservePrice", reservePrice))
	return &auction, nil
}

// PauseAuction 暫停一場進行中的拍賣，僅管理員可操作
func (s *Service) PauseAuction(ctx context.Context, sess Session, auctionID uuid.UUID) error {
	return s.toggleAuction(ctx, "PauseAuction", sess, auctionID, models.AuctionStatusActive, models.AuctionStatusPaused)
}

// ResumeAuction 恢復一場已暫停的拍賣，僅管理員可操作
func (s *Service) ResumeAuction(ctx context.Context, sess Session, auctionID uuid.UUID) error {
	return s.toggleAuction(ctx, "ResumeAuction", sess, auctionID, models.AuctionStatusPaused, models.AuctionStatusActive)
}

func (s *Service) toggleAuction(ctx context.Context, op string, sess Session, auctionID uuid.UUID, from, to models.AuctionStatus) error {
	if err := requireAdmin(op, sess); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction models.Auction
		if result := lockForUpdate(tx).First(&auction, "id = ?", auctionID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		// completed 是終點狀態，不可再轉移
		if auction.Status != from {
			return fmt.Errorf("[%s] auction is %s, err=%w", op, auction.Status, ErrInvalidStateTransition)
		}
		if result := tx.Model(&auction).Update("status", to); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Auction toggled", slog.String("auctionID", auctionID.String()), slog.String("status", string(to)))
	return nil
}

// CloseAuction 由管理員提前結算一場拍賣
func (s *Service) CloseAuction(ctx context.Context, sess Session, auctionID uuid.UUID) (*models.Auction, error) {
	const op = "CloseAuction"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	return s.settle(ctx, auctionID)
}

// settle 結算一場拍賣：有出價則成交、車輛轉為已售出；
// 流標則車輛回到 approved，重新回到可拍賣的池子，避免卡在死狀態
func (s *Service) settle(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	const op = "settle"
	var auction models.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := lockForUpdate(tx).First(&auction, "id = ?", auctionID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if auction.Status == models.AuctionStatusCompleted {
			return fmt.Errorf("[%s] auction is already completed, err=%w", op, ErrInvalidStateTransition)
		}
		sold := auction.BidCount > 0
		finalPrice := float64(0)
		if sold {
			finalPrice = auction.CurrentBid
		}
		updates := map[string]any{
			"status":      models.AuctionStatusCompleted,
			"final_price": finalPrice,
		}
		if result := tx.Model(&auction).Updates(updates); result.Error != nil {
			return storeErr(op, result.Error)
		}
		auction.Status = models.AuctionStatusCompleted
		auction.FinalPrice = finalPrice
		carStatus := models.CarStatusApproved
		if sold {
			carStatus = models.CarStatusSold
		}
		if result := tx.Model(&models.Car{}).Where("id = ?", auction.CarID).Update("status", carStatus); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Auction settled",
		slog.String("auctionID", auction.ID.String()),
		slog.Float64("finalPrice", auction.FinalPrice),
		slog.Uint64("bidCount", uint64(auction.BidCount)))
	return &auction, nil
}

// SweepExpired 找出所有已過結標時間但尚未結算的拍賣並逐一結算
// 個別結算失敗只記錄日誌，下一輪掃描會再重試
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	const op = "SweepExpired"
	var expired []models.Auction
	result := s.db.WithContext(ctx).
		Where("status IN ? AND end_time <= ?", []models.AuctionStatus{models.AuctionStatusActive, models.AuctionStatusPaused}, s.now()).
		Find(&expired)
	if result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	settled := 0
	for _, auction := range expired {
		if _, err := s.settle(ctx, auction.ID); err != nil {
			s.logger.Error("Fail to settle expired auction", slog.String("auctionID", auction.ID.String()), slog.Any("error", err))
			continue
		}
		settled++
	}
	return settled, nil
}

// ListOpenAuctions 列出所有尚可競標、未過結標時間的拍賣
// 已過時即使狀態欄位尚未更新也視為結算完成，不會出現在列表中
func (s *Service) ListOpenAuctions(ctx context.Context, searchTerm string) ([]models.Auction, error) {
	const op = "ListOpenAuctions"
	var auctions []models.Auction
	result := s.db.WithContext(ctx).
		Preload("Car").
		Where("status IN ? AND end_time > ?", []models.AuctionStatus{models.AuctionStatusActive, models.AuctionStatusPaused}, s.now()).
		Order("end_time ASC").
		Find(&auctions)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if searchTerm == "" {
		return auctions, nil
	}
	term := strings.ToLower(searchTerm)
	return lo.Filter(auctions, func(a models.Auction, _ int) bool {
		if a.Car == nil {
			return false
		}
		label := strings.ToLower(a.Car.Brand + " " + a.Car.ModelName)
		return strings.Contains(label, term)
	}), nil
}

// AuctionDetail 是單場拍賣的完整呈現資料
type AuctionDetail struct {
	Auction models.Auction
	// EffectiveStatus 把已過結標時間但尚未持久化結算的拍賣視為 completed
	EffectiveStatus models.AuctionStatus
	TimeLeft        string
}

// GetAuction 取得單場拍賣與其出價紀錄（新到舊）
func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionDetail, error) {
	const op = "GetAuction"
	var auction models.Auction
	result := s.db.WithContext(ctx).
		Preload("Car").
		Preload("BidRecords", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
		}).
		First(&auction, "id = ?", auctionID)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	now := s.now()
	effective := auction.Status
	if effective.Open() && auction.Expired(now) {
		effective = models.AuctionStatusCompleted
	}
	return &AuctionDetail{
		Auction:         auction,
		EffectiveStatus: effective,
		TimeLeft:        TimeLeft(auction.EndTime, now),
	}, nil
}

// TimeLeft 把結標時間轉成倒數字串供呈現層顯示
func TimeLeft(end, now time.Time) string {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return "Ended"
	}
	days := int(remaining / (24 * time.Hour))
	hours := int(remaining/time.Hour) % 24
	minutes := int(remaining/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	default:
		return fmt.Sprintf("%dm left", minutes)
	}
}
