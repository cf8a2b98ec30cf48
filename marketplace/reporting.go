package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carbid/models"
)

// 報表皆為唯讀彙總：查詢容忍殘缺資料，被參照的車輛或使用者不存在
// 時以占位字串呈現，不讓整份報表失敗

// DashboardCounts 是管理後台首頁的統計數字
type DashboardCounts struct {
	TotalUsers          int64
	PendingCars         int64
	ActiveAuctions      int64
	DealsClosed         int64
	NewListingsThisWeek int64
}

// GetDashboardCounts 彙總管理後台首頁的統計數字，僅管理員可讀
func (s *Service) GetDashboardCounts(ctx context.Context, sess Session) (*DashboardCounts, error) {
	const op = "GetDashboardCounts"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	counts := new(DashboardCounts)
	if result := db.Model(&models.User{}).Count(&counts.TotalUsers); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if result := db.Model(&models.Car{}).Where("status = ?", models.CarStatusPending).Count(&counts.PendingCars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	// 已過結標時間的拍賣視為已結束，即使掃描還沒把狀態寫回
	if result := db.Model(&models.Auction{}).
		Where("status = ? AND end_time > ?", models.AuctionStatusActive, s.now()).
		Count(&counts.ActiveAuctions); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if result := db.Model(&models.Auction{}).
		Where("status = ? AND bid_count > 0", models.AuctionStatusCompleted).
		Count(&counts.DealsClosed); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	var err error
	counts.NewListingsThisWeek, err = s.NewListingsThisWeek(ctx)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// TotalRevenue 回傳所有已結算拍賣的成交額總和
func (s *Service) TotalRevenue(ctx context.Context) (float64, error) {
	const op = "TotalRevenue"
	var total float64
	result := s.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ?", models.AuctionStatusCompleted).
		Select("COALESCE(SUM(final_price), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	return total, nil
}

// SellerEarnings 回傳單一賣家所有已結算拍賣的成交額總和
func (s *Service) SellerEarnings(ctx context.Context, sellerID uuid.UUID) (float64, error) {
	const op = "SellerEarnings"
	var total float64
	result := s.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ? AND seller_id = ?", models.AuctionStatusCompleted, sellerID).
		Select("COALESCE(SUM(final_price), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	return total, nil
}

// NewListingsThisWeek 回傳最近七天內建立的刊登數
func (s *Service) NewListingsThisWeek(ctx context.Context) (int64, error) {
	const op = "NewListingsThisWeek"
	var count int64
	weekAgo := s.now().Add(-7 * 24 * time.Hour)
	result := s.db.WithContext(ctx).Model(&models.Car{}).
		Where("created_at > ?", weekAgo).
		Count(&count)
	if result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	return count, nil
}

// RejectionRate 回傳被駁回刊登佔所有已審核刊登的比例
// 「已核准」包含核准後繼續往下走的狀態（onAuction、sold）
func (s *Service) RejectionRate(ctx context.Context) (float64, error) {
	const op = "RejectionRate"
	db := s.db.WithContext(ctx)
	var rejected, approved int64
	if result := db.Model(&models.Car{}).Where("status = ?", models.CarStatusRejected).Count(&rejected); result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	approvedStatuses := []models.CarStatus{models.CarStatusApproved, models.CarStatusOnAuction, models.CarStatusSold}
	if result := db.Model(&models.Car{}).Where("status IN ?", approvedStatuses).Count(&approved); result.Error != nil {
		return 0, storeErr(op, result.Error)
	}
	if rejected+approved == 0 {
		return 0, nil
	}
	return float64(rejected) / float64(rejected+approved), nil
}

// UnknownLabel 為殘缺參照的占位字串
const UnknownLabel = "Unknown"

// BidActivity 是近期出價動態的一列
type BidActivity struct {
	BidderName string
	CarLabel   string
	Amount     float64
	CreatedAt  time.Time
}

// RecentBidActivity 回傳最近的出價動態
// 被參照的拍賣或車輛不存在時以 Unknown 呈現，不中斷整份列表
func (s *Service) RecentBidActivity(ctx context.Context, limit int) ([]BidActivity, error) {
	const op = "RecentBidActivity"
	if limit <= 0 {
		limit = 10
	}
	var bids []models.Bid
	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&bids)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	activities := make([]BidActivity, 0, len(bids))
	for _, bid := range bids {
		activity := BidActivity{
			BidderName: bid.BidderName,
			CarLabel:   UnknownLabel,
			Amount:     bid.Amount,
			CreatedAt:  bid.CreatedAt,
		}
		if activity.BidderName == "" {
			activity.BidderName = UnknownLabel
		}
		var auction models.Auction
		if err := s.db.WithContext(ctx).First(&auction, "id = ?", bid.AuctionID).Error; err == nil {
			var car models.Car
			if err := s.db.WithContext(ctx).First(&car, "id = ?", auction.CarID).Error; err == nil {
				activity.CarLabel = fmt.Sprintf("%s %s %d", car.Brand, car.ModelName, car.Year)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, storeErr(op, err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storeErr(op, err)
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// SellerStats 是賣家儀表板的統計摘要
type SellerStats struct {
	TotalListings int64
	PendingCars   int64
	CarsSold      int64
	TotalEarned   float64
}

// GetSellerStats 彙總單一賣家的刊登與成交統計
func (s *Service) GetSellerStats(ctx context.Context, sess Session) (*SellerStats, error) {
	const op = "GetSellerStats"
	db := s.db.WithContext(ctx)
	stats := new(SellerStats)
	if result := db.Model(&models.Car{}).Where("seller_id = ?", sess.UserID).Count(&stats.TotalListings); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if result := db.Model(&models.Car{}).
		Where("seller_id = ? AND status = ?", sess.UserID, models.CarStatusPending).
		Count(&stats.PendingCars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if result := db.Model(&models.Car{}).
		Where("seller_id = ? AND status = ?", sess.UserID, models.CarStatusSold).
		Count(&stats.CarsSold); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	earned, err := s.SellerEarnings(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	stats.TotalEarned = earned
	return stats, nil
}

// MonthlySale 是銷售走勢圖的一個資料點
type MonthlySale struct {
	Month string // YYYY-MM
	Total float64
}

// MonthlySales 把賣家的成交額依月份分桶，供呈現層畫走勢
func (s *Service) MonthlySales(ctx context.Context, sellerID uuid.UUID) ([]MonthlySale, error) {
	const op = "MonthlySales"
	var auctions []models.Auction
	result := s.db.WithContext(ctx).
		Where("status = ? AND seller_id = ? AND bid_count > 0", models.AuctionStatusCompleted, sellerID).
		Order("updated_at ASC").
		Find(&auctions)
	if result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	totals := make(map[string]float64)
	var order []string
	for _, auction := range auctions {
		month := auction.UpdatedAt.Format("2006-01")
		if _, seen := totals[month]; !seen {
			order = append(order, month)
		}
		totals[month] += auction.FinalPrice
	}
	sales := make([]MonthlySale, 0, len(order))
	for _, month := range order {
		sales = append(sales, MonthlySale{Month: month, Total: totals[month]})
	}
	return sales, nil
}
