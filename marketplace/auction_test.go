package marketplace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbid/models"
)

func TestCreateAuction(t *testing.T) {
	testCases := []struct {
		Name          string
		CarStatus     models.CarStatus
		Mutate        func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64)
		ExpectedError error
	}{
		{
			Name:      "Success",
			CarStatus: models.CarStatusApproved,
			Mutate:    func(*Service, *fakeClock, *time.Time, *time.Time, *float64, *float64) {},
		},
		{
			Name:      "StartEqualsNow",
			CarStatus: models.CarStatusApproved,
			Mutate: func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64) {
				*startTime = clock.Now()
			},
		},
		{
			Name:      "StartInPast",
			CarStatus: models.CarStatusApproved,
			Mutate: func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64) {
				*startTime = clock.Now().Add(-time.Minute)
			},
			ExpectedError: ErrValidation,
		},
		{
			Name:      "EndBeforeStart",
			CarStatus: models.CarStatusApproved,
			Mutate: func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64) {
				*endTime = *startTime
			},
			ExpectedError: ErrValidation,
		},
		{
			Name:      "ZeroIncrement",
			CarStatus: models.CarStatusApproved,
			Mutate: func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64) {
				*increment = 0
			},
			ExpectedError: ErrValidation,
		},
		{
			Name:      "NegativeReserve",
			CarStatus: models.CarStatusApproved,
			Mutate: func(svc *Service, clock *fakeClock, startTime, endTime *time.Time, reserve, increment *float64) {
				*reserve = -1
			},
			ExpectedError: ErrValidation,
		},
		{
			Name:          "CarNotApproved",
			CarStatus:     models.CarStatusPending,
			Mutate:        func(*Service, *fakeClock, *time.Time, *time.Time, *float64, *float64) {},
			ExpectedError: ErrPreconditionFailed,
		},
		{
			Name:          "CarAlreadySold",
			CarStatus:     models.CarStatusSold,
			Mutate:        func(*Service, *fakeClock, *time.Time, *time.Time, *float64, *float64) {},
			ExpectedError: ErrPreconditionFailed,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			svc, clock := newTestService(t)
			_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
			_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
			car := seedCar(t, svc, sellerSess, tc.CarStatus)

			startTime := clock.Now().Add(time.Minute)
			endTime := clock.Now().Add(24 * time.Hour)
			reserve, increment := 50000.0, 1000.0
			tc.Mutate(svc, clock, &startTime, &endTime, &reserve, &increment)

			auction, err := svc.CreateAuction(context.Background(), adminSess, car.ID, startTime, endTime, reserve, increment)
			if tc.ExpectedError != nil {
				require.ErrorIs(t, err, tc.ExpectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.AuctionStatusActive, auction.Status)
			assert.Equal(t, reserve, auction.CurrentBid)
			assert.Zero(t, auction.BidCount)
			assert.Equal(t, sellerSess.UserID, auction.SellerID)
			assert.Equal(t, models.CarStatusOnAuction, reloadCar(t, svc, car.ID).Status)
		})
	}
}

func TestCreateAuctionRequiresAdmin(t *testing.T) {
	svc, clock := newTestService(t)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)

	_, err := svc.CreateAuction(context.Background(), sellerSess, car.ID, clock.Now(), clock.Now().Add(time.Hour), 1000, 100)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreateAuctionRejectsSecondOpenAuction(t *testing.T) {
	svc, clock := newTestService(t)
	_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	seedAuction(t, svc, clock, car, 1000, 100)

	// 模擬車輛狀態被復原但舊拍賣仍未結算
	require.NoError(t, svc.db.Model(&models.Car{}).Where("id = ?", car.ID).Update("status", models.CarStatusApproved).Error)

	_, err := svc.CreateAuction(context.Background(), adminSess, car.ID, clock.Now(), clock.Now().Add(time.Hour), 1000, 100)
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestPauseAndResumeAuction(t *testing.T) {
	svc, clock := newTestService(t)
	_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	auction := seedAuction(t, svc, clock, car, 1000, 100)
	ctx := context.Background()

	require.ErrorIs(t, svc.ResumeAuction(ctx, adminSess, auction.ID), ErrInvalidStateTransition)

	require.NoError(t, svc.PauseAuction(ctx, adminSess, auction.ID))
	assert.Equal(t, models.AuctionStatusPaused, reloadAuction(t, svc, auction.ID).Status)

	require.ErrorIs(t, svc.PauseAuction(ctx, adminSess, auction.ID), ErrInvalidStateTransition)

	require.NoError(t, svc.ResumeAuction(ctx, adminSess, auction.ID))
	assert.Equal(t, models.AuctionStatusActive, reloadAuction(t, svc, auction.ID).Status)

	require.ErrorIs(t, svc.PauseAuction(ctx, sellerSess, auction.ID), ErrPermissionDenied)
}

func TestCloseAuctionWithBids(t *testing.T) {
	svc, clock := newTestService(t)
	_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	_, buyerSess := seedUser(t, svc, "Buyer", models.RoleBuyer)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	auction := seedAuction(t, svc, clock, car, 50000, 1000)
	ctx := context.Background()

	// 低於最低可接受金額的出價被拒絕且不影響狀態
	_, err := svc.PlaceBid(ctx, buyerSess, auction.ID, 49000)
	require.ErrorIs(t, err, ErrBidTooLow)

	_, err = svc.PlaceBid(ctx, buyerSess, auction.ID, 51000)
	require.NoError(t, err)

	settled, err := svc.CloseAuction(ctx, adminSess, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCompleted, settled.Status)
	assert.Equal(t, 51000.0, settled.FinalPrice)
	assert.Equal(t, models.CarStatusSold, reloadCar(t, svc, car.ID).Status)

	// completed 為終點狀態
	_, err = svc.CloseAuction(ctx, adminSess, auction.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	require.ErrorIs(t, svc.PauseAuction(ctx, adminSess, auction.ID), ErrInvalidStateTransition)
}

func TestCloseAuctionWithoutBids(t *testing.T) {
	svc, clock := newTestService(t)
	_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	auction := seedAuction(t, svc, clock, car, 50000, 1000)

	settled, err := svc.CloseAuction(context.Background(), adminSess, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCompleted, settled.Status)
	assert.Zero(t, settled.FinalPrice)
	// 流標的車輛回到可再次拍賣的狀態
	assert.Equal(t, models.CarStatusApproved, reloadCar(t, svc, car.ID).Status)
}

func TestSweepExpired(t *testing.T) {
	svc, clock := newTestService(t)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	carA := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	carB := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	expiring := seedAuction(t, svc, clock, carA, 1000, 100)
	ongoing := models.Auction{
		CarID:        carB.ID,
		SellerID:     carB.SellerID,
		StartTime:    clock.Now(),
		EndTime:      clock.Now().Add(72 * time.Hour),
		ReservePrice: 1000,
		BidIncrement: 100,
		CurrentBid:   1000,
		Status:       models.AuctionStatusActive,
	}
	require.NoError(t, svc.db.Create(&ongoing).Error)

	clock.Advance(25 * time.Hour)

	settled, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.Equal(t, models.AuctionStatusCompleted, reloadAuction(t, svc, expiring.ID).Status)
	assert.Equal(t, models.AuctionStatusActive, reloadAuction(t, svc, ongoing.ID).Status)

	// 已無待結算的拍賣
	settled, err = svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestListOpenAuctions(t *testing.T) {
	svc, clock := newTestService(t)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	carA := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	carB := models.Car{
		SellerID:   sellerSess.UserID,
		SellerName: sellerSess.Name,
		Brand:      "Honda",
		ModelName:  "Civic",
		Year:       2021,
		Price:      200000,
		Status:     models.CarStatusApproved,
	}
	require.NoError(t, svc.db.Create(&carB).Error)

	open := seedAuction(t, svc, clock, carA, 1000, 100)
	expired := models.Auction{
		CarID:        carB.ID,
		SellerID:     carB.SellerID,
		StartTime:    clock.Now().Add(-2 * time.Hour),
		EndTime:      clock.Now().Add(-time.Hour),
		ReservePrice: 1000,
		BidIncrement: 100,
		CurrentBid:   1000,
		Status:       models.AuctionStatusActive,
	}
	require.NoError(t, svc.db.Create(&expired).Error)

	// 已過結標時間的拍賣即使狀態欄位還是 active 也不出現
	auctions, err := svc.ListOpenAuctions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	assert.Equal(t, open.ID, auctions[0].ID)

	auctions, err = svc.ListOpenAuctions(context.Background(), "toyota cor")
	require.NoError(t, err)
	assert.Len(t, auctions, 1)

	auctions, err = svc.ListOpenAuctions(context.Background(), "civic")
	require.NoError(t, err)
	assert.Empty(t, auctions)
}

func TestGetAuction(t *testing.T) {
	svc, clock := newTestService(t)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	_, buyerSess := seedUser(t, svc, "Buyer", models.RoleBuyer)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)
	auction := seedAuction(t, svc, clock, car, 1000, 100)
	ctx := context.Background()

	_, err := svc.PlaceBid(ctx, buyerSess, auction.ID, 1100)
	require.NoError(t, err)

	detail, err := svc.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusActive, detail.EffectiveStatus)
	assert.NotEqual(t, "Ended", detail.TimeLeft)
	require.NotNil(t, detail.Auction.Car)
	assert.Equal(t, car.ID, detail.Auction.Car.ID)
	require.Len(t, detail.Auction.BidRecords, 1)

	// 過期但尚未結算的拍賣呈現為 completed
	clock.Advance(25 * time.Hour)
	detail, err = svc.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCompleted, detail.EffectiveStatus)
	assert.Equal(t, "Ended", detail.TimeLeft)

	_, err = svc.GetAuction(ctx, uuid.Must(uuid.NewV7()))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAuctionTimesSurviveReload(t *testing.T) {
	svc, clock := newTestService(t)
	_, adminSess := seedUser(t, svc, "Admin", models.RoleAdmin)
	_, sellerSess := seedUser(t, svc, "Seller", models.RoleSeller)
	car := seedCar(t, svc, sellerSess, models.CarStatusApproved)

	startTime := clock.Now().Add(time.Minute)
	endTime := clock.Now().Add(24 * time.Hour)
	created, err := svc.CreateAuction(context.Background(), adminSess, car.ID, startTime, endTime, 1000, 100)
	require.NoError(t, err)

	// 時間欄位必須能在任一資料庫驅動上寫入後讀回
	reloaded := reloadAuction(t, svc, created.ID)
	assert.WithinDuration(t, startTime, reloaded.StartTime, time.Second)
	assert.WithinDuration(t, endTime, reloaded.EndTime, time.Second)
}

func TestTimeLeft(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		Name     string
		End      time.Time
		Expected string
	}{
		{Name: "DaysAndHours", End: now.Add(50 * time.Hour), Expected: "2d 2h left"},
		{Name: "HoursAndMinutes", End: now.Add(3*time.Hour + 30*time.Minute), Expected: "3h 30m left"},
		{Name: "MinutesOnly", End: now.Add(45 * time.Minute), Expected: "45m left"},
		{Name: "Ended", End: now.Add(-time.Minute), Expected: "Ended"},
		{Name: "ExactlyNow", End: now, Expected: "Ended"},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, TimeLeft(tc.End, now))
		})
	}
}
