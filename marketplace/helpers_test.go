package marketplace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carbid/adapters/auth"
	"carbid/models"
)

// fakeClock 讓測試可以控制服務的時間來源
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeBlobStore 記錄上傳並回傳可預測的 URL
type fakeBlobStore struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeBlobStore) Put(ctx context.Context, path, contentType string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, path)
	return "https://cdn.test/" + path, nil
}

// dbSeq 讓同一個測試內建立的多個服務各自拿到獨立的資料庫
var dbSeq atomic.Int64

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每次呼叫使用獨立的 in-memory 資料庫
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ExternalIdentity{},
		&models.Car{},
		&models.Auction{},
		&models.Bid{},
		&models.Setting{},
	))
	return db
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now()}
	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	all := append([]ServiceOption{WithClock(clock.Now), WithLogger(logger)}, opts...)
	svc := NewService(setupDB(t), tokens, all...)
	return svc, clock
}

func seedUser(t *testing.T, svc *Service, name string, role models.UserRole) (models.User, Session) {
	t.Helper()
	user := models.User{
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Role:  role,
	}
	require.NoError(t, svc.db.Create(&user).Error)
	return user, Session{UserID: user.ID, Name: user.Name, Role: user.Role}
}

func seedCar(t *testing.T, svc *Service, sellerSess Session, status models.CarStatus) models.Car {
	t.Helper()
	car := models.Car{
		SellerID:   sellerSess.UserID,
		SellerName: sellerSess.Name,
		Brand:      "Toyota",
		ModelName:  "Corolla",
		Year:       2019,
		Price:      150000,
		Status:     status,
	}
	require.NoError(t, svc.db.Create(&car).Error)
	return car
}

func seedAuction(t *testing.T, svc *Service, clock *fakeClock, car models.Car, reserve, increment float64) models.Auction {
	t.Helper()
	auction := models.Auction{
		CarID:        car.ID,
		SellerID:     car.SellerID,
		StartTime:    clock.Now(),
		EndTime:      clock.Now().Add(24 * time.Hour),
		ReservePrice: reserve,
		BidIncrement: increment,
		CurrentBid:   reserve,
		Status:       models.AuctionStatusActive,
	}
	require.NoError(t, svc.db.Create(&auction).Error)
	require.NoError(t, svc.db.Model(&models.Car{}).Where("id = ?", car.ID).Update("status", models.CarStatusOnAuction).Error)
	return auction
}

func reloadAuction(t *testing.T, svc *Service, id interface{}) models.Auction {
	t.Helper()
	var auction models.Auction
	require.NoError(t, svc.db.First(&auction, "id = ?", id).Error)
	return auction
}

func reloadCar(t *testing.T, svc *Service, id interface{}) models.Car {
	t.Helper()
	var car models.Car
	require.NoError(t, svc.db.First(&car, "id = ?", id).Error)
	return car
}
