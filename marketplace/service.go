package marketplace

import (
	"context"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbid/adapters/auth"
	"carbid/adapters/oidc"
)

const (
	// maxCarImages 為單一車輛刊登可附帶的照片數量上限
	maxCarImages = 5
	// maxImageBytes 為單張照片的大小上限
	maxImageBytes = 10 << 20
)

// BlobStore 抽象出檔案儲存服務：上傳位元組、取回公開 URL
type BlobStore interface {
	Put(ctx context.Context, path, contentType string, content []byte) (string, error)
}

// Service 是市集核心的操作層，對呈現層暴露刊登、拍賣、出價、
// 報表與帳號操作；所有狀態都保存在後端儲存，Service 本身無狀態
type Service struct {
	db            *gorm.DB
	tokens        *auth.TokenIssuer
	blobs         BlobStore
	redisClient   *redis.Client
	oidcProviders map[string]*oidc.Provider
	htmlChecker   *bluemonday.Policy
	lockKeyPrefix string
	logger        *slog.Logger
	now           func() time.Time
}

type ServiceOption func(*Service)

// WithBlobStore 設置檔案儲存服務；未設置時照片上傳會被略過
func WithBlobStore(blobs BlobStore) ServiceOption {
	return func(s *Service) {
		s.blobs = blobs
	}
}

// WithRedis 設置跨客戶端出價鎖使用的 Redis 連線
func WithRedis(client *redis.Client, keyPrefix string) ServiceOption {
	return func(s *Service) {
		s.redisClient = client
		s.lockKeyPrefix = keyPrefix
	}
}

// WithOIDCProvider 註冊一個可用於 SSO 登入的外部提供者
func WithOIDCProvider(name string, provider *oidc.Provider) ServiceOption {
	return func(s *Service) {
		s.oidcProviders[name] = provider
	}
}

// WithLogger 設置結構化日誌
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock 設置時間來源，測試用
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(db *gorm.DB, tokens *auth.TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		db:            db,
		tokens:        tokens,
		oidcProviders: make(map[string]*oidc.Provider),
		htmlChecker:   bluemonday.UGCPolicy(),
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockForUpdate 在查詢上加上列級鎖
// sqlite 不支援 FOR UPDATE，但其交易本身已整庫序列化
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
