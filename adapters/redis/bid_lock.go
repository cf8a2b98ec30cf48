package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// IBidLock 定義了跨客戶端出價鎖的操作介面
type IBidLock interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}

// BidLock 是以 redsync 實作、帶自動續期的分散式互斥鎖
// 出價寫入前先取得對應拍賣的鎖，避免多個客戶端以過期的
// currentBid 基準同時寫入
type BidLock struct {
	*redsync.Mutex
	cancel   context.CancelFunc
	renewing bool
	mu       sync.Mutex
	wg       sync.WaitGroup
	options  bidLockOptions
}

type bidLockOptions struct {
	renewInterval time.Duration
	retryDelay    time.Duration
	expiry        time.Duration
}

type BidLockOption func(*bidLockOptions)

// WithBidLockRenewInterval 設置自動續期間隔
func WithBidLockRenewInterval(d time.Duration) BidLockOption {
	return func(o *bidLockOptions) {
		o.renewInterval = d
	}
}

// WithBidLockRetryDelay 設置重試延遲
func WithBidLockRetryDelay(d time.Duration) BidLockOption {
	return func(o *bidLockOptions) {
		o.retryDelay = d
	}
}

// WithBidLockExpiry 設置鎖過期時間
func WithBidLockExpiry(d time.Duration) BidLockOption {
	return func(o *bidLockOptions) {
		o.expiry = d
	}
}

// NewBidLock 建立一把對應單一拍賣的出價鎖
func NewBidLock(client *redis.Client, key string, opts ...BidLockOption) IBidLock {
	options := bidLockOptions{
		expiry:     8 * time.Second,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	// 未設置續期間隔時，使用過期時間的1/3
	if options.renewInterval <= 0 {
		options.renewInterval = options.expiry / 3
	}

	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	mutex := rs.NewMutex(
		key,
		redsync.WithExpiry(options.expiry),
		redsync.WithTries(1),
		redsync.WithRetryDelay(options.retryDelay),
	)

	return &BidLock{
		Mutex:   mutex,
		options: options,
	}
}

// Lock 獲取鎖並啟動自動續期，支持通過 context 取消
// 回傳的 context 會在鎖失效時一併取消
func (m *BidLock) Lock(ctx context.Context) (context.Context, error) {
	timer := time.NewTimer(1)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			err := m.Mutex.LockContext(ctx)
			if err == nil {
				lockCtx, cancel := context.WithCancel(ctx)
				m.cancel = cancel
				m.startAutoRenew(lockCtx)
				return lockCtx, nil
			}
			// 與 Redis 的通訊錯誤直接回報，其餘視為鎖被占用並重試
			var commErr *redsync.RedisError
			if errors.As(err, &commErr) {
				return nil, fmt.Errorf("failed to acquire bid lock: %w", err)
			}
			timer.Reset(m.options.retryDelay)
		}
	}
}

// Unlock 停止自動續期並釋放鎖
func (m *BidLock) Unlock() (bool, error) {
	m.stopAutoRenew()
	m.wg.Wait()
	return m.Mutex.Unlock()
}

// Valid 檢查鎖是否仍然有效
func (m *BidLock) Valid() bool {
	return time.Now().Before(m.Mutex.Until()) && m.isRenewing()
}

func (m *BidLock) isRenewing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renewing
}

func (m *BidLock) startAutoRenew(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renewing {
		return
	}

	m.renewing = true
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.options.renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				success, err := m.Mutex.Extend()
				if err != nil || !success {
					m.stopAutoRenew()
					return
				}
			}
		}
	}()
}

func (m *BidLock) stopAutoRenew() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.renewing {
		return
	}

	m.renewing = false
	if m.cancel != nil {
		m.cancel()
	}
}
