package marketplace

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper 定期掃描過期拍賣並結算
// 結算不靠事件觸發：讀取端已把過期拍賣視為結束，掃描只負責把
// 狀態補寫回儲存，單輪失敗留待下一輪重試
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SweeperOption func(*Sweeper)

// WithSweepInterval 設置掃描間隔
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = d
	}
}

// WithSweeperLogger 設置結構化日誌
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func NewSweeper(svc *Service, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		svc:      svc,
		interval: time.Minute,
		logger:   slog.Default().With(slog.String("caller", "Sweeper")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 啟動背景掃描
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.logger.Info("Start auction expiry sweeper", slog.Duration("interval", s.interval))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.Info("Auction expiry sweeper stopped")
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, s.interval)
				settled, err := s.svc.SweepExpired(sweepCtx)
				cancel()
				if err != nil {
					s.logger.Error("Sweep failed", slog.Any("error", err))
					continue
				}
				if settled > 0 {
					s.logger.Info("Settled expired auctions", slog.Int("count", settled))
				}
			}
		}
	}()
}

// Close 停止背景掃描並等待最後一輪結束
func (s *Sweeper) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}
