package redis

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

func setupTest(t *testing.T) (*redis.Client, redismock.ClientMock, func()) {
	db, mock := redismock.NewClientMock()
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestNewBidLock(t *testing.T) {
	tests := []struct {
		name string
		key  string
		opts []BidLockOption
	}{
		{
			name: "default options",
			key:  "auction:lock",
		},
		{
			name: "custom options",
			key:  "auction:lock",
			opts: []BidLockOption{
				WithBidLockExpiry(5 * time.Second),
				WithBidLockRenewInterval(1 * time.Second),
				WithBidLockRetryDelay(100 * time.Millisecond),
			},
		},
		{
			name: "zero expiry",
			key:  "auction:lock",
			opts: []BidLockOption{
				WithBidLockExpiry(0),
			},
		},
		{
			name: "empty key",
			key:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			client, _, cleanup := setupTest(t)
			defer cleanup()

			lock := NewBidLock(client, tt.key, tt.opts...)
			require.NotNil(t, lock)
		})
	}
}

func TestBidLock_ValidBeforeLock(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	lock := NewBidLock(client, "auction:lock")
	// 尚未取得鎖之前不應視為有效
	assert.False(t, lock.Valid())
}

func TestBidLock_RenewIntervalDefault(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	lock := NewBidLock(client, "auction:lock", WithBidLockExpiry(9*time.Second))
	impl, ok := lock.(*BidLock)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, impl.options.renewInterval)
}
