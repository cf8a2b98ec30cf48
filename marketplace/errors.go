package marketplace

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 市集操作對外的錯誤分類。所有領域規則失敗都以 errors.Is 可判別的
// 哨兵錯誤回傳，呈現層據此決定重試與否與顯示方式。
var (
	// ErrValidation 輸入的形狀或範圍不合法，不可重試
	ErrValidation = errors.New("validation error")
	// ErrNotFound 參照的實體不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidStateTransition 操作在目前生命週期狀態下不合法
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrBidTooLow 出價未達最低可接受金額
	ErrBidTooLow = errors.New("bid too low")
	// ErrPreconditionFailed 前置條件不滿足（例如車輛尚未核准）
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrConflict 操作與實體目前的狀態衝突（例如刪除拍賣中的車輛）
	ErrConflict = errors.New("conflict")
	// ErrPermissionDenied 呼叫者的角色不允許此操作
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable 後端儲存暫時不可用，呼叫者可退避後重試
	ErrStoreUnavailable = errors.New("store unavailable")
)

// BidTooLowError 帶出最低可接受出價，讓呈現層能直接修正表單
type BidTooLowError struct {
	MinimumBid float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, minimum acceptable bid is %.2f", e.MinimumBid)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// storeErr 將儲存層錯誤轉換為對外的錯誤分類
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("[%s] record not found, err=%w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("[%s] duplicated record, err=%w", op, ErrConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("[%s] store call aborted, err=%w: %w", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("[%s] store call failed, err=%w: %w", op, ErrStoreUnavailable, err)
	}
}
