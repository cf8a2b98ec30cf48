package s3

import (
	"fmt"
	"io"
)

var ErrReachLimitType *ReachLimitError

type ReachLimitError struct {
	MaxBytes int64
}

func (e *ReachLimitError) Error() string {
	return fmt.Sprintf("reach limit of %s", FormatBytes(e.MaxBytes))
}

// NewMaxSizeReader 建立一個限制讀取總長度的 Reader，
// 用於在上傳前擋下過大的圖片；讀取長度一旦超過限制，
// 將返回 ReachLimitError。
func NewMaxSizeReader(r io.Reader, maxSize int64) io.Reader {
	return &maxSizeReader{r, maxSize, maxSize}
}

type maxSizeReader struct {
	reader io.Reader
	i      int64 // 限制的總長度
	n      int64 // 還可以讀取的長度
}

func (r *maxSizeReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	// 只需要多讀一個位元組就能判斷是否超過
	// 最大長度，不需要讀滿請求的長度
	if int64(len(p)) > r.n+1 {
		p = p[:r.n+1]
	}
	n, err = r.reader.Read(p)

	// 讀取長度仍在剩餘額度內，直接返回原始資料
	if int64(n) <= r.n {
		r.n -= int64(n)
		return n, err
	}

	// 超過限制的長度，返回超過限制錯誤
	n = int(r.n)
	r.n = 0
	return n, &ReachLimitError{r.i}
}
