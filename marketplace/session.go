package marketplace

import (
	"fmt"

	"github.com/google/uuid"

	"carbid/models"
)

// Session 代表一次已驗證的使用者會話
// 每個操作都以明確的 Session 參數傳入呼叫者身份，核心不保存任何
// 環境狀態；Role 來自會話憑證的宣告
type Session struct {
	UserID uuid.UUID
	Name   string
	Role   models.UserRole
}

// IsAdmin 回報會話持有者是否為管理員
func (s Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// requireAdmin 檢查會話持有者是否為管理員
func requireAdmin(op string, sess Session) error {
	if !sess.IsAdmin() {
		return fmt.Errorf("[%s] caller is not an admin, err=%w", op, ErrPermissionDenied)
	}
	return nil
}
