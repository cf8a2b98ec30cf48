package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"carbid/adapters/auth"
	"carbid/models"
)

// Registration 是建立帳號所需的欄位
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     models.UserRole
}

func (r Registration) validate(op string) error {
	if r.Name == "" {
		return fmt.Errorf("[%s] name is required, err=%w", op, ErrValidation)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("[%s] invalid email format, err=%w", op, ErrValidation)
	}
	if len(r.Password) < auth.MinPasswordLength {
		return fmt.Errorf("[%s] password must be at least %d characters, err=%w", op, auth.MinPasswordLength, ErrValidation)
	}
	return nil
}

// CreateAccount 建立一個新帳號：身份（密碼雜湊）與使用者文件一起寫入
// 公開註冊只允許 seller 與 buyer 兩種角色
func (s *Service) CreateAccount(ctx context.Context, reg Registration) (*models.User, error) {
	const op = "CreateAccount"
	if reg.Role == "" {
		reg.Role = models.RoleBuyer
	}
	if reg.Role != models.RoleSeller && reg.Role != models.RoleBuyer {
		return nil, fmt.Errorf("[%s] role %q is not allowed for self registration, err=%w", op, reg.Role, ErrValidation)
	}
	return s.createUser(ctx, op, reg)
}

// AdminCreateUser 由管理員直接建立帳號，角色不受限制
func (s *Service) AdminCreateUser(ctx context.Context, sess Session, reg Registration) (*models.User, error) {
	const op = "AdminCreateUser"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	if !reg.Role.Valid() {
		return nil, fmt.Errorf("[%s] unknown role %q, err=%w", op, reg.Role, ErrValidation)
	}
	return s.createUser(ctx, op, reg)
}

func (s *Service) createUser(ctx context.Context, op string, reg Registration) (*models.User, error) {
	if err := reg.validate(op); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("[%s] err=%w", op, err)
	}
	user := models.User{
		Name:         reg.Name,
		Email:        strings.ToLower(reg.Email),
		PasswordHash: hash,
		Role:         reg.Role,
	}
	if result := s.db.WithContext(ctx).Create(&user); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	s.logger.Info("Account created", slog.String("userID", user.ID.String()), slog.String("role", string(user.Role)))
	return &user, nil
}

// SignIn 驗證帳密並簽發會話憑證
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "SignIn"
	var user models.User
	result := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			// 不洩漏帳號是否存在
			return "", nil, fmt.Errorf("[%s] invalid credentials, err=%w", op, ErrPermissionDenied)
		}
		return "", nil, storeErr(op, result.Error)
	}
	if !auth.ComparePassword(user.PasswordHash, password) {
		return "", nil, fmt.Errorf("[%s] invalid credentials, err=%w", op, ErrPermissionDenied)
	}
	token, err := s.tokens.Issue(user.ID, user.Name, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("[%s] err=%w", op, err)
	}
	return token, &user, nil
}

// CurrentSession 驗證會話憑證並還原成 Session
// 核心信任憑證內的角色宣告，即簽發當下使用者文件中的角色
func (s *Service) CurrentSession(tokenString string) (Session, error) {
	const op = "CurrentSession"
	claims, err := s.tokens.ParseAndValidate(tokenString)
	if err != nil {
		return Session{}, fmt.Errorf("[%s] invalid session token, err=%w", op, ErrPermissionDenied)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("[%s] invalid subject in session token, err=%w", op, ErrPermissionDenied)
	}
	return Session{
		UserID: userID,
		Name:   claims.Name,
		Role:   models.UserRole(claims.Role),
	}, nil
}

// SSOExchange 是 SSO 登入回呼時帶回的參數
type SSOExchange struct {
	Code        string
	State       string
	RedirectURL string
	// 登入流程發起時由呈現層保存的期望值
	ExpectedState string
	ExpectedNonce string
}

// SSOAuthURL 組出導向外部提供者的授權 URL
func (s *Service) SSOAuthURL(provider, state, nonce, redirectURL string) (string, error) {
	const op = "SSOAuthURL"
	p, ok := s.oidcProviders[provider]
	if !ok {
		return "", fmt.Errorf("[%s] unknown SSO provider %q, err=%w", op, provider, ErrNotFound)
	}
	return p.AuthURL(state, nonce, redirectURL, []string{"openid", "email", "profile"}), nil
}

// SignInWithSSO 以授權碼完成 SSO 登入
// 第一次登入的外部身份會建立對應的本地使用者（buyer），或依電子郵件
// 連結到既有帳號
func (s *Service) SignInWithSSO(ctx context.Context, provider string, ex SSOExchange) (string, *models.User, error) {
	const op = "SignInWithSSO"
	p, ok := s.oidcProviders[provider]
	if !ok {
		return "", nil, fmt.Errorf("[%s] unknown SSO provider %q, err=%w", op, provider, ErrNotFound)
	}
	verifier := p.NewExchangeVerifier(ex.ExpectedState, ex.ExpectedNonce)
	identity, err := p.Exchange(ctx, verifier, ex.Code, ex.State, ex.RedirectURL)
	if err != nil {
		return "", nil, fmt.Errorf("[%s] SSO exchange failed, err=%w: %w", op, ErrPermissionDenied, err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ext models.ExternalIdentity
		result := tx.First(&ext, "provider = ? AND subject = ?", provider, identity.Sub)
		switch {
		case result.Error == nil:
			if r := tx.First(&user, "id = ?", ext.UserID); r.Error != nil {
				return storeErr(op, r.Error)
			}
			return nil
		case !errors.Is(result.Error, gorm.ErrRecordNotFound):
			return storeErr(op, result.Error)
		}

		// 沒有對應的外部身份：依電子郵件連結既有帳號，否則建立新帳號
		result = tx.First(&user, "email = ?", strings.ToLower(identity.Email))
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return storeErr(op, result.Error)
			}
			user = models.User{
				Name:     lo.CoalesceOrEmpty(identity.Name, identity.Email),
				Email:    strings.ToLower(identity.Email),
				Role:     models.RoleBuyer,
				PhotoURL: identity.Picture,
			}
			if r := tx.Create(&user); r.Error != nil {
				return storeErr(op, r.Error)
			}
		}
		ext = models.ExternalIdentity{
			Provider: provider,
			Subject:  identity.Sub,
			UserID:   user.ID,
		}
		if r := tx.Create(&ext); r.Error != nil {
			return storeErr(op, r.Error)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(user.ID, user.Name, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("[%s] err=%w", op, err)
	}
	s.logger.Info("SSO sign in", slog.String("provider", provider), slog.String("userID", user.ID.String()))
	return token, &user, nil
}

// ImageUpload 是一張待上傳的圖片
type ImageUpload struct {
	ContentType string
	Content     io.Reader
}

// ProfileUpdate 是可由使用者本人更新的個人資料欄位
type ProfileUpdate struct {
	Name    string
	Phone   string
	Address string
	Photo   *ImageUpload
}

// UpdateProfile 更新個人資料
// 大頭照上傳是附屬寫入：主要欄位先寫入成功，照片上傳失敗只記錄
// 日誌，不使整個操作失敗
func (s *Service) UpdateProfile(ctx context.Context, sess Session, update ProfileUpdate) (*models.User, error) {
	const op = "UpdateProfile"
	if update.Name == "" {
		return nil, fmt.Errorf("[%s] name is required, err=%w", op, ErrValidation)
	}
	var user models.User
	if result := s.db.WithContext(ctx).First(&user, "id = ?", sess.UserID); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	updates := map[string]any{
		"name":    update.Name,
		"phone":   update.Phone,
		"address": update.Address,
	}
	if result := s.db.WithContext(ctx).Model(&user).Updates(updates); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}

	if update.Photo != nil {
		url, err := s.uploadImage(ctx, op, "profile-photos", sess, update.Photo.ContentType, update.Photo.Content)
		if err != nil {
			s.logger.Warn("Fail to upload profile photo", slog.String("userID", sess.UserID.String()), slog.Any("error", err))
			return &user, nil
		}
		if result := s.db.WithContext(ctx).Model(&user).Update("photo_url", url); result.Error != nil {
			s.logger.Warn("Fail to save profile photo URL", slog.String("userID", sess.UserID.String()), slog.Any("error", result.Error))
		}
	}
	return &user, nil
}

// ChangeRole 變更另一個使用者的角色，僅管理員可操作
// 角色不可由本人變更，包含管理員自己
func (s *Service) ChangeRole(ctx context.Context, sess Session, userID uuid.UUID, role models.UserRole) error {
	const op = "ChangeRole"
	if err := requireAdmin(op, sess); err != nil {
		return err
	}
	if sess.UserID == userID {
		return fmt.Errorf("[%s] role is immutable by self, err=%w", op, ErrPermissionDenied)
	}
	if !role.Valid() {
		return fmt.Errorf("[%s] unknown role %q, err=%w", op, role, ErrValidation)
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if result.Error != nil {
		return storeErr(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] user not found, err=%w", op, ErrNotFound)
	}
	s.logger.Info("Role changed", slog.String("userID", userID.String()), slog.String("role", string(role)))
	return nil
}

// DeleteUser 刪除一個使用者，僅管理員可操作
func (s *Service) DeleteUser(ctx context.Context, sess Session, userID uuid.UUID) error {
	const op = "DeleteUser"
	if err := requireAdmin(op, sess); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", userID)
	if result.Error != nil {
		return storeErr(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] user not found, err=%w", op, ErrNotFound)
	}
	return nil
}

// ListUsers 列出所有使用者，可選擇性以角色過濾，僅管理員可讀
func (s *Service) ListUsers(ctx context.Context, sess Session, role *models.UserRole) ([]models.User, error) {
	const op = "ListUsers"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx)
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	var users []models.User
	if result := query.Order("created_at DESC").Find(&users); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return users, nil
}

// ToggleFavorite 把一輛車加入或移出收藏，回傳操作後是否在收藏中
func (s *Service) ToggleFavorite(ctx context.Context, sess Session, carID uuid.UUID) (bool, error) {
	const op = "ToggleFavorite"
	var favored bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if result := tx.First(&car, "id = ?", carID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		var user models.User
		if result := lockForUpdate(tx).First(&user, "id = ?", sess.UserID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if lo.Contains(user.Favorites, carID) {
			user.Favorites = lo.Reject(user.Favorites, func(id uuid.UUID, _ int) bool { return id == carID })
			favored = false
		} else {
			user.Favorites = append(user.Favorites, carID)
			favored = true
		}
		// 經由 schema 欄位更新，讓 serializer:json 生效
		if result := tx.Model(&user).Select("favorites").Updates(models.User{Favorites: user.Favorites}); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return favored, nil
}

// Favorites 回傳收藏中的車輛，已被刪除的收藏會被靜默略過
func (s *Service) Favorites(ctx context.Context, sess Session) ([]models.Car, error) {
	const op = "Favorites"
	var user models.User
	if result := s.db.WithContext(ctx).First(&user, "id = ?", sess.UserID); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	if len(user.Favorites) == 0 {
		return nil, nil
	}
	var cars []models.Car
	if result := s.db.WithContext(ctx).Where("id IN ?", user.Favorites).Find(&cars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return cars, nil
}

// GeneralSettings 是全站的一般設定
type GeneralSettings struct {
	SiteName       string
	AdminEmail     string
	CommissionRate float64
}

// SaveGeneralSettings 保存全站設定，僅管理員可操作
func (s *Service) SaveGeneralSettings(ctx context.Context, sess Session, settings GeneralSettings) error {
	const op = "SaveGeneralSettings"
	if err := requireAdmin(op, sess); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting models.Setting
		result := lockForUpdate(tx).First(&setting, "name = ?", models.SettingNameGeneral)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return storeErr(op, result.Error)
			}
			setting = models.Setting{
				Name:           models.SettingNameGeneral,
				SiteName:       settings.SiteName,
				AdminEmail:     settings.AdminEmail,
				CommissionRate: settings.CommissionRate,
				UpdatedBy:      sess.UserID,
			}
			if r := tx.Create(&setting); r.Error != nil {
				return storeErr(op, r.Error)
			}
			return nil
		}
		updates := map[string]any{
			"site_name":       settings.SiteName,
			"admin_email":     settings.AdminEmail,
			"commission_rate": settings.CommissionRate,
			"updated_by":      sess.UserID,
		}
		if r := tx.Model(&setting).Updates(updates); r.Error != nil {
			return storeErr(op, r.Error)
		}
		return nil
	})
}

// LoadGeneralSettings 讀取全站設定，尚未設定時回傳零值
func (s *Service) LoadGeneralSettings(ctx context.Context) (*GeneralSettings, error) {
	const op = "LoadGeneralSettings"
	var setting models.Setting
	result := s.db.WithContext(ctx).First(&setting, "name = ?", models.SettingNameGeneral)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return &GeneralSettings{}, nil
		}
		return nil, storeErr(op, result.Error)
	}
	return &GeneralSettings{
		SiteName:       setting.SiteName,
		AdminEmail:     setting.AdminEmail,
		CommissionRate: setting.CommissionRate,
	}, nil
}
