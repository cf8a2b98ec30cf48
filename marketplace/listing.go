package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carbid/adapters/s3"
	"carbid/models"
)

// CarAttributes 是刊登車輛時由呈現層蒐集的欄位
type CarAttributes struct {
	Brand        string
	ModelName    string
	Year         int
	Price        float64
	Mileage      float64
	Condition    string
	Color        string
	Transmission string
	Description  string
	ImageURLs    []string
}

func (a CarAttributes) validate(op string) error {
	if a.Brand == "" {
		return fmt.Errorf("[%s] brand is required, err=%w", op, ErrValidation)
	}
	if a.ModelName == "" {
		return fmt.Errorf("[%s] model is required, err=%w", op, ErrValidation)
	}
	if a.Year <= 0 {
		return fmt.Errorf("[%s] year is required, err=%w", op, ErrValidation)
	}
	if a.Price <= 0 {
		return fmt.Errorf("[%s] price must be positive, err=%w", op, ErrValidation)
	}
	return nil
}

// SubmitCar 建立一筆待審核的車輛刊登
func (s *Service) SubmitCar(ctx context.Context, sess Session, attrs CarAttributes) (*models.Car, error) {
	const op = "SubmitCar"
	car, err := s.createCar(ctx, op, sess, attrs, models.CarStatusPending)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Car submitted for approval", slog.String("carID", car.ID.String()), slog.String("sellerID", sess.UserID.String()))
	return car, nil
}

// AdminDirectList 管理員直接上架：建立一筆已核准的刊登，賣家為管理員本人
func (s *Service) AdminDirectList(ctx context.Context, sess Session, attrs CarAttributes) (*models.Car, error) {
	const op = "AdminDirectList"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	car, err := s.createCar(ctx, op, sess, attrs, models.CarStatusApproved)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Car listed directly by admin", slog.String("carID", car.ID.String()), slog.String("adminID", sess.UserID.String()))
	return car, nil
}

func (s *Service) createCar(ctx context.Context, op string, sess Session, attrs CarAttributes, status models.CarStatus) (*models.Car, error) {
	if err := attrs.validate(op); err != nil {
		return nil, err
	}
	images := attrs.ImageURLs
	if len(images) > maxCarImages {
		images = images[:maxCarImages]
	}
	car := models.Car{
		SellerID:     sess.UserID,
		SellerName:   sess.Name,
		Brand:        attrs.Brand,
		ModelName:    attrs.ModelName,
		Year:         attrs.Year,
		Price:        attrs.Price,
		Mileage:      attrs.Mileage,
		Condition:    attrs.Condition,
		Color:        attrs.Color,
		Transmission: attrs.Transmission,
		Description:  s.htmlChecker.Sanitize(attrs.Description),
		Images:       images,
		Status:       status,
	}
	if result := s.db.WithContext(ctx).Create(&car); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return &car, nil
}

// ApproveCar 核准一筆待審核的刊登，僅管理員可操作
func (s *Service) ApproveCar(ctx context.Context, sess Session, carID uuid.UUID) (*models.Car, error) {
	return s.reviewCar(ctx, "ApproveCar", sess, carID, models.CarStatusApproved)
}

// RejectCar 駁回一筆待審核的刊登，僅管理員可操作
func (s *Service) RejectCar(ctx context.Context, sess Session, carID uuid.UUID) (*models.Car, error) {
	return s.reviewCar(ctx, "RejectCar", sess, carID, models.CarStatusRejected)
}

func (s *Service) reviewCar(ctx context.Context, op string, sess Session, carID uuid.UUID, to models.CarStatus) (*models.Car, error) {
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	var car models.Car
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := lockForUpdate(tx).First(&car, "id = ?", carID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		// 只有 pending 的刊登可以核准或駁回
		if car.Status != models.CarStatusPending {
			return fmt.Errorf("[%s] car is %s, err=%w", op, car.Status, ErrInvalidStateTransition)
		}
		if result := tx.Model(&car).Update("status", to); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Car reviewed", slog.String("carID", carID.String()), slog.String("status", string(to)))
	return &car, nil
}

// DeleteCar 刪除刊登，僅賣家本人或管理員可操作
// 上架拍賣中或已售出的車輛不可刪除
func (s *Service) DeleteCar(ctx context.Context, sess Session, carID uuid.UUID) error {
	const op = "DeleteCar"
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if result := lockForUpdate(tx).First(&car, "id = ?", carID); result.Error != nil {
			return storeErr(op, result.Error)
		}
		if !sess.IsAdmin() && car.SellerID != sess.UserID {
			return fmt.Errorf("[%s] caller does not own this car, err=%w", op, ErrPermissionDenied)
		}
		if !car.Status.Deletable() {
			return fmt.Errorf("[%s] car is %s, err=%w", op, car.Status, ErrConflict)
		}
		if result := tx.Delete(&car); result.Error != nil {
			return storeErr(op, result.Error)
		}
		return nil
	})
}

// MyCars 回傳賣家自己的刊登，可選擇性以狀態過濾
func (s *Service) MyCars(ctx context.Context, sess Session, status *models.CarStatus) ([]models.Car, error) {
	const op = "MyCars"
	query := s.db.WithContext(ctx).Where("seller_id = ?", sess.UserID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var cars []models.Car
	if result := query.Order("created_at DESC").Find(&cars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return cars, nil
}

// CarsByStatus 依狀態列出刊登，供管理後台的分頁使用
func (s *Service) CarsByStatus(ctx context.Context, sess Session, status models.CarStatus) ([]models.Car, error) {
	const op = "CarsByStatus"
	if err := requireAdmin(op, sess); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("[%s] unknown car status %q, err=%w", op, status, ErrValidation)
	}
	var cars []models.Car
	if result := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at DESC").Find(&cars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return cars, nil
}

// ApprovedCars 列出所有可開立拍賣的已核准車輛
func (s *Service) ApprovedCars(ctx context.Context) ([]models.Car, error) {
	const op = "ApprovedCars"
	var cars []models.Car
	if result := s.db.WithContext(ctx).Where("status = ?", models.CarStatusApproved).Order("created_at DESC").Find(&cars); result.Error != nil {
		return nil, storeErr(op, result.Error)
	}
	return cars, nil
}

// UploadCarImage 上傳一張車輛照片並回傳公開 URL
// 照片上傳是刊登的附屬寫入：失敗不會影響已建立的刊登
func (s *Service) UploadCarImage(ctx context.Context, sess Session, contentType string, content io.Reader) (string, error) {
	const op = "UploadCarImage"
	return s.uploadImage(ctx, op, "car-images", sess, contentType, content)
}

func (s *Service) uploadImage(ctx context.Context, op, prefix string, sess Session, contentType string, content io.Reader) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("[%s] no blob store configured, err=%w", op, ErrStoreUnavailable)
	}
	ok, ext := s3.CheckSecureImageAndGetExtension(contentType)
	if !ok {
		return "", fmt.Errorf("[%s] content type %q is not an allowed image type, err=%w", op, contentType, ErrValidation)
	}
	data, err := io.ReadAll(s3.NewMaxSizeReader(content, maxImageBytes))
	if err != nil {
		var limitErr *s3.ReachLimitError
		if errors.As(err, &limitErr) {
			return "", fmt.Errorf("[%s] image exceeds %s, err=%w", op, s3.FormatBytes(limitErr.MaxBytes), ErrValidation)
		}
		return "", fmt.Errorf("[%s] Fail to read image content, err=%w", op, err)
	}
	path := fmt.Sprintf("%s/%s/%d.%s", prefix, sess.UserID, s.now().UnixMilli(), ext)
	url, err := s.blobs.Put(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload image, err=%w: %w", op, ErrStoreUnavailable, err)
	}
	return url, nil
}
