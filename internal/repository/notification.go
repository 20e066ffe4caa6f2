package repository

import (
	"context"
	"errors"

	"skillswap/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	Collection[models.Notification]
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	// FindUnreadForBooking returns nil, nil when the user has no unread notification for the booking.
	FindUnreadForBooking(ctx context.Context, userID, bookingID string) (*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	ClearAll(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	Collection[models.Notification]
	db *gorm.DB
}

// NewNotificationRepository returns a gorm-backed NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{
		Collection: NewCollection[models.Notification](db, "Notification"),
		db:         db,
	}
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) FindUnreadForBooking(ctx context.Context, userID, bookingID string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND booking_id = ? AND read = ?", userID, bookingID, false).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &n, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead only touches notifications owned by userID.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

func (r *notificationRepository) ClearAll(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
