package repository

import (
	"context"

	"skillswap/internal/models"

	"gorm.io/gorm"
)

// BookingRepository stores bookings. Bookings are never physically deleted.
type BookingRepository interface {
	Collection[models.Booking]
	ListForUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListForLearner(ctx context.Context, learnerID string) ([]models.Booking, error)
	ListForTeacher(ctx context.Context, teacherID string) ([]models.Booking, error)
	// UpdateFromStatus writes fields only while the booking is still in from.
	// It reports false when another writer moved the booking first.
	UpdateFromStatus(ctx context.Context, id string, from models.BookingStatus, fields map[string]any) (bool, error)
}

type bookingRepository struct {
	Collection[models.Booking]
	db *gorm.DB
}

// NewBookingRepository returns a gorm-backed BookingRepository.
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{
		Collection: NewCollection[models.Booking](db, "Booking"),
		db:         db,
	}
}

func (r *bookingRepository) list(ctx context.Context, where string, args ...any) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := readDB(r.db).WithContext(ctx).
		Where(where, args...).
		Order("date ASC").
		Order("created_at ASC").
		Find(&bookings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return bookings, nil
}

func (r *bookingRepository) ListForUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return r.list(ctx, "learner_id = ? OR teacher_id = ?", userID, userID)
}

func (r *bookingRepository) ListForLearner(ctx context.Context, learnerID string) ([]models.Booking, error) {
	return r.list(ctx, "learner_id = ?", learnerID)
}

func (r *bookingRepository) ListForTeacher(ctx context.Context, teacherID string) ([]models.Booking, error) {
	return r.list(ctx, "teacher_id = ?", teacherID)
}

func (r *bookingRepository) UpdateFromStatus(ctx context.Context, id string, from models.BookingStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
