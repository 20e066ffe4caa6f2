// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultPassword = "swap-skills-42"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db       *gorm.DB
	messages repository.MessageLog
	opts     Options
	rng      *rand.Rand
	hash     string
}

// NewFactory creates a new Factory bound to the provided Gorm DB. messages may be
// nil, in which case chat messages go to the SQL log on db.
func NewFactory(db *gorm.DB, messages repository.MessageLog, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	if messages == nil && db != nil {
		messages = repository.NewMessageLog(db)
	}
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, messages: messages, opts: opts, rng: rand.New(rand.NewSource(seed))}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return defaultPassword
	}
	if f.hash == "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		f.hash = string(hashed)
	}
	return f.hash
}

// BuildUser constructs a user with the given role without persisting it.
func (f *Factory) BuildUser(role models.Role, overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	user := &models.User{
		ID:       uuid.NewString(),
		Name:     first + " " + last,
		Email:    fmt.Sprintf("%s.%s.%d@example.com", first, last, gofakeit.Number(100, 99999)),
		Password: f.passwordHash(),
		Role:     role,
		Bio:      gofakeit.Sentence(10),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample `models.User`.
func (f *Factory) CreateUser(role models.Role, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(role, overrides...)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateUser: %s <%s> role=%s", user.Name, user.Email, user.Role)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildSkill constructs a skill owned by owner in a random catalog category.
func (f *Factory) BuildSkill(owner *models.User, overrides ...func(*models.Skill)) *models.Skill {
	categories := models.SkillCategories()
	skill := &models.Skill{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		Title:       gofakeit.HipsterWord() + " " + gofakeit.JobDescriptor(),
		Description: gofakeit.Paragraph(1, 2, 12, " "),
		Rate:        float64(gofakeit.Number(10, 120)),
		Category:    categories[f.rng.Intn(len(categories))],
	}
	for _, override := range overrides {
		override(skill)
	}
	return skill
}

// CreateSkill constructs and persists a sample `models.Skill`.
func (f *Factory) CreateSkill(owner *models.User, overrides ...func(*models.Skill)) (*models.Skill, error) {
	skill := f.BuildSkill(owner, overrides...)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateSkill: %q category=%s", skill.Title, skill.Category)
		return skill, nil
	}
	if err := f.db.Create(skill).Error; err != nil {
		return nil, err
	}
	return skill, nil
}

// BuildBooking constructs a booking of learner on skill in the given status. The
// date and session times are consistent with the status: finished sessions lie
// in the past, open ones in the future, start_time only after ongoing and
// end_time only after completed.
func (f *Factory) BuildBooking(learner *models.User, skill *models.Skill, status models.BookingStatus, overrides ...func(*models.Booking)) *models.Booking {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 60
	}
	now := time.Now().UTC()
	offset := time.Duration(f.rng.Intn(maxDays)+1) * 24 * time.Hour

	date := now.Add(offset)
	if status == models.BookingCompleted || status == models.BookingOngoing {
		date = now.Add(-offset)
	}
	if status == models.BookingOngoing {
		date = now
	}

	booking := &models.Booking{
		ID:        uuid.NewString(),
		SkillID:   skill.ID,
		LearnerID: learner.ID,
		TeacherID: skill.UserID,
		Date:      date.Format(models.BookingDateLayout),
		Status:    status,
	}
	if status == models.BookingOngoing || status == models.BookingCompleted {
		start := date.Truncate(time.Hour)
		booking.StartTime = &start
	}
	if status == models.BookingCompleted {
		end := booking.StartTime.Add(time.Hour)
		booking.EndTime = &end
	}
	for _, override := range overrides {
		override(booking)
	}
	return booking
}

// CreateBooking constructs and persists a sample `models.Booking`.
func (f *Factory) CreateBooking(learner *models.User, skill *models.Skill, status models.BookingStatus, overrides ...func(*models.Booking)) (*models.Booking, error) {
	if learner.ID == skill.UserID {
		return nil, fmt.Errorf("learner %s owns skill %s", learner.ID, skill.ID)
	}
	booking := f.BuildBooking(learner, skill, status, overrides...)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateBooking: %s status=%s date=%s", booking.ID, booking.Status, booking.Date)
		return booking, nil
	}
	if err := f.db.Create(booking).Error; err != nil {
		return nil, err
	}
	return booking, nil
}

// CreateMessage appends a sample chat message from sender to the booking's log.
func (f *Factory) CreateMessage(ctx context.Context, booking *models.Booking, sender *models.User, at time.Time, overrides ...func(*models.ChatMessage)) (*models.ChatMessage, error) {
	userType := string(booking.RoleOf(sender.ID))
	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		SenderID:  sender.ID,
		Content:   gofakeit.Sentence(gofakeit.Number(3, 14)),
		Timestamp: at.UTC(),
		UserType:  userType,
	}
	for _, override := range overrides {
		override(msg)
	}
	if f.opts.DryRun {
		return msg, nil
	}
	if err := f.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateNotification persists a notification for userID about booking.
func (f *Factory) CreateNotification(userID string, booking *models.Booking, message string) (*models.Notification, error) {
	n := &models.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Message: message,
	}
	if booking != nil {
		id := booking.ID
		n.BookingID = &id
	}
	if f.opts.DryRun {
		return n, nil
	}
	if err := f.db.Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}
