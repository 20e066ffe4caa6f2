package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Mentors            int
	Students           int
	SkillsPerMentor    int
	BookingsPerStudent int
	MessagesPerBooking int
	ShouldClean        bool

	// SkipBcrypt stores the plain default password; only for throwaway databases.
	SkipBcrypt bool
	DryRun     bool
	// MaxDays bounds how far booking dates spread from today.
	MaxDays  int
	RandSeed int64
}

// DefaultOptions is what cmd/seed uses without flags.
func DefaultOptions() Options {
	return Options{
		Mentors:            10,
		Students:           30,
		SkillsPerMentor:    3,
		BookingsPerStudent: 2,
		MessagesPerBooking: 6,
		ShouldClean:        true,
		MaxDays:            60,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Skills        int
	Bookings      int
	Messages      int
	Notifications int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d skills, %d bookings, %d messages, %d notifications",
		s.Users, s.Skills, s.Bookings, s.Messages, s.Notifications)
}

// Seeder populates a database with a coherent marketplace.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a seeder. messages selects the chat store; nil means the SQL log on db.
func NewSeeder(db *gorm.DB, messages repository.MessageLog, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, messages, opts)}
}

// Factory exposes the underlying factory for ad hoc data.
func (s *Seeder) Factory() *Factory { return s.factory }

var bookingStatuses = []models.BookingStatus{
	models.BookingPending,
	models.BookingConfirmed,
	models.BookingOngoing,
	models.BookingCompleted,
	models.BookingCancelled,
}

// Seed populates the database with test data
func (s *Seeder) Seed(ctx context.Context) (Summary, error) {
	var sum Summary
	log.Printf("🌱 Seeding %d mentors and %d students...", s.opts.Mentors, s.opts.Students)

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := s.ClearAll(); err != nil {
			return sum, fmt.Errorf("clear data: %w", err)
		}
	}

	var skills []*models.Skill
	mentors := make(map[string]*models.User, s.opts.Mentors)
	for i := 0; i < s.opts.Mentors; i++ {
		mentor, err := s.factory.CreateUser(models.RoleMentor)
		if err != nil {
			return sum, fmt.Errorf("create mentor: %w", err)
		}
		mentors[mentor.ID] = mentor
		sum.Users++

		for j := 0; j < s.opts.SkillsPerMentor; j++ {
			skill, err := s.factory.CreateSkill(mentor)
			if err != nil {
				return sum, fmt.Errorf("create skill: %w", err)
			}
			skills = append(skills, skill)
			sum.Skills++
		}
	}
	log.Printf("✓ %d mentors with %d skills", len(mentors), len(skills))

	if len(skills) == 0 {
		return sum, nil
	}

	for i := 0; i < s.opts.Students; i++ {
		student, err := s.factory.CreateUser(models.RoleStudent)
		if err != nil {
			return sum, fmt.Errorf("create student: %w", err)
		}
		sum.Users++

		for j := 0; j < s.opts.BookingsPerStudent; j++ {
			skill := skills[s.factory.rng.Intn(len(skills))]
			status := bookingStatuses[s.factory.rng.Intn(len(bookingStatuses))]
			booking, err := s.factory.CreateBooking(student, skill, status)
			if err != nil {
				return sum, fmt.Errorf("create booking: %w", err)
			}
			sum.Bookings++

			n, err := s.seedConversation(ctx, booking, student, mentors[skill.UserID])
			if err != nil {
				return sum, err
			}
			sum.Messages += n

			if _, err := s.factory.CreateNotification(booking.TeacherID, booking, "New booking request for your session"); err != nil {
				return sum, fmt.Errorf("create notification: %w", err)
			}
			sum.Notifications++
		}
	}

	log.Printf("🎉 Seeding complete: %s", sum)
	return sum, nil
}

// seedConversation writes an alternating exchange for bookings that got past pending.
func (s *Seeder) seedConversation(ctx context.Context, booking *models.Booking, learner, teacher *models.User) (int, error) {
	if booking.Status == models.BookingPending || s.opts.MessagesPerBooking <= 0 || teacher == nil {
		return 0, nil
	}
	at := time.Now().UTC().Add(-time.Duration(s.opts.MessagesPerBooking) * time.Minute)
	for i := 0; i < s.opts.MessagesPerBooking; i++ {
		sender := learner
		if i%2 == 1 {
			sender = teacher
		}
		if _, err := s.factory.CreateMessage(ctx, booking, sender, at.Add(time.Duration(i)*time.Minute)); err != nil {
			return i, fmt.Errorf("create message: %w", err)
		}
	}
	return s.opts.MessagesPerBooking, nil
}

// ClearAll deletes every seeded row, children first.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{
		&models.Notification{},
		&models.ChatMessage{},
		&models.Booking{},
		&models.Skill{},
		&models.User{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

// DemoAccount is a fixed login created by EnsureDemoAccounts.
type DemoAccount struct {
	Name  string
	Email string
	Role  models.Role
}

var demoAccounts = []DemoAccount{
	{Name: "Demo Mentor", Email: "mentor@skillswap.local", Role: models.RoleMentor},
	{Name: "Demo Student", Email: "student@skillswap.local", Role: models.RoleStudent},
}

// EnsureDemoAccounts creates the demo mentor and student if they are missing and
// gives the mentor one skill. It is idempotent and safe to run on every start.
func EnsureDemoAccounts(db *gorm.DB, opts Options) ([]models.User, error) {
	f := NewFactory(db, nil, opts)
	out := make([]models.User, 0, len(demoAccounts))

	for _, acct := range demoAccounts {
		var user models.User
		err := db.Where("email = ?", strings.ToLower(acct.Email)).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, cerr := f.CreateUser(acct.Role, func(u *models.User) {
				u.Name = acct.Name
				u.Email = acct.Email
			})
			if cerr != nil {
				return nil, cerr
			}
			user = *created
			if acct.Role == models.RoleMentor {
				if _, serr := f.CreateSkill(&user, func(s *models.Skill) {
					s.Title = "Intro to Go"
					s.Category = "Software Development"
				}); serr != nil {
					return nil, serr
				}
			}
			log.Printf("demo account ensured: %s (%s)", acct.Email, acct.Role)
		case err != nil:
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}
