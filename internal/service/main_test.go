package service

import (
	"context"
	"testing"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// fixedNow is the wall clock every service test runs at.
var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	skills        repository.SkillRepository
	bookings      repository.BookingRepository
	notifications repository.NotificationRepository
	messages      repository.MessageLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		skills:        repository.NewSkillRepository(db),
		bookings:      repository.NewBookingRepository(db),
		notifications: repository.NewNotificationRepository(db),
		messages:      repository.NewMessageLog(db),
	}
}

func (e *testEnv) userService() *UserService {
	return NewUserService(e.users).WithBcryptCost(bcrypt.MinCost)
}

func (e *testEnv) bookingService() *BookingService {
	return NewBookingService(e.bookings, e.skills).WithClock(func() time.Time { return fixedNow })
}

func (e *testEnv) createUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, e.users.Put(context.Background(), u))
	return u
}

func (e *testEnv) createSkill(t *testing.T, owner *models.User) *models.Skill {
	t.Helper()
	s := &models.Skill{UserID: owner.ID, Title: "Go basics", Rate: 20, Category: "Software Development"}
	require.NoError(t, e.skills.Put(context.Background(), s))
	return s
}

// pair creates a teacher, a learner and a skill owned by the teacher.
func (e *testEnv) pair(t *testing.T) (teacher, learner *models.User, skill *models.Skill) {
	t.Helper()
	teacher = e.createUser(t, "teacher", models.RoleMentor)
	learner = e.createUser(t, "learner", models.RoleStudent)
	return teacher, learner, e.createSkill(t, teacher)
}
