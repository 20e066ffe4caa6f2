package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"skillswap/internal/config"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type testServer struct {
	*Server
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

type serverOption func(*Deps, *config.Config)

func withMessageLog(log repository.MessageLog) serverOption {
	return func(d *Deps, _ *config.Config) { d.MessageLog = log }
}

func withFeatureFlags(raw string) serverOption {
	return func(_ *Deps, cfg *config.Config) { cfg.FeatureFlags = raw }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	deps := Deps{DB: db, Redis: rdb}
	cfg := &config.Config{Env: "test", JWTSecret: testSecret, Port: "0", WSTicketTTLSeconds: 30}
	for _, opt := range opts {
		opt(&deps, cfg)
	}

	s, err := NewServerWithDeps(cfg, deps)
	require.NoError(t, err)

	app := NewApp()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	t.Cleanup(func() {
		_ = s.hub.Shutdown(context.Background())
		_ = s.roomHub.Shutdown(context.Background())
		_ = rdb.Close()
	})
	return &testServer{Server: s, app: app, mr: mr, rdb: rdb}
}

func (ts *testServer) createUser(t *testing.T, name string, role models.Role) (*models.User, string) {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, ts.userRepo.Put(context.Background(), u))
	token, err := middleware.GenerateToken(testSecret, u.ID, string(role))
	require.NoError(t, err)
	return u, token
}

func (ts *testServer) createSkill(t *testing.T, owner *models.User) *models.Skill {
	t.Helper()
	s := &models.Skill{UserID: owner.ID, Title: "Guitar", Rate: 10, Category: "Music"}
	require.NoError(t, ts.skillRepo.Put(context.Background(), s))
	return s
}

func (ts *testServer) createBooking(t *testing.T, learner, teacher *models.User, skill *models.Skill, status models.BookingStatus) *models.Booking {
	t.Helper()
	b := &models.Booking{SkillID: skill.ID, LearnerID: learner.ID, TeacherID: teacher.ID, Date: "2099-01-01", Status: status}
	require.NoError(t, ts.bookingRepo.Put(context.Background(), b))
	return b
}

// do sends a JSON request and returns status and raw body.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

