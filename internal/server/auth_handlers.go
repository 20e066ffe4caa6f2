package server

import (
	"errors"
	"strings"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultWSTicketTTL = 30 * time.Second

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,role"`
	Bio      string `json:"bio" validate:"max=500"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		Bio:      req.Bio,
	})
	if err != nil {
		return respondError(c, err)
	}

	token, err := middleware.GenerateToken(s.config.JWTSecret, user.ID, string(user.Role))
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := middleware.GenerateToken(s.config.JWTSecret, user.ID, string(user.Role))
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout revokes the presented token until it would have expired.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("tokenJTI").(string)
	if jti != "" && s.redis != nil {
		if err := s.redis.Set(c.UserContext(), cache.BlacklistKey(jti), "1", middleware.TokenTTL).Err(); err != nil {
			return respondError(c, models.NewInternalError(err))
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueWSTicket handles POST /api/ws/ticket. The ticket authenticates exactly one
// websocket upgrade and expires after WS_TICKET_TTL_SECONDS.
// @Summary Issue websocket ticket
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Realtime tickets are unavailable",
		})
	}

	ttl := defaultWSTicketTTL
	if s.config.WSTicketTTLSeconds > 0 {
		ttl = time.Duration(s.config.WSTicketTTLSeconds) * time.Second
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), userIDFromLocals(c), ttl).Err(); err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(ttl.Seconds()),
	})
}

// AuthRequired authenticates a request by websocket ticket or bearer JWT and
// stores the user id in Locals("userID").
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Nested groups run this twice; a consumed ticket must not be looked up again.
		if userIDFromLocals(c) != "" {
			return c.Next()
		}

		isWSPath := strings.HasPrefix(c.Path(), "/api/ws/") && c.Path() != "/api/ws/ticket"

		// Tickets are single use: GETDEL consumes the key atomically.
		if ticket := c.Query("ticket"); ticket != "" {
			if s.redis != nil {
				userID, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
				if err == nil && userID != "" {
					return s.authenticated(c, userID, "")
				}
				if err != nil && !errors.Is(err, redis.Nil) {
					middleware.Logger.WarnContext(c.UserContext(), "ws ticket lookup failed")
				}
			}
			if isWSPath {
				return respondError(c, models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		tokenString, err := middleware.BearerToken(c)
		if err != nil {
			return respondError(c, models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return respondError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), cache.BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return respondError(c, models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		return s.authenticated(c, claims.UserID, claims.JTI)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, userID, jti string) error {
	c.Locals("userID", userID)
	if jti != "" {
		c.Locals("tokenJTI", jti)
	}
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
	return c.Next()
}
