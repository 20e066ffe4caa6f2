package server

import (
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createBookingRequest struct {
	SkillID string `json:"skillId" validate:"required"`
	Date    string `json:"date" validate:"required,bookingdate"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,bookingstatus"`
}

// CreateBooking handles POST /api/bookings
// @Summary Book a session
// @Tags bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createBookingRequest true "Booking"
// @Success 201 {object} models.Booking
// @Failure 400 {object} models.ErrorResponse
// @Router /bookings [post]
func (s *Server) CreateBooking(c *fiber.Ctx) error {
	var req createBookingRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	booking, err := s.bookingService.Create(c.UserContext(), service.CreateBookingInput{
		LearnerID: userIDFromLocals(c),
		SkillID:   req.SkillID,
		Date:      req.Date,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

// ListBookings handles GET /api/bookings?view=all|upcoming|past
// @Summary List my bookings
// @Tags bookings
// @Security BearerAuth
// @Produce json
// @Param view query string false "all, upcoming or past"
// @Success 200 {array} models.Booking
// @Router /bookings [get]
func (s *Server) ListBookings(c *fiber.Ctx) error {
	view, err := service.ParseBookingView(c.Query("view"))
	if err != nil {
		return respondError(c, err)
	}

	bookings, err := s.bookingService.ListForUser(c.UserContext(), userIDFromLocals(c), view)
	if err != nil {
		return respondError(c, err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return c.JSON(bookings)
}

// bookingResponse is a booking as seen by one participant.
type bookingResponse struct {
	*models.Booking
	// CounterpartOnline is true while the other participant has a
	// notification socket open on any instance.
	CounterpartOnline bool `json:"counterpartOnline"`
}

// GetBooking handles GET /api/bookings/:id
// @Summary Get booking
// @Tags bookings
// @Security BearerAuth
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} bookingResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /bookings/{id} [get]
func (s *Server) GetBooking(c *fiber.Ctx) error {
	userID := userIDFromLocals(c)
	booking, err := s.bookingService.Get(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(bookingResponse{
		Booking:           booking,
		CounterpartOnline: s.hub.IsOnline(booking.Counterpart(userID)),
	})
}

// TransitionBooking handles POST /api/bookings/:id/transition
// @Summary Change booking status
// @Description pending->confirmed|cancelled, confirmed->ongoing|cancelled, ongoing->completed
// @Tags bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body transitionRequest true "Target status"
// @Success 200 {object} models.Booking
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /bookings/{id}/transition [post]
func (s *Server) TransitionBooking(c *fiber.Ctx) error {
	var req transitionRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	return s.transition(c, models.BookingStatus(req.Status))
}

// transitionTo serves the /confirm, /cancel, /start and /complete shortcuts.
func (s *Server) transitionTo(status models.BookingStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.transition(c, status)
	}
}

func (s *Server) transition(c *fiber.Ctx, status models.BookingStatus) error {
	booking, err := s.bookingService.Transition(c.UserContext(), service.TransitionInput{
		BookingID: c.Params("id"),
		ActorID:   userIDFromLocals(c),
		Status:    status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}
