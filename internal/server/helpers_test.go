package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skillswap/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", models.NewNotFoundError("Booking", "b1"), http.StatusNotFound, "Booking with ID b1 not found"},
		{"forbidden", models.NewForbiddenError("nope"), http.StatusForbidden, "nope"},
		{"conflict", models.NewConflictError("Cannot change booking", &models.TransitionError{From: "completed", To: "pending"}), http.StatusConflict, "cannot move booking from completed to pending"},
		{"plain error hides cause", errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tt.wantBody)
			assert.NotContains(t, string(body), "connection refused")
		})
	}
}

func TestParseBody(t *testing.T) {
	type payload struct {
		Date string `json:"date" validate:"required,bookingdate"`
	}

	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var p payload
		if err := parseBody(c, &p); err != nil {
			return respondError(c, err)
		}
		return c.SendString(p.Date)
	})

	send := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusOK, send(`{"date":"2025-03-12"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, send(`{"date":"tomorrow"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, send(`{`).StatusCode)
}
