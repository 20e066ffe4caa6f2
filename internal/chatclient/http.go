package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"skillswap/internal/models"
)

func (c *Client) fetchHistory(ctx context.Context) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	if err := c.doJSON(ctx, http.MethodGet, "/messages/"+url.PathEscape(c.cfg.BookingID), &out); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return out, nil
}

// issueTicket exchanges the bearer token for a single-use websocket ticket.
func (c *Client) issueTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/ws/ticket", &out); err != nil {
		return "", fmt.Errorf("issue ticket: %w", err)
	}
	return out.Ticket, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// chatURL builds the websocket URL for the booking, authenticated by a fresh ticket.
func (c *Client) chatURL(ctx context.Context) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/ws/chat"

	q := url.Values{}
	q.Set("bookingId", c.cfg.BookingID)
	q.Set("userId", c.cfg.UserID)
	if c.cfg.UserType != "" {
		q.Set("userType", c.cfg.UserType)
	}
	if c.cfg.Token != "" {
		ticket, err := c.issueTicket(ctx)
		if err != nil {
			return "", err
		}
		q.Set("ticket", ticket)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
