// Package main provides a stress testing tool for the booking chat WebSocket server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"skillswap/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

type session struct {
	token  string
	userID string
}

func main() {
	host := flag.String("host", "localhost:3001", "API server host")
	bookingID := flag.String("booking", "", "Booking whose room the clients join")
	email := flag.String("email", "student@skillswap.local", "Participant email")
	password := flag.String("password", "swap-skills-42", "Participant password")
	clients := flag.Int("clients", 20, "Number of concurrent clients")
	interval := flag.Duration("interval", 2*time.Second, "Delay between messages per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	if *bookingID == "" {
		log.Fatal("❌ -booking is required")
	}

	log.Printf("🚀 Starting Chat Stress Test")
	log.Printf("Target: %s booking=%s", *host, *bookingID)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	// Get a token first
	sess, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}
	log.Printf("✅ Logged in as %s", sess.userID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Start clients
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *bookingID, sess, *interval, i, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}

	// Wait for duration or interrupt
	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func login(host, email, password string) (session, error) {
	loginURL := fmt.Sprintf("http://%s/api/auth/login", host)
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return session{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return session{}, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return session{}, err
	}

	return session{token: result.Token, userID: result.User.ID}, nil
}

func getTicket(host, token string) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", host)
	req, _ := http.NewRequest(http.MethodPost, ticketURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Ticket, nil
}

func runClient(host, bookingID string, sess session, interval time.Duration, id int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	// Get a fresh ticket for this connection
	ticket, err := getTicket(host, sess.token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	q := url.Values{}
	q.Set("bookingId", bookingID)
	q.Set("ticket", ticket)
	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/chat", RawQuery: q.Encode()}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			var frame models.Frame
			if json.Unmarshal(raw, &frame) != nil {
				continue
			}
			switch frame.Event {
			case models.EventChatMessage:
				atomic.AddInt64(&metrics.MessagesReceived, 1)
			case models.EventError:
				atomic.AddInt64(&metrics.Errors, 1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-done:
			return
		case <-ticker.C:
			frame, err := models.NewFrame(models.EventChatMessage, models.OutgoingChatMessage{
				ID:        uuid.NewString(),
				SenderID:  sess.userID,
				Content:   fmt.Sprintf("load test message from client %d at %s", id, time.Now().Format(time.RFC3339)),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
			if err != nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	fmt.Println("\n📊 Test Results")
	fmt.Println("==================================")
	fmt.Printf("Connections Attempted: %d\n", metrics.ConnectionsAttempted)
	fmt.Printf("Connections Success:   %d\n", metrics.ConnectionsSuccess)
	fmt.Printf("Connections Failed:    %d\n", metrics.ConnectionsFailed)
	fmt.Printf("Messages Sent:         %d\n", metrics.MessagesSent)
	fmt.Printf("Messages Received:     %d\n", metrics.MessagesReceived)
	fmt.Printf("Errors:                %d\n", metrics.Errors)
	fmt.Println("==================================")
}
