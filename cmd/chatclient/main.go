// Command main is an interactive terminal client for one booking's chat.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"skillswap/internal/chatclient"
	"skillswap/internal/models"
)

func main() {
	baseURL := flag.String("url", "http://localhost:3001", "API base URL")
	bookingID := flag.String("booking", "", "Booking to chat in")
	email := flag.String("email", "", "Account email")
	password := flag.String("password", "", "Account password")
	attempts := flag.Int("reconnect-attempts", 5, "Reconnect attempts before giving up")
	delay := flag.Duration("reconnect-delay", time.Second, "Delay between reconnect attempts")
	flag.Parse()

	if *bookingID == "" || *email == "" {
		log.Fatal("usage: chatclient -booking <id> -email <email> -password <password>")
	}

	token, user, err := login(*baseURL, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	client, err := chatclient.New(chatclient.Config{
		BaseURL:           *baseURL,
		BookingID:         *bookingID,
		UserID:            user.ID,
		UserType:          string(user.Role),
		Token:             token,
		ReconnectAttempts: *attempts,
		ReconnectDelay:    *delay,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()
	go printEvents(client, user.ID)
	go readInput(ctx, client)

	err = <-runErr
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, chatclient.ErrReconnectFailed):
		log.Fatalf("Connection lost: %v", err)
	case err != nil:
		log.Fatal(err)
	}
}

func login(baseURL, email, password string) (string, models.User, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(strings.TrimRight(baseURL, "/")+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", models.User{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", models.User{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.User{}, err
	}
	return out.Token, out.User, nil
}

func printEvents(client *chatclient.Client, self string) {
	for ev := range client.Events() {
		switch ev.Kind {
		case chatclient.EventStatus:
			fmt.Printf("-- %s\n", ev.Status)
			if ev.Status == chatclient.StatusConnected {
				for _, m := range client.Messages() {
					printMessage(m, self)
				}
			}
		case chatclient.EventMessage:
			if ev.Message.SenderID != self {
				printMessage(ev.Message, self)
			}
		case chatclient.EventUserConnected:
			fmt.Printf("-- %s (%s) joined\n", ev.Presence.UserID, ev.Presence.UserType)
		case chatclient.EventUserDisconnected:
			fmt.Printf("-- %s left\n", ev.Presence.UserID)
		case chatclient.EventTyping:
			if ev.Typing.IsTyping {
				fmt.Printf("-- %s is typing...\n", ev.Typing.UserID)
			}
		case chatclient.EventError:
			fmt.Printf("!! %s\n", ev.Error)
		}
	}
}

func printMessage(m chatclient.Message, self string) {
	who := m.SenderID
	if who == self {
		who = "you"
	}
	fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), who, m.Content)
}

func readInput(ctx context.Context, client *chatclient.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := client.Send(line); err != nil {
			fmt.Printf("!! %v\n", err)
		}
	}
}
