// Package main provides account management utilities for SkillSwap.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go set-role <user_id> <mentor|student>  - Change a user's role")
	fmt.Println("  go run ./cmd/admin/main.go list-mentors                          - List all mentors")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	users := service.NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "set-role":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin/main.go set-role <user_id> <mentor|student>")
			os.Exit(1)
		}
		setRole(ctx, users, os.Args[2], models.Role(os.Args[3]))

	case "list-mentors":
		listMentors(ctx, users)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setRole(ctx context.Context, users *service.UserService, userID string, role models.Role) {
	if err := users.SetRole(ctx, userID, role); err != nil {
		switch models.ErrorCode(err) {
		case models.CodeNotFound:
			fmt.Printf("User with ID %s not found\n", userID)
		case models.CodeValidation:
			fmt.Printf("Invalid role %q: use mentor or student\n", role)
		default:
			log.Fatalf("Failed to update role: %v", err)
		}
		os.Exit(1)
	}

	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	fmt.Printf("✅ %s (ID: %s) is now a %s\n", user.Name, user.ID, user.Role)
}

func listMentors(ctx context.Context, users *service.UserService) {
	mentors, err := users.ListMentors(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch mentors: %v", err)
	}

	if len(mentors) == 0 {
		fmt.Println("No mentors found")
		return
	}

	fmt.Println("\n📋 Mentors:")
	fmt.Println("─────────────────────────────────────")
	for _, m := range mentors {
		fmt.Printf("ID: %s | Name: %s | Email: %s\n", m.ID, m.Name, m.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
