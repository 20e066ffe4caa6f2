// Command main runs the database seeder for SkillSwap.
package main

import (
	"context"
	"flag"
	"log"

	"skillswap/internal/bootstrap"
	"skillswap/internal/config"
	"skillswap/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	// Parse command line flags
	mentors := flag.Int("mentors", defaults.Mentors, "Number of mentors to create")
	students := flag.Int("students", defaults.Students, "Number of students to create")
	skills := flag.Int("skills", defaults.SkillsPerMentor, "Skills per mentor")
	bookings := flag.Int("bookings", defaults.BookingsPerStudent, "Bookings per student")
	messages := flag.Int("messages", defaults.MessagesPerBooking, "Chat messages per booking past pending")
	shouldClean := flag.Bool("clean", defaults.ShouldClean, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Skip bcrypt (throwaway databases only)")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	s := seed.NewSeeder(rt.DB, rt.MessageLog, seed.Options{
		Mentors:            *mentors,
		Students:           *students,
		SkillsPerMentor:    *skills,
		BookingsPerStudent: *bookings,
		MessagesPerBooking: *messages,
		ShouldClean:        *shouldClean,
		SkipBcrypt:         *fast,
		DryRun:             *dryRun,
		MaxDays:            defaults.MaxDays,
	})

	sum, err := s.Seed(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	if _, err := seed.EnsureDemoAccounts(rt.DB, seed.Options{DryRun: *dryRun}); err != nil {
		log.Fatalf("❌ Demo accounts failed: %v", err)
	}

	log.Printf("✨ All done! %s", sum)
	log.Println("📧 All seeded users have the password: swap-skills-42")
}
