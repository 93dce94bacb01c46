// Command seed populates a development database with demo data.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"localpulse/internal/config"
	"localpulse/internal/database"
	"localpulse/internal/middleware"
	"localpulse/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numContents := flag.Int("contents", 200, "Number of published items to create")
	maxFollows := flag.Int("max-follows", 15, "Maximum accounts each user follows")
	days := flag.Int("days", 30, "Spread content over this many past days")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	tokens := flag.Int("tokens", 3, "Print bearer tokens for the first N seeded users")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d contents, clean=%v\n", *numUsers, *numContents, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Users:      *numUsers,
		Contents:   *numContents,
		Categories: cfg.Categories(),
		MaxFollows: *maxFollows,
		MaxDays:    *days,
		RandomSeed: *randomSeed,
		DryRun:     *dryRun,
	})
	if err != nil {
		log.Fatalf("❌ Seeder setup failed: %v", err)
	}

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run()
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Printf("✨ All done! Created %s.", sum)

	if *tokens <= 0 || *dryRun {
		return
	}
	middleware.InitMiddleware(cfg)
	users, err := s.SeededUsers(*tokens)
	if err != nil {
		log.Fatalf("❌ Listing seeded users failed: %v", err)
	}
	for _, u := range users {
		token, err := middleware.IssueToken(u.ID, 7*24*time.Hour)
		if err != nil {
			log.Fatalf("❌ Issuing token failed: %v", err)
		}
		fmt.Printf("%-24s (id=%d, role=%s)\n  Bearer %s\n", u.Username, u.ID, u.Role, token)
	}
}
