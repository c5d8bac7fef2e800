package main

import (
	"flag"
	"fmt"
	"log"

	"binsight-backend/internal/config"
	"binsight-backend/internal/database"
)

func main() {
	extraBins := flag.Int("extra-bins", 0, "generate this many extra campus bins around the landmarks")
	skipUsers := flag.Bool("skip-users", false, "do not seed the default operator and admin users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("🔄 Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Migrations completed")

	if !*skipUsers {
		if err := database.SeedUsers(db); err != nil {
			log.Fatalf("User seeding failed: %v", err)
		}
	}
	if err := database.SeedBins(db, *extraBins); err != nil {
		log.Fatalf("Bin seeding failed: %v", err)
	}

	summary, err := database.Summarize(db)
	if err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Total bins:              %d\n", summary.TotalBins)
	fmt.Printf("Critical bins (>=85%%):   %d\n", summary.CriticalBins)
	fmt.Printf("Never emptied:           %d\n", summary.NeverEmptied)
	fmt.Printf("Telemetry readings:      %d\n", summary.Readings)
	fmt.Println("============================================================")
}
