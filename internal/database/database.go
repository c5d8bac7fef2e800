package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a bin or user does not exist
var ErrNotFound = errors.New("not found")

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Operators and admins of the registry
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('operator', 'admin')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Registry metadata plus the latest reading of every bin.
		// seq preserves registration order for GET /bins.
		`CREATE TABLE IF NOT EXISTS bins (
			seq BIGSERIAL,
			bin_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT 'Unknown',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			distance_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			fill_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_seen_at BIGINT NOT NULL DEFAULT 0,
			last_emptied_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Append-only telemetry history, used by the heatmap
		`CREATE TABLE IF NOT EXISTS telemetry (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL,
			distance_cm DOUBLE PRECISION NOT NULL,
			fill_percent DOUBLE PRECISION NOT NULL,
			ts BIGINT NOT NULL,
			FOREIGN KEY (bin_id) REFERENCES bins(bin_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_bins_seq ON bins(seq)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_bin_ts ON telemetry(bin_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_ts ON telemetry(ts)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
