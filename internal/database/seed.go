package database

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"binsight-backend/internal/models"
	"binsight-backend/internal/services"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedBinSpec describes one registry entry with its initial simulated state
type SeedBinSpec struct {
	BinID           string
	Name            string
	Lat             float64
	Lng             float64
	FillPercent     float64
	EmptiedHoursAgo float64
}

// CampusBins are the landmark bins every fresh database starts with
var CampusBins = []SeedBinSpec{
	{BinID: "bin-01", Name: "Marston Library", Lat: 29.6481, Lng: -82.3436, FillPercent: 15, EmptiedHoursAgo: 12},
	{BinID: "bin-02", Name: "Reitz Union", Lat: 29.6462, Lng: -82.3479, FillPercent: 42, EmptiedHoursAgo: 18},
	{BinID: "bin-03", Name: "Plaza of the Americas", Lat: 29.6505, Lng: -82.3427, FillPercent: 78, EmptiedHoursAgo: 36},
	{BinID: "bin-04", Name: "Ben Hill Griffin Stadium", Lat: 29.6500, Lng: -82.3486, FillPercent: 91, EmptiedHoursAgo: 48},
	{BinID: "bin-05", Name: "Turlington Hall", Lat: 29.6489, Lng: -82.3443, FillPercent: 5, EmptiedHoursAgo: 6},
	{BinID: "bin-06", Name: "Hub / CSE Building", Lat: 29.6483, Lng: -82.3440, FillPercent: 63, EmptiedHoursAgo: 24},
}

var campusSuffixes = []string{"North Entrance", "South Exit", "Bus Stop", "2nd Floor", "Parking Lot", "Walkway"}

// GenerateCampusBins returns count extra bins scattered within ~50m of the
// landmark bins, numbered after them.
func GenerateCampusBins(rng *rand.Rand, count int) []SeedBinSpec {
	out := make([]SeedBinSpec, 0, count)
	next := len(CampusBins)
	for i := 1; i <= count; i++ {
		parent := CampusBins[rng.Intn(len(CampusBins))]
		out = append(out, SeedBinSpec{
			BinID:           fmt.Sprintf("bin-%02d", next+i),
			Name:            parent.Name + " - " + campusSuffixes[rng.Intn(len(campusSuffixes))],
			Lat:             round(parent.Lat+jitter(rng), 5),
			Lng:             round(parent.Lng+jitter(rng), 5),
			FillPercent:     round(rng.Float64()*100, 1),
			EmptiedHoursAgo: round(1+rng.Float64()*71, 1),
		})
	}
	return out
}

func jitter(rng *rand.Rand) float64 {
	return rng.Float64()*0.001 - 0.0005
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// SeedBins inserts the landmark bins plus extra generated ones. Bins that
// already exist keep their live data.
func SeedBins(db *sqlx.DB, extra int) error {
	specs := append([]SeedBinSpec{}, CampusBins...)
	if extra > 0 {
		specs = append(specs, GenerateCampusBins(rand.New(rand.NewSource(time.Now().UnixNano())), extra)...)
	}

	log.Printf("🌱 Seeding %d bins...", len(specs))

	now := time.Now().Unix()
	inserted := 0
	for _, spec := range specs {
		emptied := now - int64(spec.EmptiedHoursAgo*3600)
		ok, err := SeedBin(db, models.Bin{
			BinID:         spec.BinID,
			Name:          spec.Name,
			Latitude:      spec.Lat,
			Longitude:     spec.Lng,
			DistanceCM:    services.DistanceFromFill(spec.FillPercent),
			FillPercent:   spec.FillPercent,
			LastSeenAt:    now,
			LastEmptiedAt: &emptied,
		})
		if err != nil {
			return err
		}
		if ok {
			inserted++
		}
	}

	log.Printf("✓ Seeded %d new bins (%d already present)", inserted, len(specs)-inserted)
	return nil
}

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	seeds := []struct {
		email, password, name, role string
	}{
		{"operator@binsight.local", "operator123", "Campus Operator", models.RoleOperator},
		{"admin@binsight.local", "admin123", "Admin User", models.RoleAdmin},
	}

	for _, s := range seeds {
		if _, err := CreateUser(db, s.email, s.password, s.name, s.role); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", s.email, s.role)
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Operator: operator@binsight.local / operator123")
	log.Println("  📧 Admin:    admin@binsight.local / admin123")
	return nil
}

// CreateUser hashes the password and inserts a new user
func CreateUser(db *sqlx.DB, email, password, name, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().Unix()
	user := models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  string(hashed),
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO users (id, email, password, name, role, created_at, updated_at)
		VALUES (:id, :email, :password, :name, :role, :created_at, :updated_at)
	`
	if _, err := db.NamedExec(query, user); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return &user, nil
}
