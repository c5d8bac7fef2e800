package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"binsight-backend/internal/config"
	"binsight-backend/internal/database"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
)

const usage = `Usage: admin <command> [flags]

Commands:
  list                                   list registered bins
  add -id ID -name NAME -lat LAT -lng LNG register or update a bin
  empty -id ID                           mark a bin as emptied
  delete -id ID                          delete a bin and its history
  create-user -email E -password P -name N [-role admin|operator]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "list":
		err = runList(ctx, cfg, args)
	case "add":
		err = runAdd(ctx, cfg, args)
	case "empty":
		err = runEmpty(ctx, cfg, args)
	case "delete":
		err = runDelete(ctx, cfg, args)
	case "create-user":
		err = runCreateUser(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", cmd, err)
	}
}

// serverFlags adds the flags shared by commands that talk to the telemetry server
func serverFlags(fs *flag.FlagSet, cfg *config.Config) (url, email, password *string) {
	url = fs.String("url", cfg.TelemetryBaseURL, "telemetry server base URL")
	email = fs.String("email", os.Getenv("ADMIN_EMAIL"), "admin email (ADMIN_EMAIL)")
	password = fs.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (ADMIN_PASSWORD)")
	return url, email, password
}

func login(ctx context.Context, client *services.TelemetryClient, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("admin credentials required: set -email/-password or ADMIN_EMAIL/ADMIN_PASSWORD")
	}
	return client.Login(ctx, email, password)
}

func runList(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	url := fs.String("url", cfg.TelemetryBaseURL, "telemetry server base URL")
	fs.Parse(args)

	client := services.NewTelemetryClient(*url, cfg.HTTPTimeout)
	bins, err := client.FetchBins(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BIN\tNAME\tFILL\tSEVERITY\tLAT\tLNG\tLAST SEEN")
	for _, b := range bins {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\t%.5f\t%.5f\t%s\n",
			b.BinID, b.Name, b.FillPercent, services.ClassifyFill(b.FillPercent),
			b.Lat, b.Lng, services.FormatAgeAt(b.TS, now))
	}
	return tw.Flush()
}

func runAdd(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	url, email, password := serverFlags(fs, cfg)
	id := fs.String("id", "", "bin id")
	name := fs.String("name", "", "display name")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	client := services.NewTelemetryClient(*url, cfg.HTTPTimeout)
	token, err := login(ctx, client, *email, *password)
	if err != nil {
		return err
	}
	status, err := client.RegisterBin(ctx, token, models.RegisterBinRequest{BinID: *id, Name: *name, Lat: *lat, Lng: *lng})
	if err != nil {
		return err
	}
	log.Printf("✅ Bin %s %s", *id, status)
	return nil
}

func runEmpty(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("empty", flag.ExitOnError)
	url := fs.String("url", cfg.TelemetryBaseURL, "telemetry server base URL")
	id := fs.String("id", "", "bin id")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	client := services.NewTelemetryClient(*url, cfg.HTTPTimeout)
	bin, err := client.MarkEmptied(ctx, *id)
	if services.IsNotFound(err) {
		return fmt.Errorf("bin %s does not exist", *id)
	}
	if err != nil {
		return err
	}
	log.Printf("✅ Bin %s emptied (%.1f cm)", bin.BinID, bin.DistanceCM)
	return nil
}

func runDelete(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	url, email, password := serverFlags(fs, cfg)
	id := fs.String("id", "", "bin id")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	client := services.NewTelemetryClient(*url, cfg.HTTPTimeout)
	token, err := login(ctx, client, *email, *password)
	if err != nil {
		return err
	}
	err = client.DeleteBin(ctx, token, *id)
	if services.IsNotFound(err) {
		return fmt.Errorf("bin %s does not exist", *id)
	}
	if err != nil {
		return err
	}
	log.Printf("🗑️  Bin %s deleted", *id)
	return nil
}

func runCreateUser(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "user password")
	name := fs.String("name", "", "display name")
	role := fs.String("role", models.RoleAdmin, "admin or operator")
	fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("-email and -password are required")
	}
	if !models.ValidRole(*role) {
		return fmt.Errorf("invalid role %q", *role)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := database.CreateUser(db, *email, *password, *name, *role)
	if err != nil {
		return err
	}
	log.Printf("✅ Created %s user %s (%s)", user.Role, user.Email, user.ID)
	return nil
}
