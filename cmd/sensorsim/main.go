package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"binsight-backend/internal/config"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	baseURL := flag.String("url", cfg.TelemetryBaseURL, "telemetry server base URL")
	binIDs := flag.String("bins", "bin-01", "comma separated bin ids to simulate")
	interval := flag.Duration("interval", 5*time.Second, "time between readings")
	fillRate := flag.Float64("fill-rate", 0.5, "percent added to each bin per reading")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	maxFailures := flag.Int("max-failures", 10, "consecutive send failures before a sensor gives up (0 retries forever)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := services.NewTelemetryClient(*baseURL, cfg.HTTPTimeout)
	rng := rand.New(rand.NewSource(*seed))

	log.Printf("📡 Simulating sensors for %s → %s (every %s)", *binIDs, client.BaseURL(), *interval)

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range strings.Split(*binIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		bin := newSimulatedBin(id, rng.Float64()*60, *fillRate, rand.New(rand.NewSource(rng.Int63())))
		g.Go(func() error {
			return runSensor(ctx, client, bin, *interval, *maxFailures)
		})
	}
	// the first sensor to give up cancels ctx and stops the rest
	if err := g.Wait(); err != nil {
		log.Fatalf("❌ Sensor simulation failed: %v", err)
	}
	log.Println("🛑 Sensor simulation stopped")
}

type telemetryPoster interface {
	PostTelemetry(ctx context.Context, in models.TelemetryIn) error
}

// runSensor posts readings until ctx is done, which returns nil, or until
// maxFailures sends in a row have failed.
func runSensor(ctx context.Context, client telemetryPoster, bin *simulatedBin, interval time.Duration, maxFailures int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		d, fill, ok := bin.measure()
		if !ok {
			log.Printf("⚠️  [%s] No valid reading", bin.id)
		} else {
			in := models.TelemetryIn{
				BinID:       bin.id,
				DistanceCM:  d,
				FillPercent: fill,
				TS:          float64(time.Now().UnixNano()) / 1e9,
			}
			err := client.PostTelemetry(ctx, in)
			switch {
			case ctx.Err() != nil:
				return nil
			case err != nil:
				failures++
				log.Printf("❌ [%s] Send failed (%d in a row): %v", bin.id, failures, err)
				if maxFailures > 0 && failures >= maxFailures {
					return fmt.Errorf("sensor %s: %d consecutive send failures: %w", bin.id, failures, err)
				}
			default:
				failures = 0
				log.Printf("📤 [%s] Distance: %6.1f cm | Fill: %5.1f%%", bin.id, d, fill)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
