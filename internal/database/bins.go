package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"binsight-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const binColumns = `seq, bin_id, name, latitude, longitude, distance_cm, fill_percent,
	last_seen_at, last_emptied_at, created_at, updated_at`

// ListBins returns every bin in registration order
func ListBins(db *sqlx.DB) ([]models.Bin, error) {
	bins := []models.Bin{}
	query := `SELECT ` + binColumns + ` FROM bins ORDER BY seq ASC`
	if err := db.Select(&bins, query); err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	return bins, nil
}

// GetBin returns one bin or ErrNotFound
func GetBin(db *sqlx.DB, binID string) (*models.Bin, error) {
	var bin models.Bin
	query := `SELECT ` + binColumns + ` FROM bins WHERE bin_id = $1`
	err := db.Get(&bin, query, binID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bin %s: %w", binID, err)
	}
	return &bin, nil
}

// TelemetryResult describes the bin before and after a reading was stored
type TelemetryResult struct {
	Name         string
	Created      bool
	PreviousFill float64
}

// RecordTelemetry stores a reading as the bin's latest state and appends it
// to the history, creating the bin if it was never registered.
func RecordTelemetry(db *sqlx.DB, in models.TelemetryIn) (TelemetryResult, error) {
	tx, err := db.Beginx()
	if err != nil {
		return TelemetryResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := TelemetryResult{}
	var prev struct {
		Name        string  `db:"name"`
		FillPercent float64 `db:"fill_percent"`
	}
	err = tx.Get(&prev, `SELECT name, fill_percent FROM bins WHERE bin_id = $1 FOR UPDATE`, in.BinID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result.Created = true
		result.Name = "Unknown"
	case err != nil:
		return TelemetryResult{}, fmt.Errorf("failed to read bin %s: %w", in.BinID, err)
	default:
		result.Name = prev.Name
		result.PreviousFill = prev.FillPercent
	}

	ts := in.Unix()
	now := time.Now().Unix()

	_, err = tx.Exec(`
		INSERT INTO bins (bin_id, distance_cm, fill_percent, last_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bin_id) DO UPDATE
		SET distance_cm = EXCLUDED.distance_cm,
		    fill_percent = EXCLUDED.fill_percent,
		    last_seen_at = EXCLUDED.last_seen_at,
		    updated_at = EXCLUDED.updated_at
	`, in.BinID, in.DistanceCM, in.FillPercent, ts, now)
	if err != nil {
		return TelemetryResult{}, fmt.Errorf("failed to upsert bin %s: %w", in.BinID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO telemetry (id, bin_id, distance_cm, fill_percent, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), in.BinID, in.DistanceCM, in.FillPercent, ts)
	if err != nil {
		return TelemetryResult{}, fmt.Errorf("failed to insert telemetry for %s: %w", in.BinID, err)
	}

	if err := tx.Commit(); err != nil {
		return TelemetryResult{}, fmt.Errorf("failed to commit telemetry: %w", err)
	}
	return result, nil
}

// MarkEmptied resets a bin to empty and stamps last_emptied_at
func MarkEmptied(db *sqlx.DB, binID string, distanceCM float64, at time.Time) (*models.Bin, error) {
	var bin models.Bin
	query := `
		UPDATE bins
		SET fill_percent = 0, distance_cm = $2, last_emptied_at = $3, updated_at = $3
		WHERE bin_id = $1
		RETURNING ` + binColumns
	err := db.Get(&bin, query, binID, distanceCM, at.Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark bin %s emptied: %w", binID, err)
	}
	return &bin, nil
}

// RegisterBin creates a bin or updates its metadata. created reports which.
func RegisterBin(db *sqlx.DB, req models.RegisterBinRequest) (bool, error) {
	var created bool
	query := `
		INSERT INTO bins (bin_id, name, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bin_id) DO UPDATE
		SET name = EXCLUDED.name,
		    latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		RETURNING (xmax = 0) AS created`
	if err := db.Get(&created, query, req.BinID, req.Name, req.Lat, req.Lng); err != nil {
		return false, fmt.Errorf("failed to register bin %s: %w", req.BinID, err)
	}
	return created, nil
}

// SeedBin inserts a bin with an initial reading unless it already exists.
// Existing live data is never overwritten.
func SeedBin(db *sqlx.DB, bin models.Bin) (bool, error) {
	result, err := db.Exec(`
		INSERT INTO bins (bin_id, name, latitude, longitude, distance_cm, fill_percent, last_seen_at, last_emptied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bin_id) DO NOTHING
	`, bin.BinID, bin.Name, bin.Latitude, bin.Longitude, bin.DistanceCM, bin.FillPercent, bin.LastSeenAt, bin.LastEmptiedAt)
	if err != nil {
		return false, fmt.Errorf("failed to seed bin %s: %w", bin.BinID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteBin removes a bin and its history
func DeleteBin(db *sqlx.DB, binID string) error {
	result, err := db.Exec(`DELETE FROM bins WHERE bin_id = $1`, binID)
	if err != nil {
		return fmt.Errorf("failed to delete bin %s: %w", binID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete bin %s: %w", binID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AverageFillSince returns the mean fill per bin over readings at or after cutoff
func AverageFillSince(db *sqlx.DB, cutoff int64) (map[string]float64, error) {
	var rows []struct {
		BinID   string  `db:"bin_id"`
		AvgFill float64 `db:"avg_fill"`
	}
	query := `
		SELECT bin_id, AVG(fill_percent) AS avg_fill
		FROM telemetry
		WHERE ts >= $1
		GROUP BY bin_id`
	if err := db.Select(&rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to aggregate telemetry: %w", err)
	}

	avg := make(map[string]float64, len(rows))
	for _, r := range rows {
		avg[r.BinID] = r.AvgFill
	}
	return avg, nil
}

// BinSummary is what cmd/migrate prints after seeding
type BinSummary struct {
	TotalBins    int `db:"total_bins"`
	CriticalBins int `db:"critical_bins"`
	NeverEmptied int `db:"never_emptied"`
	Readings     int `db:"readings"`
}

// Summarize counts bins and readings
func Summarize(db *sqlx.DB) (BinSummary, error) {
	var s BinSummary
	query := `
		SELECT
			(SELECT COUNT(*) FROM bins) AS total_bins,
			(SELECT COUNT(*) FROM bins WHERE fill_percent >= 85) AS critical_bins,
			(SELECT COUNT(*) FROM bins WHERE last_emptied_at IS NULL) AS never_emptied,
			(SELECT COUNT(*) FROM telemetry) AS readings`
	if err := db.Get(&s, query); err != nil {
		return BinSummary{}, fmt.Errorf("failed to summarize bins: %w", err)
	}
	return s, nil
}
