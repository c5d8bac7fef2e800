package database

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"binsight-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var binRowColumns = []string{
	"seq", "bin_id", "name", "latitude", "longitude", "distance_cm", "fill_percent",
	"last_seen_at", "last_emptied_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListBins(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(binRowColumns).
		AddRow(1, "bin-01", "Marston Library", 29.6481, -82.3436, 85.0, 15.0, 1700000000, nil, 1690000000, 1700000000).
		AddRow(2, "bin-02", "Reitz Union", 29.6462, -82.3479, 58.0, 42.0, 1700000100, 1699990000, 1690000000, 1700000100)
	mock.ExpectQuery(`(?s)SELECT seq, bin_id.* FROM bins ORDER BY seq ASC`).WillReturnRows(rows)

	bins, err := ListBins(db)
	if err != nil {
		t.Fatalf("ListBins: %v", err)
	}
	if len(bins) != 2 || bins[0].BinID != "bin-01" || bins[1].BinID != "bin-02" {
		t.Fatalf("unexpected bins %+v", bins)
	}
	if bins[0].LastEmptiedAt != nil {
		t.Fatal("bin-01 was never emptied")
	}
	if bins[1].LastEmptiedAt == nil || *bins[1].LastEmptiedAt != 1699990000 {
		t.Fatalf("bin-02 last_emptied_at %v", bins[1].LastEmptiedAt)
	}
	reading := bins[1].ToBinReading()
	if reading.Lat != 29.6462 || reading.TS != 1700000100 {
		t.Fatalf("reading %+v", reading)
	}
	checkExpectations(t, mock)
}

func TestGetBinNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`(?s)FROM bins WHERE bin_id = \$1`).
		WithArgs("bin-99").
		WillReturnRows(sqlmock.NewRows(binRowColumns))

	_, err := GetBin(db, "bin-99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestRecordTelemetryNewBin(t *testing.T) {
	db, mock := newMockDB(t)
	in := models.TelemetryIn{BinID: "bin-07", DistanceCM: 20, FillPercent: 80, TS: 1700000000.6}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, fill_percent FROM bins WHERE bin_id = \$1 FOR UPDATE`).
		WithArgs("bin-07").
		WillReturnRows(sqlmock.NewRows([]string{"name", "fill_percent"}))
	mock.ExpectExec(`INSERT INTO bins`).
		WithArgs("bin-07", 20.0, 80.0, int64(1700000000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO telemetry`).
		WithArgs(sqlmock.AnyArg(), "bin-07", 20.0, 80.0, int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := RecordTelemetry(db, in)
	if err != nil {
		t.Fatalf("RecordTelemetry: %v", err)
	}
	if !res.Created || res.Name != "Unknown" || res.PreviousFill != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	checkExpectations(t, mock)
}

func TestRecordTelemetryExistingBinRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	in := models.TelemetryIn{BinID: "bin-01", DistanceCM: 10, FillPercent: 90, TS: 1700000000}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("bin-01").
		WillReturnRows(sqlmock.NewRows([]string{"name", "fill_percent"}).AddRow("Marston Library", 70.0))
	mock.ExpectExec(`INSERT INTO bins`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO telemetry`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := RecordTelemetry(db, in); err == nil {
		t.Fatal("expected error")
	}
	checkExpectations(t, mock)
}

func TestMarkEmptied(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Unix(1700003600, 0)
	mock.ExpectQuery(`(?s)UPDATE bins.*RETURNING`).
		WithArgs("bin-04", 100.0, int64(1700003600)).
		WillReturnRows(sqlmock.NewRows(binRowColumns).
			AddRow(4, "bin-04", "Ben Hill Griffin Stadium", 29.65, -82.3486, 100.0, 0.0, 1700000000, 1700003600, 1690000000, 1700003600))

	bin, err := MarkEmptied(db, "bin-04", 100, at)
	if err != nil {
		t.Fatalf("MarkEmptied: %v", err)
	}
	if bin.FillPercent != 0 || bin.LastEmptiedAt == nil || *bin.LastEmptiedAt != 1700003600 {
		t.Fatalf("unexpected bin %+v", bin)
	}

	mock.ExpectQuery(`(?s)UPDATE bins`).
		WithArgs("bin-99", 100.0, int64(1700003600)).
		WillReturnRows(sqlmock.NewRows(binRowColumns))
	if _, err := MarkEmptied(db, "bin-99", 100, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestRegisterBin(t *testing.T) {
	db, mock := newMockDB(t)
	req := models.RegisterBinRequest{BinID: "bin-10", Name: "Library West", Lat: 29.6512, Lng: -82.3425}

	mock.ExpectQuery(`(?s)INSERT INTO bins.*RETURNING \(xmax = 0\) AS created`).
		WithArgs("bin-10", "Library West", 29.6512, -82.3425).
		WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(true))
	mock.ExpectQuery(`(?s)INSERT INTO bins.*RETURNING`).
		WithArgs("bin-10", "Library West", 29.6512, -82.3425).
		WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(false))

	created, err := RegisterBin(db, req)
	if err != nil || !created {
		t.Fatalf("first register: created=%v err=%v", created, err)
	}
	created, err = RegisterBin(db, req)
	if err != nil || created {
		t.Fatalf("second register: created=%v err=%v", created, err)
	}
	checkExpectations(t, mock)
}

func TestDeleteBin(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM bins WHERE bin_id = \$1`).
		WithArgs("bin-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM bins WHERE bin_id = \$1`).
		WithArgs("bin-99").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := DeleteBin(db, "bin-02"); err != nil {
		t.Fatalf("DeleteBin: %v", err)
	}
	if err := DeleteBin(db, "bin-99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestSeedBinKeepsExisting(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`ON CONFLICT \(bin_id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := SeedBin(db, models.Bin{BinID: "bin-01", Name: "Marston Library"})
	if err != nil {
		t.Fatalf("SeedBin: %v", err)
	}
	if inserted {
		t.Fatal("existing bin must not count as inserted")
	}
	checkExpectations(t, mock)
}

func TestAverageFillSince(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`(?s)SELECT bin_id, AVG\(fill_percent\) AS avg_fill.*GROUP BY bin_id`).
		WithArgs(int64(1700000000)).
		WillReturnRows(sqlmock.NewRows([]string{"bin_id", "avg_fill"}).
			AddRow("bin-01", 20.5).
			AddRow("bin-03", 77.25))

	avg, err := AverageFillSince(db, 1700000000)
	if err != nil {
		t.Fatalf("AverageFillSince: %v", err)
	}
	if len(avg) != 2 || avg["bin-01"] != 20.5 || avg["bin-03"] != 77.25 {
		t.Fatalf("unexpected averages %v", avg)
	}
	checkExpectations(t, mock)
}

func TestGetUserByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("nobody@binsight.local").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password", "name", "role", "created_at", "updated_at"}))

	if _, err := GetUserByEmail(db, "nobody@binsight.local"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestGenerateCampusBins(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bins := GenerateCampusBins(rng, 4)
	if len(bins) != 4 {
		t.Fatalf("expected 4 bins, got %d", len(bins))
	}
	if bins[0].BinID != "bin-07" || bins[3].BinID != "bin-10" {
		t.Fatalf("ids should continue after the landmarks: %s..%s", bins[0].BinID, bins[3].BinID)
	}
	for _, b := range bins {
		if b.FillPercent < 0 || b.FillPercent > 100 {
			t.Fatalf("%s fill %v out of range", b.BinID, b.FillPercent)
		}
		if b.EmptiedHoursAgo < 1 || b.EmptiedHoursAgo > 72 {
			t.Fatalf("%s emptied %vh ago", b.BinID, b.EmptiedHoursAgo)
		}
		near := false
		for _, c := range CampusBins {
			if abs(b.Lat-c.Lat) <= 0.00051 && abs(b.Lng-c.Lng) <= 0.00051 {
				near = true
				break
			}
		}
		if !near {
			t.Fatalf("%s at (%v,%v) is not near any landmark", b.BinID, b.Lat, b.Lng)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
