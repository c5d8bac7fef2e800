package services

import (
	"testing"
	"time"

	"binsight-backend/internal/models"
)

func TestComputeStats(t *testing.T) {
	snap := newSnapshot([]models.BinReading{
		{BinID: "a", FillPercent: 90, Lat: 10, Lng: 20},
		{BinID: "b", FillPercent: 86, Lat: 20, Lng: 40},
		{BinID: "c", FillPercent: 40, Lat: 0, Lng: 0},
		{BinID: "d", FillPercent: 5},
	}, 7, time.Unix(0, 0))

	stats := ComputeStats(snap)
	if stats.Total != 4 || stats.Critical != 2 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.AvgFill != 55 {
		t.Fatalf("avg fill = %d, want 55", stats.AvgFill)
	}
	if stats.BySeverity[SeverityMedium] != 1 || stats.BySeverity[SeverityHigh] != 0 {
		t.Fatalf("by severity %v", stats.BySeverity)
	}
	if stats.Center != (LatLng{Lat: 15, Lng: 30}) {
		t.Fatalf("center %+v ignores (0,0) bins incorrectly", stats.Center)
	}
	if stats.SnapshotVersion != 7 {
		t.Fatalf("version %d", stats.SnapshotVersion)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(newSnapshot(nil, 0, time.Time{}))
	if stats.Total != 0 || stats.AvgFill != 0 {
		t.Fatalf("unexpected %+v", stats)
	}
	if stats.Center != DefaultMapCenter {
		t.Fatalf("center %+v, want default", stats.Center)
	}
	if len(stats.BySeverity) != len(AllSeverityBands) {
		t.Fatalf("every band should be present: %v", stats.BySeverity)
	}
}

func TestBuildBinViews(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bins := []models.BinReading{
		{BinID: "a", FillPercent: 61, TS: now.Add(-5 * time.Minute).Unix()},
		{BinID: "b", FillPercent: 10, TS: now.Unix()},
	}
	views := BuildBinViews(bins, map[string]int{"a": 2}, now)

	if views[0].Severity != SeverityHigh || views[0].Color != "#e36149" || views[0].AgeLabel != "5m ago" || views[0].RouteOrder != 2 {
		t.Fatalf("unexpected view %+v", views[0])
	}
	if views[1].RouteOrder != 0 || views[1].AgeLabel != "Just now" {
		t.Fatalf("unexpected view %+v", views[1])
	}
}
