package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"binsight-backend/internal/models"
)

func emptiedAt(now time.Time, hoursAgo float64) *int64 {
	ts := now.Add(-time.Duration(hoursAgo * float64(time.Hour))).Unix()
	return &ts
}

func TestPriorityFormula(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := &PriorityPlanner{Now: func() time.Time { return now }}

	cases := []struct {
		name string
		bin  models.BinReading
		want float64
	}{
		{"never emptied saturates", models.BinReading{FillPercent: 50}, 0.35 + 0.3},
		{"half a day", models.BinReading{FillPercent: 100, LastEmptiedAt: emptiedAt(now, 12)}, 0.7 + 0.15},
		{"just emptied", models.BinReading{FillPercent: 0, LastEmptiedAt: emptiedAt(now, 0)}, 0},
		{"two days caps at one", models.BinReading{FillPercent: 20, LastEmptiedAt: emptiedAt(now, 48)}, 0.14 + 0.3},
	}
	for _, tc := range cases {
		if got := p.Priority(tc.bin, now); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: priority = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPriorityPlannerPlan(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := &PriorityPlanner{Now: func() time.Time { return now }}

	// Two nearly co-located full bins and one far away
	bins := []models.BinReading{
		{BinID: "start", Lat: 29.6462, Lng: -82.3479, FillPercent: 0, LastEmptiedAt: emptiedAt(now, 0)},
		{BinID: "near", Lat: 29.6463, Lng: -82.3479, FillPercent: 80, LastEmptiedAt: emptiedAt(now, 24)},
		{BinID: "far", Lat: 29.7462, Lng: -82.3479, FillPercent: 90, LastEmptiedAt: emptiedAt(now, 24)},
		{BinID: "low", Lat: 29.6464, Lng: -82.3479, FillPercent: 5},
		{BinID: "end", Lat: 29.6470, Lng: -82.3479, FillPercent: 20, LastEmptiedAt: emptiedAt(now, 1)},
	}

	route, err := p.Plan(bins, "start", "end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for i, s := range route.Stops {
		ids = append(ids, s.BinID)
		if s.Order != i {
			t.Fatalf("stop %s has order %d, want %d", s.BinID, s.Order, i)
		}
	}
	if len(ids) != 4 || ids[0] != "start" || ids[1] != "near" || ids[2] != "far" || ids[3] != "end" {
		t.Fatalf("unexpected route %v", ids)
	}
	if len(route.Polyline) != len(route.Stops) {
		t.Fatalf("polyline has %d points for %d stops", len(route.Polyline), len(route.Stops))
	}
	if got := route.Stops[1].Priority; got != 0.86 {
		t.Fatalf("near priority = %v, want 0.86", got)
	}
}

func TestPriorityPlannerCapsStops(t *testing.T) {
	p := NewPriorityPlanner()
	bins := []models.BinReading{{BinID: "s"}, {BinID: "e"}}
	for i := 0; i < 15; i++ {
		bins = append(bins, models.BinReading{BinID: string(rune('a' + i)), FillPercent: 50})
	}
	route, err := p.Plan(bins, "s", "e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Stops) != PriorityMaxStops+2 {
		t.Fatalf("expected %d stops, got %d", PriorityMaxStops+2, len(route.Stops))
	}
}

func TestPriorityPlannerSameStartEnd(t *testing.T) {
	p := NewPriorityPlanner()
	bins := []models.BinReading{{BinID: "s", FillPercent: 50}, {BinID: "x", FillPercent: 60}}
	route, err := p.Plan(bins, "s", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Stops) != 2 || route.Stops[0].BinID != "s" || route.Stops[1].BinID != "x" {
		t.Fatalf("unexpected route %+v", route.Stops)
	}
}

func TestPriorityPlannerMissingEndpoint(t *testing.T) {
	p := NewPriorityPlanner()
	_, err := p.Plan([]models.BinReading{{BinID: "a"}}, "a", "zz")
	var ee *RouteEndpointError
	if !errors.As(err, &ee) || ee.Endpoint != EndpointEnd {
		t.Fatalf("expected missing end, got %v", err)
	}
}

func TestHaversineKM(t *testing.T) {
	// One degree of latitude is ~111.19 km
	if d := HaversineKM(0, 0, 1, 0); math.Abs(d-111.19) > 0.01 {
		t.Fatalf("got %v", d)
	}
	if d := HaversineKM(29.6, -82.3, 29.6, -82.3); d != 0 {
		t.Fatalf("same point distance = %v", d)
	}
}
