package services

import (
	"errors"
	"reflect"
	"testing"

	"binsight-backend/internal/models"
)

func reading(id string, fill float64) models.BinReading {
	return models.BinReading{BinID: id, Name: id, FillPercent: fill}
}

func stopIDs(stops []models.RouteStop) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.Bin.BinID
	}
	return ids
}

func TestBuildRoutePriorityOrder(t *testing.T) {
	bins := []models.BinReading{
		reading("A", 10),
		reading("B", 90),
		reading("C", 40),
		reading("D", 20),
		reading("E", 50),
	}

	stops, err := BuildRoute(bins, "A", "E")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := stopIDs(stops), []string{"A", "B", "C", "E"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stops = %v, want %v", got, want)
	}
	for i, s := range stops {
		if s.Order != i+1 {
			t.Fatalf("stop %d has order %d", i, s.Order)
		}
	}
}

func TestBuildRouteThresholdIsInclusive(t *testing.T) {
	bins := []models.BinReading{reading("S", 0), reading("X", 30), reading("Y", 29.99), reading("E", 0)}
	stops, err := BuildRoute(bins, "S", "E")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := stopIDs(stops), []string{"S", "X", "E"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stops = %v, want %v", got, want)
	}
}

func TestBuildRouteTieBreaksByID(t *testing.T) {
	bins := []models.BinReading{reading("S", 0), reading("m", 70), reading("k", 70), reading("z", 80), reading("E", 0)}
	stops, err := BuildRoute(bins, "S", "E")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := stopIDs(stops), []string{"S", "z", "k", "m", "E"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stops = %v, want %v", got, want)
	}
}

func TestBuildRouteSameStartAndEnd(t *testing.T) {
	bins := []models.BinReading{reading("A", 50), reading("B", 95)}
	stops, err := BuildRoute(bins, "A", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := stopIDs(stops), []string{"A", "B", "A"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stops = %v, want %v", got, want)
	}
	if stops[0].Bin != stops[len(stops)-1].Bin {
		t.Fatal("start and end should be the same element")
	}
	if stops[0].Bin != &bins[0] {
		t.Fatal("stops should point into the input slice")
	}
}

func TestBuildRouteNoEligibleMiddle(t *testing.T) {
	bins := []models.BinReading{reading("A", 90), reading("B", 5), reading("C", 95)}
	stops, err := BuildRoute(bins, "A", "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stops) != 2 {
		t.Fatalf("expected start and end only, got %v", stopIDs(stops))
	}
}

func TestBuildRouteMissingEndpoint(t *testing.T) {
	bins := []models.BinReading{reading("A", 50), reading("B", 60)}

	stops, err := BuildRoute(bins, "X", "B")
	if len(stops) != 0 {
		t.Fatalf("expected no stops, got %v", stopIDs(stops))
	}
	var ee *RouteEndpointError
	if !errors.As(err, &ee) || ee.Endpoint != EndpointStart || ee.BinID != "X" {
		t.Fatalf("expected missing start X, got %v", err)
	}
	if !errors.Is(err, ErrBinNotFound) {
		t.Fatal("expected ErrBinNotFound")
	}

	_, err = BuildRoute(bins, "A", "Y")
	if !errors.As(err, &ee) || ee.Endpoint != EndpointEnd || ee.BinID != "Y" {
		t.Fatalf("expected missing end Y, got %v", err)
	}

	if _, err := BuildRoute(nil, "A", "B"); !errors.Is(err, ErrBinNotFound) {
		t.Fatalf("empty fleet should report not found, got %v", err)
	}
}

func TestBuildRouteIsIdempotent(t *testing.T) {
	bins := []models.BinReading{reading("A", 40), reading("B", 77), reading("C", 31), reading("D", 77), reading("E", 2)}
	first, err := BuildRoute(bins, "E", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := BuildRoute(bins, "E", "A")
	if !reflect.DeepEqual(stopIDs(first), stopIDs(second)) {
		t.Fatalf("routes differ: %v vs %v", stopIDs(first), stopIDs(second))
	}
	if bins[1].BinID != "B" || bins[3].BinID != "D" {
		t.Fatal("input slice was reordered")
	}
}

func TestRoutePolyline(t *testing.T) {
	bins := []models.BinReading{
		{BinID: "A", Lat: 1, Lng: 2},
		{BinID: "B", Lat: 3, Lng: 4, FillPercent: 50},
		{BinID: "C", Lat: 5, Lng: 6},
	}
	stops, err := BuildRoute(bins, "A", "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][2]float64{{1, 2}, {3, 4}, {5, 6}}
	if got := RoutePolyline(stops); !reflect.DeepEqual(got, want) {
		t.Fatalf("polyline = %v, want %v", got, want)
	}
}
