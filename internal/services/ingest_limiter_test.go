package services

import "testing"

func TestIngestLimiterPerBin(t *testing.T) {
	l := NewIngestLimiter(0.001, 2)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third reading should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("bins are limited independently")
	}

	l.Forget("a")
	if !l.Allow("a") {
		t.Fatal("forgotten bin starts with a fresh burst")
	}
}

func TestIngestLimiterDisabled(t *testing.T) {
	l := NewIngestLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatalf("reading %d limited with limiting disabled", i)
		}
	}
}
