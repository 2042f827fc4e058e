package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestKeyedLimiterBurst(t *testing.T) {
	kl := newKeyedLimiter(rate.Limit(2), 2, time.Minute)
	if !kl.allow("alice") {
		t.Fatal("first call should pass")
	}
	if !kl.allow("alice") {
		t.Fatal("second call should pass")
	}
	if kl.allow("alice") {
		t.Fatal("third immediate call should be limited")
	}
	// Other keys have their own bucket.
	if !kl.allow("bob") {
		t.Fatal("fresh key should pass")
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4444"
	if got := getClientIP(r); got != "10.0.0.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := getClientIP(r); got != "203.0.113.7" {
		t.Fatalf("forwarded: got %q", got)
	}
}
