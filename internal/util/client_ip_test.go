package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPIgnoresForwardedWhenUntrusted(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4431"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := ClientIP(r, false); got != "203.0.113.9" {
		t.Fatalf("ClientIP = %q, want remote addr host", got)
	}
}

func TestClientIPUsesForwardedFirstHopWhenTrusted(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	if got := ClientIP(r, true); got != "198.51.100.1" {
		t.Fatalf("ClientIP = %q, want first forwarded hop", got)
	}
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Real-IP", "198.51.100.7")
	if got := ClientIP(r, true); got != "198.51.100.7" {
		t.Fatalf("ClientIP = %q, want X-Real-IP", got)
	}
}
