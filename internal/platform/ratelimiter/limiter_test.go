package ratelimiter

import (
	"testing"
	"time"
)

func TestNilLimiterAllows(t *testing.T) {
	var l *EndpointLimiter
	if !l.Allow("/ask", time.Now()) {
		t.Fatalf("nil limiter must allow")
	}
}

func TestInvalidArgsReturnNil(t *testing.T) {
	if New(0, 1, time.Minute) != nil {
		t.Fatalf("expected nil for zero rps")
	}
	if New(1, 0, time.Minute) != nil {
		t.Fatalf("expected nil for zero burst")
	}
}

func TestBurstThenThrottle(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()
	if !l.Allow("/ask", now) || !l.Allow("/ask", now) {
		t.Fatalf("burst should be allowed")
	}
	if l.Allow("/ask", now) {
		t.Fatalf("third immediate request should be throttled")
	}
	if !l.Allow("/ask", now.Add(2*time.Second)) {
		t.Fatalf("request after refill should pass")
	}
}

func TestEndpointsIsolated(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	if !l.Allow("/ask", now) {
		t.Fatalf("first endpoint should pass")
	}
	if !l.Allow("/auth/refresh", now) {
		t.Fatalf("second endpoint has its own bucket")
	}
	if l.Allow("/ask", now) {
		t.Fatalf("first endpoint should now be throttled")
	}
}

func TestEmptyKeyAllowed(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("  ", now) {
			t.Fatalf("blank keys are never limited")
		}
	}
}
