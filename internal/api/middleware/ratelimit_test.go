package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(0, 3)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request past burst with zero refill must be denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other clients keep their own bucket")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:51234", "192.0.2.1"},
		{"192.0.2.1", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := clientKey(r); got != tt.want {
			t.Errorf("clientKey(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
