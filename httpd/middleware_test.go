package httpd

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"203.0.113.7:54321", "", "203.0.113.7"},
		{"203.0.113.7:54321", "198.51.100.9", "198.51.100.9"},
		{"203.0.113.7:54321", "198.51.100.9, 10.0.0.1", "198.51.100.9"},
		{"203.0.113.7:54321", " 198.51.100.9 ,10.0.0.1", "198.51.100.9"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"no-port", "", "no-port"},
	}

	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/auth/login", nil)
		r.RemoteAddr = tc.remoteAddr
		if tc.forwarded != "" {
			r.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tc.remoteAddr, tc.forwarded, got, tc.want)
		}
	}
}
