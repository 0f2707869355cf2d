package redis

import (
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"skewscan", []string{"lock", "spread_run"}, "skewscan:lock:spread_run"},
		{"skewscan:", []string{"report", "match"}, "skewscan:report:match"},
		{"", []string{"ratelimit", "api:1.2.3.4"}, "ratelimit:api:1.2.3.4"},
	}
	for _, tt := range tests {
		c := &Client{prefix: normalizePrefix(tt.prefix)}
		if got := c.Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestPayloadBytes(t *testing.T) {
	if b, ok := payloadBytes("abc"); !ok || string(b) != "abc" {
		t.Errorf("string payload = %q, %v", b, ok)
	}
	if b, ok := payloadBytes([]byte("xyz")); !ok || string(b) != "xyz" {
		t.Errorf("bytes payload = %q, %v", b, ok)
	}
	if _, ok := payloadBytes(42); ok {
		t.Error("int payload accepted")
	}
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	for _, cmd := range []string{"ZREMRANGEBYSCORE", "ZCARD", "ZADD", "PEXPIRE"} {
		if !strings.Contains(slidingWindowLua, cmd) {
			t.Errorf("sliding window script missing %s", cmd)
		}
	}
}
