package config

import (
	"testing"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mydb.example.com", "mydb.example.com"},
		{"192.168.1.100", "192.168.1.100"},
		{"host.docker.internal", "host.docker.internal"},
	}

	for _, tt := range tests {
		result := ResolveHostForDocker(tt.input)
		if result != tt.expected {
			t.Errorf("ResolveHostForDocker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestResolveHostForDocker_Loopback(t *testing.T) {
	// The rewrite only happens when IsRunningInDocker() is true.
	for _, host := range []string{"localhost", "127.0.0.1", "::1"} {
		result := ResolveHostForDocker(host)
		want := host
		if IsRunningInDocker() {
			want = "host.docker.internal"
		}
		if result != want {
			t.Errorf("ResolveHostForDocker(%q) = %q, want %q", host, result, want)
		}
	}
}
