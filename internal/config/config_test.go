package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvironment(t *testing.T) {
	// Table-driven test cases
	tests := []struct {
		name          string
		inputEnv      string
		expectedName  string
		expectedAddr  string
		expectedQCap  int
		expectDefault bool // If true, we expect the fallback (local) config
	}{
		{
			name:         "Get local environment",
			inputEnv:     "local",
			expectedName: "LOCAL",
			expectedAddr: "localhost:" + ServerPort,
			expectedQCap: 100,
		},
		{
			name:         "Get remote environment",
			inputEnv:     "remote",
			expectedName: "REMOTO",
			expectedAddr: "0.0.0.0:" + ServerPort,
			expectedQCap: 256,
		},
		{
			name:          "Get unknown environment (defaults to local)",
			inputEnv:      "unknown_env",
			expectedName:  "LOCAL",
			expectedAddr:  "localhost:" + ServerPort,
			expectedQCap:  100,
			expectDefault: true,
		},
		{
			name:          "Get empty environment (defaults to local)",
			inputEnv:      "",
			expectedName:  "LOCAL",
			expectedAddr:  "localhost:" + ServerPort,
			expectedQCap:  100,
			expectDefault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetEnvironment(tt.inputEnv)

			// Verify key fields
			if got.Name != tt.expectedName {
				t.Errorf("GetEnvironment(%q).Name = %q; want %q", tt.inputEnv, got.Name, tt.expectedName)
			}
			if got.ListenAddr != tt.expectedAddr {
				t.Errorf("GetEnvironment(%q).ListenAddr = %q; want %q", tt.inputEnv, got.ListenAddr, tt.expectedAddr)
			}
			if got.QueueCapacity != tt.expectedQCap {
				t.Errorf("GetEnvironment(%q).QueueCapacity = %d; want %d", tt.inputEnv, got.QueueCapacity, tt.expectedQCap)
			}

			// Verify session settings are usable
			if got.RequestTimeout == 0 {
				t.Errorf("GetEnvironment(%q).RequestTimeout is 0; expected non-zero duration", tt.inputEnv)
			}
			if got.Sentinel != "CRLF" {
				t.Errorf("GetEnvironment(%q).Sentinel = %q; want CRLF", tt.inputEnv, got.Sentinel)
			}
			if got.TrustAuthenticatedAddress {
				t.Errorf("GetEnvironment(%q) trusts authenticated addresses by default", tt.inputEnv)
			}

			if tt.expectDefault {
				localCfg := environments["local"]
				if got.Name != localCfg.Name {
					t.Errorf("GetEnvironment(%q) did not return local config as default", tt.inputEnv)
				}
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RELAY_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("RELAY_STORE_BACKEND", StoreRedis)
	t.Setenv("RELAY_TRUST_ADDRESS", "true")
	t.Setenv("RELAY_REGISTER_SAME_CONNECTION", "true")
	t.Setenv("RELAY_MAX_MESSAGES_PER_MINUTE", "30")
	t.Setenv("RELAY_REQUEST_TIMEOUT", "5s")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "a.com,b.com")
	t.Setenv("RELAY_QUEUE_CAPACITY", "not-a-number")

	got := ApplyEnv(environments["local"])

	if got.ListenAddr != "127.0.0.1:7000" {
		t.Errorf("ListenAddr = %q", got.ListenAddr)
	}
	if got.StoreBackend != StoreRedis {
		t.Errorf("StoreBackend = %q", got.StoreBackend)
	}
	if !got.TrustAuthenticatedAddress {
		t.Errorf("TrustAuthenticatedAddress not applied")
	}
	if !got.RegisterOnSameConnection {
		t.Errorf("RegisterOnSameConnection not applied")
	}
	if got.MaxMessagesPerMinute != 30 {
		t.Errorf("MaxMessagesPerMinute = %d", got.MaxMessagesPerMinute)
	}
	if got.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v", got.RequestTimeout)
	}
	if len(got.AllowedOrigins) != 2 || got.AllowedOrigins[1] != "b.com" {
		t.Errorf("AllowedOrigins = %v", got.AllowedOrigins)
	}
	if got.QueueCapacity != environments["local"].QueueCapacity {
		t.Errorf("invalid integer should keep the default, got %d", got.QueueCapacity)
	}
}

func TestEnvironment_LogPath(t *testing.T) {
	env := Environment{
		ServiceName: "TestService",
	}
	programData := "/var/lib"
	expected := filepath.Join(programData, "TestService", "TestService.log")

	got := env.LogPath(programData)

	if got != expected {
		t.Errorf("LogPath(%q) = %q; want %q", programData, got, expected)
	}
}

func TestEnvironment_LogPathFallbacks(t *testing.T) {
	env := Environment{ServiceName: "TestService"}

	if got, want := env.LogPath(""), filepath.Join("logs", "TestService.log"); got != want {
		t.Errorf("LogPath(\"\") = %q; want %q", got, want)
	}

	env.LogFile = "/tmp/relay.log"
	if got := env.LogPath("/var/lib"); got != "/tmp/relay.log" {
		t.Errorf("LogPath with LogFile = %q; want /tmp/relay.log", got)
	}
}
