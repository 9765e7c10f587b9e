package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.LeaseTTL != 20*time.Minute {
					t.Errorf("expected LeaseTTL 20m, got %v", cfg.LeaseTTL)
				}
				if cfg.SweepInterval != 45*time.Second {
					t.Errorf("expected SweepInterval 45s, got %v", cfg.SweepInterval)
				}
				if cfg.ReservationTTL != 5*time.Second {
					t.Errorf("expected ReservationTTL 5s, got %v", cfg.ReservationTTL)
				}
				if cfg.DayKeyTimezone.String() != "Europe/Berlin" {
					t.Errorf("expected Europe/Berlin, got %s", cfg.DayKeyTimezone)
				}
				if cfg.DailyCallTarget != 30 {
					t.Errorf("expected DailyCallTarget 30, got %d", cfg.DailyCallTarget)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                "9000",
				"LOG_LEVEL":           "debug",
				"LEASE_TTL_MINUTES":   "15",
				"LEASE_SWEEP_SECONDS": "30",
				"DAILY_CALL_TARGET":   "50",
				"DAY_KEY_TIMEZONE":    "UTC",
				"ALLOWED_ORIGINS":     "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LeaseTTL != 15*time.Minute {
					t.Errorf("expected LeaseTTL 15m, got %v", cfg.LeaseTTL)
				}
				if cfg.SweepInterval != 30*time.Second {
					t.Errorf("expected SweepInterval 30s, got %v", cfg.SweepInterval)
				}
				if cfg.DailyCallTarget != 50 {
					t.Errorf("expected DailyCallTarget 50, got %d", cfg.DailyCallTarget)
				}
				if cfg.DayKeyTimezone != time.UTC {
					t.Errorf("expected UTC, got %s", cfg.DayKeyTimezone)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "invalid LEASE_TTL_MINUTES",
			env: map[string]string{
				"LEASE_TTL_MINUTES": "abc",
			},
			wantErr: true,
		},
		{
			name: "sweep interval longer than TTL",
			env: map[string]string{
				"LEASE_TTL_MINUTES":   "1",
				"LEASE_SWEEP_SECONDS": "120",
			},
			wantErr: true,
		},
		{
			name: "invalid timezone",
			env: map[string]string{
				"DAY_KEY_TIMEZONE": "Mars/Olympus",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.env {
					os.Unsetenv(k)
				}
			}()

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
