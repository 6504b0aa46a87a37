package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/studyhub_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.StoragePath != "./uploads" {
		t.Errorf("Expected default storage path ./uploads, got %q", cfg.StoragePath)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected default worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.LeaderboardIntervalM != 15 {
		t.Errorf("Expected default leaderboard interval 15, got %d", cfg.LeaderboardIntervalM)
	}
	if cfg.GeminiConcurrentReqs != 5 {
		t.Errorf("Expected default Gemini concurrency 5, got %d", cfg.GeminiConcurrentReqs)
	}
	if cfg.FrontendURL != "http://localhost:5173" {
		t.Errorf("Expected default frontend URL, got %q", cfg.FrontendURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("LEADERBOARD_INTERVAL_MINUTES", "60")
	t.Setenv("STORAGE_PATH", "/var/lib/studyhub")

	cfg := Load()

	if cfg.WorkerCount != 12 {
		t.Errorf("Expected worker count 12, got %d", cfg.WorkerCount)
	}
	if cfg.LeaderboardIntervalM != 60 {
		t.Errorf("Expected leaderboard interval 60, got %d", cfg.LeaderboardIntervalM)
	}
	if cfg.StoragePath != "/var/lib/studyhub" {
		t.Errorf("Expected storage path override, got %q", cfg.StoragePath)
	}
}
