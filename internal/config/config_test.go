package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	result := getEnv("TEST_NONEXISTENT_VAR_12345", "default")
	if result != "default" {
		t.Errorf("getEnv() = %q, want %q", result, "default")
	}

	os.Setenv("TEST_VAR_12345", "custom_value")
	defer os.Unsetenv("TEST_VAR_12345")

	result = getEnv("TEST_VAR_12345", "default")
	if result != "custom_value" {
		t.Errorf("getEnv() = %q, want %q", result, "custom_value")
	}
}

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`hello`, "hello"},
		{`"hello`, `"hello`},
		{`hello"`, `hello"`},
		{`""`, ""},
		{`''`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := trimQuotes(tt.input)
			if result != tt.want {
				t.Errorf("trimQuotes(%q) = %q, want %q", tt.input, result, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("LO_GAME")
	os.Unsetenv("LO_GAME_PATH")
	os.Unsetenv("LO_LOCAL_PATH")

	cfg := Load()
	if cfg.Game != "" || cfg.GamePath != "" || cfg.LocalPath != "" {
		t.Errorf("expected empty defaults, got %+v", cfg)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	os.Setenv("LO_GAME", "skyrim")
	os.Setenv("LO_GAME_PATH", "/games/skyrim")
	defer os.Unsetenv("LO_GAME")
	defer os.Unsetenv("LO_GAME_PATH")

	cfg := Load()
	if cfg.Game != "skyrim" {
		t.Errorf("Game = %q, want %q", cfg.Game, "skyrim")
	}
	if cfg.GamePath != "/games/skyrim" {
		t.Errorf("GamePath = %q, want %q", cfg.GamePath, "/games/skyrim")
	}
}
