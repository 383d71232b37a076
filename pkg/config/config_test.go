package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, path string)
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T, string)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func(t *testing.T, path string) {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Video.PollInterval.Std() != 10*time.Second {
					t.Errorf("expected default poll interval 10s, got %v", cfg.Video.PollInterval.Std())
				}
				if cfg.Live.Voice != "Zephyr" {
					t.Errorf("expected default live voice Zephyr, got %s", cfg.Live.Voice)
				}
				if cfg.Media.Path != ":memory:" {
					t.Errorf("expected in-memory media store, got %s", cfg.Media.Path)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				s := string(content)
				if !strings.Contains(s, "# GiggleGlitch Configuration") {
					t.Error("config file missing header")
				}
				if !strings.Contains(s, "# Options: clever, absurd, wholesome, witty, surprise") {
					t.Error("config file missing vibe options comment")
				}
				if !strings.Contains(s, "poll_interval: 10s") {
					t.Error("config file missing poll interval")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func(t *testing.T, path string) {
				data := "video:\n  poll_interval: 2s\n  max_wait: 1d\ngenerator:\n  vibe: absurd\n"
				if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Video.PollInterval.Std() != 2*time.Second {
					t.Errorf("expected poll interval 2s, got %v", cfg.Video.PollInterval.Std())
				}
				if cfg.Video.MaxWait.Std() != Day {
					t.Errorf("expected max wait 1d, got %v", cfg.Video.MaxWait.Std())
				}
				if cfg.Generator.Vibe != "absurd" {
					t.Errorf("expected vibe absurd, got %s", cfg.Generator.Vibe)
				}
				// untouched sections keep defaults
				if cfg.Gemini.Models.Joke != "gemini-3-flash-preview" {
					t.Errorf("expected default joke model, got %s", cfg.Gemini.Models.Joke)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "GiggleGlitch Configuration") {
					t.Error("existing config file must not be rewritten")
				}
			},
		},
		{
			name: "InvalidVibe",
			setup: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("generator:\n  vibe: dark\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "InvalidYAML",
			setup: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("video: [unclosed"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "configs", "giggleglitch.yaml")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			tt.setup(t, path)

			cfg, err := Load(path)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	// second call leaves the file alone
	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "custom: true\n" {
		t.Errorf("GenerateDefault overwrote an existing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Live.Voice = "Puck"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Live.Voice != "Puck" {
		t.Errorf("expected voice Puck, got %s", loaded.Live.Voice)
	}
	if loaded.Media.Path != ":memory:" {
		t.Errorf("expected media path to survive comment injection, got %q", loaded.Media.Path)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10s", 10 * time.Second, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"", 0, false},
		{"invalid", 0, true},
		{"3dx", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 1d12h\n"), &v); err != nil {
		t.Fatal(err)
	}
	if v.D.Std() != 36*time.Hour {
		t.Errorf("got %v", v.D.Std())
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "d: 36h0m0s" {
		t.Errorf("unexpected marshal output %q", out)
	}
}
