package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Generator GeneratorConfig `yaml:"generator"`
	Chat      ChatConfig      `yaml:"chat"`
	Live      LiveConfig      `yaml:"live"`
	Video     VideoConfig     `yaml:"video"`
	Media     MediaConfig     `yaml:"media"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Gemini   LogSettings `yaml:"gemini"` // prompt history, empty path disables
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// GeminiConfig holds settings for the generative backend.
// Key is a last-resort credential; the dotenv file and environment win.
type GeminiConfig struct {
	Key     string       `yaml:"key"`
	EnvFile string       `yaml:"env_file"`
	Models  ModelsConfig `yaml:"models"`
}

// ModelsConfig maps each intent to a model name.
type ModelsConfig struct {
	Joke      string `yaml:"joke"`
	Visual    string `yaml:"visual"`
	Speech    string `yaml:"speech"`
	Explain   string `yaml:"explain"`
	ProImage  string `yaml:"pro_image"`
	Edit      string `yaml:"edit"`
	Video     string `yaml:"video"`
	Fast      string `yaml:"fast"`
	Reasoning string `yaml:"reasoning"`
	Maps      string `yaml:"maps"`
	Live      string `yaml:"live"`
}

// GeneratorConfig holds joke generator defaults.
type GeneratorConfig struct {
	Vibe string `yaml:"vibe"`
}

// ChatConfig holds chat session settings.
type ChatConfig struct {
	SessionTTL Duration `yaml:"session_ttl"` // idle clients are forgotten, 0 keeps them
}

// LiveConfig holds realtime voice session settings.
type LiveConfig struct {
	Persona     string `yaml:"persona"`
	Voice       string `yaml:"voice"`
	FrameSize   int    `yaml:"frame_size"`  // capture samples per frame
	SendBuffer  int    `yaml:"send_buffer"` // outbound frames buffered before dropping
	Transcripts int    `yaml:"transcripts"` // rolling transcript window
}

// VideoConfig holds video job polling settings.
type VideoConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	MaxWait      Duration `yaml:"max_wait"`
}

// MediaConfig holds the generated media store settings.
type MediaConfig struct {
	Path   string   `yaml:"path"`
	MaxAge Duration `yaml:"max_age"` // 0 keeps media until exit
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1977",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Gemini: LogSettings{
				Path:  "./logs/gemini.log",
				Level: "INFO",
			},
		},
		Gemini: GeminiConfig{
			EnvFile: ".env",
			Models: ModelsConfig{
				Joke:      "gemini-3-flash-preview",
				Visual:    "gemini-2.5-flash-image",
				Speech:    "gemini-2.5-flash-preview-tts",
				Explain:   "gemini-3-flash-preview",
				ProImage:  "gemini-3-pro-image-preview",
				Edit:      "gemini-2.5-flash-image",
				Video:     "veo-3.1-fast-generate-preview",
				Fast:      "gemini-3-flash-preview",
				Reasoning: "gemini-3-pro-preview",
				Maps:      "gemini-2.5-flash",
				Live:      "gemini-2.5-flash-native-audio-preview-09-2025",
			},
		},
		Generator: GeneratorConfig{
			Vibe: "clever",
		},
		Chat: ChatConfig{
			SessionTTL: Duration(24 * time.Hour),
		},
		Live: LiveConfig{
			Persona:     "You are a friendly, fast-talking humor assistant in a real-time voice chat.",
			Voice:       "Zephyr",
			FrameSize:   4096,
			SendBuffer:  32,
			Transcripts: 5,
		},
		Video: VideoConfig{
			PollInterval: Duration(10 * time.Second),
			MaxWait:      Duration(10 * time.Minute),
		},
		Media: MediaConfig{
			Path:   ":memory:",
			MaxAge: Duration(6 * time.Hour),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults but never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.Video.PollInterval <= 0 {
		return fmt.Errorf("video.poll_interval must be positive")
	}
	if c.Live.FrameSize <= 0 {
		return fmt.Errorf("live.frame_size must be positive")
	}
	if c.Live.Transcripts <= 0 {
		return fmt.Errorf("live.transcripts must be positive")
	}
	if c.Live.SendBuffer < 0 {
		return fmt.Errorf("live.send_buffer must not be negative")
	}
	if c.Chat.SessionTTL < 0 {
		return fmt.Errorf("chat.session_ttl must not be negative")
	}
	if c.Media.MaxAge < 0 {
		return fmt.Errorf("media.max_age must not be negative")
	}
	if !isKnownVibe(c.Generator.Vibe) {
		return fmt.Errorf("invalid generator.vibe '%s'", c.Generator.Vibe)
	}
	return nil
}

func isKnownVibe(s string) bool {
	matched, _ := regexp.MatchString(`^(clever|absurd|wholesome|witty|surprise)$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# GiggleGlitch Configuration
# -------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# The API key is read from env_file / GEMINI_API_KEY on every request.

`)
	data = append(header, data...)

	reVibe := regexp.MustCompile(`(?m)^(\s+)vibe:`)
	data = reVibe.ReplaceAll(data, []byte("${1}# Options: clever, absurd, wholesome, witty, surprise\n${1}vibe:"))

	reMaxWait := regexp.MustCompile(`(?m)^(\s+)max_wait:`)
	data = reMaxWait.ReplaceAll(data, []byte("${1}# 0 waits until the job finishes or the request is cancelled\n${1}max_wait:"))

	reMedia := regexp.MustCompile(`(?m)^(\s+)(path: '?:memory:'?)$`)
	data = reMedia.ReplaceAll(data, []byte("${1}# :memory: keeps generated media for the lifetime of the process only\n${1}${2}"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
