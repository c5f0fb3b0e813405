// Package config loads the ema-live configuration: built-in defaults, then an
// optional YAML file, then a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	session "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio"
	"gopkg.in/yaml.v3"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// APIKey is only ever read from the environment.
	APIKey string `yaml:"-" json:"-"`

	Model             string `yaml:"model" json:"model,omitempty"`
	Voice             string `yaml:"voice" json:"voice,omitempty"`
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction,omitempty"`
	Endpoint          string `yaml:"endpoint" json:"endpoint,omitempty"`
	HeartbeatSeconds  int    `yaml:"heartbeat_seconds" json:"heartbeat_seconds,omitempty" jsonschema:"minimum=0"`

	Audio     AudioConfig     `yaml:"audio" json:"audio"`
	Video     VideoConfig     `yaml:"video" json:"video"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Archive   ArchiveConfig   `yaml:"archive" json:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

type AudioConfig struct {
	Backend          string `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	InputSampleRate  int    `yaml:"input_sample_rate" json:"input_sample_rate" jsonschema:"minimum=1"`
	OutputSampleRate int    `yaml:"output_sample_rate" json:"output_sample_rate" jsonschema:"minimum=1"`
	CaptureBlockMs   int    `yaml:"capture_block_ms" json:"capture_block_ms" jsonschema:"minimum=1"`
	// PortAudioBuffer is the frames per portaudio read or write.
	PortAudioBuffer int `yaml:"portaudio_buffer" json:"portaudio_buffer" jsonschema:"minimum=1"`
}

type VideoConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	FrameRate   float64 `yaml:"frame_rate" json:"frame_rate" jsonschema:"exclusiveMinimum=0"`
	Quality     int     `yaml:"quality" json:"quality" jsonschema:"minimum=1,maximum=100"`
	Downscale   int     `yaml:"downscale" json:"downscale" jsonschema:"minimum=1"`
	FFmpeg      string  `yaml:"ffmpeg" json:"ffmpeg,omitempty"`
	InputFormat string  `yaml:"input_format" json:"input_format,omitempty"`
	Device      string  `yaml:"device" json:"device,omitempty"`
}

type SessionConfig struct {
	OutboundQueueSize      int `yaml:"outbound_queue_size" json:"outbound_queue_size" jsonschema:"minimum=1"`
	TeardownTimeoutSeconds int `yaml:"teardown_timeout_seconds" json:"teardown_timeout_seconds" jsonschema:"minimum=1"`
	ArchiveTimeoutSeconds  int `yaml:"archive_timeout_seconds" json:"archive_timeout_seconds" jsonschema:"minimum=1"`
}

type ArchiveConfig struct {
	File            string `yaml:"file" json:"file,omitempty"`
	RedisURL        string `yaml:"redis_url" json:"redis_url,omitempty"`
	RedisPrefix     string `yaml:"redis_prefix" json:"redis_prefix,omitempty"`
	RedisTTLSeconds int    `yaml:"redis_ttl_seconds" json:"redis_ttl_seconds,omitempty" jsonschema:"minimum=0"`
	WebhookURL      string `yaml:"webhook_url" json:"webhook_url,omitempty"`
	WebhookToken    string `yaml:"-" json:"-"`
}

type TelemetryConfig struct {
	// OTLPEndpoint enables trace export when set, e.g. "localhost:4318".
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure" json:"insecure,omitempty"`
	ServiceName  string `yaml:"service_name" json:"service_name,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		HeartbeatSeconds: 20,
		Audio: AudioConfig{
			Backend:          BackendMiniaudio,
			InputSampleRate:  audio.DefaultSampleRate,
			OutputSampleRate: audio.DefaultOutputSampleRate,
			CaptureBlockMs:   32,
			PortAudioBuffer:  512,
		},
		Video: VideoConfig{
			FrameRate: 5,
			Quality:   70,
			Downscale: 2,
			FFmpeg:    "ffmpeg",
		},
		Session: SessionConfig{
			OutboundQueueSize:      64,
			TeardownTimeoutSeconds: 5,
			ArchiveTimeoutSeconds:  10,
		},
		Archive: ArchiveConfig{
			RedisPrefix:     "ema-live",
			RedisTTLSeconds: 30 * 24 * 60 * 60,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ema-live",
		},
	}
}

// Load builds the configuration. path may be empty; envFile may be empty or
// point at a missing file, in which case it is skipped.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	// EMA_LIVE_API_KEY takes precedence over GEMINI_API_KEY.
	for _, name := range []string{"GEMINI_API_KEY", "EMA_LIVE_API_KEY"} {
		if value, ok := lookup(name); ok && value != "" {
			c.APIKey = value
		}
	}

	overrides := map[string]*string{
		"EMA_LIVE_MODEL":              &c.Model,
		"EMA_LIVE_VOICE":              &c.Voice,
		"EMA_LIVE_SYSTEM_INSTRUCTION": &c.SystemInstruction,
		"EMA_LIVE_ENDPOINT":           &c.Endpoint,
		"EMA_LIVE_AUDIO_BACKEND":      &c.Audio.Backend,
		"EMA_LIVE_VIDEO_DEVICE":       &c.Video.Device,
		"EMA_LIVE_VIDEO_INPUT_FORMAT": &c.Video.InputFormat,
		"EMA_LIVE_FFMPEG":             &c.Video.FFmpeg,
		"EMA_LIVE_ARCHIVE_FILE":       &c.Archive.File,
		"EMA_LIVE_REDIS_URL":          &c.Archive.RedisURL,
		"EMA_LIVE_WEBHOOK_URL":        &c.Archive.WebhookURL,
		"EMA_LIVE_WEBHOOK_TOKEN":      &c.Archive.WebhookToken,
		"EMA_LIVE_OTLP_ENDPOINT":      &c.Telemetry.OTLPEndpoint,
		"EMA_LIVE_TELEMETRY_SERVICE":  &c.Telemetry.ServiceName,
	}
	for name, target := range overrides {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}

	if value, ok := lookup("EMA_LIVE_VIDEO"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: EMA_LIVE_VIDEO: %w", ErrInvalidConfig, err)
		}
		c.Video.Enabled = enabled
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Audio.Backend == BackendMiniaudio || c.Audio.Backend == BackendPortaudio, "unknown audio backend %q", c.Audio.Backend)
	check(c.Audio.InputSampleRate > 0, "input sample rate must be positive, got %d", c.Audio.InputSampleRate)
	check(c.Audio.OutputSampleRate > 0, "output sample rate must be positive, got %d", c.Audio.OutputSampleRate)
	check(c.Audio.CaptureBlockMs > 0, "capture block must be positive, got %dms", c.Audio.CaptureBlockMs)
	check(c.Audio.PortAudioBuffer > 0, "portaudio buffer must be positive, got %d", c.Audio.PortAudioBuffer)
	check(c.Video.FrameRate > 0, "video frame rate must be positive, got %v", c.Video.FrameRate)
	check(c.Video.Quality >= 1 && c.Video.Quality <= 100, "jpeg quality must be within 1-100, got %d", c.Video.Quality)
	check(c.Video.Downscale >= 1, "downscale factor must be at least 1, got %d", c.Video.Downscale)
	check(c.Session.OutboundQueueSize > 0, "outbound queue size must be positive, got %d", c.Session.OutboundQueueSize)
	check(c.Session.TeardownTimeoutSeconds > 0, "teardown timeout must be positive, got %d", c.Session.TeardownTimeoutSeconds)
	check(c.Session.ArchiveTimeoutSeconds > 0, "archive timeout must be positive, got %d", c.Session.ArchiveTimeoutSeconds)
	check(c.HeartbeatSeconds >= 0, "heartbeat must not be negative, got %d", c.HeartbeatSeconds)
	check(c.Archive.RedisTTLSeconds >= 0, "redis ttl must not be negative, got %d", c.Archive.RedisTTLSeconds)

	return errors.Join(problems...)
}

// Credential returns the service API key. It may be empty; the session
// rejects an empty credential on connect.
func (c *Config) Credential() string {
	return c.APIKey
}

func (c *Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.Model = c.Model
	cfg.Voice = c.Voice
	cfg.SystemInstruction = c.SystemInstruction
	cfg.VideoFrameRate = c.Video.FrameRate
	cfg.VideoQuality = c.Video.Quality
	cfg.VideoDownscale = c.Video.Downscale
	cfg.OutboundQueueSize = c.Session.OutboundQueueSize
	cfg.TeardownTimeout = time.Duration(c.Session.TeardownTimeoutSeconds) * time.Second
	cfg.ArchiveTimeout = time.Duration(c.Session.ArchiveTimeoutSeconds) * time.Second
	return cfg
}

func (c *Config) InputEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.Audio.InputSampleRate, Format: audio.EncodingLinear16}
}

func (c *Config) OutputEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.Audio.OutputSampleRate, Format: audio.EncodingLinear16}
}

func (c *Config) CaptureBlock() time.Duration {
	return time.Duration(c.Audio.CaptureBlockMs) * time.Millisecond
}

func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Archive.RedisTTLSeconds) * time.Second
}
