package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview runner
type Config struct {
	// Operational HTTP server (health, readiness, metrics)
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini Live API configuration
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiLiveURL   string `envconfig:"GEMINI_LIVE_URL" default:"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"`
	GeminiLiveModel string `envconfig:"GEMINI_LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-09-2025"`
	GeminiVoice     string `envconfig:"GEMINI_VOICE" default:"Kore"`

	// Model used for report generation and resume insights
	GeminiReportModel string `envconfig:"GEMINI_REPORT_MODEL" default:"gemini-2.5-flash"`

	// Audio pipeline
	InputSampleRate  int `envconfig:"INPUT_SAMPLE_RATE" default:"16000"`  // Microphone capture rate
	OutputSampleRate int `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000"` // Model audio rate
	AudioBlockSize   int `envconfig:"AUDIO_BLOCK_SIZE" default:"4096"`    // Samples per capture block

	// Video sampling
	VideoFPS         int     `envconfig:"VIDEO_FPS" default:"2"`
	VideoScale       float64 `envconfig:"VIDEO_SCALE" default:"0.5"`
	VideoJPEGQuality int     `envconfig:"VIDEO_JPEG_QUALITY" default:"60"`

	// Delay after the last queued assistant audio before completion fires
	CompletionGraceMS int `envconfig:"COMPLETION_GRACE_MS" default:"1000"`

	// Outbound realtime input dispatch
	OutboundQueueSize int `envconfig:"OUTBOUND_QUEUE_SIZE" default:"64"`
	OutboundWorkers   int `envconfig:"OUTBOUND_WORKERS" default:"4"`

	// Device capture via ffmpeg / playback via ffplay
	FFmpegPath        string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFplayPath        string `envconfig:"FFPLAY_PATH" default:"ffplay"`
	MicInputFormat    string `envconfig:"MIC_INPUT_FORMAT" default:"pulse"`
	MicInputDevice    string `envconfig:"MIC_INPUT_DEVICE" default:"default"`
	CameraInputFormat string `envconfig:"CAMERA_INPUT_FORMAT" default:"v4l2"`
	CameraInputDevice string `envconfig:"CAMERA_INPUT_DEVICE" default:"/dev/video0"`
	CameraWidth       int    `envconfig:"CAMERA_WIDTH" default:"640"`
	CameraHeight      int    `envconfig:"CAMERA_HEIGHT" default:"480"`
	CameraFPS         int    `envconfig:"CAMERA_FPS" default:"15"`

	// Document store
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"intervu_db"`
	MongoTimeout  int    `envconfig:"MONGODB_TIMEOUT" default:"10"` // seconds

	// Resilience configuration (report generation and store calls only)
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"200"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive (input=%d, output=%d)", c.InputSampleRate, c.OutputSampleRate)
	}
	if c.AudioBlockSize < 256 {
		return fmt.Errorf("AUDIO_BLOCK_SIZE must be at least 256, got %d", c.AudioBlockSize)
	}
	if c.VideoFPS <= 0 {
		return fmt.Errorf("VIDEO_FPS must be positive, got %d", c.VideoFPS)
	}
	if c.VideoScale <= 0 || c.VideoScale > 1 {
		return fmt.Errorf("VIDEO_SCALE must be in (0,1], got %g", c.VideoScale)
	}
	if c.VideoJPEGQuality < 1 || c.VideoJPEGQuality > 100 {
		return fmt.Errorf("VIDEO_JPEG_QUALITY must be in [1,100], got %d", c.VideoJPEGQuality)
	}
	return nil
}

// CompletionGrace is the fixed delay appended to remaining playback on completion
func (c *Config) CompletionGrace() time.Duration {
	return time.Duration(c.CompletionGraceMS) * time.Millisecond
}

// VideoInterval is the sampling period of the camera frame loop
func (c *Config) VideoInterval() time.Duration {
	return time.Second / time.Duration(c.VideoFPS)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
