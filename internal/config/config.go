package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API and worker processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Audio       AudioConfig
	Transcriber TranscriberConfig
	Storage     StorageConfig
	Worker      WorkerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// AudioConfig carries the segmentation parameters.
// Defaults match the tuning the annotation team reviews against:
// 16 kHz mono, 30 s chunks cut on >=500 ms silences below -40 dBFS.
type AudioConfig struct {
	SampleRate          int
	MaxChunkSeconds     int
	SearchWindowSeconds int
	MinSilenceMs        int
	SilenceThresholdDB  float64
	MinChunkSeconds     int
}

type TranscriberConfig struct {
	// URL of the whisper transcription server (e.g. http://localhost:9000).
	URL string
	// DefaultLanguage is the ISO 639-1 hint used when a call has no language set.
	DefaultLanguage string
	RequestTimeout  time.Duration
}

type StorageConfig struct {
	// DataDir is the root under which uploads, processed waveforms and chunks live.
	DataDir string
}

type WorkerConfig struct {
	// Concurrency is the number of worker goroutines pulling jobs.
	Concurrency int
	// MaxActiveCalls caps calls processing concurrently across the whole fleet.
	MaxActiveCalls int
	// HardTimeout forcibly terminates a job; SoftTimeout cancels the pipeline
	// context slightly earlier so cleanup can run before the hard kill.
	HardTimeout time.Duration
	SoftTimeout time.Duration
	// MaxRetry must stay positive; retries are what make job delivery
	// at-least-once across worker crashes and capacity deferrals.
	MaxRetry int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	// Audio knobs are optional; zero values get domain defaults in Validate().
	// Malformed values are still parse errors, never silent fallbacks.
	c.Audio.SampleRate = optInt("AUDIO_SAMPLE_RATE", &parseErrs)
	c.Audio.MaxChunkSeconds = optInt("AUDIO_MAX_CHUNK_SECONDS", &parseErrs)
	c.Audio.SearchWindowSeconds = optInt("AUDIO_SEARCH_WINDOW_SECONDS", &parseErrs)
	c.Audio.MinSilenceMs = optInt("AUDIO_MIN_SILENCE_MS", &parseErrs)
	c.Audio.SilenceThresholdDB = optFloat("AUDIO_SILENCE_THRESHOLD_DB", &parseErrs)
	c.Audio.MinChunkSeconds = optInt("AUDIO_MIN_CHUNK_SECONDS", &parseErrs)

	c.Transcriber.URL = strings.TrimSpace(os.Getenv("TRANSCRIBER_URL"))
	c.Transcriber.DefaultLanguage = strings.TrimSpace(os.Getenv("TRANSCRIBER_LANGUAGE"))
	c.Transcriber.RequestTimeout = optDuration("TRANSCRIBER_TIMEOUT", &parseErrs)

	c.Storage.DataDir = strings.TrimSpace(os.Getenv("DATA_DIR"))

	c.Worker.Concurrency = optInt("WORKER_CONCURRENCY", &parseErrs)
	c.Worker.MaxActiveCalls = optInt("WORKER_MAX_ACTIVE_CALLS", &parseErrs)
	c.Worker.HardTimeout = optDuration("WORKER_HARD_TIMEOUT", &parseErrs)
	c.Worker.SoftTimeout = optDuration("WORKER_SOFT_TIMEOUT", &parseErrs)
	c.Worker.MaxRetry = optInt("WORKER_MAX_RETRY", &parseErrs)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.MaxChunkSeconds <= 0 {
		c.Audio.MaxChunkSeconds = 30
	}
	if c.Audio.SearchWindowSeconds <= 0 {
		c.Audio.SearchWindowSeconds = 5
	}
	if c.Audio.MinSilenceMs <= 0 {
		c.Audio.MinSilenceMs = 500
	}
	if c.Audio.SilenceThresholdDB == 0 {
		c.Audio.SilenceThresholdDB = -40
	}
	if c.Audio.SilenceThresholdDB > 0 {
		errs = append(errs, fmt.Errorf("AUDIO_SILENCE_THRESHOLD_DB must be negative (dBFS), got %v", c.Audio.SilenceThresholdDB))
	}
	if c.Audio.MinChunkSeconds <= 0 {
		c.Audio.MinChunkSeconds = 1
	}
	// A window as wide as the chunk itself could place the cut at the cursor
	// and wedge the segmenter.
	if c.Audio.SearchWindowSeconds >= c.Audio.MaxChunkSeconds {
		errs = append(errs, fmt.Errorf("AUDIO_SEARCH_WINDOW_SECONDS (%d) must be smaller than AUDIO_MAX_CHUNK_SECONDS (%d)",
			c.Audio.SearchWindowSeconds, c.Audio.MaxChunkSeconds))
	}

	if c.Transcriber.URL == "" {
		errs = append(errs, errors.New("TRANSCRIBER_URL is required"))
	}
	if c.Transcriber.DefaultLanguage == "" {
		c.Transcriber.DefaultLanguage = "hi"
	}
	if c.Transcriber.RequestTimeout <= 0 {
		c.Transcriber.RequestTimeout = 5 * time.Minute
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}

	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.MaxActiveCalls <= 0 {
		c.Worker.MaxActiveCalls = 4
	}
	if c.Worker.HardTimeout <= 0 {
		c.Worker.HardTimeout = 60 * time.Minute
	}
	if c.Worker.SoftTimeout <= 0 {
		c.Worker.SoftTimeout = 55 * time.Minute
	}
	if c.Worker.SoftTimeout >= c.Worker.HardTimeout {
		errs = append(errs, errors.New("WORKER_SOFT_TIMEOUT must be smaller than WORKER_HARD_TIMEOUT"))
	}
	// A zero retry count would archive a task on its first failure, so a
	// worker crash or a capacity-full deferral would strand the call with no
	// redelivery. Keep it positive.
	if c.Worker.MaxRetry <= 0 {
		c.Worker.MaxRetry = 25
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// UploadDir is where raw uploads land before processing.
func (c Config) UploadDir() string {
	return filepath.Join(c.Storage.DataDir, "uploads")
}

// ProcessedDir holds the per-call normalized waveforms.
func (c Config) ProcessedDir() string {
	return filepath.Join(c.Storage.DataDir, "processed")
}

// ChunksDir holds the per-call chunk files.
func (c Config) ChunksDir() string {
	return filepath.Join(c.Storage.DataDir, "chunks")
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// The opt* helpers parse optional env vars. Absent means "use the default";
// present-but-malformed is a config error the operator must see.

func optInt(key string, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func optFloat(key string, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return 0
	}
	return f
}

func optDuration(key string, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration (e.g. 55m), got %q", key, v))
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
