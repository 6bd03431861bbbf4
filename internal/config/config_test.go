package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:         AppConfig{Env: "local", Port: 8080},
		DB:          DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callprep"},
		Redis:       RedisConfig{Host: "localhost", Port: 6379},
		Transcriber: TranscriberConfig{URL: "http://localhost:9000"},
		Storage:     StorageConfig{DataDir: "/tmp/callprep"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AudioDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Audio.SampleRate != 16000 {
		t.Fatalf("expected 16000 sample rate default, got %d", c.Audio.SampleRate)
	}
	if c.Audio.MaxChunkSeconds != 30 || c.Audio.SearchWindowSeconds != 5 {
		t.Fatalf("unexpected chunking defaults: %+v", c.Audio)
	}
	if c.Audio.MinSilenceMs != 500 || c.Audio.SilenceThresholdDB != -40 || c.Audio.MinChunkSeconds != 1 {
		t.Fatalf("unexpected silence defaults: %+v", c.Audio)
	}
}

func TestValidate_RejectsWindowWiderThanChunk(t *testing.T) {
	c := validBase()
	c.Audio.MaxChunkSeconds = 5
	c.Audio.SearchWindowSeconds = 5
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for search window >= max chunk")
	}
}

func TestValidate_WorkerTimeoutDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Worker.HardTimeout != 60*time.Minute || c.Worker.SoftTimeout != 55*time.Minute {
		t.Fatalf("unexpected worker timeouts: %+v", c.Worker)
	}

	c = validBase()
	c.Worker.SoftTimeout = 2 * time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for soft timeout >= hard timeout")
	}
}

func TestValidate_WorkerRetryDefaultStaysPositive(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// A zero retry count would archive jobs on the first failure instead of
	// redelivering them.
	if c.Worker.MaxRetry <= 0 {
		t.Fatalf("expected positive retry default, got %d", c.Worker.MaxRetry)
	}

	c = validBase()
	c.Worker.MaxRetry = 3
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Worker.MaxRetry != 3 {
		t.Fatalf("explicit retry count must be kept, got %d", c.Worker.MaxRetry)
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "x")
	t.Setenv("DB_NAME", "callprep")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("TRANSCRIBER_URL", "http://localhost:9000")
	t.Setenv("DATA_DIR", "/tmp/callprep")
}

func TestLoad_RejectsMalformedOptionalValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"AUDIO_SILENCE_THRESHOLD_DB", "-40db"},
		{"AUDIO_MAX_CHUNK_SECONDS", "thirty"},
		{"WORKER_SOFT_TIMEOUT", "55minutes"},
		{"WORKER_MAX_RETRY", "many"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected parse error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_AcceptsValidEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUDIO_SILENCE_THRESHOLD_DB", "-35.5")
	t.Setenv("WORKER_SOFT_TIMEOUT", "50m")
	t.Setenv("WORKER_HARD_TIMEOUT", "55m")

	c, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Audio.SilenceThresholdDB != -35.5 {
		t.Fatalf("threshold not parsed: %v", c.Audio.SilenceThresholdDB)
	}
	if c.Worker.SoftTimeout != 50*time.Minute || c.Worker.HardTimeout != 55*time.Minute {
		t.Fatalf("worker timeouts not parsed: %+v", c.Worker)
	}
}
