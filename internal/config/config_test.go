package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 3000},
		TCP:  TCPConfig{Port: 3001},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid http port")
	}
}

func TestValidate_SamePorts(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Port = cfg.HTTP.Port

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when tcp.port equals http.port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_InvalidTranslationMode(t *testing.T) {
	cfg := validConfig()
	cfg.Translation.Mode = "google"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid translation mode")
	}

	expected := `translation.mode must be "off" or "llm", got "google"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 3000 {
		t.Errorf("expected HTTP.Port=3000, got %d", cfg.HTTP.Port)
	}
	if cfg.TCP.Port != 3001 {
		t.Errorf("expected TCP.Port=3001, got %d", cfg.TCP.Port)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected Embedding.Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("expected Completion.Model=gpt-4o-mini, got %q", cfg.Completion.Model)
	}
	if cfg.Completion.Temperature != 0.3 {
		t.Errorf("expected Completion.Temperature=0.3, got %v", cfg.Completion.Temperature)
	}
	if cfg.Completion.TopK != 3 {
		t.Errorf("expected Completion.TopK=3, got %d", cfg.Completion.TopK)
	}
	if cfg.Completion.MaxAttempts != 3 {
		t.Errorf("expected Completion.MaxAttempts=3, got %d", cfg.Completion.MaxAttempts)
	}
	if cfg.Completion.AttemptTimeoutSec != 10 {
		t.Errorf("expected Completion.AttemptTimeoutSec=10, got %d", cfg.Completion.AttemptTimeoutSec)
	}
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("expected Ingest.ChunkSize=1000, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Translation.Mode != "off" {
		t.Errorf("expected Translation.Mode=off, got %q", cfg.Translation.Mode)
	}
	if cfg.Storage.KeyPrefix != "parentassist:" {
		t.Errorf("expected KeyPrefix='parentassist:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 8080, ReadTimeoutSec: 30, WriteTimeoutSec: 90, ShutdownSec: 5},
		TCP:        TCPConfig{Port: 8081, ReadTimeoutSec: 15},
		Completion: CompletionConfig{TopK: 5, MaxAttempts: 2},
		Ingest:     IngestConfig{Dir: "/srv/pdfs", ChunkSize: 500},
		Storage:    StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected HTTP.Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Completion.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Completion.TopK)
	}
	if cfg.Completion.MaxAttempts != 2 {
		t.Errorf("expected MaxAttempts=2, got %d", cfg.Completion.MaxAttempts)
	}
	if cfg.Ingest.Dir != "/srv/pdfs" {
		t.Errorf("expected Ingest.Dir=/srv/pdfs, got %q", cfg.Ingest.Dir)
	}
	if cfg.Ingest.ChunkSize != 500 {
		t.Errorf("expected ChunkSize=500, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}
