package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesBuiltInDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("NATS_DLQ_SUBJECT", "")
	t.Setenv("WHISPER_MODEL", "")
	t.Setenv("AGENT_MAX_ITERATIONS", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg := Load()
	if cfg.NATSSubject != "interactions.ingest" {
		t.Fatalf("expected default subject interactions.ingest, got %q", cfg.NATSSubject)
	}
	if cfg.NATSDLQSubject != "interactions.dlq" {
		t.Fatalf("expected default dlq subject interactions.dlq, got %q", cfg.NATSDLQSubject)
	}
	if cfg.WhisperModel != "whisper-large-v3" {
		t.Fatalf("expected default whisper model, got %q", cfg.WhisperModel)
	}
	if cfg.AgentMaxIterations != 6 {
		t.Fatalf("expected default agent iterations 6, got %d", cfg.AgentMaxIterations)
	}
	if cfg.APIRateLimitRPS != 0 {
		t.Fatalf("expected rate limiting disabled by default, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadParsesEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NATS_SUBJECT", "crm.events")
	t.Setenv("OPENAI_RPM", "120")
	t.Setenv("AGENT_TIMEOUT_SECONDS", "40")
	t.Setenv("WORKER_EVENT_TIMEOUT_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.NATSSubject != "crm.events" {
		t.Fatalf("expected subject override, got %q", cfg.NATSSubject)
	}
	if cfg.OpenAIRPM != 120 {
		t.Fatalf("expected openai rpm 120, got %d", cfg.OpenAIRPM)
	}
	if cfg.AgentTimeoutSeconds != 40 {
		t.Fatalf("expected agent timeout 40, got %d", cfg.AgentTimeoutSeconds)
	}
	if cfg.WorkerEventTimeoutSeconds != 30 {
		t.Fatalf("unparsable int must fall back to default, got %d", cfg.WorkerEventTimeoutSeconds)
	}
}

func TestLoadLayersConfigFileUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmparse.yaml")
	content := "nats_subject: file.subject\nopenai_model: file-model\nagent_max_iterations: 9\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NATS_SUBJECT", "env.subject")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("AGENT_MAX_ITERATIONS", "")

	cfg := Load()
	if cfg.NATSSubject != "env.subject" {
		t.Fatalf("environment must win over the file, got %q", cfg.NATSSubject)
	}
	if cfg.OpenAIModel != "file-model" {
		t.Fatalf("file must win over the built-in default, got %q", cfg.OpenAIModel)
	}
	if cfg.AgentMaxIterations != 9 {
		t.Fatalf("expected file agent iterations 9, got %d", cfg.AgentMaxIterations)
	}
}

func TestLoadIgnoresMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.NATSSubject != "interactions.ingest" {
		t.Fatalf("missing file must fall back to defaults, got %q", cfg.NATSSubject)
	}
}
