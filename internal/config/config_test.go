package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-rhvoice/internal/options"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RHVoice.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.RHVoice.Port)
	}
	want := options.Set{Format: "mp3", Pitch: 50, Rate: 50, Voice: "anna", Volume: 50}
	if got := cfg.RHVoice.Defaults(); got != want {
		t.Fatalf("expected defaults %+v, got %+v", want, got)
	}
	if cfg.RHVoice.SSL || !cfg.RHVoice.VerifySSL {
		t.Fatal("expected plain http with certificate verification by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhvoice.yaml")
	data := `
rhvoice:
  host: tts.lan
  port: 8443
  ssl: true
  verify_ssl: false
  timeout_ms: 2500
  format: opus
  voice: slt
  pitch: 40
journal:
  retention_mode: ephemeral
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RHVoice.Host != "tts.lan" || cfg.RHVoice.Port != 8443 || !cfg.RHVoice.SSL || cfg.RHVoice.VerifySSL {
		t.Fatalf("unexpected endpoint settings %+v", cfg.RHVoice)
	}
	if cfg.RHVoice.Timeout().Milliseconds() != 2500 {
		t.Fatalf("unexpected timeout %s", cfg.RHVoice.Timeout())
	}
	if cfg.RHVoice.Format != "opus" || cfg.RHVoice.Voice != "slt" || cfg.RHVoice.Pitch != 40 || cfg.RHVoice.Rate != 50 {
		t.Fatalf("unexpected voice settings %+v", cfg.RHVoice)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RHVOICE_HOST", "speech.internal")
	t.Setenv("RHVOICE_PORT", "9000")
	t.Setenv("RHVOICE_SSL", "true")
	t.Setenv("RHVOICE_VOICE", "natia")
	t.Setenv("RHVOICE_VOLUME", "90")
	t.Setenv("RHVOICE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("RHVOICE_BUS_EMBEDDED", "false")
	t.Setenv("RHVOICE_JOURNAL_RETENTION_MODE", "persistent")
	t.Setenv("RHVOICE_JOURNAL_MAX_ENTRIES", "12")
	t.Setenv("RHVOICE_TTS_SUBJECT_PREFIX", "speech")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RHVoice.Host != "speech.internal" || cfg.RHVoice.Port != 9000 || !cfg.RHVoice.SSL {
		t.Fatalf("expected endpoint override, got %+v", cfg.RHVoice)
	}
	if cfg.RHVoice.Voice != "natia" || cfg.RHVoice.Volume != 90 {
		t.Fatalf("expected voice override, got %+v", cfg.RHVoice)
	}
	if len(cfg.Bus.Servers) != 2 || cfg.Bus.Embedded {
		t.Fatalf("expected bus override, got %+v", cfg.Bus)
	}
	if cfg.Journal.RetentionMode != "persistent" || cfg.Journal.MaxEntries != 12 {
		t.Fatalf("expected journal override, got %+v", cfg.Journal)
	}
	if cfg.TTS.SubjectPrefix != "speech" {
		t.Fatalf("expected subject prefix override")
	}
}

func TestValidateRejectsBadVoiceOptions(t *testing.T) {
	cases := map[string]string{
		"RHVOICE_PITCH":  "101",
		"RHVOICE_RATE":   "-1",
		"RHVOICE_VOLUME": "200",
		"RHVOICE_FORMAT": "aac",
		"RHVOICE_VOICE":  "nobody",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			var verr *options.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.HasPrefix(err.Error(), "rhvoice: ") {
				t.Fatalf("expected rhvoice prefix, got %q", err)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	cfg := Default()
	cfg.RHVoice.Port = 70000
	if err := validate(cfg); err == nil {
		t.Fatal("expected port error")
	}
	cfg = Default()
	cfg.RHVoice.Host = " "
	if err := validate(cfg); err == nil {
		t.Fatal("expected host error")
	}
	cfg.TTS.Mode = "mock"
	if err := validate(cfg); err != nil {
		t.Fatalf("host is not required in mock mode: %v", err)
	}
	cfg.TTS.Mode = "exec"
	if err := validate(cfg); err == nil {
		t.Fatal("expected command error in exec mode")
	}
}

func TestLoadDotEnvKeepsExistingEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RHVOICE_VOICE=slt\nRHVOICE_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("RHVOICE_VOICE", "alan")
	t.Setenv("RHVOICE_TEST_DOTENV", "")
	os.Unsetenv("RHVOICE_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("RHVOICE_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
	if got := os.Getenv("RHVOICE_VOICE"); got != "alan" {
		t.Fatalf("dotenv must not override existing env, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "rhvoice.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if cfg.RHVoice.Defaults() != Default().RHVoice.Defaults() || cfg.HTTP.Port != Default().HTTP.Port {
		t.Fatalf("shipped config drifted from defaults: %+v", cfg.RHVoice)
	}
}
