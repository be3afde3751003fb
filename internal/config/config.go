package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
	TTS         TTSConfig       `yaml:"tts"`
	RHVoice     RHVoiceConfig   `yaml:"rhvoice"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type TTSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Mode             string `yaml:"mode"` // rhvoice, exec, mock
	Command          string `yaml:"command"`
	SubjectPrefix    string `yaml:"subject_prefix"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// RHVoiceConfig describes the remote RHVoice server and the default voice
// rendering options.
type RHVoiceConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	SSL       bool   `yaml:"ssl"`
	VerifySSL bool   `yaml:"verify_ssl"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Format    string `yaml:"format"`
	Pitch     int    `yaml:"pitch"`
	Rate      int    `yaml:"rate"`
	Voice     string `yaml:"voice"`
	Volume    int    `yaml:"volume"`
}

// Defaults returns the configured voice options as a resolved set.
func (c RHVoiceConfig) Defaults() options.Set {
	return options.Set{Format: c.Format, Pitch: c.Pitch, Rate: c.Rate, Voice: c.Voice, Volume: c.Volume}
}

func (c RHVoiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c TTSConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-rhvoice",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/rhvoice-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxEntries:    10000,
		},
		TTS: TTSConfig{
			Enabled:          true,
			Mode:             "rhvoice",
			SubjectPrefix:    "tts",
			RequestTimeoutMS: 45000,
		},
		RHVoice: RHVoiceConfig{
			Host:      "localhost",
			Port:      8080,
			SSL:       false,
			VerifySSL: true,
			TimeoutMS: 10000,
			Format:    "mp3",
			Pitch:     50,
			Rate:      50,
			Voice:     "anna",
			Volume:    50,
		},
	}
}

// LoadDotEnv reads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "RHVOICE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "RHVOICE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "RHVOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "RHVOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "RHVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "RHVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "RHVOICE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "RHVOICE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "RHVOICE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "RHVOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "RHVOICE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "RHVOICE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "RHVOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "RHVOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "RHVOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "RHVOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "RHVOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "RHVOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "RHVOICE_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "RHVOICE_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "RHVOICE_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxEntries, "RHVOICE_JOURNAL_MAX_ENTRIES")
	overrideBool(&cfg.Journal.VacuumOnStart, "RHVOICE_JOURNAL_VACUUM_ON_START")
	overrideBool(&cfg.TTS.Enabled, "RHVOICE_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "RHVOICE_TTS_MODE")
	overrideString(&cfg.TTS.Command, "RHVOICE_TTS_COMMAND")
	overrideString(&cfg.TTS.SubjectPrefix, "RHVOICE_TTS_SUBJECT_PREFIX")
	overrideInt(&cfg.TTS.RequestTimeoutMS, "RHVOICE_TTS_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.RHVoice.Host, "RHVOICE_HOST")
	overrideInt(&cfg.RHVoice.Port, "RHVOICE_PORT")
	overrideBool(&cfg.RHVoice.SSL, "RHVOICE_SSL")
	overrideBool(&cfg.RHVoice.VerifySSL, "RHVOICE_VERIFY_SSL")
	overrideInt(&cfg.RHVoice.TimeoutMS, "RHVOICE_TIMEOUT_MS")
	overrideString(&cfg.RHVoice.Format, "RHVOICE_FORMAT")
	overrideInt(&cfg.RHVoice.Pitch, "RHVOICE_PITCH")
	overrideInt(&cfg.RHVoice.Rate, "RHVOICE_RATE")
	overrideString(&cfg.RHVoice.Voice, "RHVOICE_VOICE")
	overrideInt(&cfg.RHVoice.Volume, "RHVOICE_VOLUME")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionMode != "ephemeral" && cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "rhvoice", "exec", "mock":
	default:
		return errors.New("tts.mode must be one of rhvoice|exec|mock")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.Enabled && cfg.TTS.SubjectPrefix == "" {
		return errors.New("tts.subject_prefix must not be empty")
	}
	if cfg.TTS.RequestTimeoutMS <= 0 {
		return errors.New("tts.request_timeout_ms must be positive")
	}
	return validateRHVoice(cfg.RHVoice, cfg.TTS.Mode == "rhvoice")
}

func validateRHVoice(cfg RHVoiceConfig, remote bool) error {
	if remote {
		if strings.TrimSpace(cfg.Host) == "" {
			return errors.New("rhvoice.host must not be empty")
		}
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return errors.New("rhvoice.port must be between 1 and 65535")
		}
		if cfg.TimeoutMS <= 0 {
			return errors.New("rhvoice.timeout_ms must be positive")
		}
	}
	if err := options.Validate(cfg.Defaults(), voices.Default()); err != nil {
		return fmt.Errorf("rhvoice: %w", err)
	}
	return nil
}
