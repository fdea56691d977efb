package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kittenml/speechcore/internal/normalize"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// NormalizerConfig toggles individual rewrite stages of the text
// normalization pipeline.
type NormalizerConfig struct {
	Canonicalize        bool `yaml:"canonicalize"`
	StripMarkup         bool `yaml:"strip_markup"`
	ExpandContractions  bool `yaml:"expand_contractions"`
	ExpandIPAddresses   bool `yaml:"expand_ip_addresses"`
	ExpandCurrency      bool `yaml:"expand_currency"`
	ExpandPercent       bool `yaml:"expand_percent"`
	ExpandScientific    bool `yaml:"expand_scientific"`
	ExpandTime          bool `yaml:"expand_time"`
	ExpandOrdinals      bool `yaml:"expand_ordinals"`
	ExpandUnits         bool `yaml:"expand_units"`
	ExpandFractions     bool `yaml:"expand_fractions"`
	ExpandDecades       bool `yaml:"expand_decades"`
	ExpandPhoneNumbers  bool `yaml:"expand_phone_numbers"`
	ExpandRanges        bool `yaml:"expand_ranges"`
	SplitModelNames     bool `yaml:"split_model_names"`
	ExpandRomanNumerals bool `yaml:"expand_roman_numerals"`
	ExpandNumbers       bool `yaml:"expand_numbers"`
	FoldAccents         bool `yaml:"fold_accents"`
	NormalizePunct      bool `yaml:"normalize_punctuation"`
	Lowercase           bool `yaml:"lowercase"`
}

// Options maps the config record onto the normalizer's stage toggles.
func (c NormalizerConfig) Options() normalize.Options {
	return normalize.Options{
		Canonicalize:        c.Canonicalize,
		StripMarkup:         c.StripMarkup,
		ExpandContractions:  c.ExpandContractions,
		ExpandIPAddresses:   c.ExpandIPAddresses,
		ExpandCurrency:      c.ExpandCurrency,
		ExpandPercent:       c.ExpandPercent,
		ExpandScientific:    c.ExpandScientific,
		ExpandTime:          c.ExpandTime,
		ExpandOrdinals:      c.ExpandOrdinals,
		ExpandUnits:         c.ExpandUnits,
		ExpandFractions:     c.ExpandFractions,
		ExpandDecades:       c.ExpandDecades,
		ExpandPhoneNumbers:  c.ExpandPhoneNumbers,
		ExpandRanges:        c.ExpandRanges,
		SplitModelNames:     c.SplitModelNames,
		ExpandRomanNumerals: c.ExpandRomanNumerals,
		ExpandNumbers:       c.ExpandNumbers,
		FoldAccents:         c.FoldAccents,
		NormalizePunct:      c.NormalizePunct,
		Lowercase:           c.Lowercase,
	}
}

func normalizerDefaults() NormalizerConfig {
	opts := normalize.DefaultOptions()
	return NormalizerConfig{
		Canonicalize:        opts.Canonicalize,
		StripMarkup:         opts.StripMarkup,
		ExpandContractions:  opts.ExpandContractions,
		ExpandIPAddresses:   opts.ExpandIPAddresses,
		ExpandCurrency:      opts.ExpandCurrency,
		ExpandPercent:       opts.ExpandPercent,
		ExpandScientific:    opts.ExpandScientific,
		ExpandTime:          opts.ExpandTime,
		ExpandOrdinals:      opts.ExpandOrdinals,
		ExpandUnits:         opts.ExpandUnits,
		ExpandFractions:     opts.ExpandFractions,
		ExpandDecades:       opts.ExpandDecades,
		ExpandPhoneNumbers:  opts.ExpandPhoneNumbers,
		ExpandRanges:        opts.ExpandRanges,
		SplitModelNames:     opts.SplitModelNames,
		ExpandRomanNumerals: opts.ExpandRomanNumerals,
		ExpandNumbers:       opts.ExpandNumbers,
		FoldAccents:         opts.FoldAccents,
		NormalizePunct:      opts.NormalizePunct,
		Lowercase:           opts.Lowercase,
	}
}

type ChunkerConfig struct {
	MaxUnitLen int `yaml:"max_unit_len"`
}

type SessionsConfig struct {
	IdleTimeoutMS int      `yaml:"idle_timeout_ms"`
	DefaultVoice  string   `yaml:"default_voice"`
	Voices        []string `yaml:"voices"`
	MinSpeed      float64  `yaml:"min_speed"`
	MaxSpeed      float64  `yaml:"max_speed"`
}

type PhonemizerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	Language  string `yaml:"language"`
	CacheSize int    `yaml:"cache_size"`
}

type SynthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Target  string `yaml:"target"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Normalizer  NormalizerConfig `yaml:"normalizer"`
	Chunker     ChunkerConfig    `yaml:"chunker"`
	Sessions    SessionsConfig   `yaml:"sessions"`
	Phonemizer  PhonemizerConfig `yaml:"phonemizer"`
	Synth       SynthConfig      `yaml:"synth"`
	History     HistoryConfig    `yaml:"history"`
	Stream      StreamConfig     `yaml:"stream"`
}

// KittenVoices is the voice set shipped with the nano model.
var KittenVoices = []string{
	"expr-voice-2-m", "expr-voice-2-f", "expr-voice-3-m", "expr-voice-3-f",
	"expr-voice-4-m", "expr-voice-4-f", "expr-voice-5-m", "expr-voice-5-f",
}

func Default() Config {
	return Config{
		RuntimeName: "speechcore",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Normalizer: normalizerDefaults(),
		Chunker: ChunkerConfig{
			MaxUnitLen: 400,
		},
		Sessions: SessionsConfig{
			IdleTimeoutMS: 300_000,
			DefaultVoice:  "expr-voice-5-m",
			Voices:        KittenVoices,
			MinSpeed:      0.25,
			MaxSpeed:      3.0,
		},
		Phonemizer: PhonemizerConfig{
			Enabled:   false,
			Mode:      "mock",
			Language:  "en-us",
			CacheSize: 20,
		},
		Synth: SynthConfig{
			Enabled:    false,
			Mode:       "mock",
			SampleRate: 24000,
			Channels:   1,
		},
		History: HistoryConfig{
			Path:          "./data/speech-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Stream: StreamConfig{
			Enabled: true,
			Target:  "default",
		},
	}
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
	overrideString(&cfg.RuntimeName, "SPEECH_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SPEECH_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SPEECH_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SPEECH_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SPEECH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SPEECH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SPEECH_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "SPEECH_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SPEECH_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SPEECH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SPEECH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SPEECH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SPEECH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SPEECH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SPEECH_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Normalizer.Lowercase, "SPEECH_NORMALIZER_LOWERCASE")
	overrideBool(&cfg.Normalizer.ExpandCurrency, "SPEECH_NORMALIZER_EXPAND_CURRENCY")
	overrideBool(&cfg.Normalizer.ExpandUnits, "SPEECH_NORMALIZER_EXPAND_UNITS")
	overrideBool(&cfg.Normalizer.StripMarkup, "SPEECH_NORMALIZER_STRIP_MARKUP")
	overrideInt(&cfg.Chunker.MaxUnitLen, "SPEECH_CHUNKER_MAX_UNIT_LEN")
	overrideInt(&cfg.Sessions.IdleTimeoutMS, "SPEECH_SESSIONS_IDLE_TIMEOUT_MS")
	overrideString(&cfg.Sessions.DefaultVoice, "SPEECH_SESSIONS_DEFAULT_VOICE")
	overrideStringSlice(&cfg.Sessions.Voices, "SPEECH_SESSIONS_VOICES")
	overrideFloat(&cfg.Sessions.MinSpeed, "SPEECH_SESSIONS_MIN_SPEED")
	overrideFloat(&cfg.Sessions.MaxSpeed, "SPEECH_SESSIONS_MAX_SPEED")
	overrideBool(&cfg.Phonemizer.Enabled, "SPEECH_PHONEMIZER_ENABLED")
	overrideString(&cfg.Phonemizer.Mode, "SPEECH_PHONEMIZER_MODE")
	overrideString(&cfg.Phonemizer.Command, "SPEECH_PHONEMIZER_COMMAND")
	overrideString(&cfg.Phonemizer.Language, "SPEECH_PHONEMIZER_LANGUAGE")
	overrideInt(&cfg.Phonemizer.CacheSize, "SPEECH_PHONEMIZER_CACHE_SIZE")
	overrideBool(&cfg.Synth.Enabled, "SPEECH_SYNTH_ENABLED")
	overrideString(&cfg.Synth.Mode, "SPEECH_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "SPEECH_SYNTH_COMMAND")
	overrideInt(&cfg.Synth.SampleRate, "SPEECH_SYNTH_SAMPLE_RATE")
	overrideInt(&cfg.Synth.Channels, "SPEECH_SYNTH_CHANNELS")
	overrideString(&cfg.History.Path, "SPEECH_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "SPEECH_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "SPEECH_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxSessions, "SPEECH_HISTORY_MAX_SESSIONS")
	overrideBool(&cfg.History.VacuumOnStart, "SPEECH_HISTORY_VACUUM_ON_START")
	overrideBool(&cfg.Stream.Enabled, "SPEECH_STREAM_ENABLED")
	overrideString(&cfg.Stream.Target, "SPEECH_STREAM_TARGET")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Chunker.MaxUnitLen <= 0 {
		return errors.New("chunker.max_unit_len must be positive")
	}
	if cfg.Sessions.IdleTimeoutMS < 0 {
		return errors.New("sessions.idle_timeout_ms must be >= 0")
	}
	if len(cfg.Sessions.Voices) == 0 {
		return errors.New("sessions.voices must not be empty")
	}
	if cfg.Sessions.MinSpeed <= 0 || cfg.Sessions.MaxSpeed < cfg.Sessions.MinSpeed {
		return errors.New("sessions speed bounds must satisfy 0 < min_speed <= max_speed")
	}
	voiceKnown := false
	for _, v := range cfg.Sessions.Voices {
		if v == cfg.Sessions.DefaultVoice {
			voiceKnown = true
			break
		}
	}
	if !voiceKnown {
		return errors.New("sessions.default_voice must be one of sessions.voices")
	}
	if cfg.Phonemizer.Enabled {
		switch cfg.Phonemizer.Mode {
		case "mock", "exec":
		default:
			return errors.New("phonemizer.mode must be one of mock|exec")
		}
		if cfg.Phonemizer.Mode == "exec" && cfg.Phonemizer.Command == "" {
			return errors.New("phonemizer.command must be set when mode=exec")
		}
		if cfg.Phonemizer.CacheSize < 0 {
			return errors.New("phonemizer.cache_size must be >= 0")
		}
	}
	if cfg.Synth.Enabled {
		switch cfg.Synth.Mode {
		case "mock", "exec":
		default:
			return errors.New("synth.mode must be one of mock|exec")
		}
		if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
			return errors.New("synth.command must be set when mode=exec")
		}
		if cfg.Synth.SampleRate <= 0 {
			return errors.New("synth.sample_rate must be positive")
		}
		if cfg.Synth.Channels <= 0 {
			return errors.New("synth.channels must be positive")
		}
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
