package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

// Config is the full runtime configuration. Precedence: built-in defaults,
// then the optional YAML file named by HT_CONFIG_FILE, then environment
// variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	MediaDir string

	PatientLanguage chat.Language

	AIBaseURL         string
	AIAPIKey          string
	AITranslateModel  string
	AITranscribeModel string
	AISummaryModel    string
	AIAssistModel     string
	AITimeout         time.Duration

	APIRateRPS   float64
	APIRateBurst int

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

func defaults() Config {
	return Config{
		HTTPAddr:  "0.0.0.0:8080",
		LogLevel:  "info",
		LogFormat: "json",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,

		DBSchema:   "translator",
		DBMaxConns: 10,
		DBMinConns: 0,

		MediaDir: "data/media",

		PatientLanguage: chat.DefaultPatientLanguage,

		AITimeout: 30 * time.Second,

		APIRateRPS:   20,
		APIRateBurst: 40,

		CORSAllowedOrigins: []string{
			"http://localhost", "http://localhost:*",
			"http://127.0.0.1", "http://127.0.0.1:*",
		},
		CORSMaxAgeSeconds: 300,
	}
}

// fileConfig mirrors Config for the YAML overlay; absent keys leave the
// default in place.
type fileConfig struct {
	HTTPAddr  *string `yaml:"http_addr"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`

	DatabaseURL *string `yaml:"database_url"`
	DBSchema    *string `yaml:"db_schema"`
	DBMaxConns  *int32  `yaml:"db_max_conns"`
	DBMinConns  *int32  `yaml:"db_min_conns"`

	ReadinessRequireDB *bool `yaml:"readiness_require_db"`

	MediaDir *string `yaml:"media_dir"`

	PatientLanguage *string `yaml:"patient_language"`

	AI struct {
		BaseURL         *string `yaml:"base_url"`
		APIKey          *string `yaml:"api_key"`
		TranslateModel  *string `yaml:"translate_model"`
		TranscribeModel *string `yaml:"transcribe_model"`
		SummaryModel    *string `yaml:"summary_model"`
		AssistModel     *string `yaml:"assist_model"`
		Timeout         *string `yaml:"timeout"`
	} `yaml:"ai"`

	Rate struct {
		RPS   *float64 `yaml:"rps"`
		Burst *int     `yaml:"burst"`
	} `yaml:"rate"`

	CORS struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials *bool    `yaml:"allow_credentials"`
		MaxAgeSeconds    *int     `yaml:"max_age_seconds"`
	} `yaml:"cors"`
}

// LoadConfig assembles the runtime configuration. A .env file in the working
// directory is folded into the environment first; a missing one is fine.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := EnvString("HT_CONFIG_FILE", ""); path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.HTTPAddr = EnvString("HT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = EnvString("HT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvString("HT_LOG_FORMAT", cfg.LogFormat)

	cfg.ReadHeaderTimeout = EnvDuration("HT_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = EnvDuration("HT_HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = EnvDuration("HT_HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = EnvDuration("HT_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.MaxHeaderBytes = EnvInt("HT_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes)

	cfg.DatabaseURL = EnvString("HT_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBSchema = EnvString("HT_DB_SCHEMA", cfg.DBSchema)
	cfg.DBMaxConns = EnvInt32("HT_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = EnvInt32("HT_DB_MIN_CONNS", cfg.DBMinConns)

	cfg.ReadinessRequireDB = EnvBool("HT_READINESS_REQUIRE_DB", cfg.ReadinessRequireDB)

	cfg.MediaDir = EnvString("HT_MEDIA_DIR", cfg.MediaDir)

	cfg.PatientLanguage = chat.Language(EnvString("HT_PATIENT_LANGUAGE", string(cfg.PatientLanguage)))

	cfg.AIBaseURL = EnvString("HT_AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIAPIKey = EnvString("HT_AI_API_KEY", cfg.AIAPIKey)
	cfg.AITranslateModel = EnvString("HT_AI_TRANSLATE_MODEL", cfg.AITranslateModel)
	cfg.AITranscribeModel = EnvString("HT_AI_TRANSCRIBE_MODEL", cfg.AITranscribeModel)
	cfg.AISummaryModel = EnvString("HT_AI_SUMMARY_MODEL", cfg.AISummaryModel)
	cfg.AIAssistModel = EnvString("HT_AI_ASSIST_MODEL", cfg.AIAssistModel)
	cfg.AITimeout = EnvDuration("HT_AI_TIMEOUT", cfg.AITimeout)

	cfg.APIRateRPS = EnvFloat("HT_API_RATE_RPS", cfg.APIRateRPS)
	cfg.APIRateBurst = EnvInt("HT_API_RATE_BURST", cfg.APIRateBurst)

	if raw := EnvString("HT_CORS_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.CORSAllowedOrigins = splitCSV(raw)
	}
	cfg.CORSAllowCredentials = EnvBool("HT_CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials)
	cfg.CORSMaxAgeSeconds = EnvInt("HT_CORS_MAX_AGE_SECONDS", cfg.CORSMaxAgeSeconds)

	if !cfg.PatientLanguage.Supported() {
		return Config{}, fmt.Errorf("config: unsupported patient language %q", cfg.PatientLanguage)
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.DBSchema, fc.DBSchema)
	if fc.DBMaxConns != nil {
		cfg.DBMaxConns = *fc.DBMaxConns
	}
	if fc.DBMinConns != nil {
		cfg.DBMinConns = *fc.DBMinConns
	}
	if fc.ReadinessRequireDB != nil {
		cfg.ReadinessRequireDB = *fc.ReadinessRequireDB
	}
	setString(&cfg.MediaDir, fc.MediaDir)
	if fc.PatientLanguage != nil {
		cfg.PatientLanguage = chat.Language(*fc.PatientLanguage)
	}

	setString(&cfg.AIBaseURL, fc.AI.BaseURL)
	setString(&cfg.AIAPIKey, fc.AI.APIKey)
	setString(&cfg.AITranslateModel, fc.AI.TranslateModel)
	setString(&cfg.AITranscribeModel, fc.AI.TranscribeModel)
	setString(&cfg.AISummaryModel, fc.AI.SummaryModel)
	setString(&cfg.AIAssistModel, fc.AI.AssistModel)
	if fc.AI.Timeout != nil {
		d, err := time.ParseDuration(*fc.AI.Timeout)
		if err != nil {
			return fmt.Errorf("config: ai.timeout: %w", err)
		}
		cfg.AITimeout = d
	}

	if fc.Rate.RPS != nil {
		cfg.APIRateRPS = *fc.Rate.RPS
	}
	if fc.Rate.Burst != nil {
		cfg.APIRateBurst = *fc.Rate.Burst
	}

	if len(fc.CORS.AllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	}
	if fc.CORS.AllowCredentials != nil {
		cfg.CORSAllowCredentials = *fc.CORS.AllowCredentials
	}
	if fc.CORS.MaxAgeSeconds != nil {
		cfg.CORSMaxAgeSeconds = *fc.CORS.MaxAgeSeconds
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
