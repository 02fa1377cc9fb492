package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Config es la configuración completa de valuebot.
type Config struct {
	Scanner ScannerConfig `yaml:"scanner"`
	Policy  domain.Policy `yaml:"policy"`
	Source  SourceConfig  `yaml:"source"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// ScannerConfig controla el loop periódico y el arbitraje.
type ScannerConfig struct {
	IntervalSeconds  int           `yaml:"interval_seconds"`
	Sports           []string      `yaml:"sports"`
	AnalysisWorkers  int           `yaml:"analysis_workers"` // 0 = NumCPU*2
	SportWorkers     int           `yaml:"sport_workers"`    // 0 = todos en paralelo
	TotalStake       float64       `yaml:"total_stake"`       // stake por defecto para arbitraje
	MinProfitMargin  float64       `yaml:"min_profit_margin"` // fracción: 0.01 = 1%
	ArbitrageHorizon time.Duration `yaml:"arbitrage_horizon"`
	Table            bool          `yaml:"table"` // salida de consola en tabla o compacta
}

// SourceConfig elige de dónde salen eventos, cuotas y predicciones.
type SourceConfig struct {
	Kind           string  `yaml:"kind"`     // snapshot | feed
	Snapshot       string  `yaml:"snapshot"` // ruta al YAML de snapshot
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"-"` // solo por entorno
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persisten alertas y apuestas.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	DSN         string `yaml:"dsn"`    // ruta al archivo SQLite, o ":memory:"
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig activa la caché de cuotas si Addr no está vacío.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"-"`
	DB              int    `yaml:"db"`
	QuoteTTLSeconds int    `yaml:"quote_ttl_seconds"`
}

// HTTPConfig controla la API.
type HTTPConfig struct {
	Addr                  string   `yaml:"addr"`
	CORSOrigins           []string `yaml:"cors_origins"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica el YAML, aplica entorno y defaults y valida.
// La política parte de domain.DefaultPolicy: el YAML solo sobreescribe lo que trae.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Policy: domain.DefaultPolicy()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// QuoteTTL devuelve el TTL de la caché de cuotas.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Redis.QuoteTTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("VALUEBOT_SQLITE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("VALUEBOT_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
		cfg.Storage.Driver = "postgres"
	}
	if v := os.Getenv("VALUEBOT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VALUEBOT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VALUEBOT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("VALUEBOT_FEED_URL"); v != "" {
		cfg.Source.BaseURL = v
		cfg.Source.Kind = "feed"
	}
	if v := os.Getenv("VALUEBOT_FEED_API_KEY"); v != "" {
		cfg.Source.APIKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 300
	}
	if len(cfg.Scanner.Sports) == 0 {
		cfg.Scanner.Sports = []string{"soccer_epl"}
	}
	if cfg.Scanner.TotalStake <= 0 {
		cfg.Scanner.TotalStake = 100
	}
	if cfg.Scanner.ArbitrageHorizon <= 0 {
		cfg.Scanner.ArbitrageHorizon = 48 * time.Hour
	}
	cfg.Policy = cfg.Policy.WithDefaults()

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "snapshot"
	}
	if cfg.Source.Snapshot == "" {
		cfg.Source.Snapshot = "config/snapshot.yaml"
	}
	if cfg.Source.RatePerSec <= 0 {
		cfg.Source.RatePerSec = 20
	}
	if cfg.Source.Burst <= 0 {
		cfg.Source.Burst = 10
	}
	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = 10
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "valuebot.db"
	}
	if cfg.Redis.QuoteTTLSeconds <= 0 {
		cfg.Redis.QuoteTTLSeconds = 30
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeoutSeconds <= 0 {
		cfg.HTTP.RequestTimeoutSeconds = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("config.Load: policy: %w", err)
	}
	switch c.Source.Kind {
	case "snapshot":
	case "feed":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("config.Load: source.base_url required for feed: %w", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("config.Load: source.kind %q: %w", c.Source.Kind, domain.ErrInvalidInput)
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config.Load: storage.postgres_dsn required: %w", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("config.Load: storage.driver %q: %w", c.Storage.Driver, domain.ErrInvalidInput)
	}
	if math.IsNaN(c.Scanner.TotalStake) || math.IsInf(c.Scanner.TotalStake, 0) {
		return fmt.Errorf("config.Load: scanner.total_stake %v: %w", c.Scanner.TotalStake, domain.ErrInvalidInput)
	}
	if !(c.Scanner.MinProfitMargin >= 0 && c.Scanner.MinProfitMargin < 1) {
		return fmt.Errorf("config.Load: scanner.min_profit_margin %v: %w", c.Scanner.MinProfitMargin, domain.ErrInvalidInput)
	}
	return nil
}
