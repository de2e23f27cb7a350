// Package config defines the product-detector configuration and loads it
// from YAML, .env files and environment variables.
package config

import (
	"time"

	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

// Config is the root configuration passed explicitly to every component.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Logging       logger.Config       `yaml:"logging"`
	Fetcher       FetcherConfig       `yaml:"fetcher"`
	Detector      DetectorConfig      `yaml:"detector"`
	Vectorizer    VectorizerConfig    `yaml:"vectorizer"`
	Training      TrainingConfig      `yaml:"training"`
	Artifacts     ArtifactsConfig     `yaml:"artifacts"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Report        ReportConfig        `yaml:"report"`
}

type ServiceConfig struct {
	Name            string        `env:"SERVICE_NAME"     yaml:"name"`
	Version         string        `env:"SERVICE_VERSION"  yaml:"version"`
	Port            int           `env:"PORT"             yaml:"port"`
	Debug           bool          `env:"APP_DEBUG"        yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxBodyBytes caps API request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// FetcherConfig selects and tunes how pages are acquired.
type FetcherConfig struct {
	Mode              string        `env:"FETCHER_MODE"       yaml:"mode"` // http or browser
	UserAgent         string        `env:"FETCHER_USER_AGENT" yaml:"user_agent"`
	Timeout           time.Duration `env:"FETCHER_TIMEOUT"    yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	SettleDelay       time.Duration `env:"FETCHER_SETTLE_DELAY" yaml:"settle_delay"`
	BrowserURL        string        `env:"FETCHER_BROWSER_URL"  yaml:"browser_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// DetectorConfig controls how text is pulled out of pages and segments.
// An empty selector list means all visible descendant text.
type DetectorConfig struct {
	TextSelectors []string `env:"DETECTOR_TEXT_SELECTORS" yaml:"text_selectors"`
}

type VectorizerConfig struct {
	MaxFeatures int `env:"VECTORIZER_MAX_FEATURES" yaml:"max_features"`
}

type TrainingConfig struct {
	DataDir     string   `env:"TRAINING_DATA_DIR" yaml:"data_dir"`
	TestSize    float64  `yaml:"test_size"`
	Seed        int64    `yaml:"seed"`
	Concurrency int      `env:"TRAINING_CONCURRENCY" yaml:"concurrency"`
	QueueDepth  int      `yaml:"queue_depth"`
	Models      []string `env:"TRAINING_MODELS" yaml:"models"`
}

type ArtifactsConfig struct {
	Dir string `env:"ARTIFACTS_DIR" yaml:"dir"`
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER"   yaml:"driver"` // postgres or mysql
	Host     string `env:"DB_HOST"     yaml:"host"`
	Port     string `env:"DB_PORT"     yaml:"port"`
	User     string `env:"DB_USER"     yaml:"user"`
	Password string `env:"DB_PASSWORD" yaml:"password"` //nolint:gosec // connection config
	Name     string `env:"DB_NAME"     yaml:"name"`
	SSLMode  string `env:"DB_SSLMODE"  yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"` //nolint:gosec // connection config
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

type ElasticsearchConfig struct {
	Enabled bool   `env:"ES_ENABLED" yaml:"enabled"`
	URL     string `env:"ES_URL"     yaml:"url"`
	Index   string `env:"ES_INDEX"   yaml:"index"`
}

type ReportConfig struct {
	OutputDir string `env:"REPORT_DIR" yaml:"output_dir"`
}

const (
	DefaultPort         = 8075
	DefaultMaxFeatures  = 1000
	DefaultTestSize     = 0.2
	DefaultSeed         = 42
	DefaultConcurrency  = 8
	DefaultFetchTimeout = 30 * time.Second
	DefaultSettleDelay  = 5 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; NorthCloudProductDetector/1.0)"
)

// DefaultModels lists the classifier kinds trained when none are configured.
var DefaultModels = []string{"random_forest", "adaboost", "linear_svc", "gradient_boosting"}

// SetDefaults fills every unset field.
func SetDefaults(c *Config) {
	setServiceDefaults(&c.Service)
	c.Logging.SetDefaults()
	setFetcherDefaults(&c.Fetcher)

	if c.Vectorizer.MaxFeatures == 0 {
		c.Vectorizer.MaxFeatures = DefaultMaxFeatures
	}
	setTrainingDefaults(&c.Training)
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "./artifacts"
	}
	setDatabaseDefaults(&c.Database)
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = "http://localhost:9200"
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = "product_segments"
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "./reports"
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = "product-detector"
	}
	if s.Version == "" {
		s.Version = "1.0.0"
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 60 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = 10 << 20
	}
}

func setFetcherDefaults(f *FetcherConfig) {
	if f.Mode == "" {
		f.Mode = "http"
	}
	if f.UserAgent == "" {
		f.UserAgent = DefaultUserAgent
	}
	if f.Timeout == 0 {
		f.Timeout = DefaultFetchTimeout
	}
	if f.MaxAttempts == 0 {
		f.MaxAttempts = 3
	}
	if f.MaxBodyBytes == 0 {
		f.MaxBodyBytes = 10 << 20
	}
	if f.SettleDelay == 0 {
		f.SettleDelay = DefaultSettleDelay
	}
	if f.RequestsPerSecond == 0 {
		f.RequestsPerSecond = 1
	}
	if f.CacheTTL == 0 {
		f.CacheTTL = time.Hour
	}
}

func setTrainingDefaults(t *TrainingConfig) {
	if t.DataDir == "" {
		t.DataDir = "./data"
	}
	if t.TestSize == 0 {
		t.TestSize = DefaultTestSize
	}
	if t.Seed == 0 {
		t.Seed = DefaultSeed
	}
	if t.Concurrency == 0 {
		t.Concurrency = DefaultConcurrency
	}
	if t.QueueDepth == 0 {
		t.QueueDepth = t.Concurrency * 4
	}
	if len(t.Models) == 0 {
		t.Models = append([]string(nil), DefaultModels...)
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = "postgres"
	}
	if d.Host == "" {
		d.Host = "localhost"
	}
	if d.Port == "" {
		if d.Driver == "mysql" {
			d.Port = "3306"
		} else {
			d.Port = "5432"
		}
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
}

// LoadFile loads path (missing file allowed), applies defaults and validates.
func LoadFile(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path, true, SetDefaults)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
