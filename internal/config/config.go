package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Queue    *queueConfig
	Storage  *storageConfig
	Print    *printConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"backoffice"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"BACKOFFICE_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"BACKOFFICE_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"BACKOFFICE_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	Auth            string `envconfig:"BACKOFFICE_AUTH" default:""`
	MigrationFolder string `envconfig:"BACKOFFICE_MIGRATIONS_FOLDER" default:""`
	ScratchDir      string `envconfig:"BACKOFFICE_SCRATCH_DIR" default:""`
}

type queueConfig struct {
	Workers      int           `envconfig:"BACKOFFICE_QUEUE_WORKERS" default:"4"`
	MaxAttempts  int           `envconfig:"BACKOFFICE_QUEUE_MAX_ATTEMPTS" default:"2"`
	BaseDelay    time.Duration `envconfig:"BACKOFFICE_QUEUE_BASE_DELAY" default:"30s"`
	PollInterval time.Duration `envconfig:"BACKOFFICE_QUEUE_POLL_INTERVAL" default:"1s"`
}

type storageConfig struct {
	Endpoint  string `envconfig:"BACKOFFICE_STORAGE_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"BACKOFFICE_STORAGE_BUCKET" default:"backoffice-artifacts"`
	AccessKey string `envconfig:"BACKOFFICE_STORAGE_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"BACKOFFICE_STORAGE_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"BACKOFFICE_STORAGE_SSL" default:"false"`
}

type printConfig struct {
	Endpoint           string        `envconfig:"BACKOFFICE_PRINT_ENDPOINT" default:"http://localhost:631"`
	DefaultDestination string        `envconfig:"BACKOFFICE_PRINT_DEFAULT_DESTINATION" default:""`
	Timeout            time.Duration `envconfig:"BACKOFFICE_PRINT_TIMEOUT" default:"30s"`
}

func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns the configuration with every value at its default,
// ignoring the environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service:  &svcConfig{Address: ":3443", LogLevel: "info"},
		Queue:    &queueConfig{Workers: 1, MaxAttempts: 2, BaseDelay: 30 * time.Second, PollInterval: time.Second},
		Storage:  &storageConfig{Bucket: "backoffice-artifacts"},
		Print:    &printConfig{Endpoint: "http://localhost:631", Timeout: 30 * time.Second},
	}
}
