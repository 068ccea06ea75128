package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Backup   *backupConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"stack"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"STACK_MIGRATION_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"STACK_MIGRATION_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"STACK_MIGRATION_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"STACK_MIGRATION_MIGRATIONS_FOLDER" default:""`
}

type backupConfig struct {
	Stack              string        `envconfig:"STACK_MIGRATION_STACK" default:"dev"`
	Instance           string        `envconfig:"STACK_MIGRATION_INSTANCE" default:"0"`
	BlobType           string        `envconfig:"STACK_MIGRATION_BLOB_TYPE" default:"minio"`
	Directory          string        `envconfig:"STACK_MIGRATION_BLOB_DIRECTORY" default:"/tmp/stack-migration"`
	Format             string        `envconfig:"STACK_MIGRATION_SEGMENT_FORMAT" default:"yaml"`
	BatchMax           int64         `envconfig:"STACK_MIGRATION_BATCH_MAX" default:"10000"`
	EventTopic         string        `envconfig:"STACK_MIGRATION_EVENT_TOPIC" default:"stack.migration.changes"`
	EventFlushInterval time.Duration `envconfig:"STACK_MIGRATION_EVENT_FLUSH_INTERVAL" default:"1s"`
	EventBufferSize    int           `envconfig:"STACK_MIGRATION_EVENT_BUFFER_SIZE" default:"1000"`
	S3                 s3Config
}

type s3Config struct {
	Endpoint  string `envconfig:"STACK_MIGRATION_S3_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"STACK_MIGRATION_S3_BUCKET" default:"stack-migration"`
	AccessKey string `envconfig:"STACK_MIGRATION_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"STACK_MIGRATION_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"STACK_MIGRATION_S3_USE_SSL" default:"false"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := NewDefault()
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// NewDefault returns a fresh configuration read from the environment, bypassing the shared instance.
func NewDefault() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
