package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	ctopics "github.com/radieske/pvp-results-ingest/pkg/contracts/topics"
)

// ErrMissingRequired indica que variáveis obrigatórias não foram informadas
var ErrMissingRequired = errors.New("missing required environment variables")

// Config centraliza variáveis de ambiente e parâmetros de execução do serviço.
// É construída uma única vez no main e repassada aos construtores.
type Config struct {
	Env         string `mapstructure:"ENVIRONMENT"` // "local", "development", "production"
	ServiceName string `mapstructure:"SERVICE_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Banco relacional
	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        int    `mapstructure:"DB_PORT"`
	DBUser        string `mapstructure:"DB_USER"`
	DBPassword    string `mapstructure:"DB_PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	DBSSLMode     string `mapstructure:"DB_SSL_MODE"`
	DBMinConns    int    `mapstructure:"DB_MIN_CONNS"`
	DBMaxConns    int    `mapstructure:"DB_MAX_CONNS"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	// Feed de jogos
	FeedURL            string        `mapstructure:"FEED_URL"`
	FeedSite           string        `mapstructure:"FEED_SITE"`
	FeedProfileBaseURL string        `mapstructure:"FEED_PROFILE_BASE_URL"`
	FeedReadTimeout    time.Duration `mapstructure:"FEED_READ_TIMEOUT"`

	// Fila e worker de persistência
	QueueCapacity    int           `mapstructure:"QUEUE_CAPACITY"`
	WriterMaxRetries int           `mapstructure:"WRITER_MAX_RETRIES"`
	WriterRetryDelay time.Duration `mapstructure:"WRITER_RETRY_DELAY"`
	BackupFilePath   string        `mapstructure:"BACKUP_FILE_PATH"`

	// Integrações opcionais (vazias = desabilitadas)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisChannel  string `mapstructure:"REDIS_CHANNEL"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"` // "a:9092,b:9092"
	TopicDLQ      string `mapstructure:"KAFKA_TOPIC_DLQ"`
	MetricsPort   string `mapstructure:"METRICS_PORT"`
	SimulatorPort string `mapstructure:"SIMULATOR_PORT"`
}

var keys = []string{
	"ENVIRONMENT", "SERVICE_NAME", "LOG_LEVEL",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"DB_MIN_CONNS", "DB_MAX_CONNS", "DB_AUTO_MIGRATE",
	"FEED_URL", "FEED_SITE", "FEED_PROFILE_BASE_URL", "FEED_READ_TIMEOUT",
	"QUEUE_CAPACITY", "WRITER_MAX_RETRIES", "WRITER_RETRY_DELAY", "BACKUP_FILE_PATH",
	"REDIS_ADDR", "REDIS_CHANNEL", "KAFKA_BROKERS", "KAFKA_TOPIC_DLQ",
	"METRICS_PORT", "SIMULATOR_PORT",
}

// Load carrega defaults, um arquivo dotenv opcional e as variáveis de ambiente.
// Um path vazio tenta ".env" no diretório atual e ignora se não existir.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("SERVICE_NAME", "game-ingest-service")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSL_MODE", "require")
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("FEED_URL", "wss://router.hypedrop.com/ws")
	v.SetDefault("FEED_SITE", "hypedrop")
	v.SetDefault("FEED_PROFILE_BASE_URL", "https://www.hypedrop.com/user/")
	v.SetDefault("FEED_READ_TIMEOUT", 90*time.Second)
	v.SetDefault("QUEUE_CAPACITY", 1000)
	v.SetDefault("WRITER_MAX_RETRIES", 2)
	v.SetDefault("WRITER_RETRY_DELAY", 2*time.Second)
	v.SetDefault("BACKUP_FILE_PATH", "data/failed_writes.jsonl")
	v.SetDefault("REDIS_CHANNEL", ctopics.GameResultsBroadcast)
	v.SetDefault("KAFKA_TOPIC_DLQ", ctopics.GameResultsDLQ)
	v.SetDefault("METRICS_PORT", "9096")
	v.SetDefault("SIMULATOR_PORT", "8081")

	optional := path == ""
	if optional {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil || !optional {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Variáveis de ambiente têm precedência sobre o arquivo
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBSSLMode = strings.TrimSpace(cfg.DBSSLMode)
	return &cfg, nil
}

// Validate garante que todos os parâmetros obrigatórios do banco estão presentes
func (c *Config) Validate() error {
	var missing []string
	if c.DBHost == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.DBUser == "" {
		missing = append(missing, "DB_USER")
	}
	if c.DBPassword == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if c.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	if _, err := NormalizeSSLMode(c.DBSSLMode); err != nil {
		return err
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool bounds: min=%d max=%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.WriterMaxRetries < 1 {
		return fmt.Errorf("WRITER_MAX_RETRIES must be >= 1, got %d", c.WriterMaxRetries)
	}
	return c.ValidateFeed()
}

// ValidateFeed valida apenas o necessário para consumir o feed (modo console)
func (c *Config) ValidateFeed() error {
	if c.FeedURL == "" {
		return fmt.Errorf("%w: FEED_URL", ErrMissingRequired)
	}
	if c.FeedSite == "" {
		return fmt.Errorf("%w: FEED_SITE", ErrMissingRequired)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be >= 1, got %d", c.QueueCapacity)
	}
	return nil
}

// NormalizeSSLMode converte o modo SSL para o formato aceito pelo lib/pq.
// Aceita também os valores do estilo MySQL ("REQUIRED", "DISABLED").
func NormalizeSSLMode(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "require", "required":
		return "require", nil
	case "disable", "disabled":
		return "disable", nil
	case "prefer", "preferred":
		// lib/pq não implementa prefer; require é o mais próximo sem verificação de CA
		return "require", nil
	case "verify-ca", "verify_ca":
		return "verify-ca", nil
	case "verify-full", "verify_identity", "verify-identity":
		return "verify-full", nil
	default:
		return "", fmt.Errorf("unsupported DB_SSL_MODE %q", mode)
	}
}
