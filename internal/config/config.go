package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBConfig struct {
		DBHost     string `env:"MARKETPLACE_DB_HOST"`
		DBPort     string `env:"MARKETPLACE_DB_PORT"`
		DBUser     string `env:"MARKETPLACE_DB_USER"`
		DBPassword string `env:"MARKETPLACE_DB_PASSWORD"`
		DBName     string `env:"MARKETPLACE_DB_NAME"`
		DBSSLMode  string `env:"MARKETPLACE_DB_SSLMODE"`
	}

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	KafkaURL            string `env:"KAFKA_BROKER_URL"`
	KafkaAnalyticsTopic string `env:"KAFKA_ANALYTICS_TOPIC"`

	WorkerConcurrency map[string]int `env:"WORKER_CONCURRENCY_<QUEUE>"`
	JobTimeout        time.Duration  `env:"JOB_TIMEOUT"`
	DequeueWait       time.Duration  `env:"DEQUEUE_WAIT"`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM"`

	PushServiceURL string `env:"PUSH_SERVICE_URL"`
	PushAuthToken  string `env:"PUSH_AUTH_TOKEN"`

	CarrierBaseURL        string `env:"CARRIER_BASE_URL"`
	CarrierName           string `env:"CARRIER_NAME"`
	TrackingNumberPrefix  string `env:"TRACKING_NUMBER_PREFIX"`
	PaymentGatewayBaseURL string `env:"PAYMENT_GATEWAY_BASE_URL"`
	PaymentGatewayAPIKey  string `env:"PAYMENT_GATEWAY_API_KEY"`

	CommissionRate float64 `env:"COMMISSION_RATE"`

	HTTPPort string `env:"HTTP_PORT"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.DBHost = getEnvOrDefault("MARKETPLACE_DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("MARKETPLACE_DB_PORT", "5432")
	cfg.DBConfig.DBUser = getEnvOrDefault("MARKETPLACE_DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("MARKETPLACE_DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("MARKETPLACE_DB_NAME", "marketplace_db")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("MARKETPLACE_DB_SSLMODE", "disable")

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaAnalyticsTopic = getEnvOrDefault("KAFKA_ANALYTICS_TOPIC", "marketplace_analytics")

	concurrency, err := loadWorkerConcurrency()
	if err != nil {
		return nil, err
	}
	cfg.WorkerConcurrency = concurrency

	jobTimeoutStr := getEnvOrDefault("JOB_TIMEOUT", "30s")
	jobTimeout, err := time.ParseDuration(jobTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	cfg.JobTimeout = jobTimeout

	dequeueWaitStr := getEnvOrDefault("DEQUEUE_WAIT", "5s")
	dequeueWait, err := time.ParseDuration(dequeueWaitStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DEQUEUE_WAIT: %w", err)
	}
	cfg.DequeueWait = dequeueWait

	cfg.MailgunDomain = getEnvOrDefault("MAILGUN_DOMAIN", "mg.example.com")
	cfg.MailgunAPIKey = getEnvOrDefault("MAILGUN_API_KEY", "")
	cfg.EmailFrom = getEnvOrDefault("EMAIL_FROM", "Marketplace <no-reply@mg.example.com>")

	cfg.PushServiceURL = getEnvOrDefault("PUSH_SERVICE_URL", "http://localhost:8090/push/send")
	cfg.PushAuthToken = getEnvOrDefault("PUSH_AUTH_TOKEN", "")

	cfg.CarrierBaseURL = getEnvOrDefault("CARRIER_BASE_URL", "http://localhost:8091")
	cfg.CarrierName = getEnvOrDefault("CARRIER_NAME", "aras")
	cfg.TrackingNumberPrefix = getEnvOrDefault("TRACKING_NUMBER_PREFIX", "AR")
	cfg.PaymentGatewayBaseURL = getEnvOrDefault("PAYMENT_GATEWAY_BASE_URL", "http://localhost:8092")
	cfg.PaymentGatewayAPIKey = getEnvOrDefault("PAYMENT_GATEWAY_API_KEY", "")

	commissionStr := getEnvOrDefault("COMMISSION_RATE", "0.10")
	commission, err := strconv.ParseFloat(commissionStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMISSION_RATE: %w", err)
	}
	if commission < 0 || commission >= 1 {
		return nil, fmt.Errorf("COMMISSION_RATE out of range: %v", commission)
	}
	cfg.CommissionRate = commission

	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", "8080")

	return cfg, nil
}

// defaultConcurrency reflects how contended each queue is under normal load.
var defaultConcurrency = map[string]int{
	"email":     4,
	"push":      4,
	"shipping":  2,
	"payment":   2,
	"search":    2,
	"analytics": 2,
	"image":     1,
}

func loadWorkerConcurrency() (map[string]int, error) {
	out := map[string]int{}
	for queueName, fallback := range defaultConcurrency {
		envKey := "WORKER_CONCURRENCY_" + strings.ToUpper(queueName)
		raw := getEnvOrDefault(envKey, strconv.Itoa(fallback))
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: %q", envKey, raw)
		}
		out[queueName] = n
	}
	return out, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}
