package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	AppPort string
	LogMode string
	Log     logger.Options

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	ClaimCooldown   time.Duration
	ClaimMaxRetries int
	IdentityHeader  string
	TrustXFF        bool
	ThrottleRPS     float64
	ThrottleBurst   int

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisStatsPrefix string
	RedisStatsTTL    time.Duration

	AdminUsername string
	AdminPassword string
	JWTSecret     string
	JWTExpire     time.Duration

	KafkaBrokers           string
	KafkaClientID          string
	KafkaGroupID           string
	KafkaRetryGroupID      string
	KafkaInstanceID        string
	KafkaTopicPartitions   int
	KafkaRetryPartitions   int
	KafkaReplicationFactor int
	KafkaMaxRedeliveries   int
	KafkaRetryDelay        time.Duration
	EventDrivenEnabled     bool
}

var defaults = map[string]interface{}{
	"APP_PORT":     "8080",
	"LOG_MODE":     "release",
	"LOG_DIR":      "",
	"LOG_FILENAME": "coupon.log",
	"LOG_STDOUT":   true,

	"DB_DRIVER":   DriverPostgres,
	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "postgres",
	"DB_PASSWORD": "postgres",
	"DB_NAME":     "coupondb",
	"DB_SSLMODE":  "disable",
	"SQLITE_PATH": "coupons.db",

	"CLAIM_COOLDOWN":    "60s",
	"CLAIM_MAX_RETRIES": 5,
	"IDENTITY_HEADER":   "",
	"TRUST_XFF":         false,
	"THROTTLE_RPS":      5.0,
	"THROTTLE_BURST":    10,

	"REDIS_ENABLED":      false,
	"REDIS_ADDR":         "localhost:6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"REDIS_STATS_PREFIX": "coupon:stats",
	"REDIS_STATS_TTL":    "24h",

	"ADMIN_USERNAME": "admin",
	"ADMIN_PASSWORD": "",
	"JWT_SECRET":     "",
	"JWT_EXPIRE":     "1h",

	"KAFKA_BROKERS":            "kafka:9092",
	"KAFKA_CLIENT_ID":          "coupon-service",
	"KAFKA_GROUP_ID":           "coupon-consumers",
	"KAFKA_RETRY_GROUP_ID":     "coupon-retry",
	"KAFKA_INSTANCE_ID":        "",
	"KAFKA_TOPIC_PARTITIONS":   3,
	"KAFKA_RETRY_PARTITIONS":   1,
	"KAFKA_REPLICATION_FACTOR": 1,
	"KAFKA_MAX_REDELIVERIES":   3,
	"KAFKA_RETRY_DELAY":        "200ms",
	"EVENT_DRIVEN_ENABLED":     false,
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory and the environment, in increasing priority.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	instanceID := v.GetString("KAFKA_INSTANCE_ID")
	if instanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			instanceID = "unknown"
		} else {
			instanceID = hostname
		}
	}

	cfg := &Config{
		AppPort: v.GetString("APP_PORT"),
		LogMode: v.GetString("LOG_MODE"),
		Log: logger.Options{
			Dir:      v.GetString("LOG_DIR"),
			Filename: v.GetString("LOG_FILENAME"),
			Stdout:   v.GetBool("LOG_STDOUT"),
		},

		DBDriver:   strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		ClaimCooldown:   v.GetDuration("CLAIM_COOLDOWN"),
		ClaimMaxRetries: v.GetInt("CLAIM_MAX_RETRIES"),
		IdentityHeader:  strings.TrimSpace(v.GetString("IDENTITY_HEADER")),
		TrustXFF:        v.GetBool("TRUST_XFF"),
		ThrottleRPS:     v.GetFloat64("THROTTLE_RPS"),
		ThrottleBurst:   v.GetInt("THROTTLE_BURST"),

		RedisEnabled:     v.GetBool("REDIS_ENABLED"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		RedisStatsPrefix: v.GetString("REDIS_STATS_PREFIX"),
		RedisStatsTTL:    v.GetDuration("REDIS_STATS_TTL"),

		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		JWTExpire:     v.GetDuration("JWT_EXPIRE"),

		KafkaBrokers:           v.GetString("KAFKA_BROKERS"),
		KafkaClientID:          v.GetString("KAFKA_CLIENT_ID"),
		KafkaGroupID:           v.GetString("KAFKA_GROUP_ID"),
		KafkaRetryGroupID:      v.GetString("KAFKA_RETRY_GROUP_ID"),
		KafkaInstanceID:        instanceID,
		KafkaTopicPartitions:   positiveOr(v.GetInt("KAFKA_TOPIC_PARTITIONS"), 3),
		KafkaRetryPartitions:   positiveOr(v.GetInt("KAFKA_RETRY_PARTITIONS"), 1),
		KafkaReplicationFactor: positiveOr(v.GetInt("KAFKA_REPLICATION_FACTOR"), 1),
		KafkaMaxRedeliveries:   v.GetInt("KAFKA_MAX_REDELIVERIES"),
		KafkaRetryDelay:        v.GetDuration("KAFKA_RETRY_DELAY"),
		EventDrivenEnabled:     v.GetBool("EVENT_DRIVEN_ENABLED"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ClaimCooldown < 0 {
		return errors.New("CLAIM_COOLDOWN must be >= 0")
	}
	if c.ClaimMaxRetries <= 0 {
		return errors.New("CLAIM_MAX_RETRIES must be > 0")
	}
	if c.ThrottleRPS < 0 || c.ThrottleBurst < 0 {
		return errors.New("THROTTLE_RPS and THROTTLE_BURST must be >= 0")
	}
	return nil
}

// PostgresDSN builds the connection string the pgx pool is opened with.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func (c *Config) ReplicationFactor() int16 {
	return int16(c.KafkaReplicationFactor)
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
