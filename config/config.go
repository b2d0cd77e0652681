package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"sage-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"sage"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingOTLPInsecure bool   `env:"TRACING_OTLP_INSECURE" env-default:"true"`

	// Kafka Producer (generation events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"compliance-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Generation
	GenerationWindowDays     int  `env:"GENERATION_WINDOW_DAYS" env-default:"45"`
	GenerationLookbackDays   int  `env:"GENERATION_LOOKBACK_DAYS" env-default:"370"`
	SchedulerEnabled         bool `env:"SCHEDULER_ENABLED" env-default:"true"`
	SchedulerPollSeconds     int  `env:"SCHEDULER_POLL_SECONDS" env-default:"300"`
	SchedulerMinRunAgeHours  int  `env:"SCHEDULER_MIN_RUN_AGE_HOURS" env-default:"24"`
	SchedulerTenantBatchSize int  `env:"SCHEDULER_TENANT_BATCH_SIZE" env-default:"50"`
}

// Load reads the configuration from the process environment, falling back
// to the env-default tag values above. The struct tags stay authoritative;
// this reader is deliberately dumb so defaults live in one place.
func Load() (*Config, error) {
	cfg := &Config{
		AppName:                       getString("APP_NAME", "sage-api"),
		Port:                          getInt("PORT", 3004),
		LogLevel:                      getString("LOG_LEVEL", "info"),
		PrettyLogs:                    getBool("PRETTY_LOGS", false),
		HttpServerWriteTimeoutSeconds: getInt("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 30),
		HttpServerReadTimeoutSeconds:  getInt("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10),
		HttpServerIdleTimeoutSeconds:  getInt("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10),
		AllowOrigins:                  getStrings("HTTP_SERVER_ALLOW_ORIGINS", []string{"*"}),
		StartupMaxAttempts:            getInt("STARTUP_MAX_ATTEMPTS", 5),

		DatabaseDriver:                getString("DB_DRIVER", "postgres"),
		DatabaseHost:                  getString("DB_HOST", ""),
		DatabasePort:                  getString("DB_PORT", "5432"),
		DatabaseUserName:              getString("DB_USER_NAME", ""),
		DatabasePassword:              getString("DB_PASSWORD", ""),
		DatabaseName:                  getString("DB_NAME", "sage"),
		DatabaseSSLMode:               getString("DB_SQL_MODE", "disable"),
		DatabaseMaxOpenConns:          getInt("DB_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:          getInt("DB_MAX_IDLE_CONNS", 10),
		DatabaseConnMaxLifetime:       getDuration("DB_CONN_MAX_LIFETIME", 10*time.Second),
		DatabaseMigrationFolderPath:   getString("DB_MIGRATION_FOLDER_PATH", "db/pg"),
		DatabaseMigrationVersion:      getInt("DB_MIGRATION_VERSION", 0),
		DatabaseMigrationForce:        getInt("DB_MIGRATION_FORCE", 0),
		DatabaseMigrationAutoRollback: getBool("DB_MIGRATION_AUTO_ROLLBACK", true),

		TracingEnabled:      getBool("TRACING_ENABLED", false),
		TracingOTLPEndpoint: getString("TRACING_OTLP_ENDPOINT", "localhost:4317"),
		TracingOTLPProtocol: getString("TRACING_OTLP_PROTOCOL", "grpc"),
		TracingOTLPInsecure: getBool("TRACING_OTLP_INSECURE", true),

		KafkaEnabled:      getBool("KAFKA_ENABLED", false),
		KafkaBrokers:      getStrings("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaOutputTopic:  getString("KAFKA_OUTPUT_TOPIC", "compliance-events"),
		KafkaBatchSize:    getInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout: getInt("KAFKA_BATCH_TIMEOUT_MS", 100),
		KafkaRequiredAcks: getInt("KAFKA_REQUIRED_ACKS", 1),
		KafkaCompression:  getString("KAFKA_COMPRESSION", "snappy"),

		GenerationWindowDays:     getInt("GENERATION_WINDOW_DAYS", 45),
		GenerationLookbackDays:   getInt("GENERATION_LOOKBACK_DAYS", 370),
		SchedulerEnabled:         getBool("SCHEDULER_ENABLED", true),
		SchedulerPollSeconds:     getInt("SCHEDULER_POLL_SECONDS", 300),
		SchedulerMinRunAgeHours:  getInt("SCHEDULER_MIN_RUN_AGE_HOURS", 24),
		SchedulerTenantBatchSize: getInt("SCHEDULER_TENANT_BATCH_SIZE", 50),
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getStrings(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
