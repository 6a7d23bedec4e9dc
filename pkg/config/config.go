package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the coordinator process's full configuration tree.
type Config struct {
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Search    SearchConfig    `mapstructure:"search"`
}

// ClusterConfig holds the cluster name, coordination-store endpoint,
// session/connection timeouts and the debounce interval applied to
// change-notification ticks before a rebalance is scheduled.
type ClusterConfig struct {
	Name                string        `mapstructure:"name"`
	CoordinationEndpoint string       `mapstructure:"coordination_endpoint"`
	SessionTimeout      time.Duration `mapstructure:"session_timeout"`
	ConnectionTimeout   time.Duration `mapstructure:"connection_timeout"`
	DebounceInterval    time.Duration `mapstructure:"debounce_interval"`
	MaxTasks            int           `mapstructure:"max_tasks"`
	ImbalanceThreshold  int           `mapstructure:"imbalance_threshold"`
	MaxPartitionsPerTask int          `mapstructure:"max_partitions_per_task"`
	RebalanceSoftDeadline time.Duration `mapstructure:"rebalance_soft_deadline"`
	RebalanceSweepCron    string        `mapstructure:"rebalance_sweep_cron"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	RateLimitRPS    int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int    `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Topic         string   `mapstructure:"topic"`
}

// AuthConfig gates the operator-facing mutating endpoints: trigger a
// rebalance, submit a move.
type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

type JWTConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
	Algorithm   string `mapstructure:"algorithm"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	JaegerURL    string  `mapstructure:"jaeger_url"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// ArchiveConfig points the S3 assignment archiver at a bucket. An empty
// Bucket disables the archiver entirely.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// SearchConfig points the Elasticsearch cycle indexer at a cluster. An
// empty Addresses list disables the indexer entirely.
type SearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

func Load(serviceName string) (*Config, error) {
	viper.SetConfigName(serviceName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/taskassign")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("TASKASSIGN")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&config)

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("cluster.name", "default")
	viper.SetDefault("cluster.coordination_endpoint", "localhost:2379")
	viper.SetDefault("cluster.session_timeout", 30*time.Second)
	viper.SetDefault("cluster.connection_timeout", 10*time.Second)
	viper.SetDefault("cluster.debounce_interval", 500*time.Millisecond)
	viper.SetDefault("cluster.max_tasks", 4)
	viper.SetDefault("cluster.imbalance_threshold", 1)
	viper.SetDefault("cluster.max_partitions_per_task", 0)
	viper.SetDefault("cluster.rebalance_soft_deadline", 60*time.Second)
	viper.SetDefault("cluster.rebalance_sweep_cron", "@every 5m")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 30)
	viper.SetDefault("server.rate_limit_rps", 5)
	viper.SetDefault("server.rate_limit_burst", 10)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "taskassign")
	viper.SetDefault("database.password", "taskassign")
	viper.SetDefault("database.name", "taskassign")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.consumer_group", "taskassign-coordinator")

	viper.SetDefault("auth.jwt.expiry_hours", 1)
	viper.SetDefault("auth.jwt.issuer", "taskassign-coordinator")
	viper.SetDefault("auth.jwt.algorithm", "HS256")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.jaeger_url", "http://localhost:14268/api/traces")
	viper.SetDefault("telemetry.service_name", "taskassign-coordinator")
	viper.SetDefault("telemetry.sampling_rate", 1.0)

	viper.SetDefault("archive.prefix", "assignments")
	viper.SetDefault("archive.region", "us-east-1")

	viper.SetDefault("search.index", "rebalance-cycles")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.add_caller", true)
	viper.SetDefault("logger.stacktrace", false)
}

func overrideFromEnv(cfg *Config) {
	if name := viper.GetString("CLUSTER_NAME"); name != "" {
		cfg.Cluster.Name = name
	}
	if endpoint := viper.GetString("CLUSTER_COORDINATION_ENDPOINT"); endpoint != "" {
		cfg.Cluster.CoordinationEndpoint = endpoint
	}
	if host := viper.GetString("DATABASE_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := viper.GetInt("DATABASE_PORT"); port != 0 {
		cfg.Database.Port = port
	}
	if user := viper.GetString("DATABASE_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := viper.GetString("DATABASE_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := viper.GetString("DATABASE_NAME"); name != "" {
		cfg.Database.Name = name
	}
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		cfg.Redis.Host = redisHost
	}
	if redisPort := viper.GetInt("REDIS_PORT"); redisPort != 0 {
		cfg.Redis.Port = redisPort
	}
	if brokers := viper.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if servicePort := viper.GetInt("SERVER_PORT"); servicePort != 0 {
		cfg.Server.Port = servicePort
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
