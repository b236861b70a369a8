package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names an optional YAML file layered between defaults and env.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	App       AppConfig       `koanf:"app"`
	HTTP      HTTPConfig      `koanf:"http"`
	Graph     GraphConfig     `koanf:"graph"`
	Neo4j     Neo4jConfig     `koanf:"neo4j"`
	MySQL     MySQLConfig     `koanf:"mysql"`
	Redis     RedisConfig     `koanf:"redis"`
	Recommend RecommendConfig `koanf:"recommend"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Batch     BatchConfig     `koanf:"batch"`
}

type AppConfig struct {
	Env      string `koanf:"env" validate:"required"`
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	MetricsAddr       string        `koanf:"metrics_addr"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

type GraphConfig struct {
	Backend string `koanf:"backend" validate:"required,oneof=memory neo4j mysql"`
	Fixture string `koanf:"fixture"`
}

type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

type MySQLConfig struct {
	DSN string `koanf:"dsn"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type RecommendConfig struct {
	MaxDistance   float64 `koanf:"max_distance" validate:"gt=0"`
	DistanceScale float64 `koanf:"distance_scale" validate:"gt=0"`
	DefaultLimit  int     `koanf:"default_limit" validate:"gt=0"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"gt=0"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"gt=0"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

type BatchConfig struct {
	Workers int     `koanf:"workers" validate:"gt=0"`
	RPS     float64 `koanf:"rps" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{Env: "prod", LogLevel: "info"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			Timeout:           15 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Graph: GraphConfig{Backend: "neo4j"},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Redis: RedisConfig{Addr: "localhost:6379", CacheTTL: 15 * time.Minute},
		Recommend: RecommendConfig{
			MaxDistance:   100000,
			DistanceScale: 200,
			DefaultLimit:  10,
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
		Batch: BatchConfig{Workers: 8, RPS: 20},
	}
}

// envMappings maps environment variables onto koanf paths. Unlisted
// variables are ignored.
var envMappings = map[string]string{
	"APP_ENV":                  "app.env",
	"LOG_LEVEL":                "app.log_level",
	"HTTP_ADDR":                "http.addr",
	"HTTP_TIMEOUT":             "http.timeout",
	"METRICS_ADDR":             "http.metrics_addr",
	"RATE_LIMIT_REQUESTS":      "http.rate_limit_requests",
	"RATE_LIMIT_WINDOW":        "http.rate_limit_window",
	"CORS_ORIGINS":             "http.cors_origins",
	"GRAPH_BACKEND":            "graph.backend",
	"GRAPH_FIXTURE":            "graph.fixture",
	"NEO4J_URI":                "neo4j.uri",
	"NEO4J_USERNAME":           "neo4j.username",
	"NEO4J_PASSWORD":           "neo4j.password",
	"NEO4J_DATABASE":           "neo4j.database",
	"MYSQL_DSN":                "mysql.dsn",
	"REDIS_ADDR":               "redis.addr",
	"REDIS_PASSWORD":           "redis.password",
	"REDIS_DB":                 "redis.db",
	"CACHE_TTL":                "redis.cache_ttl",
	"RECOMMEND_MAX_DISTANCE":   "recommend.max_distance",
	"RECOMMEND_DISTANCE_SCALE": "recommend.distance_scale",
	"RECOMMEND_DEFAULT_LIMIT":  "recommend.default_limit",
	"BREAKER_MAX_REQUESTS":     "breaker.max_requests",
	"BREAKER_INTERVAL":         "breaker.interval",
	"BREAKER_TIMEOUT":          "breaker.timeout",
	"BREAKER_MIN_REQUESTS":     "breaker.min_requests",
	"BREAKER_FAILURE_RATIO":    "breaker.failure_ratio",
	"BATCH_WORKERS":            "batch.workers",
	"BATCH_RPS":                "batch.rps",
}

func envKey(k string) string { return envMappings[k] }

// Load layers defaults, the optional CONFIG_PATH file and the environment,
// then validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	if err := splitList(k, "http.cors_origins"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// splitList turns a comma-separated env value into a slice.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return k.Set(path, out)
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Graph.Backend {
	case "neo4j":
		if c.Neo4j.URI == "" {
			return errors.New("NEO4J_URI is required for the neo4j backend")
		}
	case "mysql":
		if c.MySQL.DSN == "" {
			return errors.New("MYSQL_DSN is required for the mysql backend")
		}
	}
	return nil
}
