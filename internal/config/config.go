// config предоставляет структуру конфигурации шлюза предложений
// и функции загрузки из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	AnonymousShared     = "shared"
	AnonymousRemoteAddr = "remote_addr"

	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Storage   StorageConfig   `yaml:"storage"`
	CORS      CORSConfig      `yaml:"cors"`
	Limits    LimitsConfig    `yaml:"limits"`
	Warmup    WarmupConfig    `yaml:"warmup"`
	Log       LogConfig       `yaml:"log"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig — общий дедлайн HTTP-запроса; 0 — без дедлайна.
// Должен покрывать худшую выборку апстрима: основной адрес и резервный.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"25s"`
}

// HTTPConfig — публичный REST-сервер.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// GRPCConfig — gRPC health-эндпойнт для оркестратора. Пустой порт отключает его.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50090"`
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string { return net.JoinHostPort(g.Host, g.Port) }

// Enabled — слушать ли gRPC вообще.
func (g GRPCConfig) Enabled() bool { return g.Port != "" }

// UpstreamConfig — параметры фида предложений.
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url"          env:"UPSTREAM_BASE_URL"          env-default:"https://telecom.bemove.fr/api/v1/flux-offres"`
	Partner         string        `yaml:"partner"           env:"UPSTREAM_PARTNER"           env-default:"ARIASE"`
	UserAgent       string        `yaml:"user_agent"        env:"UPSTREAM_USER_AGENT"        env-default:"ComparePrix/1.0"`
	Timeout         time.Duration `yaml:"timeout"           env:"UPSTREAM_TIMEOUT"           env-default:"10s"`
	MobilePath      string        `yaml:"mobile_path"       env:"UPSTREAM_MOBILE_PATH"       env-default:"/mobile/all"`
	BoxPath         string        `yaml:"box_path"          env:"UPSTREAM_BOX_PATH"          env-default:"/box/compare/all"`
	BoxFallbackPath string        `yaml:"box_fallback_path" env:"UPSTREAM_BOX_FALLBACK_PATH" env-default:"/box/all"`
	// RPS ограничивает исходящие запросы к фиду; 0 — без ограничения.
	RPS   float64 `yaml:"rps"   env:"UPSTREAM_RPS"   env-default:"0"`
	Burst int     `yaml:"burst" env:"UPSTREAM_BURST" env-default:"1"`
}

// worstFetch — верхняя граница выборки: по таймауту на каждую попытку,
// с резервным адресом их две.
func (u UpstreamConfig) worstFetch() time.Duration {
	if u.BoxFallbackPath != "" {
		return 2 * u.Timeout
	}

	return u.Timeout
}

// CacheConfig — окно свежести закэшированной выдачи.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
}

// RateLimitConfig — скользящее окно на клиента.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"  env:"RATE_LIMIT_ENABLED"  env-default:"true"`
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"30"`
	Window   time.Duration `yaml:"window"   env:"RATE_LIMIT_WINDOW"   env-default:"60s"`
	// AnonymousPolicy — что делать без X-Forwarded-For/X-Real-IP:
	// "shared" — общий bucket "anonymous", "remote_addr" — адрес TCP-пира.
	AnonymousPolicy string        `yaml:"anonymous_policy" env:"RATE_LIMIT_ANONYMOUS_POLICY" env-default:"shared"`
	JanitorEvery    time.Duration `yaml:"janitor_every"    env:"RATE_LIMIT_JANITOR_EVERY"    env-default:"2m"`
}

// StorageConfig — бэкенд для кэша и лимитера.
type StorageConfig struct {
	Driver string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig — подключение к Redis (redis://:pass@host:6379/0).
type RedisConfig struct {
	URL    string `yaml:"url"    env:"REDIS_URL"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"offers:"`
	// Retention — TTL ключей кэша в Redis; 0 — хранить бессрочно (нужно для STALE).
	Retention time.Duration `yaml:"retention" env:"REDIS_RETENTION" env-default:"0s"`
}

// CORSConfig — разрешённые источники браузерных запросов.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// LimitsConfig — серверные лимиты пагинации.
type LimitsConfig struct {
	// Применяется, если limit не передан.
	Default int `yaml:"default" env:"DEFAULT_LIMIT" env-default:"12"`
	// Верхняя граница для limit.
	Max int `yaml:"max" env:"MAX_LIMIT" env-default:"100"`
}

// WarmupConfig — фоновое обновление кэша; 0 — выключено.
type WarmupConfig struct {
	Interval time.Duration `yaml:"interval" env:"WARMUP_INTERVAL" env-default:"0s"`
}

// LogConfig — необязательный файловый вывод логов с ротацией.
type LogConfig struct {
	File       string `yaml:"file"         env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  env-default:"100"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"  env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"7"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cfg.validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL")
	}

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}

	if c.Upstream.RPS < 0 {
		return fmt.Errorf("upstream.rps must be >= 0")
	}

	if c.Timeouts.Service < 0 {
		return fmt.Errorf("timeouts.service must be >= 0")
	}

	if c.Timeouts.Service > 0 && c.Timeouts.Service < c.Upstream.worstFetch() {
		return fmt.Errorf("timeouts.service must be >= %s (upstream.timeout per attempt)", c.Upstream.worstFetch())
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("ratelimit.requests must be > 0")
		}

		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit.window must be > 0")
		}
	}

	switch c.RateLimit.AnonymousPolicy {
	case AnonymousShared, AnonymousRemoteAddr:
	default:
		return fmt.Errorf("ratelimit.anonymous_policy must be %q or %q", AnonymousShared, AnonymousRemoteAddr)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("storage.redis.url is required for redis driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", DriverMemory, DriverRedis)
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}

	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}

	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.Warmup.Interval != 0 && c.Warmup.Interval < 30*time.Second {
		return fmt.Errorf("warmup.interval must be 0 or at least 30s")
	}

	return nil
}
