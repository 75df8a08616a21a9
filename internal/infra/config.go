package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации агрегатора.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает локальный HTTP-сервер со снапшотами.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"` // Отдельный листенер для Prometheus
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// UpstreamConfig — адреса бэкенда платформы, который мы агрегируем.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"` // REST: /api/agents, /api/metrics/realtime ...
	WSURL   string `mapstructure:"ws_url"`   // Push: /ws/dashboard

	// Бэкенд исторически не декларирует таймауты — задаем свои
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// ChannelConfig — политика переподключения live-канала.
type ChannelConfig struct {
	ReconnectBase time.Duration `mapstructure:"reconnect_base"` // Стартовая задержка
	ReconnectMax  time.Duration `mapstructure:"reconnect_max"`  // Потолок экспоненты
}

// PollerConfig — кадансы опроса REST-ресурсов. У каждого ресурса свой.
type PollerConfig struct {
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	AgentsInterval    time.Duration `mapstructure:"agents_interval"`
	AlertsInterval    time.Duration `mapstructure:"alerts_interval"`
	WorkflowsInterval time.Duration `mapstructure:"workflows_interval"`
}

// RedisConfig описывает подключение к Redis (фан-аут уведомлений).
// Пустой Addr полностью выключает интеграцию.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig описывает PostgreSQL для журнала событий.
// Пустой URL выключает персистентность.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// AuthConfig — публичный RSA-ключ для проверки входящих токенов.
// Без ключа API работает в открытом режиме (same-origin сценарий).
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: UPSTREAM_BASE_URL=... перекроет upstream.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ: либо PEM прямо в ENV (Docker/K8s), либо файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.ws_url", "ws://localhost:8000/ws/dashboard")
	v.SetDefault("upstream.fetch_timeout", 5*time.Second)
	v.SetDefault("upstream.dial_timeout", 5*time.Second)

	v.SetDefault("channel.reconnect_base", 1*time.Second)
	v.SetDefault("channel.reconnect_max", 30*time.Second)

	// Кадансы наблюдались на проде: метрики чаще всех, воркфлоу — реже
	v.SetDefault("poller.metrics_interval", 5*time.Second)
	v.SetDefault("poller.agents_interval", 10*time.Second)
	v.SetDefault("poller.alerts_interval", 15*time.Second)
	v.SetDefault("poller.workflows_interval", 30*time.Second)

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource — универсальный хелпер: ENV приоритетнее файла
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
