// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，来源于 YAML 文件，再由环境变量覆盖。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Infra    InfraConfig    `yaml:"infra"`
	Services ServicesConfig `yaml:"services"`
	Breakers BreakersConfig `yaml:"breakers"`
	Storage  StorageConfig  `yaml:"storage"`
}

type AppConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	// PaymentLimit 只被 payment-service 使用：超过该金额的支付会被拒绝。
	PaymentLimit float64 `yaml:"paymentLimit"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	// Topics 把事件类型映射到 topic，未配置的事件类型使用 DefaultTopic。
	Topics       map[string]string `yaml:"topics"`
	DefaultTopic string            `yaml:"defaultTopic"`
}

type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

type ServicesConfig struct {
	Inventory DownstreamConfig `yaml:"inventory"`
	Payment   DownstreamConfig `yaml:"payment"`
}

// DownstreamConfig 描述一个下游依赖：优先使用 nacos 中的 Name 做服务发现，否则使用 BaseURL。
type DownstreamConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseURL"`
}

type BreakersConfig struct {
	Inventory BreakerConfig `yaml:"inventory"`
	Payment   BreakerConfig `yaml:"payment"`
}

type BreakerConfig struct {
	Timeout                  time.Duration `yaml:"timeout"`
	ErrorThresholdPercentage float64       `yaml:"errorThresholdPercentage"`
	MinRequests              uint32        `yaml:"minRequests"`
	Window                   time.Duration `yaml:"window"`
	ResetTimeout             time.Duration `yaml:"resetTimeout"`
}

type StorageConfig struct {
	// Driver 取值 mysql 或 memory。
	Driver string `yaml:"driver"`
}

// DefaultConfig 返回编译期默认值，与线上默认部署保持一致。
func DefaultConfig() Config {
	breaker := BreakerConfig{
		Timeout:                  5 * time.Second,
		ErrorThresholdPercentage: 50,
		MinRequests:              5,
		Window:                   60 * time.Second,
		ResetTimeout:             30 * time.Second,
	}
	return Config{
		App: AppConfig{Port: 3004, LogLevel: "info", PaymentLimit: 10000},
		Infra: InfraConfig{
			MySQL: MySQLConfig{MaxOpenConns: 10, MaxIdleConns: 2},
			Redis: RedisConfig{Addr: "localhost:6379"},
			Kafka: KafkaConfig{DefaultTopic: "cloudretail-events"},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
		},
		Services: ServicesConfig{
			Inventory: DownstreamConfig{Name: "inventory-service", BaseURL: "http://inventory-service:3003"},
			Payment:   DownstreamConfig{Name: "payment-service", BaseURL: "http://payment-service:3005"},
		},
		Breakers: BreakersConfig{Inventory: breaker, Payment: breaker},
		Storage:  StorageConfig{Driver: "memory"},
	}
}

// LoadConfig 读取 YAML 配置文件（path 为空或文件不存在时只使用默认值），然后应用环境变量覆盖。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.App.Port = port
	}
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Services.Inventory.BaseURL = getEnv("INVENTORY_SERVICE_URL", cfg.Services.Inventory.BaseURL)
	cfg.Services.Payment.BaseURL = getEnv("PAYMENT_SERVICE_URL", cfg.Services.Payment.BaseURL)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)

	if v, ok := os.LookupEnv("BREAKER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BREAKER_TIMEOUT %q: %w", v, err)
		}
		cfg.Breakers.Inventory.Timeout = d
		cfg.Breakers.Payment.Timeout = d
	}
	return nil
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
