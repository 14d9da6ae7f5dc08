package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order-service.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 4000
infra:
  kafka:
    brokers: [kafka-1:9092]
    topics:
      order.failed: dead-orders
breakers:
  payment:
    timeout: 2s
    errorThresholdPercentage: 25
    minRequests: 3
    window: 10s
    resetTimeout: 15s
storage:
  driver: mysql
`), 0o600))

	t.Setenv("PORT", "5000")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("BREAKER_TIMEOUT", "750ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.App.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "dead-orders", cfg.Infra.Kafka.Topics["order.failed"])
	assert.Equal(t, "cloudretail-events", cfg.Infra.Kafka.DefaultTopic)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, BreakerConfig{
		Timeout:                  750 * time.Millisecond,
		ErrorThresholdPercentage: 25,
		MinRequests:              3,
		Window:                   10 * time.Second,
		ResetTimeout:             15 * time.Second,
	}, cfg.Breakers.Payment)
	// 未在文件中出现的熔断器保持默认值，只被环境变量覆盖超时
	assert.Equal(t, 50.0, cfg.Breakers.Inventory.ErrorThresholdPercentage)
	assert.Equal(t, 750*time.Millisecond, cfg.Breakers.Inventory.Timeout)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("app: [unclosed"), 0o600))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("PORT", "not-a-number")
	_, err = LoadConfig("")
	assert.Error(t, err)
}
