package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("KE_URL", "")
	t.Setenv("KB_ID", "")
	t.Setenv("KB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "http://localhost:8280/rest", cfg.Connector.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Connector.RequestTimeoutDuration())
	assert.Equal(t, "http://example.org/kb1", cfg.KnowledgeBase.ID)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.Equal(t, 29*time.Second, cfg.FakeConnector.PollTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Setenv("KE_URL", "")
	t.Setenv("KB_ID", "")
	t.Setenv("KB_NAME", "")

	path := filepath.Join(t.TempDir(), "tke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connector:
  endpoint: http://runtime-1:8280/rest
  http2: true
knowledge_base:
  id: http://example.org/kb2
  name: KB2
  lease: 10
retry:
  delay: 500ms
`), 0o600))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://runtime-1:8280/rest", cfg.Connector.Endpoint)
	assert.True(t, cfg.Connector.HTTP2)
	assert.Equal(t, "KB2", cfg.KnowledgeBase.Name)
	assert.Equal(t, 10, cfg.KnowledgeBase.Lease)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
}

func TestEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("KE_URL", "http://ke:8280/rest")
	t.Setenv("KB_ID", "http://example.org/sensor")
	t.Setenv("KB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://ke:8280/rest", cfg.Connector.Endpoint)
	assert.Equal(t, "http://example.org/sensor", cfg.KnowledgeBase.ID)
	assert.Equal(t, "sensor", cfg.KnowledgeBase.Name)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Connector: ConnectorConfig{Endpoint: "http://localhost:8280/rest"},
		Retry:     RetryConfig{Delay: time.Second},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Connector.Endpoint = "" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Connector.RequestTimeout = -1 }, wantErr: true},
		{name: "negative lease", mutate: func(c *Config) { c.KnowledgeBase.Lease = -5 }, wantErr: true},
		{name: "zero retry delay", mutate: func(c *Config) { c.Retry.Delay = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
