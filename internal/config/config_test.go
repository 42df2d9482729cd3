package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VERIFY_TOKEN", "WHATSAPP_TOKEN", "PHONE_NUMBER_ID", "GRAPH_API_URL",
		"GRAPH_API_TIMEOUT", "PORT", "HISTORY_CAPACITY", "RABBITMQ_URL",
		"RABBITMQ_QUEUE", "LOG_LEVEL", "LOG_PRETTY",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultAPIBaseURL, cfg.WhatsApp.APIBaseURL)
	assert.Equal(t, DefaultTimeout, cfg.WhatsApp.Timeout)
	assert.Equal(t, DefaultCapacity, cfg.History.Capacity)
	assert.Equal(t, DefaultQueue, cfg.RabbitMQ.Queue)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.ElementsMatch(t, []string{"VERIFY_TOKEN", "WHATSAPP_TOKEN", "PHONE_NUMBER_ID"}, cfg.Missing())
	assert.False(t, cfg.OutboundEnabled())
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  port: 8081
whatsapp:
  verify_token: verify-me
  access_token: EAAG-token
  phone_number_id: "10987654321"
  timeout: 3s
history:
  capacity: 50
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "verify-me", cfg.WhatsApp.VerifyToken)
	assert.Equal(t, "10987654321", cfg.WhatsApp.PhoneNumberID)
	assert.Equal(t, 3*time.Second, cfg.WhatsApp.Timeout)
	assert.Equal(t, 50, cfg.History.Capacity)
	assert.Empty(t, cfg.Missing())
	assert.True(t, cfg.OutboundEnabled())
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "whatsapp:\n  verify_token: from-file\n")
	t.Setenv("VERIFY_TOKEN", "from-env")
	t.Setenv("WHATSAPP_TOKEN", "tok")
	t.Setenv("PORT", "9000")
	t.Setenv("GRAPH_API_TIMEOUT", "750ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.WhatsApp.VerifyToken)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.WhatsApp.Timeout)
	assert.Equal(t, []string{"PHONE_NUMBER_ID"}, cfg.Missing())
	assert.False(t, cfg.OutboundEnabled())
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server: [\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
}
