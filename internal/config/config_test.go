package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memory")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8*time.Hour, cfg.Orders.Retention)
	assert.Equal(t, 10*time.Second, cfg.Feed.PollInterval)
	assert.Equal(t, "restaurant_orders", cfg.Orders.LocalKeyPrefix)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "log", cfg.Printing.Driver)
}

func TestNewNormalizes(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("OBS_LOG_ENCODING", " Console ")
	t.Setenv("MENU_BASE_URL", "https://menu.example.com/")
	t.Setenv("FEED_TENANTS", "alpha, beta,,")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, "console", cfg.Observability.LogEncoding)
	assert.Equal(t, "https://menu.example.com", cfg.Menu.BaseURL)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Feed.Tenants)
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "cache driver", key: "CACHE_DRIVER", val: "memcached"},
		{name: "print driver", key: "PRINT_DRIVER", val: "fax"},
		{name: "alert driver", key: "ALERT_DRIVER", val: "siren"},
		{name: "retention", key: "ORDERS_RETENTION", val: "-1h"},
		{name: "bus without kafka", key: "PRINT_DRIVER", val: "bus"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Setenv(testCase.key, testCase.val)
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestNewReportsMalformedValues(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("FEED_POLL_INTERVAL", "ten seconds")
	t.Setenv("HTTP_PORT", "eighty")

	_, err := New()
	require.Error(t, err)
	assert.ErrorContains(t, err, "FEED_POLL_INTERVAL")
	assert.ErrorContains(t, err, "HTTP_PORT")
}

func TestBusPrintingOverMemoryMessaging(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("MESSAGING_ENABLED", "true")
	t.Setenv("MESSAGING_DRIVER", "memory")
	t.Setenv("PRINT_DRIVER", "bus")
	t.Setenv("WORKER_MAX_ATTEMPTS", "0")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Messaging.Driver)
	assert.Equal(t, 1, cfg.Messaging.Workers.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Messaging.Workers.HandlerTimeout)
}

func TestEnvReaderList(t *testing.T) {
	values := map[string]string{"A": " x, ,y ", "B": " , "}
	env := &envReader{lookup: func(k string) (string, bool) { v, ok := values[k]; return v, ok }}

	assert.Equal(t, []string{"x", "y"}, env.list("A", nil))
	assert.Equal(t, []string{"d"}, env.list("B", []string{"d"}))
	assert.Equal(t, []string{"d"}, env.list("C", []string{"d"}))
	assert.NoError(t, env.err())
}
