package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 443, cfg.NG1Port)
	assert.Equal(t, "https", cfg.NG1Scheme)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "CiscoIOT-Customers", cfg.RegistryPrefix)
	assert.Equal(t, []string{"InfiniStreamNG", "vSTREAM"}, cfg.AllowedDeviceTypes)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CIOT_NG1_HOST", "ng1.example.net")
	t.Setenv("CIOT_NG1_PORT", "8443")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://ng1.example.net:8443", cfg.BaseURL())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ciscoiot.yaml")
	body := "ng1_host: 10.1.1.5\nng1_scheme: http\nregistry_dir: /var/lib/ciscoiot\nrequest_timeout_seconds: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.1.1.5:443", cfg.BaseURL())
	assert.Equal(t, "/var/lib/ciscoiot", cfg.RegistryDir)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRunContextSnapshotsConfig(t *testing.T) {
	cfg := &Config{NG1Host: "a"}
	rc := NewRunContext(cfg)
	cfg.NG1Host = "b"

	assert.Equal(t, "a", rc.Config().NG1Host)
	assert.NotEmpty(t, rc.RunID())
	assert.NotEmpty(t, rc.Operator())
	assert.NotEqual(t, rc.RunID(), NewRunContext(cfg).RunID())
}
