package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":0", cfg.ListenAddress)
	assert.Equal(t, 2*time.Second, cfg.Transmission.AckTimeout)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_address: "192.0.2.1:5683"
request_timeout: 10s
log_level: debug
capture_file: /tmp/capture.cbor
transmission:
  ack_timeout: 1s
  ack_random_factor: 1.2
  max_retransmit: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1:5683", cfg.ListenAddress)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/tmp/capture.cbor", cfg.CaptureFile)
	assert.Equal(t, time.Second, cfg.Transmission.AckTimeout)
	assert.Equal(t, 1.2, cfg.Transmission.AckRandomFactor)
	assert.Equal(t, 3, cfg.Transmission.MaxRetransmit)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `log_level: warn`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":0", cfg.ListenAddress)
	assert.Equal(t, 2*time.Second, cfg.Transmission.AckTimeout)
	assert.Equal(t, 4, cfg.Transmission.MaxRetransmit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "listen_address: [not, a, string, map\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Transmission.AckTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidAckTimeout)

	cfg = Default()
	cfg.Transmission.AckRandomFactor = 0.5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidAckRandomFactor)

	cfg = Default()
	cfg.Transmission.MaxRetransmit = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidMaxRetransmit)

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidLogLevel)
}

func TestBackoffConversion(t *testing.T) {
	cfg := Default()
	cfg.Transmission.AckTimeout = 3 * time.Second

	b := cfg.Backoff()
	assert.Equal(t, 3*time.Second, b.AckTimeout)
	assert.Equal(t, 1.5, b.AckRandomFactor)
	assert.Equal(t, 4, b.MaxRetransmit)
}
