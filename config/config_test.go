package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0600))
	return p
}

func TestLoadKeepsDefaults(t *testing.T) {
	s, err := Load(write(t, `
link: ble
log_level: debug
ble:
  address: "D4:36:39:AA:BB:CC"
  write_without_response: true
protocol:
  request_timeout: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, LinkBLE, s.Link)
	assert.Equal(t, logrus.DebugLevel, s.Level())
	assert.Equal(t, "D4:36:39:AA:BB:CC", s.BLE.Address)
	assert.True(t, s.BLE.WriteWithoutResponse)
	assert.Equal(t, 247, s.BLE.MTU)
	assert.Equal(t, 10*time.Second, s.BLE.ConnectTimeout)

	c := s.ProtocolConfig()
	assert.Equal(t, 2*time.Second, c.RequestTimeout)
	assert.Equal(t, 30*time.Second, c.TransferTimeout)
	assert.Equal(t, 64, c.AbandonedKeys)
}

func TestLoadRejects(t *testing.T) {
	for name, body := range map[string]string{
		"unknown link":    "link: usb\n",
		"no address":      "link: ble\n",
		"no port":         "serial:\n  port: \"\"\n",
		"bad level":       "log_level: loud\n",
		"bad duration":    "protocol:\n  request_timeout: soon\n",
		"not yaml at all": "link: [serial\n",
		"no pause":        "protocol:\n  flow_control_pause: 0s\n",
		"negative":        "protocol:\n  request_timeout: -1s\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	s := Default()
	s.Serial.Port = "COM3"
	s.Protocol.QueueLimit = 8
	require.NoError(t, Save(p, s))

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
