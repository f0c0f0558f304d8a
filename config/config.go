// Package config holds the settings of the activelook command line tool.
package config

import (
	"os"
	"time"

	"github.com/RoanBrand/ActiveLookProtocol/protocol"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	LinkSerial = "serial"
	LinkBLE    = "ble"
)

type Settings struct {
	Link     string           `yaml:"link"`
	LogLevel string           `yaml:"log_level"`
	Serial   SerialSettings   `yaml:"serial"`
	BLE      BLESettings      `yaml:"ble"`
	Protocol ProtocolSettings `yaml:"protocol"`
}

type SerialSettings struct {
	Port          string        `yaml:"port"`
	Baud          int           `yaml:"baud"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	MTU           int           `yaml:"mtu"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type BLESettings struct {
	Address              string        `yaml:"address"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	MTU                  int           `yaml:"mtu"`
	WriteWithoutResponse bool          `yaml:"write_without_response"`
}

type ProtocolSettings struct {
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	TransferTimeout  time.Duration `yaml:"transfer_timeout"`
	FlowControlPause time.Duration `yaml:"flow_control_pause"`
	AbandonedKeys    int           `yaml:"abandoned_keys"`
	QueueLimit       int           `yaml:"queue_limit"`
}

func Default() *Settings {
	p := protocol.DefaultConfig()
	return &Settings{
		Link:     LinkSerial,
		LogLevel: "info",
		Serial: SerialSettings{
			Port:          "/dev/ttyACM0",
			Baud:          115200,
			MTU:           185,
			RetryInterval: 5 * time.Second,
		},
		BLE: BLESettings{
			ConnectTimeout: 10 * time.Second,
			MTU:            247,
		},
		Protocol: ProtocolSettings{
			RequestTimeout:   p.RequestTimeout,
			TransferTimeout:  p.TransferTimeout,
			FlowControlPause: p.FlowControlPause,
			AbandonedKeys:    p.AbandonedKeys,
			QueueLimit:       p.QueueLimit,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Settings, error) {
	s := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return s, s.Validate()
}

func (s *Settings) Validate() error {
	switch s.Link {
	case LinkSerial:
		if s.Serial.Port == "" {
			return errors.New("serial.port is required")
		}
	case LinkBLE:
		if s.BLE.Address == "" {
			return errors.New("ble.address is required")
		}
	default:
		return errors.Errorf("unknown link %q", s.Link)
	}
	for name, d := range map[string]time.Duration{
		"protocol.request_timeout":    s.Protocol.RequestTimeout,
		"protocol.transfer_timeout":   s.Protocol.TransferTimeout,
		"protocol.flow_control_pause": s.Protocol.FlowControlPause,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// Save writes the settings as YAML.
func Save(path string, s *Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

func (s *Settings) Level() logrus.Level {
	l, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

// ProtocolConfig converts the protocol section for protocol.NewDispatcher.
func (s *Settings) ProtocolConfig() protocol.Config {
	return protocol.Config{
		RequestTimeout:   s.Protocol.RequestTimeout,
		TransferTimeout:  s.Protocol.TransferTimeout,
		FlowControlPause: s.Protocol.FlowControlPause,
		AbandonedKeys:    s.Protocol.AbandonedKeys,
		QueueLimit:       s.Protocol.QueueLimit,
	}
}
