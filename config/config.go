package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file inside the data directory.
const FileName = "config.yml"

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Ephemeral range a fresh control port is drawn from.
const (
	minControlPort = 49152
	maxControlPort = 65535
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every persisted client setting.
type Config struct {
	ControlPort           uint16        `yaml:"controlPort"`
	AudioPorts            string        `yaml:"audioPorts"`
	InputSensitivity      float64       `yaml:"inputSensitivity"`
	InputVolume           float64       `yaml:"inputVolume"`
	OutputVolume          float64       `yaml:"outputVolume"`
	UseNoiseSuppression   bool          `yaml:"useNoiseSuppression"`
	NoiseSuppressionLevel float64       `yaml:"noiseSuppressionLevel"`
	LogLevel              string        `yaml:"logLevel"`
	APIAddress            string        `yaml:"apiAddress"`
	ContactStore          string        `yaml:"contactStore"`
	DownloadDir           string        `yaml:"downloadDir"`
	AcceptTimeout         time.Duration `yaml:"acceptTimeout"`
}

// Default returns the settings of a fresh install rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		ControlPort:           uint16(minControlPort + rand.IntN(maxControlPort-minControlPort+1)),
		AudioPorts:            "20000-21000",
		InputSensitivity:      av.DefaultSensitivityDB,
		InputVolume:           0,
		OutputVolume:          0,
		UseNoiseSuppression:   false,
		NoiseSuppressionLevel: 0.5,
		LogLevel:              "warning",
		APIAddress:            "127.0.0.1:7420",
		ContactStore:          StoreJSON,
		DownloadDir:           filepath.Join(dataDir, "downloads"),
		AcceptTimeout:         10 * time.Second,
	}
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "audio-chat"), nil
}

// Path returns the settings file path inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads dataDir's settings file. A missing file is created from
// defaults, and a file lacking keys is completed from defaults and
// rewritten.
func Load(dataDir string) (Config, error) {
	path := Path(dataDir)
	cfg := Default(dataDir)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
		}).Info("Creating default configuration")
		return cfg, Save(dataDir, cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	missing, err := missingKeys(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(missing) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
			"added":    missing,
		}).Info("Upgrading configuration with new defaults")
		if err := Save(dataDir, cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// missingKeys lists the known keys absent from a settings document.
func missingKeys(data []byte) ([]string, error) {
	present := map[string]any{}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, err
	}

	var known yaml.Node
	if err := known.Encode(Config{}); err != nil {
		return nil, err
	}

	var missing []string
	for i := 0; i+1 < len(known.Content); i += 2 {
		key := known.Content[i].Value
		if _, ok := present[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

// Save writes cfg to dataDir atomically.
func Save(dataDir string, cfg Config) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dataDir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dataDir, FileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), Path(dataDir))
}

// Validate checks every field a client depends on.
func (c Config) Validate() error {
	ports, err := transport.ParsePortRange(c.AudioPorts)
	if err != nil {
		return fmt.Errorf("%w: audioPorts: %v", ErrInvalidConfig, err)
	}
	if c.ControlPort == 0 {
		return fmt.Errorf("%w: controlPort must be set", ErrInvalidConfig)
	}
	if ports.Contains(c.ControlPort) {
		return fmt.Errorf("%w: controlPort %d lies inside audioPorts %s", ErrInvalidConfig, c.ControlPort, ports)
	}
	if c.InputVolume > audio.MaxGainDB || c.OutputVolume > audio.MaxGainDB {
		return fmt.Errorf("%w: volume above %.0f dB", ErrInvalidConfig, audio.MaxGainDB)
	}
	if c.InputSensitivity > 0 {
		return fmt.Errorf("%w: inputSensitivity %.1f dBFS is above full scale", ErrInvalidConfig, c.InputSensitivity)
	}
	if c.NoiseSuppressionLevel < 0 || c.NoiseSuppressionLevel > 1 {
		return fmt.Errorf("%w: noiseSuppressionLevel must be within [0, 1]", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: logLevel: %v", ErrInvalidConfig, err)
	}
	switch c.ContactStore {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown contactStore %q", ErrInvalidConfig, c.ContactStore)
	}
	if c.AcceptTimeout <= 0 {
		return fmt.Errorf("%w: acceptTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// PortRange returns the parsed audio port range. Call Validate first.
func (c Config) PortRange() transport.PortRange {
	ports, _ := transport.ParsePortRange(c.AudioPorts)
	return ports
}

// Level returns the parsed log level, defaulting to warning.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}
