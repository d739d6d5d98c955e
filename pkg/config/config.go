// Package config loads the robot's settings: defaults in code, overridden by
// a yaml file and then by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/laser"
	"github.com/Ngotcode/pixybattle/pkg/lasertagmode"
)

const (
	DefaultPath = "/cfg/pixybattle.yaml"
	InUsePath   = "/cfg/pixybattle-in-use.yaml"

	// Dummy as a device name selects the dummy implementation.
	Dummy = "dummy"
)

type CameraConfig struct {
	Device   string
	BaudRate int
}

type DriveConfig struct {
	// Motors is "drv8835" or Dummy.
	Motors              string
	FlipLeft, FlipRight bool
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type Config struct {
	Laser     laser.Config
	Camera    CameraConfig
	Drive     DriveConfig
	Behaviour lasertagmode.Config
	Logging   LoggingConfig
	// SoundDir holds the wav files; empty means silent.
	SoundDir string
	// ScreenDevice is the status screen's framebuffer.
	ScreenDevice string
	// BattleDB is the sqlite file battles are recorded in; empty disables it.
	BattleDB string
	// SceneDir is where scenes around each shot are saved; empty disables it.
	SceneDir string
}

func Default() Config {
	return Config{
		Laser: laser.DefaultConfig(),
		Camera: CameraConfig{
			Device:   "/dev/ttyAMA0",
			BaudRate: 19200,
		},
		Drive: DriveConfig{
			Motors: "drv8835",
		},
		Behaviour: lasertagmode.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		SoundDir:     "/sounds",
		ScreenDevice: "/dev/fb1",
		BattleDB:     "/cfg/battles.db",
	}
}

// Load reads the yaml file at path over the defaults and then applies the
// environment. A missing or broken file is logged and the defaults kept.
func Load(path string) Config {
	log := botlog.For("config")
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Msg("No config file, using defaults")
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse config")
		cfg = Default()
	}
	ApplyEnv(&cfg, os.Getenv)
	return cfg
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("LASER_DEVICE"); v != "" {
		cfg.Laser.Device = v
	}
	if v := getenv("PIXY_DEVICE"); v != "" {
		cfg.Camera.Device = v
	}
	if v := getenv("MOTORS"); v != "" {
		cfg.Drive.Motors = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("BATTLE_DB"); v != "" {
		cfg.BattleDB = v
	}
	if v := getenv("TARGET_SIGNATURE"); v != "" {
		sig, err := strconv.Atoi(v)
		if err != nil {
			l := botlog.For("config")
			l.Warn().Str("value", v).Msg("Ignoring bad TARGET_SIGNATURE")
		} else {
			cfg.Behaviour.TargetSignature = sig
		}
	}
}

// Path returns the config file to load, PIXYBATTLE_CONFIG if set.
func Path() string {
	if p := os.Getenv("PIXYBATTLE_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// WriteInUse writes out the config that we are using.
func WriteInUse(cfg Config, path string) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0666); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Laser.BaudRate <= 0 || c.Camera.BaudRate <= 0 {
		return fmt.Errorf("baud rates must be positive")
	}
	if c.Laser.Cooldown < 0 || c.Laser.Recovery < 0 {
		return fmt.Errorf("laser cooldown and recovery must not be negative")
	}
	if c.Laser.PollInterval <= 0 || c.Laser.PollInterval > time.Second {
		return fmt.Errorf("laser poll interval %v out of range", c.Laser.PollInterval)
	}
	if c.Behaviour.FPS <= 0 {
		return fmt.Errorf("behaviour FPS must be positive")
	}
	if t := c.Behaviour.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("similarity threshold %v not in (0, 1]", t)
	}
	switch c.Drive.Motors {
	case "drv8835", Dummy:
	default:
		return fmt.Errorf("unknown motors %q", c.Drive.Motors)
	}
	return nil
}
