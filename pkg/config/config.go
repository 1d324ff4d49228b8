// Package config loads the servo controller settings from /cfg/servo.yaml.
package config

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
	"periph.io/x/periph/conn/physic"

	"github.com/masatomizuta/0816feeder/pkg/pca9685"
	"github.com/masatomizuta/0816feeder/pkg/servo"
	"github.com/masatomizuta/0816feeder/pkg/shield"
)

const (
	DefaultPath  = "/cfg/servo.yaml"
	InUseSuffix  = "-in-use.yaml"
	DefaultDev   = "/dev/i2c-1"
	BackendDevfs = "devfs"
	// BackendPeriph goes through periph's I2C bus registry instead of i2c-dev.
	BackendPeriph = "periph"
	BackendDummy  = "dummy"
)

// ServoLimits overrides the pulse width limits of one feeder slot.
type ServoLimits struct {
	Slot  int `yaml:"slot"`
	MinUS int `yaml:"min_us"`
	MaxUS int `yaml:"max_us"`
}

type Config struct {
	Backend string `yaml:"backend"`
	Device  string `yaml:"device"`
	// Bus is the periph bus name, e.g. "I2C1"; empty picks the first bus.
	Bus          string `yaml:"bus"`
	Address      int    `yaml:"address"`
	OscillatorHz int64  `yaml:"oscillator_hz"`
	RefreshHz    int64  `yaml:"refresh_hz"`

	// Shield is a built-in shield name; ShieldFile loads a custom one instead.
	Shield     string `yaml:"shield"`
	ShieldFile string `yaml:"shield_file,omitempty"`

	Servos []ServoLimits `yaml:"servos,omitempty"`
}

func Default() *Config {
	return &Config{
		Backend:      BackendDevfs,
		Device:       DefaultDev,
		Address:      pca9685.DefaultAddr,
		OscillatorHz: int64(pca9685.DefaultOscillator / physic.Hertz),
		RefreshHz:    int64(pca9685.DefaultRefresh / physic.Hertz),
		Shield:       shield.NameI2C,
	}
}

// Load reads the config file over the defaults. A missing file is not an
// error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// WriteInUse writes the effective config next to path, e.g.
// /cfg/servo-in-use.yaml, so it is visible what the controller ran with.
func (c *Config) WriteInUse(path string) (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal config")
	}
	out := InUsePath(path)
	if err := ioutil.WriteFile(out, data, 0666); err != nil {
		return "", errors.Wrap(err, "failed to write in-use config")
	}
	return out, nil
}

func InUsePath(path string) string {
	return strings.TrimSuffix(path, ".yaml") + InUseSuffix
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDevfs:
		if c.Device == "" {
			return errors.New("devfs backend needs a device")
		}
	case BackendPeriph, BackendDummy:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.Address < 0x03 || c.Address > 0x77 {
		return errors.Errorf("I2C address 0x%x out of range", c.Address)
	}
	if c.OscillatorHz <= 0 {
		return errors.New("oscillator_hz must be positive")
	}
	if c.RefreshHz < 24 || c.RefreshHz > 1526 {
		return errors.Errorf("refresh_hz %d outside the 24-1526Hz the chip can generate", c.RefreshHz)
	}
	sh, err := c.LoadShield()
	if err != nil {
		return err
	}
	seen := map[int]bool{}
	for _, s := range c.Servos {
		if s.Slot < 0 || s.Slot >= sh.NumberOfFeeders() {
			return errors.Errorf("servo slot %d not on shield %s", s.Slot, sh.Name)
		}
		if seen[s.Slot] {
			return errors.Errorf("servo slot %d configured twice", s.Slot)
		}
		seen[s.Slot] = true
		if s.MinUS < 0 || s.MinUS >= s.MaxUS {
			return errors.Errorf("servo slot %d: bad pulse range %d-%dus", s.Slot, s.MinUS, s.MaxUS)
		}
	}
	return nil
}

func (c *Config) LoadShield() (*shield.Shield, error) {
	if c.ShieldFile != "" {
		return shield.Load(c.ShieldFile)
	}
	return shield.Lookup(c.Shield)
}

// Limits returns the pulse width limits for a feeder slot.
func (c *Config) Limits(slot int) (min, max int) {
	for _, s := range c.Servos {
		if s.Slot == slot {
			return s.MinUS, s.MaxUS
		}
	}
	return servo.MinPulseWidth, servo.MaxPulseWidth
}

func (c *Config) Oscillator() physic.Frequency {
	return physic.Frequency(c.OscillatorHz) * physic.Hertz
}

func (c *Config) Refresh() physic.Frequency {
	return physic.Frequency(c.RefreshHz) * physic.Hertz
}

// OpenDriver opens the PCA9685 through the configured backend. The driver is
// not initialised.
func (c *Config) OpenDriver(logger *zap.SugaredLogger) (pca9685.Interface, error) {
	var (
		port pca9685.Port
		err  error
	)
	switch c.Backend {
	case BackendDummy:
		return pca9685.Dummy(logger), nil
	case BackendPeriph:
		port, err = pca9685.OpenPeriph(c.Bus, c.Address)
	default:
		port, err = pca9685.OpenDevfs(c.Device, c.Address)
	}
	if err != nil {
		return nil, err
	}
	return pca9685.New(port,
		pca9685.WithOscillator(c.Oscillator()),
		pca9685.WithRefresh(c.Refresh()),
		pca9685.WithLogger(logger),
	), nil
}
