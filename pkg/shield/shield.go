// Package shield describes the feeder controller boards: which pin drives the
// servo of each feeder slot, and what else the board provides.
package shield

import (
	"io/ioutil"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/masatomizuta/0816feeder/pkg/channel"
)

// Pin is a board pin name, either a number ("7") or an Arduino analog alias ("A2").
type Pin string

// Arduino Uno maps A0-A5 onto digital pins 14-19.
const analogBase = 14

func (p Pin) Number() (int, error) {
	s := strings.TrimSpace(string(p))
	if strings.HasPrefix(s, "A") || strings.HasPrefix(s, "a") {
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 || n > 5 {
			return 0, errors.Errorf("bad analog pin %q", string(p))
		}
		return analogBase + n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.Errorf("bad pin %q", string(p))
	}
	return n, nil
}

type Capabilities struct {
	EnablePin     bool `yaml:"enable_pin"`
	FeedbackLines bool `yaml:"feedback_lines"`
	AnalogIn      bool `yaml:"analog_in"`
	PowerOutputs  bool `yaml:"power_outputs"`
	// I2CServo means feeder servos sit on a PCA9685 and each pin is its PWM channel.
	I2CServo bool `yaml:"i2c_servo"`
}

type Shield struct {
	Name         string `yaml:"name"`
	Capabilities `yaml:"capabilities"`
	// PinMap holds the pin of each feeder, first feeder (N0) at index 0.
	PinMap []Pin `yaml:"pin_map"`
}

func (s *Shield) NumberOfFeeders() int {
	return len(s.PinMap)
}

func (s *Shield) Pin(slot int) (Pin, error) {
	if slot < 0 || slot >= len(s.PinMap) {
		return "", errors.Errorf("shield %s: no feeder slot %d (have %d)", s.Name, slot, len(s.PinMap))
	}
	return s.PinMap[slot], nil
}

// Channel returns the PWM channel that drives the feeder slot. Only I2C servo
// shields have channels.
func (s *Shield) Channel(slot int) (int, error) {
	if !s.I2CServo {
		return 0, errors.Errorf("shield %s has no I2C servo controller", s.Name)
	}
	p, err := s.Pin(slot)
	if err != nil {
		return 0, err
	}
	ch, err := p.Number()
	if err != nil {
		return 0, err
	}
	if !channel.InRange(ch) {
		return 0, errors.Errorf("shield %s: slot %d maps to channel %d, outside 0-%d", s.Name, slot, ch, channel.NumChannels-1)
	}
	return ch, nil
}

func (s *Shield) Validate() error {
	if s.Name == "" {
		return errors.New("shield has no name")
	}
	if len(s.PinMap) == 0 {
		return errors.Errorf("shield %s has an empty pin map", s.Name)
	}
	seen := map[int]int{}
	for slot, p := range s.PinMap {
		n, err := p.Number()
		if err != nil {
			return errors.Wrapf(err, "shield %s slot %d", s.Name, slot)
		}
		if prev, ok := seen[n]; ok {
			return errors.Errorf("shield %s: slots %d and %d share pin %s", s.Name, prev, slot, p)
		}
		seen[n] = slot
		if s.I2CServo && !channel.InRange(n) {
			return errors.Errorf("shield %s: slot %d pin %s is not a PWM channel", s.Name, slot, p)
		}
	}
	return nil
}

var builtin = map[string]*Shield{}

func register(s *Shield) {
	builtin[s.Name] = s
}

// Lookup returns a copy of the built-in shield with that name.
func Lookup(name string) (*Shield, error) {
	s, ok := builtin[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("unknown shield %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	c := *s
	c.PinMap = append([]Pin(nil), s.PinMap...)
	return &c, nil
}

func Names() []string {
	var names []string
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse reads a shield definition from yaml.
func Parse(data []byte) (*Shield, error) {
	var s Shield
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse shield")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func Load(path string) (*Shield, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shield file")
	}
	s, err := Parse(data)
	return s, errors.Wrap(err, path)
}
