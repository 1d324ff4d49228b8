// Package servo drives hobby servos on the outputs of a PCA9685 PWM controller.
//
// A Servo is attached to one channel at a time. Channel ownership is recorded in
// a channel.Registry shared by every Servo on the same controller, so two servos
// can never drive the same output. Positions are written either as angles
// (0-180 degrees, mapped linearly onto the servo's pulse width limits) or
// directly as pulse widths in microseconds, and are always clamped to the limits
// given at attach time.
package servo

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/masatomizuta/0816feeder/pkg/channel"
)

const (
	MinPulseWidth     = 544  // the shortest pulse sent to a servo
	MaxPulseWidth     = 2400 // the longest pulse sent to a servo
	DefaultPulseWidth = 1500 // pulse sent as soon as a servo is attached

	MaxAngle = 180

	// Unbound is the channel of a servo that is not attached.
	Unbound = -1
)

// Driver is the PWM hardware a Servo writes to.
type Driver interface {
	Initialize() error
	WriteMicroseconds(channel int, us int) error
	Disable(channel int) error
}

// Servo is not safe for concurrent use; the Registry it shares is.
type Servo struct {
	registry *channel.Registry
	driver   Driver
	logger   *zap.SugaredLogger

	channel    int
	claim      uint64
	pulseWidth int
	minPulse   int
	maxPulse   int
}

type Option func(*Servo)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Servo) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(registry *channel.Registry, driver Driver, opts ...Option) *Servo {
	s := &Servo{
		registry:   registry,
		driver:     driver,
		logger:     zap.NewNop().Sugar(),
		channel:    Unbound,
		pulseWidth: DefaultPulseWidth,
		minPulse:   MinPulseWidth,
		maxPulse:   MaxPulseWidth,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Attach attaches the servo to a channel with the default 544-2400us limits.
func (s *Servo) Attach(pin int) (int, error) {
	return s.AttachWithLimits(pin, MinPulseWidth, MaxPulseWidth)
}

// AttachWithLimits claims the channel and immediately drives it with the
// servo's current pulse width (1500us for a new servo), clamped to [min, max].
// It returns the attached channel.
func (s *Servo) AttachWithLimits(pin, min, max int) (int, error) {
	s.forgetStale()
	if s.channel != Unbound {
		return Unbound, &AttachError{Channel: pin, Err: ErrAlreadyAttached}
	}
	if min < 0 || min >= max {
		return Unbound, &AttachError{Channel: pin, Err: errors.Wrapf(ErrInvalidPulseRange, "%d-%dus", min, max)}
	}
	if !channel.InRange(pin) {
		return Unbound, &AttachError{Channel: pin, Err: ErrChannelOutOfRange}
	}
	if !s.registry.TryClaim(pin) {
		return Unbound, &AttachError{Channel: pin, Err: ErrChannelUnavailable}
	}

	pulse := clamp(s.pulseWidth, min, max)
	if err := s.driver.WriteMicroseconds(pin, pulse); err != nil {
		s.registry.Release(pin)
		s.logger.Warnw("Failed to drive channel on attach", "channel", pin, "error", err)
		return Unbound, &AttachError{Channel: pin, Err: errors.Wrap(err, "initial write failed")}
	}

	s.channel = pin
	s.claim = s.registry.Claims(pin)
	s.minPulse = min
	s.maxPulse = max
	s.pulseWidth = pulse
	s.logger.Infow("Attached", "channel", pin, "min_us", min, "max_us", max, "us", pulse)
	return pin, nil
}

// Detach releases the channel and turns its output off. Detaching a servo that
// is not attached does nothing.
func (s *Servo) Detach() error {
	s.forgetStale()
	if s.channel == Unbound {
		return nil
	}
	ch := s.channel
	s.channel = Unbound
	s.registry.Release(ch)
	s.logger.Infow("Detached", "channel", ch)
	if err := s.driver.Disable(ch); err != nil {
		return errors.Wrapf(err, "failed to disable channel %d", ch)
	}
	return nil
}

// Write is the Arduino-style entry point: values below MinPulseWidth are angles
// in degrees, anything else is a pulse width in microseconds. 544 itself is
// therefore 544us, not 544 degrees.
func (s *Servo) Write(value int) error {
	if value < MinPulseWidth {
		return s.WriteAngle(value)
	}
	return s.WriteMicroseconds(value)
}

// WriteAngle moves to an angle between 0 and 180 degrees; values outside are clamped.
func (s *Servo) WriteAngle(degrees int) error {
	degrees = clamp(degrees, 0, MaxAngle)
	return s.WriteMicroseconds(Map(degrees, 0, MaxAngle, s.minPulse, s.maxPulse))
}

// WriteMicroseconds sets the pulse width, clamped to the servo's limits. It
// does nothing if the servo is not attached, including when its channel was
// released behind its back.
func (s *Servo) WriteMicroseconds(us int) error {
	if !s.Attached() {
		return nil
	}
	us = clamp(us, s.minPulse, s.maxPulse)
	if err := s.driver.WriteMicroseconds(s.channel, us); err != nil {
		return errors.Wrapf(err, "failed to write channel %d", s.channel)
	}
	s.pulseWidth = us
	s.logger.Debugw("Write", "channel", s.channel, "us", us)
	return nil
}

// Read returns the last written position in degrees, or 0 if not attached.
func (s *Servo) Read() int {
	if !s.Attached() {
		return 0
	}
	return Map(s.pulseWidth, s.minPulse, s.maxPulse, 0, MaxAngle)
}

// ReadMicroseconds returns the last written pulse width, or 0 if not attached.
// The hardware is not queried.
func (s *Servo) ReadMicroseconds() int {
	if !s.Attached() {
		return 0
	}
	return s.pulseWidth
}

func (s *Servo) Attached() bool {
	if s.channel == Unbound {
		return false
	}
	return s.registry.IsClaimed(s.channel) && s.registry.Claims(s.channel) == s.claim
}

// forgetStale unbinds a servo whose channel was released by someone else, so
// that it neither releases nor disables a channel it no longer owns.
func (s *Servo) forgetStale() {
	if s.channel != Unbound && !s.Attached() {
		s.logger.Debugw("Channel released externally", "channel", s.channel)
		s.channel = Unbound
	}
}

// Channel returns the channel the servo was attached to, or Unbound.
func (s *Servo) Channel() int {
	return s.channel
}

func (s *Servo) Limits() (min, max int) {
	return s.minPulse, s.maxPulse
}

// Map re-maps x from [inMin, inMax] onto [outMin, outMax] with integer
// arithmetic, truncating toward zero.
func Map(x, inMin, inMax, outMin, outMax int) int {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
