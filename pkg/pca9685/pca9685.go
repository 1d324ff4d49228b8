package pca9685

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/periph/conn/physic"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase    = 0x06
	RegAllLEDBase = 0xfa

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	Mode1Restart = 0x80
	Mode1ExtClk  = 0x40
	Mode1AutoInc = 0x20
	Mode1Sleep   = 0x10
	Mode1AllCall = 0x01

	NumChannels = 16

	// PWMMax is the largest on/off tick count; bit 12 (4096) is the full on/off flag.
	PWMMax  = 4095
	FullOff = 4096

	PreScaleMin = 3
	PreScaleMax = 255

	DefaultOscillator = 25 * physic.MegaHertz
	DefaultRefresh    = 50 * physic.Hertz

	maxRefresh = 3500 * physic.Hertz
	minRefresh = 1 * physic.Hertz
)

var ErrChannelOutOfRange = errors.New("pca9685: channel out of range")

type Interface interface {
	Initialize() error
	SetPWMFreq(freq physic.Frequency) error
	SetPWM(channel int, on, off uint16) error
	WriteMicroseconds(channel int, us int) error
	Disable(channel int) error
	Close() error
}

// Port is a register-level connection to the chip.
type Port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	lock sync.Mutex

	dev        Port
	oscillator physic.Frequency
	refresh    physic.Frequency
	// Cached pre-scaler, 0 until written or read back from the chip.
	prescale byte

	logger *zap.SugaredLogger
	sleep  func(time.Duration)
}

type Option func(*PCA9685)

// WithOscillator overrides the 25MHz internal oscillator frequency, for boards
// with an external clock or a measured calibration value.
func WithOscillator(f physic.Frequency) Option {
	return func(p *PCA9685) {
		p.oscillator = f
	}
}

// WithRefresh sets the PWM frequency programmed by Initialize.
func WithRefresh(f physic.Frequency) Option {
	return func(p *PCA9685) {
		p.refresh = f
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *PCA9685) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(dev Port, opts ...Option) *PCA9685 {
	p := &PCA9685{
		dev:        dev,
		oscillator: DefaultOscillator,
		refresh:    DefaultRefresh,
		logger:     zap.NewNop().Sugar(),
		sleep:      time.Sleep,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ Interface = (*PCA9685)(nil)

// Initialize resets the chip and programs the refresh frequency.
func (p *PCA9685) Initialize() error {
	p.lock.Lock()
	err := p.dev.WriteReg(RegMode1, []byte{Mode1Restart})
	p.lock.Unlock()
	if err != nil {
		return errors.Wrap(err, "pca9685: reset failed")
	}
	p.sleep(10 * time.Millisecond)
	return p.SetPWMFreq(p.refresh)
}

// PreScaleFor returns the pre-scaler value that gets closest to freq with the
// given oscillator.
func PreScaleFor(oscillator, freq physic.Frequency) byte {
	if freq < minRefresh {
		freq = minRefresh
	} else if freq > maxRefresh {
		freq = maxRefresh
	}
	val := float64(oscillator)/(float64(freq)*(PWMMax+1)) + 0.5 - 1
	if val < PreScaleMin {
		val = PreScaleMin
	} else if val > PreScaleMax {
		val = PreScaleMax
	}
	return byte(val)
}

func (p *PCA9685) SetPWMFreq(freq physic.Frequency) error {
	prescale := PreScaleFor(p.oscillator, freq)

	p.lock.Lock()
	defer p.lock.Unlock()

	var mode [1]byte
	if err := p.dev.ReadReg(RegMode1, mode[:]); err != nil {
		return errors.Wrap(err, "pca9685: failed to read MODE1")
	}
	oldMode := mode[0] &^ Mode1Restart
	// The pre-scaler can only be written while the oscillator is asleep.
	if err := p.dev.WriteReg(RegMode1, []byte{oldMode | Mode1Sleep}); err != nil {
		return errors.Wrap(err, "pca9685: failed to enter sleep")
	}
	if err := p.dev.WriteReg(RegPreScale, []byte{prescale}); err != nil {
		return errors.Wrap(err, "pca9685: failed to write pre-scaler")
	}
	if err := p.dev.WriteReg(RegMode1, []byte{oldMode}); err != nil {
		return errors.Wrap(err, "pca9685: failed to wake")
	}
	// Oscillator needs 500us to stabilise after leaving sleep.
	p.sleep(5 * time.Millisecond)
	if err := p.dev.WriteReg(RegMode1, []byte{oldMode | Mode1Restart | Mode1AutoInc}); err != nil {
		return errors.Wrap(err, "pca9685: failed to restart")
	}
	p.prescale = prescale
	p.logger.Debugw("PWM frequency set", "freq", freq, "prescale", prescale)
	return nil
}

func (p *PCA9685) SetPWM(channel int, on, off uint16) error {
	if channel < 0 || channel >= NumChannels {
		return errors.Wrapf(ErrChannelOutOfRange, "channel %d", channel)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.setPWMLocked(channel, on, off)
}

func (p *PCA9685) setPWMLocked(channel int, on, off uint16) error {
	addr := RegLEDBase + channel*4
	err := p.dev.WriteReg(byte(addr), []byte{byte(on & 0xff), byte(on >> 8), byte(off & 0xff), byte(off >> 8)})
	return errors.Wrapf(err, "pca9685: failed to write channel %d", channel)
}

// WriteMicroseconds sets the pulse width of a channel. The tick count is derived
// from the pre-scaler actually programmed on the chip.
func (p *PCA9685) WriteMicroseconds(channel int, us int) error {
	if channel < 0 || channel >= NumChannels {
		return errors.Wrapf(ErrChannelOutOfRange, "channel %d", channel)
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.prescale == 0 {
		var buf [1]byte
		if err := p.dev.ReadReg(RegPreScale, buf[:]); err != nil {
			return errors.Wrap(err, "pca9685: failed to read pre-scaler")
		}
		p.prescale = buf[0]
	}
	ticks := MicrosecondsToTicks(p.oscillator, p.prescale, us)
	p.logger.Debugw("write", "channel", channel, "us", us, "ticks", ticks)
	return p.setPWMLocked(channel, 0, ticks)
}

// MicrosecondsToTicks converts a pulse width into a PWM off count for the given
// oscillator and pre-scaler, truncating and limiting to PWMMax.
func MicrosecondsToTicks(oscillator physic.Frequency, prescale byte, us int) uint16 {
	if us <= 0 {
		return 0
	}
	oscHz := int64(oscillator / physic.Hertz)
	ticks := int64(us) * oscHz / (1000000 * (int64(prescale) + 1))
	if ticks > PWMMax {
		ticks = PWMMax
	}
	return uint16(ticks)
}

// Disable turns a channel fully off.
func (p *PCA9685) Disable(channel int) error {
	return p.SetPWM(channel, 0, FullOff)
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}
