package pca9685

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/physic"
)

type regWrite struct {
	reg  byte
	data []byte
}

type fakePort struct {
	regs   [256]byte
	writes []regWrite
	err    error
	closed bool
}

func (f *fakePort) ReadReg(reg byte, buf []byte) error {
	if f.err != nil {
		return f.err
	}
	copy(buf, f.regs[reg:])
	return nil
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, regWrite{reg: reg, data: append([]byte(nil), buf...)})
	copy(f.regs[reg:], buf)
	return nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func newTestChip(port *fakePort, opts ...Option) *PCA9685 {
	p := New(port, opts...)
	p.sleep = func(time.Duration) {}
	return p
}

func TestPreScaleFor(t *testing.T) {
	assert.EqualValues(t, 121, PreScaleFor(DefaultOscillator, 50*physic.Hertz))
	assert.EqualValues(t, 3, PreScaleFor(DefaultOscillator, 10000*physic.Hertz))
	assert.EqualValues(t, 255, PreScaleFor(DefaultOscillator, 1*physic.Hertz))
}

func TestMicrosecondsToTicks(t *testing.T) {
	assert.EqualValues(t, 307, MicrosecondsToTicks(DefaultOscillator, 121, 1500))
	assert.EqualValues(t, 111, MicrosecondsToTicks(DefaultOscillator, 121, 544))
	assert.EqualValues(t, 491, MicrosecondsToTicks(DefaultOscillator, 121, 2400))
	assert.EqualValues(t, 0, MicrosecondsToTicks(DefaultOscillator, 121, -5))
	assert.EqualValues(t, PWMMax, MicrosecondsToTicks(DefaultOscillator, 121, 100000))
}

func TestInitialize(t *testing.T) {
	port := &fakePort{}
	p := newTestChip(port)
	require.NoError(t, p.Initialize())

	require.Len(t, port.writes, 5)
	assert.Equal(t, regWrite{RegMode1, []byte{Mode1Restart}}, port.writes[0])
	// The restart bit read back from MODE1 must not be written with sleep.
	assert.Equal(t, regWrite{RegMode1, []byte{Mode1Sleep}}, port.writes[1])
	assert.Equal(t, regWrite{RegPreScale, []byte{121}}, port.writes[2])
	assert.Equal(t, regWrite{RegMode1, []byte{0}}, port.writes[3])
	assert.Equal(t, regWrite{RegMode1, []byte{Mode1Restart | Mode1AutoInc}}, port.writes[4])
}

func TestWriteMicroseconds(t *testing.T) {
	port := &fakePort{}
	p := newTestChip(port)
	require.NoError(t, p.Initialize())
	port.writes = nil

	require.NoError(t, p.WriteMicroseconds(3, 1500))
	require.Len(t, port.writes, 1)
	// 307 = 0x0133
	assert.Equal(t, regWrite{RegLEDBase + 12, []byte{0, 0, 0x33, 0x01}}, port.writes[0])
}

func TestWriteMicrosecondsReadsPreScale(t *testing.T) {
	port := &fakePort{}
	port.regs[RegPreScale] = 121
	p := newTestChip(port)

	require.NoError(t, p.WriteMicroseconds(0, 1500))
	require.Len(t, port.writes, 1)
	assert.Equal(t, regWrite{RegLEDBase, []byte{0, 0, 0x33, 0x01}}, port.writes[0])
}

func TestDisable(t *testing.T) {
	port := &fakePort{}
	p := newTestChip(port)

	require.NoError(t, p.Disable(15))
	require.Len(t, port.writes, 1)
	assert.Equal(t, regWrite{RegLEDBase + 60, []byte{0, 0, 0x00, 0x10}}, port.writes[0])
}

func TestChannelOutOfRange(t *testing.T) {
	port := &fakePort{}
	p := newTestChip(port)

	assert.True(t, errors.Is(p.SetPWM(16, 0, 0), ErrChannelOutOfRange))
	assert.True(t, errors.Is(p.WriteMicroseconds(-1, 1500), ErrChannelOutOfRange))
	assert.True(t, errors.Is(p.Disable(99), ErrChannelOutOfRange))
	assert.Empty(t, port.writes)
}

func TestBusErrorsAreWrapped(t *testing.T) {
	busErr := errors.New("remote I/O error")
	port := &fakePort{err: busErr}
	p := newTestChip(port)

	err := p.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, busErr))
	assert.Contains(t, err.Error(), "reset")
}

func TestClose(t *testing.T) {
	port := &fakePort{}
	p := newTestChip(port)
	require.NoError(t, p.Close())
	assert.True(t, port.closed)
}

func TestDummy(t *testing.T) {
	d := Dummy(nil)
	require.NoError(t, d.Initialize())
	require.NoError(t, d.WriteMicroseconds(1, 1500))
	require.NoError(t, d.Disable(1))
	require.NoError(t, d.Close())
}
