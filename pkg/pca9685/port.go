package pca9685

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	periphi2c "periph.io/x/periph/conn/i2c"
)

// OpenDevfs opens the chip through the Linux i2c-dev interface, e.g. "/dev/i2c-1".
func OpenDevfs(deviceFile string, addr int) (Port, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", deviceFile)
	}
	return dev, nil
}

// OpenPeriph opens the chip through periph's bus registry. An empty busName
// picks the first bus available.
func OpenPeriph(busName string, addr int) (Port, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open I2C bus %q", busName)
	}
	return &PeriphAdapter{
		bus: bus,
		dev: &periphi2c.Dev{Bus: bus, Addr: uint16(addr)},
	}, nil
}

type PeriphAdapter struct {
	bus periphi2c.BusCloser
	dev *periphi2c.Dev
}

func (a *PeriphAdapter) ReadReg(reg byte, buf []byte) error {
	return a.dev.Tx([]byte{reg}, buf)
}

func (a *PeriphAdapter) WriteReg(reg byte, buf []byte) error {
	// Register address goes first, followed by the data in the same transaction.
	w := make([]byte, 1+len(buf))
	w[0] = reg
	copy(w[1:], buf)
	return a.dev.Tx(w, nil)
}

func (a *PeriphAdapter) Close() error {
	return a.bus.Close()
}
